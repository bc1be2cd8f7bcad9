// Package geo indexes snapshot rows in an R-tree for map viewport and
// nearest-location queries.
package geo

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dhconnelly/rtreego"

	"github.com/aqiexplorer/aqiexplorer/internal/airquality"
)

const (
	tolerance   = 0.01
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
	earthRadius = 6371.0 // km
)

// Parse errors.
var (
	ErrInvalidBox   = errors.New("invalid bounding box")
	ErrInvalidPoint = errors.New("invalid point")
)

// Box is a latitude/longitude bounding box.
type Box struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// ParseBox parses "minLat,minLon,maxLat,maxLon".
func ParseBox(s string) (Box, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Box{}, fmt.Errorf("%w: want minLat,minLon,maxLat,maxLon", ErrInvalidBox)
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Box{}, fmt.Errorf("%w: %q is not a number", ErrInvalidBox, p)
		}
		v[i] = f
	}

	box := Box{MinLat: v[0], MinLon: v[1], MaxLat: v[2], MaxLon: v[3]}
	return box, box.Validate()
}

// Validate checks ranges and ordering.
func (b Box) Validate() error {
	switch {
	case b.MinLat < -90 || b.MaxLat > 90:
		return fmt.Errorf("%w: latitude out of range", ErrInvalidBox)
	case b.MinLon < -180 || b.MaxLon > 180:
		return fmt.Errorf("%w: longitude out of range", ErrInvalidBox)
	case b.MinLat > b.MaxLat || b.MinLon > b.MaxLon:
		return fmt.Errorf("%w: min corner exceeds max corner", ErrInvalidBox)
	}
	return nil
}

// Contains reports whether the point lies inside the box, edges included.
func (b Box) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// ParsePoint parses "lat,lon".
func ParsePoint(s string) (lat, lon float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: want lat,lon", ErrInvalidPoint)
	}
	if lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64); err != nil {
		return 0, 0, fmt.Errorf("%w: %q is not a number", ErrInvalidPoint, parts[0])
	}
	if lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64); err != nil {
		return 0, 0, fmt.Errorf("%w: %q is not a number", ErrInvalidPoint, parts[1])
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("%w: out of range", ErrInvalidPoint)
	}
	return lat, lon, nil
}

// Neighbor is a row returned by Nearest with its distance to the query.
type Neighbor struct {
	Row        airquality.SnapshotRow
	DistanceKm float64
}

type spatialItem struct {
	row  airquality.SnapshotRow
	seq  int
	rect *rtreego.Rect
}

func (si *spatialItem) Bounds() *rtreego.Rect {
	return si.rect
}

// Index is a thread-safe R-tree over snapshot rows.
type Index struct {
	mu   sync.RWMutex
	tree *rtreego.Rtree
	size int
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		tree: rtreego.NewTree(dimensions, minChildren, maxChildren),
	}
}

// FromSnapshot builds an index over the rows of a snapshot.
func FromSnapshot(snapshot airquality.Snapshot) *Index {
	idx := NewIndex()
	idx.Load(snapshot.Rows)
	return idx
}

// Load replaces the contents of the index.
func (i *Index) Load(rows []airquality.SnapshotRow) {
	tree := rtreego.NewTree(dimensions, minChildren, maxChildren)
	for n, row := range rows {
		tree.Insert(&spatialItem{
			row:  row,
			seq:  n,
			rect: rtreego.Point{row.Lat, row.Lon}.ToRect(tolerance),
		})
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.tree = tree
	i.size = len(rows)
}

// Len returns the number of indexed rows.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.size
}

// SearchBox returns the rows inside box in their original snapshot order.
func (i *Index) SearchBox(box Box) ([]airquality.SnapshotRow, error) {
	if err := box.Validate(); err != nil {
		return nil, err
	}

	// A degenerate box still needs a positive extent for the tree query.
	lengths := []float64{
		math.Max(box.MaxLat-box.MinLat, tolerance),
		math.Max(box.MaxLon-box.MinLon, tolerance),
	}
	bounds, err := rtreego.NewRect(rtreego.Point{box.MinLat, box.MinLon}, lengths)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBox, err)
	}

	i.mu.RLock()
	results := i.tree.SearchIntersect(bounds)
	i.mu.RUnlock()

	items := make([]*spatialItem, 0, len(results))
	for _, r := range results {
		item, ok := r.(*spatialItem)
		if !ok || !box.Contains(item.row.Lat, item.row.Lon) {
			continue
		}
		items = append(items, item)
	}
	sortBySeq(items)

	rows := make([]airquality.SnapshotRow, len(items))
	for n, item := range items {
		rows[n] = item.row
	}
	return rows, nil
}

// Nearest returns up to k rows closest to (lat, lon), nearest first.
func (i *Index) Nearest(lat, lon float64, k int) []Neighbor {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if k <= 0 || i.size == 0 {
		return []Neighbor{}
	}
	if k > i.size {
		k = i.size
	}

	// The tree ranks by planar degree distance, which disagrees with
	// great-circle distance away from the equator. Snapshots hold one row
	// per location, so rank every row and cut afterwards.
	results := i.tree.NearestNeighbors(i.size, rtreego.Point{lat, lon})
	items := make([]*spatialItem, 0, len(results))
	for _, r := range results {
		if item, ok := r.(*spatialItem); ok && item != nil {
			items = append(items, item)
		}
	}
	sortBySeq(items)

	neighbors := make([]Neighbor, len(items))
	for n, item := range items {
		neighbors[n] = Neighbor{
			Row:        item.row,
			DistanceKm: haversineDistance(lat, lon, item.row.Lat, item.row.Lon),
		}
	}
	sort.SliceStable(neighbors, func(a, b int) bool { return neighbors[a].DistanceKm < neighbors[b].DistanceKm })

	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors
}

func sortBySeq(items []*spatialItem) {
	sort.Slice(items, func(a, b int) bool { return items[a].seq < items[b].seq })
}

// haversineDistance calculates the distance between two lat/lon points in kilometers.
func haversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	dLat := lat2Rad - lat1Rad
	dLon := (lon2 - lon1) * math.Pi / 180.0

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadius * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
