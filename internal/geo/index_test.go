package geo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqiexplorer/aqiexplorer/internal/airquality"
	"github.com/aqiexplorer/aqiexplorer/internal/geo"
)

func snapshotRows() []airquality.SnapshotRow {
	return []airquality.SnapshotRow{
		{Label: "New York, NY", ZipCode: "10001", Lat: 40.7128, Lon: -74.0060, AQI: 42},
		{Label: "Boston, MA", ZipCode: "02108", Lat: 42.3601, Lon: -71.0589, AQI: 35},
		{Label: "Chicago, IL", ZipCode: "60601", Lat: 41.8781, Lon: -87.6298, AQI: 60},
		{Label: "Los Angeles, CA", ZipCode: "90001", Lat: 34.0522, Lon: -118.2437, AQI: 88},
		{Label: "Miami, FL", ZipCode: "33101", Lat: 25.7617, Lon: -80.1918, AQI: 30},
	}
}

func TestIndex_SearchBox(t *testing.T) {
	idx := geo.NewIndex()
	idx.Load(snapshotRows())
	require.Equal(t, 5, idx.Len())

	// North-east corridor
	rows, err := idx.SearchBox(geo.Box{MinLat: 39, MinLon: -76, MaxLat: 43, MaxLon: -70})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "New York, NY", rows[0].Label)
	assert.Equal(t, "Boston, MA", rows[1].Label)

	// Whole country keeps snapshot order
	rows, err = idx.SearchBox(geo.Box{MinLat: 20, MinLon: -125, MaxLat: 50, MaxLon: -65})
	require.NoError(t, err)
	require.Len(t, rows, 5)
	for i, row := range snapshotRows() {
		assert.Equal(t, row.Label, rows[i].Label)
	}

	// Empty area
	rows, err = idx.SearchBox(geo.Box{MinLat: 0, MinLon: 0, MaxLat: 10, MaxLon: 10})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestIndex_SearchBoxDegenerate(t *testing.T) {
	idx := geo.FromSnapshot(airquality.Snapshot{Rows: snapshotRows()})

	rows, err := idx.SearchBox(geo.Box{MinLat: 40.7128, MinLon: -74.0060, MaxLat: 40.7128, MaxLon: -74.0060})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "10001", rows[0].ZipCode)
}

func TestIndex_SearchBoxInvalid(t *testing.T) {
	idx := geo.NewIndex()

	_, err := idx.SearchBox(geo.Box{MinLat: 45, MinLon: -74, MaxLat: 40, MaxLon: -70})
	assert.ErrorIs(t, err, geo.ErrInvalidBox)
}

func TestIndex_Nearest(t *testing.T) {
	idx := geo.FromSnapshot(airquality.Snapshot{Rows: snapshotRows()})

	// Near Philadelphia
	neighbors := idx.Nearest(39.95, -75.16, 2)
	require.Len(t, neighbors, 2)
	assert.Equal(t, "New York, NY", neighbors[0].Row.Label)
	assert.Equal(t, "Boston, MA", neighbors[1].Row.Label)
	assert.InDelta(t, 130, neighbors[0].DistanceKm, 10)

	assert.Len(t, idx.Nearest(0, 0, 50), 5)
	assert.Empty(t, idx.Nearest(0, 0, 0))
	assert.Empty(t, geo.NewIndex().Nearest(0, 0, 3))
}

func TestIndex_NearestUsesGreatCircleDistance(t *testing.T) {
	// At 60N, 10 degrees of longitude is shorter than 9 degrees of latitude.
	idx := geo.FromSnapshot(airquality.Snapshot{Rows: []airquality.SnapshotRow{
		{Label: "South", ZipCode: "s", Lat: 51, Lon: 0},
		{Label: "East", ZipCode: "e", Lat: 60, Lon: 10},
	}})

	neighbors := idx.Nearest(60, 0, 1)
	require.Len(t, neighbors, 1)
	assert.Equal(t, "East", neighbors[0].Row.Label)
	assert.InDelta(t, 555, neighbors[0].DistanceKm, 5)

	neighbors = idx.Nearest(60, 0, 2)
	require.Len(t, neighbors, 2)
	assert.Equal(t, "East", neighbors[0].Row.Label)
	assert.Equal(t, "South", neighbors[1].Row.Label)
	assert.InDelta(t, 1001, neighbors[1].DistanceKm, 5)
}

func TestIndex_LoadReplaces(t *testing.T) {
	idx := geo.FromSnapshot(airquality.Snapshot{Rows: snapshotRows()})
	idx.Load(snapshotRows()[:1])
	assert.Equal(t, 1, idx.Len())
}

func TestParseBox(t *testing.T) {
	box, err := geo.ParseBox("39, -76, 43, -70")
	require.NoError(t, err)
	assert.Equal(t, geo.Box{MinLat: 39, MinLon: -76, MaxLat: 43, MaxLon: -70}, box)
	assert.True(t, box.Contains(40.7, -74))
	assert.False(t, box.Contains(38, -74))

	for _, bad := range []string{"", "1,2,3", "a,b,c,d", "10,0,5,1", "-100,0,0,1", "0,-200,1,0"} {
		_, err := geo.ParseBox(bad)
		assert.ErrorIs(t, err, geo.ErrInvalidBox, bad)
	}
}

func TestParsePoint(t *testing.T) {
	lat, lon, err := geo.ParsePoint("40.75, -73.99")
	require.NoError(t, err)
	assert.InDelta(t, 40.75, lat, 1e-9)
	assert.InDelta(t, -73.99, lon, 1e-9)

	for _, bad := range []string{"", "1", "1,2,3", "x,1", "1,y", "91,0", "0,181"} {
		_, _, err := geo.ParsePoint(bad)
		assert.ErrorIs(t, err, geo.ErrInvalidPoint, bad)
	}
}
