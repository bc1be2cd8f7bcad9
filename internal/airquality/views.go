package airquality

import (
	"encoding/json"
	"sort"
	"time"
)

// ObservationSet is the ordered accumulation of observations from one run.
// Order follows work-item processing: locations outer, dates inner.
type ObservationSet []Observation

// LatestDate returns the most recent observed date in the set.
func (s ObservationSet) LatestDate() (time.Time, bool) {
	var latest time.Time
	for i, o := range s {
		if i == 0 || o.DateObserved.After(latest) {
			latest = o.DateObserved
		}
	}
	return latest, len(s) > 0
}

// Labels returns the distinct location labels in first-seen order.
func (s ObservationSet) Labels() []string {
	seen := make(map[string]struct{})
	var labels []string
	for _, o := range s {
		if _, ok := seen[o.Label]; ok {
			continue
		}
		seen[o.Label] = struct{}{}
		labels = append(labels, o.Label)
	}
	return labels
}

// DailyMaxRow is the maximum AQI recorded for a location on a date.
type DailyMaxRow struct {
	Date  time.Time `json:"-"`
	Label string    `json:"label"`
	AQI   int       `json:"aqi"`
}

// MarshalJSON renders the date as YYYY-MM-DD.
func (r DailyMaxRow) MarshalJSON() ([]byte, error) {
	type alias DailyMaxRow
	return json.Marshal(struct {
		Date string `json:"date"`
		alias
	}{Date: FormatDate(r.Date), alias: alias(r)})
}

type dailyKey struct {
	date  string
	label string
}

// DailyMax groups the set by (date, location label) and keeps the maximum
// AQI of each group. Rows are sorted by date, then label.
func DailyMax(set ObservationSet) []DailyMaxRow {
	index := make(map[dailyKey]int)
	rows := make([]DailyMaxRow, 0)
	for _, o := range set {
		key := dailyKey{date: o.Date(), label: o.Label}
		if i, ok := index[key]; ok {
			if o.AQI > rows[i].AQI {
				rows[i].AQI = o.AQI
			}
			continue
		}
		index[key] = len(rows)
		rows = append(rows, DailyMaxRow{Date: Truncate(o.DateObserved), Label: o.Label, AQI: o.AQI})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].Label < rows[j].Label
	})
	return rows
}

// Series is the daily-max view pivoted for a multi-series time chart:
// one value column per label, nil where a label has no value on a date.
type Series struct {
	Dates  []string          `json:"dates"`
	Labels []string          `json:"labels"`
	Values map[string][]*int `json:"values"`
}

// PivotDailyMax converts daily-max rows into a chartable series.
func PivotDailyMax(rows []DailyMaxRow) Series {
	series := Series{
		Dates:  []string{},
		Labels: []string{},
		Values: make(map[string][]*int),
	}

	dateIndex := make(map[string]int)
	for _, r := range rows {
		d := FormatDate(r.Date)
		if _, ok := dateIndex[d]; !ok {
			dateIndex[d] = len(series.Dates)
			series.Dates = append(series.Dates, d)
		}
		if _, ok := series.Values[r.Label]; !ok {
			series.Values[r.Label] = nil
			series.Labels = append(series.Labels, r.Label)
		}
	}
	sort.Strings(series.Labels)

	for _, label := range series.Labels {
		series.Values[label] = make([]*int, len(series.Dates))
	}
	for _, r := range rows {
		aqi := r.AQI
		series.Values[r.Label][dateIndex[FormatDate(r.Date)]] = &aqi
	}
	return series
}

// SnapshotRow is one location's marker on the latest-AQI map.
type SnapshotRow struct {
	Label         string   `json:"label"`
	ZipCode       string   `json:"zipCode"`
	ReportingArea string   `json:"reportingArea"`
	StateCode     string   `json:"stateCode"`
	AQI           int      `json:"aqi"`
	Category      Category `json:"category"`
	Color         string   `json:"color"`
	Lat           float64  `json:"lat"`
	Lon           float64  `json:"lon"`
}

// Snapshot holds one observation per location for the latest date in a set.
type Snapshot struct {
	Date time.Time     `json:"-"`
	Rows []SnapshotRow `json:"rows"`
}

// MarshalJSON renders the date as YYYY-MM-DD, or empty for an empty snapshot.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	date := ""
	if !s.Empty() {
		date = FormatDate(s.Date)
	}
	rows := s.Rows
	if rows == nil {
		rows = []SnapshotRow{}
	}
	return json.Marshal(struct {
		Date string        `json:"date"`
		Rows []SnapshotRow `json:"rows"`
	}{Date: date, Rows: rows})
}

// Empty reports whether the snapshot has no rows.
func (s Snapshot) Empty() bool {
	return len(s.Rows) == 0
}

// Center returns the mean coordinate of the snapshot rows, used to center a map.
func (s Snapshot) Center() (lat, lon float64, ok bool) {
	if s.Empty() {
		return 0, 0, false
	}
	for _, r := range s.Rows {
		lat += r.Lat
		lon += r.Lon
	}
	n := float64(len(s.Rows))
	return lat / n, lon / n, true
}

// LatestSnapshot selects the latest date in the set and keeps the first
// observation seen for each location label on that date.
func LatestSnapshot(set ObservationSet) Snapshot {
	latest, ok := set.LatestDate()
	if !ok {
		return Snapshot{}
	}

	latestDay := FormatDate(latest)
	snapshot := Snapshot{Date: Truncate(latest)}
	seen := make(map[string]struct{})
	for _, o := range set {
		if o.Date() != latestDay {
			continue
		}
		if _, dup := seen[o.Label]; dup {
			continue
		}
		seen[o.Label] = struct{}{}
		snapshot.Rows = append(snapshot.Rows, SnapshotRow{
			Label:         o.Label,
			ZipCode:       o.ZipCode,
			ReportingArea: o.ReportingArea,
			StateCode:     o.StateCode,
			AQI:           o.AQI,
			Category:      o.Category,
			Color:         o.Category.Color(),
			Lat:           o.Lat,
			Lon:           o.Lon,
		})
	}
	return snapshot
}
