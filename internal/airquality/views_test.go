package airquality_test

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqiexplorer/aqiexplorer/internal/airquality"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := airquality.ParseDate(s)
	require.NoError(t, err)
	return d
}

func obs(date time.Time, label string, aqi int, category airquality.Category) airquality.Observation {
	return airquality.Observation{
		ZipCode:       "00000",
		Label:         label,
		DateObserved:  date,
		ReportingArea: label + " area",
		StateCode:     "XX",
		AQI:           aqi,
		Category:      category,
		Lat:           40,
		Lon:           -74,
	}
}

func randomSet(r *rand.Rand) airquality.ObservationSet {
	labels := []string{"A", "B", "C", "D"}
	base := time.Date(2025, 7, 20, 0, 0, 0, 0, time.UTC)
	n := r.Intn(60)
	set := make(airquality.ObservationSet, 0, n)
	for i := 0; i < n; i++ {
		set = append(set, obs(
			base.AddDate(0, 0, r.Intn(7)),
			labels[r.Intn(len(labels))],
			r.Intn(300),
			airquality.Categories()[r.Intn(6)],
		))
	}
	return set
}

func TestDailyMax_EqualsGroupMaximum(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for iter := 0; iter < 200; iter++ {
		set := randomSet(r)
		rows := airquality.DailyMax(set)

		expected := make(map[string]int)
		for _, o := range set {
			key := o.Date() + "|" + o.Label
			if cur, ok := expected[key]; !ok || o.AQI > cur {
				expected[key] = o.AQI
			}
		}

		require.Len(t, rows, len(expected))
		seen := make(map[string]bool)
		for _, row := range rows {
			key := airquality.FormatDate(row.Date) + "|" + row.Label
			assert.False(t, seen[key], "duplicate daily max row %s", key)
			seen[key] = true
			assert.Equal(t, expected[key], row.AQI, "max mismatch for %s", key)
		}
	}
}

func TestDailyMax_SortedByDateThenLabel(t *testing.T) {
	d1, d2 := day(t, "2025-07-20"), day(t, "2025-07-21")
	set := airquality.ObservationSet{
		obs(d2, "B", 10, airquality.CategoryGood),
		obs(d1, "B", 20, airquality.CategoryGood),
		obs(d1, "A", 30, airquality.CategoryGood),
		obs(d1, "A", 55, airquality.CategoryModerate),
	}

	rows := airquality.DailyMax(set)
	require.Len(t, rows, 3)
	assert.Equal(t, "A", rows[0].Label)
	assert.Equal(t, 55, rows[0].AQI)
	assert.Equal(t, "B", rows[1].Label)
	assert.Equal(t, d1, rows[1].Date)
	assert.Equal(t, d2, rows[2].Date)
}

func TestDailyMax_Empty(t *testing.T) {
	assert.Empty(t, airquality.DailyMax(nil))
}

func TestLatestSnapshot_Invariants(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	for iter := 0; iter < 200; iter++ {
		set := randomSet(r)
		snapshot := airquality.LatestSnapshot(set)

		latest, ok := set.LatestDate()
		if !ok {
			assert.True(t, snapshot.Empty())
			continue
		}

		assert.Equal(t, latest, snapshot.Date)
		labels := make(map[string]bool)
		for _, row := range snapshot.Rows {
			assert.False(t, labels[row.Label], "label %s appears twice", row.Label)
			labels[row.Label] = true
		}
	}
}

func TestLatestSnapshot_FirstSeenWins(t *testing.T) {
	d1, d2 := day(t, "2025-07-22"), day(t, "2025-07-23")
	set := airquality.ObservationSet{
		obs(d1, "NYC", 99, airquality.CategoryModerate),
		obs(d2, "NYC", 42, airquality.CategoryGood),
		obs(d2, "NYC", 120, airquality.CategoryUnhealthyForSensitiveGroups),
		obs(d2, "CHI", 60, airquality.CategoryModerate),
	}

	snapshot := airquality.LatestSnapshot(set)
	require.Len(t, snapshot.Rows, 2)
	assert.Equal(t, d2, snapshot.Date)
	assert.Equal(t, "NYC", snapshot.Rows[0].Label)
	assert.Equal(t, 42, snapshot.Rows[0].AQI)
	assert.Equal(t, "green", snapshot.Rows[0].Color)
	assert.Equal(t, "CHI", snapshot.Rows[1].Label)
	assert.Equal(t, "yellow", snapshot.Rows[1].Color)
}

func TestSnapshot_Center(t *testing.T) {
	snapshot := airquality.Snapshot{Rows: []airquality.SnapshotRow{
		{Lat: 40, Lon: -70},
		{Lat: 42, Lon: -80},
	}}

	lat, lon, ok := snapshot.Center()
	require.True(t, ok)
	assert.InDelta(t, 41.0, lat, 1e-9)
	assert.InDelta(t, -75.0, lon, 1e-9)

	_, _, ok = airquality.Snapshot{}.Center()
	assert.False(t, ok)
}

func TestPivotDailyMax(t *testing.T) {
	d1, d2 := day(t, "2025-07-20"), day(t, "2025-07-21")
	rows := []airquality.DailyMaxRow{
		{Date: d1, Label: "B", AQI: 10},
		{Date: d1, Label: "A", AQI: 20},
		{Date: d2, Label: "A", AQI: 30},
	}

	series := airquality.PivotDailyMax(rows)
	assert.Equal(t, []string{"2025-07-20", "2025-07-21"}, series.Dates)
	assert.Equal(t, []string{"A", "B"}, series.Labels)
	require.Len(t, series.Values["B"], 2)
	require.NotNil(t, series.Values["B"][0])
	assert.Equal(t, 10, *series.Values["B"][0])
	assert.Nil(t, series.Values["B"][1])
	assert.Equal(t, 30, *series.Values["A"][1])
}

func TestSnapshot_MarshalJSON_Empty(t *testing.T) {
	data, err := json.Marshal(airquality.Snapshot{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"","rows":[]}`, string(data))
}

func TestObservation_MarshalJSON(t *testing.T) {
	o := obs(day(t, "2025-07-23"), "New York, NY", 42, airquality.CategoryGood)

	data, err := json.Marshal(o)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "2025-07-23", decoded["date"])
	assert.Equal(t, "New York, NY", decoded["label"])
	assert.Equal(t, float64(42), decoded["aqi"])
	assert.NotContains(t, decoded, "DateObserved")
}
