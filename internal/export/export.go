// Package export writes observation sets and derived views as CSV or JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/aqiexplorer/aqiexplorer/internal/airquality"
)

// Format is an output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ErrUnknownFormat is returned by ParseFormat.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatJSON:
		return Format(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

var (
	observationHeader = []string{"date", "city", "zip", "state", "reporting_area", "parameter", "lat", "lon", "aqi", "category"}
	dailyMaxHeader    = []string{"date", "city", "aqi"}
	snapshotHeader    = []string{"city", "zip", "state", "reporting_area", "lat", "lon", "aqi", "category", "color"}
)

// WriteObservationsCSV writes the flat observation table.
func WriteObservationsCSV(w io.Writer, set airquality.ObservationSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(observationHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, o := range set {
		record := []string{
			o.Date(),
			o.Label,
			o.ZipCode,
			o.StateCode,
			o.ReportingArea,
			o.ParameterName,
			formatCoord(o.Lat),
			formatCoord(o.Lon),
			strconv.Itoa(o.AQI),
			string(o.Category),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write observation: %w", err)
		}
	}
	return flush(cw)
}

// WriteDailyMaxCSV writes one row per (date, city) with the maximum AQI.
func WriteDailyMaxCSV(w io.Writer, rows []airquality.DailyMaxRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(dailyMaxHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write([]string{airquality.FormatDate(r.Date), r.Label, strconv.Itoa(r.AQI)}); err != nil {
			return fmt.Errorf("write daily max row: %w", err)
		}
	}
	return flush(cw)
}

// WriteSnapshotCSV writes the latest snapshot, one row per city.
func WriteSnapshotCSV(w io.Writer, snapshot airquality.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(snapshotHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range snapshot.Rows {
		record := []string{
			r.Label,
			r.ZipCode,
			r.StateCode,
			r.ReportingArea,
			formatCoord(r.Lat),
			formatCoord(r.Lon),
			strconv.Itoa(r.AQI),
			string(r.Category),
			r.Color,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write snapshot row: %w", err)
		}
	}
	return flush(cw)
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func flush(cw *csv.Writer) error {
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
