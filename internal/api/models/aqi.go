package models

import (
	"github.com/aqiexplorer/aqiexplorer/internal/aggregate"
	"github.com/aqiexplorer/aqiexplorer/internal/airquality"
)

// AQIResponse is the full result of an aggregation run.
type AQIResponse struct {
	*aggregate.Result
	Empty bool `json:"empty"`
}

// DailyMaxResponse carries the daily-max rows and their chart pivot.
type DailyMaxResponse struct {
	RunID    string                   `json:"runId"`
	Request  aggregate.Request        `json:"request"`
	Rows     []airquality.DailyMaxRow `json:"rows"`
	Series   airquality.Series        `json:"series"`
	Warnings []aggregate.Warning      `json:"warnings"`
	Cached   bool                     `json:"cached"`
	Empty    bool                     `json:"empty"`
}

// LatestResponse carries the latest snapshot, optionally filtered to a
// viewport, and the map center of the rows returned.
type LatestResponse struct {
	RunID    string                   `json:"runId"`
	Date     string                   `json:"date"`
	Rows     []airquality.SnapshotRow `json:"rows"`
	Nearest  []NearestRow             `json:"nearest,omitempty"`
	Center   *Point                   `json:"center,omitempty"`
	Warnings []aggregate.Warning      `json:"warnings"`
	Cached   bool                     `json:"cached"`
	Empty    bool                     `json:"empty"`
}

// NearestRow is a snapshot row ranked by distance from a point.
type NearestRow struct {
	airquality.SnapshotRow
	DistanceKm float64 `json:"distanceKm"`
}

// RunRequest is the body of POST /v1/runs.
type RunRequest struct {
	ZipCodes []string `json:"zipCodes"`
	Start    string   `json:"start"`
	End      string   `json:"end"`
}
