package models

import "github.com/aqiexplorer/aqiexplorer/internal/runlog"

// PagedRuns is a page of run log records, newest first.
type PagedRuns struct {
	Items []*runlog.Run     `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}
