// Package aggregate runs the fetch-and-aggregate pipeline: it expands a
// request into work items, fetches each one, and derives the daily-max and
// latest snapshot views from what came back.
package aggregate

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/aqiexplorer/aqiexplorer/internal/airquality"
)

// Request selects the locations and inclusive date range of a run.
type Request struct {
	Locations []airquality.Location
	Start     time.Time
	End       time.Time
}

// ZipCodes returns the requested ZIP codes in order.
func (r Request) ZipCodes() []string {
	zips := make([]string, len(r.Locations))
	for i, loc := range r.Locations {
		zips[i] = loc.ZipCode
	}
	return zips
}

// Key identifies the request for memoization.
func (r Request) Key() string {
	var b strings.Builder
	for _, loc := range r.Locations {
		b.WriteString(loc.ZipCode)
		b.WriteByte('=')
		b.WriteString(loc.Label)
		b.WriteByte(';')
	}
	b.WriteString(airquality.FormatDate(r.Start))
	b.WriteByte('/')
	b.WriteString(airquality.FormatDate(r.End))
	return b.String()
}

// MarshalJSON renders the range as YYYY-MM-DD dates.
func (r Request) MarshalJSON() ([]byte, error) {
	locations := r.Locations
	if locations == nil {
		locations = []airquality.Location{}
	}
	return json.Marshal(struct {
		Locations []airquality.Location `json:"locations"`
		Start     string                `json:"start"`
		End       string                `json:"end"`
	}{locations, airquality.FormatDate(r.Start), airquality.FormatDate(r.End)})
}

// WarningKind classifies a run warning.
type WarningKind string

const (
	WarningMissingCredential WarningKind = "missing_credential"
	WarningRateLimited       WarningKind = "rate_limited"
	WarningFetchFailed       WarningKind = "fetch_failed"
	WarningCancelled         WarningKind = "cancelled"
)

// Warning is a non-fatal problem reported by a run.
type Warning struct {
	Kind    WarningKind            `json:"kind"`
	Label   string                 `json:"label,omitempty"`
	ZipCode string                 `json:"zipCode,omitempty"`
	Date    string                 `json:"date,omitempty"`
	Failure airquality.FailureKind `json:"failure,omitempty"`
	Message string                 `json:"message"`
}

// LocationState summarizes how a location fared during a run.
type LocationState struct {
	Location     airquality.Location `json:"location"`
	Abandoned    bool                `json:"abandoned"`
	AbandonedOn  string              `json:"abandonedOn,omitempty"`
	Fetched      int                 `json:"fetched"`
	Failed       int                 `json:"failed"`
	Skipped      int                 `json:"skipped"`
	Observations int                 `json:"observations"`
}

// Result is the outcome of one run. It is never nil and never an error;
// problems are reported as warnings.
type Result struct {
	RunID        string                    `json:"runId"`
	Request      Request                   `json:"request"`
	Observations airquality.ObservationSet `json:"observations"`
	DailyMax     []airquality.DailyMaxRow  `json:"dailyMax"`
	Series       airquality.Series         `json:"series"`
	Latest       airquality.Snapshot       `json:"latest"`
	Locations    []LocationState           `json:"locations"`
	Warnings     []Warning                 `json:"warnings"`
	StartedAt    time.Time                 `json:"startedAt"`
	FinishedAt   time.Time                 `json:"finishedAt"`
	Fetches      int                       `json:"fetches"`
	Cancelled    bool                      `json:"cancelled,omitempty"`

	// Cached is set on results served from the memo.
	Cached bool `json:"cached"`
}

// Empty reports whether the run produced no observations.
func (r *Result) Empty() bool {
	return len(r.Observations) == 0
}

// Duration returns the wall time of the run.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failed returns the number of failed fetches across locations.
func (r *Result) Failed() int {
	n := 0
	for _, s := range r.Locations {
		n += s.Failed
	}
	return n
}

// AbandonedZipCodes lists locations dropped after a rate limit.
func (r *Result) AbandonedZipCodes() []string {
	var zips []string
	for _, s := range r.Locations {
		if s.Abandoned {
			zips = append(zips, s.Location.ZipCode)
		}
	}
	return zips
}
