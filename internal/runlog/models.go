// Package runlog records a summary of every aggregation run. Observations
// themselves are never stored.
package runlog

import (
	"errors"
	"time"
)

// Errors returned by repositories.
var (
	ErrRunNotFound = errors.New("run not found")
)

// Trigger names what started a run.
type Trigger string

const (
	TriggerAPI    Trigger = "api"
	TriggerWorker Trigger = "worker"
	TriggerCLI    Trigger = "cli"
)

// Run is the audit record of one aggregation run.
type Run struct {
	ID           string    `json:"id"`
	Trigger      Trigger   `json:"trigger"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
	ZipCodes     []string  `json:"zipCodes"`
	StartDate    string    `json:"startDate"`
	EndDate      string    `json:"endDate"`
	Observations int       `json:"observations"`
	Fetches      int       `json:"fetches"`
	Failed       int       `json:"failed"`
	// Abandoned lists the ZIP codes dropped after a rate limit.
	Abandoned []string `json:"abandoned"`
	Warnings  []string `json:"warnings"`
}

// Duration returns how long the run took.
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
