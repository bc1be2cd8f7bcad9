package runlog

import "context"

// DefaultListLimit is used when List is called with a non-positive limit.
const DefaultListLimit = 50

// Repository defines the interface for run log persistence.
type Repository interface {
	// Create stores a new run.
	Create(ctx context.Context, run *Run) error

	// Get retrieves a run by ID.
	// Returns ErrRunNotFound if the run doesn't exist.
	Get(ctx context.Context, id string) (*Run, error)

	// List returns the most recent runs, newest first.
	List(ctx context.Context, limit int) ([]*Run, error)
}
