package runlog

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// It is used for tests and when no database is configured.
type InMemoryRepository struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewInMemoryRepository creates a new in-memory run repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		runs: make(map[string]*Run),
	}
}

// Create stores a new run.
func (r *InMemoryRepository) Create(_ context.Context, run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs[run.ID] = clone(run)
	return nil
}

// Get retrieves a run by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return clone(run), nil
}

// List returns the most recent runs, newest first.
func (r *InMemoryRepository) List(_ context.Context, limit int) ([]*Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		limit = DefaultListLimit
	}

	runs := make([]*Run, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, clone(run))
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func clone(run *Run) *Run {
	cpy := *run
	cpy.ZipCodes = append([]string(nil), run.ZipCodes...)
	cpy.Abandoned = append([]string(nil), run.Abandoned...)
	cpy.Warnings = append([]string(nil), run.Warnings...)
	return &cpy
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
