package runlog_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqiexplorer/aqiexplorer/internal/runlog"
)

func newRun(id string, startedAt time.Time) *runlog.Run {
	return &runlog.Run{
		ID:         id,
		Trigger:    runlog.TriggerAPI,
		StartedAt:  startedAt,
		FinishedAt: startedAt.Add(3 * time.Second),
		ZipCodes:   []string{"10001", "60601"},
		StartDate:  "2025-07-20",
		EndDate:    "2025-07-23",
		Fetches:    8,
		Abandoned:  []string{"60601"},
	}
}

func TestInMemoryRepository_CreateAndGet(t *testing.T) {
	repo := runlog.NewInMemoryRepository()
	ctx := context.Background()
	start := time.Date(2025, 7, 24, 12, 0, 0, 0, time.UTC)

	run := newRun("run-1", start)
	require.NoError(t, repo.Create(ctx, run))

	got, err := repo.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run, got)
	assert.Equal(t, 3*time.Second, got.Duration())

	// Stored copies are isolated from the caller
	got.ZipCodes[0] = "99999"
	again, err := repo.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "10001", again.ZipCodes[0])
}

func TestInMemoryRepository_GetNotFound(t *testing.T) {
	repo := runlog.NewInMemoryRepository()

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, runlog.ErrRunNotFound)
}

func TestInMemoryRepository_ListNewestFirst(t *testing.T) {
	repo := runlog.NewInMemoryRepository()
	ctx := context.Background()
	start := time.Date(2025, 7, 24, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, newRun(fmt.Sprintf("run-%d", i), start.Add(time.Duration(i)*time.Minute))))
	}

	runs, err := repo.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-4", runs[0].ID)
	assert.Equal(t, "run-3", runs[1].ID)
	assert.Equal(t, "run-2", runs[2].ID)

	all, err := repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}
