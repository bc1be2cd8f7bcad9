package aggregate_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqiexplorer/aqiexplorer/internal/aggregate"
	"github.com/aqiexplorer/aqiexplorer/internal/airquality"
	"github.com/aqiexplorer/aqiexplorer/internal/runlog"
)

func newService(f airquality.Fetcher, runs runlog.Repository, ttl time.Duration) *aggregate.Service {
	return aggregate.NewService(aggregate.ServiceConfig{
		Pipeline: newPipeline(f, 1),
		Runs:     runs,
		CacheTTL: ttl,
		Logger:   zerolog.Nop(),
	})
}

func nycRequest(t *testing.T) aggregate.Request {
	return aggregate.Request{
		Locations: []airquality.Location{nyc},
		Start:     day(t, "2025-07-20"),
		End:       day(t, "2025-07-21"),
	}
}

func TestService_MemoizesIdenticalRequests(t *testing.T) {
	f := newFakeFetcher()
	svc := newService(f, nil, time.Minute)
	ctx := context.Background()

	first := svc.Aggregate(ctx, nycRequest(t), aggregate.Options{})
	second := svc.Aggregate(ctx, nycRequest(t), aggregate.Options{})

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.RunID, second.RunID)
	assert.Len(t, f.callsFor("10001"), 2, "second call must not reach upstream")
	assert.Same(t, first, svc.LastRun())
}

func TestService_ForceBypassesMemo(t *testing.T) {
	f := newFakeFetcher()
	svc := newService(f, nil, time.Minute)
	ctx := context.Background()

	first := svc.Aggregate(ctx, nycRequest(t), aggregate.Options{})
	forced := svc.Aggregate(ctx, nycRequest(t), aggregate.Options{Force: true})

	assert.False(t, forced.Cached)
	assert.NotEqual(t, first.RunID, forced.RunID)
	assert.Len(t, f.callsFor("10001"), 4)
}

func TestService_MemoExpires(t *testing.T) {
	f := newFakeFetcher()
	svc := newService(f, nil, 20*time.Millisecond)
	ctx := context.Background()

	first := svc.Aggregate(ctx, nycRequest(t), aggregate.Options{})
	time.Sleep(40 * time.Millisecond)
	second := svc.Aggregate(ctx, nycRequest(t), aggregate.Options{})

	assert.False(t, second.Cached)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestService_NegativeTTLDisablesMemo(t *testing.T) {
	f := newFakeFetcher()
	svc := newService(f, nil, -1)

	svc.Aggregate(context.Background(), nycRequest(t), aggregate.Options{})
	second := svc.Aggregate(context.Background(), nycRequest(t), aggregate.Options{})

	assert.False(t, second.Cached)
	assert.Len(t, f.callsFor("10001"), 4)
}

func TestService_Purge(t *testing.T) {
	f := newFakeFetcher()
	svc := newService(f, nil, time.Minute)

	svc.Aggregate(context.Background(), nycRequest(t), aggregate.Options{})
	svc.Purge()
	second := svc.Aggregate(context.Background(), nycRequest(t), aggregate.Options{})

	assert.False(t, second.Cached)
}

func TestService_RecordsRuns(t *testing.T) {
	f := newFakeFetcher()
	f.on("10001", "2025-07-20", []airquality.Observation{upstreamObs(t, "2025-07-20", "A", 10, airquality.CategoryGood)}, nil)
	f.on("10001", "2025-07-21", nil, airquality.ErrRateLimited)
	runs := runlog.NewInMemoryRepository()
	svc := newService(f, runs, time.Minute)
	ctx := context.Background()

	result := svc.Aggregate(ctx, nycRequest(t), aggregate.Options{Trigger: runlog.TriggerWorker})
	svc.Aggregate(ctx, nycRequest(t), aggregate.Options{})

	list, err := runs.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1, "memoized results are not recorded again")

	run := list[0]
	assert.Equal(t, result.RunID, run.ID)
	assert.Equal(t, runlog.TriggerWorker, run.Trigger)
	assert.Equal(t, []string{"10001"}, run.ZipCodes)
	assert.Equal(t, "2025-07-20", run.StartDate)
	assert.Equal(t, "2025-07-21", run.EndDate)
	assert.Equal(t, 1, run.Observations)
	assert.Equal(t, 2, run.Fetches)
	assert.Equal(t, []string{"10001"}, run.Abandoned)
	assert.Len(t, run.Warnings, 1)
}

func TestService_LastRunNilBeforeFirstRun(t *testing.T) {
	svc := newService(newFakeFetcher(), nil, time.Minute)
	assert.Nil(t, svc.LastRun())
}

func TestResult_JSON(t *testing.T) {
	f := newFakeFetcher()
	result := newPipeline(f, 1).Run(context.Background(), nycRequest(t))

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, []interface{}{}, decoded["observations"])
	assert.Equal(t, []interface{}{}, decoded["dailyMax"])

	request := decoded["request"].(map[string]interface{})
	assert.Equal(t, "2025-07-20", request["start"])
	assert.Equal(t, "2025-07-21", request["end"])
}
