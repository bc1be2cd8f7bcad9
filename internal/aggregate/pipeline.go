package aggregate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aqiexplorer/aqiexplorer/internal/airquality"
)

// PipelineConfig holds configuration for creating a Pipeline.
type PipelineConfig struct {
	Fetcher airquality.Fetcher
	Logger  zerolog.Logger

	// Concurrency is the number of locations fetched in parallel.
	// Dates within a location are always fetched one after another.
	// Default: 1
	Concurrency int

	// Metrics is optional.
	Metrics *Metrics
}

// Pipeline expands requests into work items and aggregates the fetched
// observations. It holds no state between runs.
type Pipeline struct {
	fetcher     airquality.Fetcher
	logger      zerolog.Logger
	concurrency int
	metrics     *Metrics
	tracer      trace.Tracer
	now         func() time.Time
}

// NewPipeline creates a new aggregation pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Pipeline{
		fetcher:     cfg.Fetcher,
		logger:      cfg.Logger,
		concurrency: concurrency,
		metrics:     cfg.Metrics,
		tracer:      otel.Tracer(instrumentationName),
		now:         time.Now,
	}
}

// Concurrency returns the number of location workers.
func (p *Pipeline) Concurrency() int {
	return p.concurrency
}

// locationOutcome is what one worker produced for one location.
type locationOutcome struct {
	state        LocationState
	observations []airquality.Observation
	warnings     []Warning
	cancelled    bool
}

// Run executes one aggregation run. Locations are processed by a bounded
// worker pool; each location walks its dates in order and stops at the
// first rate limit. The merged output is always location-outer, date-inner
// regardless of which worker finished first.
func (p *Pipeline) Run(ctx context.Context, req Request) *Result {
	ctx, span := p.tracer.Start(ctx, "aggregate.Run",
		trace.WithAttributes(
			attribute.Int("aqi.locations", len(req.Locations)),
			attribute.String("aqi.start", airquality.FormatDate(req.Start)),
			attribute.String("aqi.end", airquality.FormatDate(req.End)),
		),
	)
	defer span.End()

	result := &Result{
		RunID:     uuid.NewString(),
		Request:   req,
		StartedAt: p.now(),
		Warnings:  []Warning{},
	}

	logger := p.logger.With().Str("run_id", result.RunID).Logger()

	if cr, ok := p.fetcher.(airquality.CredentialReporter); ok && !cr.HasCredential() {
		result.Warnings = append(result.Warnings, Warning{
			Kind:    WarningMissingCredential,
			Message: airquality.ErrMissingCredential.Error(),
		})
	}

	dates := airquality.DateRange(req.Start, req.End)

	logger.Info().
		Int("locations", len(req.Locations)).
		Int("days", len(dates)).
		Int("concurrency", p.concurrency).
		Msg("starting aggregation run")

	outcomes := make([]locationOutcome, len(req.Locations))

	workers := p.concurrency
	if workers > len(req.Locations) {
		workers = len(req.Locations)
	}

	indexes := make(chan int, len(req.Locations))
	for i := range req.Locations {
		indexes <- i
	}
	close(indexes)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexes {
				outcomes[idx] = p.runLocation(ctx, logger, req.Locations[idx], dates)
			}
		}()
	}
	wg.Wait()

	observations := make(airquality.ObservationSet, 0)
	result.Locations = make([]LocationState, 0, len(outcomes))
	for _, o := range outcomes {
		observations = append(observations, o.observations...)
		result.Locations = append(result.Locations, o.state)
		result.Warnings = append(result.Warnings, o.warnings...)
		result.Fetches += o.state.Fetched + o.state.Failed
		if o.state.Abandoned {
			result.Fetches++
		}
		if o.cancelled {
			result.Cancelled = true
		}
	}
	if result.Cancelled {
		result.Warnings = append(result.Warnings, Warning{
			Kind:    WarningCancelled,
			Message: "run cancelled before all dates were fetched",
		})
	}

	result.Observations = observations
	result.DailyMax = airquality.DailyMax(observations)
	result.Series = airquality.PivotDailyMax(result.DailyMax)
	result.Latest = airquality.LatestSnapshot(observations)
	result.FinishedAt = p.now()

	p.metrics.recordRun(ctx, result)
	span.SetAttributes(
		attribute.Int("aqi.observations", len(observations)),
		attribute.Int("aqi.fetches", result.Fetches),
		attribute.Int("aqi.warnings", len(result.Warnings)),
	)

	logger.Info().
		Int("observations", len(observations)).
		Int("fetches", result.Fetches).
		Int("warnings", len(result.Warnings)).
		Dur("duration", result.Duration()).
		Msg("aggregation run completed")

	return result
}

// runLocation fetches every date of one location in chronological order.
func (p *Pipeline) runLocation(ctx context.Context, logger zerolog.Logger, loc airquality.Location, dates []time.Time) locationOutcome {
	out := locationOutcome{state: LocationState{Location: loc}}
	logger = logger.With().Str("location", loc.Label).Str("zip", loc.ZipCode).Logger()

	for i, date := range dates {
		if ctx.Err() != nil {
			out.state.Skipped += len(dates) - i
			out.cancelled = true
			return out
		}

		observations, err := p.fetch(ctx, loc, date)
		kind := airquality.Classify(err)

		switch {
		case err == nil:
			out.state.Fetched++
			for _, o := range observations {
				o.ZipCode = loc.ZipCode
				o.Label = loc.Label
				out.observations = append(out.observations, o)
			}
			out.state.Observations += len(observations)

		case ctx.Err() != nil:
			// The failure is the cancellation itself, not the upstream.
			out.state.Skipped += len(dates) - i
			out.cancelled = true
			return out

		case kind == airquality.FailureRateLimited:
			remaining := len(dates) - i - 1
			out.state.Abandoned = true
			out.state.AbandonedOn = airquality.FormatDate(date)
			out.state.Skipped += remaining
			out.warnings = append(out.warnings, Warning{
				Kind:    WarningRateLimited,
				Label:   loc.Label,
				ZipCode: loc.ZipCode,
				Date:    airquality.FormatDate(date),
				Failure: kind,
				Message: fmt.Sprintf("rate limited for %s on %s; skipping %d remaining date(s)", loc.Label, airquality.FormatDate(date), remaining),
			})
			p.metrics.recordAbandoned(ctx)
			logger.Warn().
				Str("date", airquality.FormatDate(date)).
				Int("skipped", remaining).
				Msg("rate limited; abandoning location")
			return out

		default:
			out.state.Failed++
			out.warnings = append(out.warnings, Warning{
				Kind:    WarningFetchFailed,
				Label:   loc.Label,
				ZipCode: loc.ZipCode,
				Date:    airquality.FormatDate(date),
				Failure: kind,
				Message: fmt.Sprintf("fetch failed for %s on %s: %v", loc.Label, airquality.FormatDate(date), err),
			})
			logger.Warn().
				Err(err).
				Str("date", airquality.FormatDate(date)).
				Str("failure", string(kind)).
				Msg("skipping date")
		}
	}

	return out
}

func (p *Pipeline) fetch(ctx context.Context, loc airquality.Location, date time.Time) ([]airquality.Observation, error) {
	ctx, span := p.tracer.Start(ctx, "aggregate.fetch",
		trace.WithAttributes(
			attribute.String("aqi.zip", loc.ZipCode),
			attribute.String("aqi.date", airquality.FormatDate(date)),
		),
	)
	defer span.End()

	start := time.Now()
	observations, err := p.fetcher.FetchObservations(ctx, loc.ZipCode, date)
	kind := airquality.Classify(err)
	p.metrics.recordFetch(ctx, kind, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		return nil, err
	}
	span.SetAttributes(attribute.Int("aqi.observations", len(observations)))
	return observations, nil
}
