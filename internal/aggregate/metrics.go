package aggregate

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/aqiexplorer/aqiexplorer/internal/airquality"
)

const instrumentationName = "github.com/aqiexplorer/aqiexplorer/internal/aggregate"

// Metrics holds the OpenTelemetry instruments of the pipeline.
// A nil *Metrics records nothing.
type Metrics struct {
	fetchTotal     metric.Int64Counter
	fetchDuration  metric.Float64Histogram
	abandonedTotal metric.Int64Counter
	runDuration    metric.Float64Histogram
	runTotal       metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with initialized instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	fetchTotal, err := meter.Int64Counter(
		"aqi.fetch.total",
		metric.WithDescription("Upstream observation fetches by outcome"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, err
	}

	fetchDuration, err := meter.Float64Histogram(
		"aqi.fetch.duration",
		metric.WithDescription("Duration of upstream observation fetches in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	abandonedTotal, err := meter.Int64Counter(
		"aqi.location.abandoned.total",
		metric.WithDescription("Locations abandoned after a rate limit"),
		metric.WithUnit("{location}"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"aqi.run.duration",
		metric.WithDescription("Duration of aggregation runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	runTotal, err := meter.Int64Counter(
		"aqi.run.total",
		metric.WithDescription("Aggregation runs, by whether any observation was returned"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		fetchTotal:     fetchTotal,
		fetchDuration:  fetchDuration,
		abandonedTotal: abandonedTotal,
		runDuration:    runDuration,
		runTotal:       runTotal,
	}, nil
}

func (m *Metrics) recordFetch(ctx context.Context, kind airquality.FailureKind, d time.Duration) {
	if m == nil {
		return
	}
	outcome := string(kind)
	if kind == airquality.FailureNone {
		outcome = "success"
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.fetchTotal.Add(ctx, 1, attrs)
	m.fetchDuration.Record(ctx, d.Seconds(), attrs)
}

func (m *Metrics) recordAbandoned(ctx context.Context) {
	if m == nil {
		return
	}
	m.abandonedTotal.Add(ctx, 1)
}

func (m *Metrics) recordRun(ctx context.Context, result *Result) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("empty", result.Empty()))
	m.runTotal.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, result.Duration().Seconds(), attrs)
}
