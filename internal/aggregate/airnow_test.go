package aggregate_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqiexplorer/aqiexplorer/internal/aggregate"
	"github.com/aqiexplorer/aqiexplorer/internal/airquality"
	"github.com/aqiexplorer/aqiexplorer/internal/airquality/airnow"
	"github.com/aqiexplorer/aqiexplorer/internal/provider/resilience"
)

// A failing ZIP must not stop requests for a healthy one through the
// shared default AirNow client.
func TestPipeline_AirNowFailuresStayWithTheirLocation(t *testing.T) {
	var (
		mu   sync.Mutex
		hits = map[string]int{}
	)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zip := r.URL.Query().Get("zipCode")
		mu.Lock()
		hits[zip]++
		mu.Unlock()

		if zip == nyc.ZipCode {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"DateObserved":"` + r.URL.Query().Get("date")[:10] + ` ","ReportingArea":"Chicago",` +
			`"StateCode":"IL","Latitude":41.88,"Longitude":-87.63,"ParameterName":"O3","AQI":51,` +
			`"Category":{"Number":2,"Name":"Moderate"}}]`))
	}))
	defer upstream.Close()

	registry := resilience.NewRegistry()
	client := airnow.NewClient(airnow.ClientConfig{
		BaseURL:  upstream.URL,
		APIKey:   "k",
		Timeout:  2 * time.Second,
		Registry: registry,
		Logger:   zerolog.Nop(),
	})
	pipeline := aggregate.NewPipeline(aggregate.PipelineConfig{Fetcher: client, Logger: zerolog.Nop()})

	result := pipeline.Run(context.Background(), aggregate.Request{
		Locations: []airquality.Location{nyc, chi},
		Start:     day(t, "2025-07-14"),
		End:       day(t, "2025-07-20"),
	})

	mu.Lock()
	assert.Equal(t, 7, hits[nyc.ZipCode])
	assert.Equal(t, 7, hits[chi.ZipCode])
	mu.Unlock()

	require.Len(t, result.Observations, 7)
	for _, o := range result.Observations {
		assert.Equal(t, chi.ZipCode, o.ZipCode)
	}
	assert.Len(t, result.Warnings, 7)
	for _, w := range result.Warnings {
		assert.Equal(t, aggregate.WarningFetchFailed, w.Kind)
		assert.Equal(t, nyc.ZipCode, w.ZipCode)
		assert.Equal(t, airquality.FailureHTTPStatus, w.Failure)
	}
	assert.Empty(t, result.AbandonedZipCodes())
}
