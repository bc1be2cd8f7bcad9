// Package airnow provides a client for the AirNow historical observations API.
package airnow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aqiexplorer/aqiexplorer/internal/airquality"
	"github.com/aqiexplorer/aqiexplorer/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the base URL for the AirNow API.
	DefaultBaseURL = "https://www.airnowapi.org"

	// ProviderName identifies this provider in the resilience registry.
	ProviderName = "airnow"

	// DefaultDistance is the search radius in miles around the ZIP code.
	DefaultDistance = 25

	// DefaultTimeout bounds a single upstream request.
	DefaultTimeout = 30 * time.Second

	historicalPath = "/aq/observation/zipCode/historical/"
)

// ClientConfig holds configuration for the AirNow client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// APIKey is the AirNow credential. An empty key is tolerated; requests
	// are still sent and upstream decides.
	APIKey string

	// HTTPClient is the HTTP client to use (must implement HTTPDoer).
	// If nil, a resilient client with retries disabled is created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 30s).
	Timeout time.Duration

	// Distance is the search radius (default: 25).
	Distance int

	// Registry receives request outcomes of the default HTTP client.
	Registry *resilience.Registry

	Logger zerolog.Logger
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is an AirNow API client. It implements airquality.Fetcher and
// never retries.
type Client struct {
	baseURL    string
	apiKey     string
	distance   int
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new AirNow client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	distance := cfg.Distance
	if distance <= 0 {
		distance = DefaultDistance
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		cb := resilience.DefaultCircuitBreakerConfig(ProviderName)
		// Each fetch must hit upstream; one ZIP failing never blocks another.
		cb.ReadyToTrip = resilience.NeverTrip
		cb.OnStateChange = resilience.LogStateChanges(cfg.Logger)
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:           ProviderName,
			Timeout:        timeout,
			DisableRetries: true,
			CircuitBreaker: &cb,
			Registry:       cfg.Registry,
		})
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     cfg.APIKey,
		distance:   distance,
		httpClient: httpClient,
		logger:     cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}

	if !c.HasCredential() {
		c.logger.Warn().Msg("AIRNOW_API_KEY is not set; requests will be sent without a credential")
	}

	return c
}

// HasCredential reports whether an API key was configured.
func (c *Client) HasCredential() bool {
	return c.apiKey != ""
}

// API response types (from AirNow API). Pointers detect missing fields.

type observationData struct {
	DateObserved  *string       `json:"DateObserved"`
	HourObserved  *int          `json:"HourObserved"`
	ReportingArea *string       `json:"ReportingArea"`
	StateCode     *string       `json:"StateCode"`
	Latitude      *float64      `json:"Latitude"`
	Longitude     *float64      `json:"Longitude"`
	ParameterName string        `json:"ParameterName"`
	AQI           *int          `json:"AQI"`
	Category      *categoryData `json:"Category"`
}

type categoryData struct {
	Number *int    `json:"Number"`
	Name   *string `json:"Name"`
}

// FetchObservations retrieves the observations reported near zipCode on date.
func (c *Client) FetchObservations(ctx context.Context, zipCode string, date time.Time) ([]airquality.Observation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(zipCode, date), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", airquality.ErrTransport, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("zip %s on %s: %w", zipCode, airquality.FormatDate(date), airquality.ErrRateLimited)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &airquality.StatusError{StatusCode: resp.StatusCode}
	}

	var data []observationData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: decode observations: %w", airquality.ErrMalformedResponse, err)
	}

	observations := make([]airquality.Observation, 0, len(data))
	for i := range data {
		o, err := toObservation(&data[i])
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %w", airquality.ErrMalformedResponse, i, err)
		}
		o.ZipCode = zipCode
		observations = append(observations, o)
	}

	return observations, nil
}

func (c *Client) requestURL(zipCode string, date time.Time) string {
	q := url.Values{}
	q.Set("format", "application/json")
	q.Set("zipCode", zipCode)
	q.Set("date", airquality.FormatDate(date)+"T00-0000")
	q.Set("distance", strconv.Itoa(c.distance))
	q.Set("API_KEY", c.apiKey)
	return c.baseURL + historicalPath + "?" + q.Encode()
}

var errMissingField = errors.New("missing required field")

// toObservation converts an API element to a domain Observation.
func toObservation(d *observationData) (airquality.Observation, error) {
	switch {
	case d.DateObserved == nil:
		return airquality.Observation{}, fmt.Errorf("%w: DateObserved", errMissingField)
	case d.ReportingArea == nil:
		return airquality.Observation{}, fmt.Errorf("%w: ReportingArea", errMissingField)
	case d.StateCode == nil:
		return airquality.Observation{}, fmt.Errorf("%w: StateCode", errMissingField)
	case d.Latitude == nil:
		return airquality.Observation{}, fmt.Errorf("%w: Latitude", errMissingField)
	case d.Longitude == nil:
		return airquality.Observation{}, fmt.Errorf("%w: Longitude", errMissingField)
	case d.AQI == nil:
		return airquality.Observation{}, fmt.Errorf("%w: AQI", errMissingField)
	case d.Category == nil || d.Category.Name == nil:
		return airquality.Observation{}, fmt.Errorf("%w: Category.Name", errMissingField)
	}

	// AirNow pads DateObserved with a trailing space.
	observed, err := airquality.ParseDate(strings.TrimSpace(*d.DateObserved))
	if err != nil {
		return airquality.Observation{}, err
	}

	return airquality.Observation{
		DateObserved:  observed,
		ReportingArea: *d.ReportingArea,
		StateCode:     *d.StateCode,
		ParameterName: d.ParameterName,
		AQI:           *d.AQI,
		Category:      airquality.Category(*d.Category.Name),
		Lat:           *d.Latitude,
		Lon:           *d.Longitude,
	}, nil
}
