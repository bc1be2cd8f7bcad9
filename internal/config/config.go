// Package config loads runtime configuration from the environment, reading
// an optional .env file first.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aqiexplorer/aqiexplorer/internal/aggregate"
	"github.com/aqiexplorer/aqiexplorer/internal/airquality/airnow"
	"github.com/aqiexplorer/aqiexplorer/internal/database"
)

// DevSigningKey is used when JWT_SIGNING_KEY is unset outside production.
const DevSigningKey = "local-dev-signing-key-change-in-production"

// Run log backends.
const (
	RunLogMemory   = "memory"
	RunLogPostgres = "postgres"
)

// Config holds runtime configuration for the API, the worker and the CLI.
type Config struct {
	Env  string
	Port string

	AirNow    AirNowConfig
	Aggregate AggregateConfig
	Telemetry TelemetryConfig
	Refresh   RefreshConfig
	PubSub    PubSubConfig

	JWTSigningKey string
	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool

	// RunLogBackend is RunLogMemory or RunLogPostgres.
	RunLogBackend string
	Database      database.Config

	warnings []string
}

// AirNowConfig configures the upstream client.
type AirNowConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// AggregateConfig configures the pipeline and the caller-side bounds.
type AggregateConfig struct {
	Concurrency  int
	MaxLocations int
	MaxDays      int
	CacheTTL     time.Duration
}

// Limits returns the request bounds.
func (c AggregateConfig) Limits() aggregate.Limits {
	return aggregate.Limits{MaxLocations: c.MaxLocations, MaxDays: c.MaxDays}
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRatio  float64
}

// RefreshConfig configures the worker's periodic refresh.
type RefreshConfig struct {
	Interval time.Duration
	// Days is the trailing window ending yesterday.
	Days int
	// ZipCodes defaults to the first catalogue cities within the location bound.
	ZipCodes []string
}

// PubSubConfig configures the worker's Pub/Sub trigger. Empty ProjectID disables it.
type PubSubConfig struct {
	ProjectID    string
	Subscription string
}

// Load reads the given .env files (or ./.env when none are given and it
// exists) and builds a Config from the environment. Variables already set
// in the environment win over .env values.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	} else if err := godotenv.Load(files...); err != nil {
		return nil, fmt.Errorf("load %s: %w", strings.Join(files, ", "), err)
	}

	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Env:           getEnvOrDefault("APP_ENV", "development"),
		Port:          getEnvOrDefault("APP_PORT", "8080"),
		JWTSigningKey: strings.TrimSpace(os.Getenv("JWT_SIGNING_KEY")),
		RunLogBackend: getEnvOrDefault("RUNLOG_BACKEND", RunLogMemory),
		AirNow: AirNowConfig{
			APIKey:  strings.TrimSpace(os.Getenv("AIRNOW_API_KEY")),
			BaseURL: getEnvOrDefault("AIRNOW_BASE_URL", airnow.DefaultBaseURL),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		},
		PubSub: PubSubConfig{
			ProjectID:    strings.TrimSpace(os.Getenv("PUBSUB_PROJECT_ID")),
			Subscription: getEnvOrDefault("PUBSUB_SUBSCRIPTION", "aqi-worker"),
		},
	}

	var err error
	if cfg.AirNow.Timeout, err = durationEnv("AIRNOW_TIMEOUT", airnow.DefaultTimeout); err != nil {
		return nil, err
	}
	if cfg.Aggregate.Concurrency, err = positiveIntEnv("AQI_CONCURRENCY", 1); err != nil {
		return nil, err
	}
	limits := aggregate.DefaultLimits()
	if cfg.Aggregate.MaxLocations, err = positiveIntEnv("AQI_MAX_LOCATIONS", limits.MaxLocations); err != nil {
		return nil, err
	}
	if cfg.Aggregate.MaxDays, err = positiveIntEnv("AQI_MAX_DAYS", limits.MaxDays); err != nil {
		return nil, err
	}
	if cfg.Aggregate.CacheTTL, err = durationEnv("AQI_CACHE_TTL", aggregate.DefaultCacheTTL); err != nil {
		return nil, err
	}
	if cfg.RequireTLS, err = boolEnv("REQUIRE_TLS", false); err != nil {
		return nil, err
	}
	if cfg.Telemetry.Enabled, err = boolEnv("OTEL_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.Telemetry.SampleRatio, err = floatEnv("OTEL_SAMPLE_RATIO", 1); err != nil {
		return nil, err
	}
	if cfg.Refresh.Interval, err = durationEnv("REFRESH_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.Refresh.Days, err = positiveIntEnv("REFRESH_DAYS", 1); err != nil {
		return nil, err
	}
	cfg.Refresh.ZipCodes = listEnv("REFRESH_ZIP_CODES")

	switch cfg.RunLogBackend {
	case RunLogMemory:
	case RunLogPostgres:
		if cfg.Database, err = database.ConfigFromEnv(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("invalid RUNLOG_BACKEND %q: want %s or %s", cfg.RunLogBackend, RunLogMemory, RunLogPostgres)
	}

	if cfg.AirNow.APIKey == "" {
		cfg.warnings = append(cfg.warnings, "AIRNOW_API_KEY is not set; upstream requests will be sent without a credential")
	}
	if cfg.JWTSigningKey == "" {
		if cfg.IsProduction() {
			return nil, errors.New("JWT_SIGNING_KEY is required in production")
		}
		cfg.JWTSigningKey = DevSigningKey
		cfg.warnings = append(cfg.warnings, "using default JWT signing key - not secure for production")
	}

	return cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// HasAirNowCredential reports whether an upstream API key is configured.
func (c *Config) HasAirNowCredential() bool {
	return c.AirNow.APIKey != ""
}

// Warnings returns non-fatal configuration problems for the operator.
func (c *Config) Warnings() []string {
	return append([]string(nil), c.warnings...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func positiveIntEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return n, nil
}

func floatEnv(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func listEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
