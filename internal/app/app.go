// Package app wires the configured components shared by the API server,
// the worker and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/aqiexplorer/aqiexplorer/internal/aggregate"
	"github.com/aqiexplorer/aqiexplorer/internal/airquality/airnow"
	"github.com/aqiexplorer/aqiexplorer/internal/auth"
	"github.com/aqiexplorer/aqiexplorer/internal/config"
	"github.com/aqiexplorer/aqiexplorer/internal/database"
	"github.com/aqiexplorer/aqiexplorer/internal/provider/resilience"
	"github.com/aqiexplorer/aqiexplorer/internal/runlog"
)

// Components are the long-lived services built from a Config.
type Components struct {
	Registry *resilience.Registry
	Fetcher  *airnow.Client
	Pipeline *aggregate.Pipeline
	Service  *aggregate.Service
	Runs     runlog.Repository
	Tokens   *auth.TokenService

	// Pool is nil unless the run log is stored in PostgreSQL.
	Pool *pgxpool.Pool
}

// Close releases the database pool.
func (c *Components) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// Options tunes Build for a particular binary.
type Options struct {
	// Metrics enables pipeline instruments.
	Metrics bool
}

// Build creates the components described by cfg.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts Options) (*Components, error) {
	c := &Components{Registry: resilience.NewRegistry()}

	c.Fetcher = airnow.NewClient(airnow.ClientConfig{
		BaseURL:  cfg.AirNow.BaseURL,
		APIKey:   cfg.AirNow.APIKey,
		Timeout:  cfg.AirNow.Timeout,
		Registry: c.Registry,
		Logger:   log,
	})

	var metrics *aggregate.Metrics
	if opts.Metrics {
		var err error
		if metrics, err = aggregate.NewMetrics(); err != nil {
			return nil, fmt.Errorf("pipeline metrics: %w", err)
		}
	}

	c.Pipeline = aggregate.NewPipeline(aggregate.PipelineConfig{
		Fetcher:     c.Fetcher,
		Logger:      log,
		Concurrency: cfg.Aggregate.Concurrency,
		Metrics:     metrics,
	})

	switch cfg.RunLogBackend {
	case config.RunLogPostgres:
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect run log database: %w", err)
		}
		repo := runlog.NewPostgresRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run log schema: %w", err)
		}
		c.Pool = pool
		c.Runs = repo
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("run log database connected")
	default:
		c.Runs = runlog.NewInMemoryRepository()
	}

	c.Service = aggregate.NewService(aggregate.ServiceConfig{
		Pipeline: c.Pipeline,
		Runs:     c.Runs,
		CacheTTL: cfg.Aggregate.CacheTTL,
		Logger:   log,
	})

	tokens, err := auth.NewTokenService(auth.TokenConfig{SigningKey: cfg.JWTSigningKey})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("token service: %w", err)
	}
	c.Tokens = tokens

	for _, w := range cfg.Warnings() {
		log.Warn().Msg(w)
	}

	return c, nil
}
