// Package api provides the HTTP API for AQI Explorer.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/aqiexplorer/aqiexplorer/internal/aggregate"
	"github.com/aqiexplorer/aqiexplorer/internal/api/handler"
	"github.com/aqiexplorer/aqiexplorer/internal/api/middleware"
	"github.com/aqiexplorer/aqiexplorer/internal/auth"
	"github.com/aqiexplorer/aqiexplorer/internal/provider/resilience"
	"github.com/aqiexplorer/aqiexplorer/internal/runlog"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger
	Metrics   *middleware.Metrics

	Service  *aggregate.Service
	Runs     runlog.Repository
	Registry *resilience.Registry
	Limits   aggregate.Limits

	// Tokens guards the run endpoints. Nil rejects every write.
	Tokens *auth.TokenService

	// Database is pinged by the readiness check when set.
	Database handler.Pinger

	// Warnings are surfaced on /v1/ops/status.
	Warnings   []string
	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	if cfg.Limits == (aggregate.Limits{}) {
		cfg.Limits = aggregate.DefaultLimits()
	}

	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing())
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Registry:  cfg.Registry,
		Service:   cfg.Service,
		Database:  cfg.Database,
		Warnings:  cfg.Warnings,
	})
	metadataHandler := handler.NewMetadataHandler()
	aqiHandler := handler.NewAQIHandler(cfg.Service, cfg.Limits)
	runsHandler := handler.NewRunsHandler(cfg.Service, cfg.Runs, cfg.Limits, cfg.Logger)

	// A typed nil *TokenService must not reach the interface.
	var validator middleware.TokenValidator
	if cfg.Tokens != nil {
		validator = cfg.Tokens
	}
	authMiddleware := middleware.Auth(validator)

	aggregateRateLimit := middleware.RateLimitByIP(middleware.AggregateRateLimit) // 20 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(standardRateLimit).Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/metadata", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/cities", metadataHandler.ListCities)
			r.Get("/categories", metadataHandler.ListCategories)
		})

		// Each call may fan out to one upstream fetch per location-day.
		r.Route("/aqi", func(r chi.Router) {
			r.Use(aggregateRateLimit)
			r.Get("/", aqiHandler.GetAQI)
			r.Get("/daily-max", aqiHandler.GetDailyMax)
			r.Get("/latest", aqiHandler.GetLatest)
		})

		r.Route("/runs", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.With(
				authMiddleware,
				middleware.RateLimitBySubject(middleware.RunRateLimit), // 5 req/min per operator
				middleware.RequireJSON,
			).Post("/", runsHandler.CreateRun)
			r.Get("/", runsHandler.ListRuns)
			r.Get("/{runId}", runsHandler.GetRun)
		})
	})

	return r
}
