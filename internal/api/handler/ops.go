// Package handler provides HTTP handlers for the AQI Explorer API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/aqiexplorer/aqiexplorer/internal/aggregate"
	"github.com/aqiexplorer/aqiexplorer/internal/api/models"
	"github.com/aqiexplorer/aqiexplorer/internal/api/response"
	"github.com/aqiexplorer/aqiexplorer/internal/provider/resilience"
)

const readinessTimeout = 2 * time.Second

// Pinger checks a backing store. *pgxpool.Pool implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsConfig holds the dependencies of the ops endpoints. Everything but
// the version strings is optional.
type OpsConfig struct {
	Version   string
	BuildTime string
	Registry  *resilience.Registry
	Service   *aggregate.Service
	Database  Pinger
	// Warnings are configuration problems reported at startup.
	Warnings []string
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
	now func() time.Time
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg, now: time.Now}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]interface{}{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. The service is ready when the
// run log database, if any, answers a ping.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{Status: models.HealthStatusOK, Time: models.Timestamp(h.now())}

	if h.cfg.Database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		if err := h.cfg.Database.Ping(ctx); err != nil {
			health.Status = models.HealthStatusFail
			health.Details = map[string]interface{}{"database": err.Error()}
			response.JSON(w, r, http.StatusServiceUnavailable, health)
			return
		}
	}

	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - upstream provider health, the
// most recent run, and configuration warnings.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(h.now()),
		Subsystems: []models.SubsystemStatus{},
		Providers:  []models.ProviderStatus{},
		Warnings:   append([]string{}, h.cfg.Warnings...),
	}

	if h.cfg.Database != nil {
		sub := models.SubsystemStatus{Name: "runlog-database", Status: models.HealthStatusOK}
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		if err := h.cfg.Database.Ping(ctx); err != nil {
			detail := err.Error()
			sub.Status = models.HealthStatusFail
			sub.Detail = &detail
		}
		cancel()
		status.Subsystems = append(status.Subsystems, sub)
	}

	if h.cfg.Registry != nil {
		for _, ph := range h.cfg.Registry.GetAllHealth() {
			status.Providers = append(status.Providers, providerStatus(ph))
		}
	}

	if h.cfg.Service != nil {
		if last := h.cfg.Service.LastRun(); last != nil {
			status.LastRun = &models.RunSummary{
				RunID:        last.RunID,
				FinishedAt:   models.Timestamp(last.FinishedAt),
				ZipCodes:     last.Request.ZipCodes(),
				Observations: len(last.Observations),
				Fetches:      last.Fetches,
				Failed:       last.Failed(),
				Abandoned:    append([]string{}, last.AbandonedZipCodes()...),
				Warnings:     len(last.Warnings),
			}
		}
	}

	status.Status = overallStatus(status)
	response.JSON(w, r, http.StatusOK, status)
}

func providerStatus(ph *resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:          ph.Name,
		Status:            models.HealthStatusOK,
		CircuitState:      ph.CircuitState.String(),
		LastSuccessAt:     models.TimestampPtr(ph.LastSuccessAt),
		LastFailureAt:     models.TimestampPtr(ph.LastFailureAt),
		LastRateLimitedAt: models.TimestampPtr(ph.LastRateLimitedAt),
		RateLimitedTotal:  ph.RateLimitedTotal,
	}

	switch ph.CircuitState {
	case gobreaker.StateOpen:
		ps.Status = models.HealthStatusFail
	case gobreaker.StateHalfOpen:
		ps.Status = models.HealthStatusDegraded
	}

	// A 429 newer than the last success means the quota is exhausted.
	if ph.LastRateLimitedAt != nil && (ph.LastSuccessAt == nil || ph.LastRateLimitedAt.After(*ph.LastSuccessAt)) {
		if ps.Status == models.HealthStatusOK {
			ps.Status = models.HealthStatusDegraded
		}
		msg := "upstream rate limit reached"
		ps.Message = &msg
	} else if ph.LastError != "" && ps.Status != models.HealthStatusOK {
		msg := ph.LastError
		ps.Message = &msg
	}

	return ps
}

// overallStatus is the worst of subsystems and providers. Configuration
// warnings degrade an otherwise healthy status.
func overallStatus(s models.SystemStatus) models.HealthStatus {
	worst := models.HealthStatusOK
	consider := func(st models.HealthStatus) {
		switch {
		case st == models.HealthStatusFail:
			worst = models.HealthStatusFail
		case st == models.HealthStatusDegraded && worst == models.HealthStatusOK:
			worst = models.HealthStatusDegraded
		}
	}
	for _, sub := range s.Subsystems {
		consider(sub.Status)
	}
	for _, p := range s.Providers {
		consider(p.Status)
	}
	if len(s.Warnings) > 0 {
		consider(models.HealthStatusDegraded)
	}
	return worst
}
