package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aqiexplorer/aqiexplorer/internal/aggregate"
	"github.com/aqiexplorer/aqiexplorer/internal/api/middleware"
	"github.com/aqiexplorer/aqiexplorer/internal/api/models"
	"github.com/aqiexplorer/aqiexplorer/internal/api/response"
	"github.com/aqiexplorer/aqiexplorer/internal/runlog"
)

const (
	maxRunListLimit = 200
	maxRunBodyBytes = 16 << 10
)

// RunsHandler forces fresh runs and reads the run log.
type RunsHandler struct {
	service *aggregate.Service
	runs    runlog.Repository
	limits  aggregate.Limits
	logger  zerolog.Logger
}

// NewRunsHandler creates a new RunsHandler.
func NewRunsHandler(service *aggregate.Service, runs runlog.Repository, limits aggregate.Limits, logger zerolog.Logger) *RunsHandler {
	return &RunsHandler{service: service, runs: runs, limits: limits, logger: logger}
}

// CreateRun handles POST /v1/runs - run the pipeline, bypassing the memo.
func (h *RunsHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var body models.RunRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRunBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, r, "request body must be a JSON object with zipCodes, start and end", nil)
		return
	}

	req, errs := buildRequest(body.ZipCodes, body.Start, body.End, h.limits)
	if len(errs) > 0 {
		response.BadRequest(w, r, "invalid run request", errs)
		return
	}

	h.logger.Info().
		Str("request_id", middleware.GetRequestID(r.Context())).
		Str("subject", GetSubject(r.Context())).
		Strs("zip_codes", req.ZipCodes()).
		Msg("forced run requested")

	result := h.service.Aggregate(r.Context(), req, aggregate.Options{Force: true, Trigger: runlog.TriggerAPI})
	response.Created(w, r, "/v1/runs/"+result.RunID, models.AQIResponse{Result: result, Empty: result.Empty()})
}

// ListRuns handles GET /v1/runs - recent runs, newest first.
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, ferr := parseIntParam(r.URL.Query(), "limit", runlog.DefaultListLimit, 1, maxRunListLimit)
	if ferr != nil {
		response.BadRequest(w, r, "invalid query", []models.FieldError{*ferr})
		return
	}

	runs, err := h.runs.List(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list runs")
		response.InternalError(w, r, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []*runlog.Run{}
	}

	response.JSON(w, r, http.StatusOK, models.PagedRuns{
		Items: runs,
		Meta:  models.PagedResponseMeta{Limit: limit, Count: len(runs)},
	})
}

// GetRun handles GET /v1/runs/{runId}.
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runId")

	run, err := h.runs.Get(r.Context(), runID)
	if err != nil {
		if errors.Is(err, runlog.ErrRunNotFound) {
			response.NotFound(w, r, "run not found")
			return
		}
		h.logger.Error().Err(err).Str("run_id", runID).Msg("failed to get run")
		response.InternalError(w, r, "failed to get run")
		return
	}

	response.JSON(w, r, http.StatusOK, run)
}
