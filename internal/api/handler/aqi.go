package handler

import (
	"io"
	"net/http"

	"github.com/aqiexplorer/aqiexplorer/internal/aggregate"
	"github.com/aqiexplorer/aqiexplorer/internal/airquality"
	"github.com/aqiexplorer/aqiexplorer/internal/api/models"
	"github.com/aqiexplorer/aqiexplorer/internal/api/response"
	"github.com/aqiexplorer/aqiexplorer/internal/export"
	"github.com/aqiexplorer/aqiexplorer/internal/geo"
	"github.com/aqiexplorer/aqiexplorer/internal/runlog"
)

const (
	defaultNearest = 3
	maxNearest     = 15
)

// AQIHandler serves the aggregation views.
type AQIHandler struct {
	service *aggregate.Service
	limits  aggregate.Limits
}

// NewAQIHandler creates a new AQIHandler.
func NewAQIHandler(service *aggregate.Service, limits aggregate.Limits) *AQIHandler {
	return &AQIHandler{service: service, limits: limits}
}

// run parses the common query and executes the aggregation. It writes a
// problem and returns nil when the query is invalid.
func (h *AQIHandler) run(w http.ResponseWriter, r *http.Request, extra ...models.FieldError) (*aggregate.Result, export.Format) {
	q := r.URL.Query()

	req, errs := parseAggregateQuery(q, h.limits)
	format, ferr := parseFormat(q)
	if ferr != nil {
		errs = append(errs, *ferr)
	}
	errs = append(errs, extra...)
	if len(errs) > 0 {
		response.BadRequest(w, r, "invalid query", errs)
		return nil, ""
	}

	return h.service.Aggregate(r.Context(), req, aggregate.Options{Trigger: runlog.TriggerAPI}), format
}

// GetAQI handles GET /v1/aqi - the full result of a run.
func (h *AQIHandler) GetAQI(w http.ResponseWriter, r *http.Request) {
	result, format := h.run(w, r)
	if result == nil {
		return
	}

	if format == export.FormatCSV {
		response.CSV(w, r, "aqi_observations.csv", func(out io.Writer) error {
			return export.WriteObservationsCSV(out, result.Observations)
		})
		return
	}
	response.JSON(w, r, http.StatusOK, models.AQIResponse{Result: result, Empty: result.Empty()})
}

// GetDailyMax handles GET /v1/aqi/daily-max - the per-day maximum table
// and its chart series.
func (h *AQIHandler) GetDailyMax(w http.ResponseWriter, r *http.Request) {
	result, format := h.run(w, r)
	if result == nil {
		return
	}

	if format == export.FormatCSV {
		response.CSV(w, r, "aqi_daily_max.csv", func(out io.Writer) error {
			return export.WriteDailyMaxCSV(out, result.DailyMax)
		})
		return
	}

	rows := result.DailyMax
	if rows == nil {
		rows = []airquality.DailyMaxRow{}
	}
	response.JSON(w, r, http.StatusOK, models.DailyMaxResponse{
		RunID:    result.RunID,
		Request:  result.Request,
		Rows:     rows,
		Series:   result.Series,
		Warnings: result.Warnings,
		Cached:   result.Cached,
		Empty:    len(rows) == 0,
	})
}

// GetLatest handles GET /v1/aqi/latest - the latest snapshot for the map.
// bbox=minLat,minLon,maxLat,maxLon restricts rows to a viewport, or
// near=lat,lon&k=n ranks the closest locations. The two are exclusive.
func (h *AQIHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	hasBox := q.Get("bbox") != ""
	hasNear := q.Get("near") != ""

	var (
		extra            []models.FieldError
		box              geo.Box
		nearLat, nearLon float64
		err              error
	)
	if hasBox {
		if box, err = geo.ParseBox(q.Get("bbox")); err != nil {
			extra = append(extra, models.FieldError{Field: "bbox", Message: err.Error(), Code: models.CodeInvalid})
		}
	}
	switch {
	case hasNear && hasBox:
		extra = append(extra, models.FieldError{Field: "near", Message: "cannot be combined with bbox", Code: models.CodeInvalid})
	case hasNear:
		if nearLat, nearLon, err = geo.ParsePoint(q.Get("near")); err != nil {
			extra = append(extra, models.FieldError{Field: "near", Message: err.Error(), Code: models.CodeInvalid})
		}
	}
	nearCount, kerr := parseIntParam(q, "k", defaultNearest, 1, maxNearest)
	if kerr != nil {
		extra = append(extra, *kerr)
	}

	result, format := h.run(w, r, extra...)
	if result == nil {
		return
	}

	snapshot := result.Latest
	index := geo.FromSnapshot(snapshot)
	if hasBox {
		// Box was validated above, so SearchBox cannot fail here.
		rows, _ := index.SearchBox(box)
		snapshot = airquality.Snapshot{Date: snapshot.Date, Rows: rows}
	}

	if format == export.FormatCSV {
		response.CSV(w, r, "aqi_latest.csv", func(out io.Writer) error {
			return export.WriteSnapshotCSV(out, snapshot)
		})
		return
	}

	resp := models.LatestResponse{
		RunID:    result.RunID,
		Rows:     snapshot.Rows,
		Warnings: result.Warnings,
		Cached:   result.Cached,
		Empty:    snapshot.Empty(),
	}
	if resp.Rows == nil {
		resp.Rows = []airquality.SnapshotRow{}
	}
	if !result.Latest.Empty() {
		resp.Date = airquality.FormatDate(result.Latest.Date)
	}
	if lat, lon, ok := snapshot.Center(); ok {
		resp.Center = &models.Point{Lat: lat, Lon: lon}
	}
	if hasNear {
		resp.Nearest = []models.NearestRow{}
		for _, n := range index.Nearest(nearLat, nearLon, nearCount) {
			resp.Nearest = append(resp.Nearest, models.NearestRow{SnapshotRow: n.Row, DistanceKm: n.DistanceKm})
		}
	}

	response.JSON(w, r, http.StatusOK, resp)
}
