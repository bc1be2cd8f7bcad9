package handler

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/aqiexplorer/aqiexplorer/internal/aggregate"
	"github.com/aqiexplorer/aqiexplorer/internal/airquality"
	"github.com/aqiexplorer/aqiexplorer/internal/api/models"
	"github.com/aqiexplorer/aqiexplorer/internal/export"
)

// splitList flattens repeated and comma-separated values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// buildRequest resolves ZIP codes against the city catalogue and parses the
// date range. No ZIP codes selects the whole catalogue; the location bound
// in limits still applies to it. end defaults to start.
func buildRequest(zips []string, start, end string, limits aggregate.Limits) (aggregate.Request, []models.FieldError) {
	var (
		req      aggregate.Request
		errs     []models.FieldError
		startRaw = strings.TrimSpace(start)
		endRaw   = strings.TrimSpace(end)
	)

	if len(zips) == 0 {
		req.Locations = airquality.DefaultCities()
	}
	for _, zip := range zips {
		loc, ok := airquality.LookupCity(zip)
		if !ok {
			errs = append(errs, models.FieldError{
				Field:   "zip",
				Message: fmt.Sprintf("unknown ZIP code %s", zip),
				Code:    models.CodeUnknownValue,
			})
			continue
		}
		req.Locations = append(req.Locations, loc)
	}

	if startRaw == "" {
		errs = append(errs, models.FieldError{Field: "start", Message: "start date is required", Code: models.CodeRequired})
	} else if d, err := airquality.ParseDate(startRaw); err != nil {
		errs = append(errs, models.FieldError{Field: "start", Message: "must be a YYYY-MM-DD date", Code: models.CodeInvalid})
	} else {
		req.Start = d
	}

	if endRaw == "" {
		req.End = req.Start
	} else if d, err := airquality.ParseDate(endRaw); err != nil {
		errs = append(errs, models.FieldError{Field: "end", Message: "must be a YYYY-MM-DD date", Code: models.CodeInvalid})
	} else {
		req.End = d
	}

	if len(errs) > 0 {
		return req, errs
	}

	if err := aggregate.ValidateRequest(req, limits); err != nil {
		return req, []models.FieldError{validationFieldError(err)}
	}
	return req, nil
}

func validationFieldError(err error) models.FieldError {
	switch {
	case errors.Is(err, aggregate.ErrInvertedRange):
		return models.FieldError{Field: "end", Message: err.Error(), Code: models.CodeInvalid}
	case errors.Is(err, aggregate.ErrRangeTooLong):
		return models.FieldError{Field: "end", Message: err.Error(), Code: models.CodeOutOfRange}
	case errors.Is(err, aggregate.ErrTooManyLocations):
		return models.FieldError{Field: "zip", Message: err.Error(), Code: models.CodeOutOfRange}
	default:
		return models.FieldError{Field: "zip", Message: err.Error(), Code: models.CodeInvalid}
	}
}

// parseAggregateQuery reads zip, start and end from a query string.
func parseAggregateQuery(q url.Values, limits aggregate.Limits) (aggregate.Request, []models.FieldError) {
	return buildRequest(splitList(q["zip"]), q.Get("start"), q.Get("end"), limits)
}

// parseFormat reads the optional format parameter, defaulting to JSON.
func parseFormat(q url.Values) (export.Format, *models.FieldError) {
	raw := q.Get("format")
	if raw == "" {
		return export.FormatJSON, nil
	}
	format, err := export.ParseFormat(raw)
	if err != nil {
		return "", &models.FieldError{Field: "format", Message: "must be csv or json", Code: models.CodeInvalid}
	}
	return format, nil
}

// parseIntParam reads an optional integer within [min, max].
func parseIntParam(q url.Values, name string, def, min, max int) (int, *models.FieldError) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &models.FieldError{Field: name, Message: "must be an integer", Code: models.CodeInvalid}
	}
	if n < min || n > max {
		return 0, &models.FieldError{
			Field:   name,
			Message: fmt.Sprintf("must be between %d and %d", min, max),
			Code:    models.CodeOutOfRange,
		}
	}
	return n, nil
}
