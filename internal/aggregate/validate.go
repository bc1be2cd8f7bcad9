package aggregate

import (
	"errors"
	"fmt"

	"github.com/aqiexplorer/aqiexplorer/internal/airquality"
)

// Validation errors.
var (
	ErrNoLocations       = errors.New("select at least one location")
	ErrTooManyLocations  = errors.New("too many locations")
	ErrDuplicateLocation = errors.New("duplicate location")
	ErrInvertedRange     = errors.New("end date is before start date")
	ErrRangeTooLong      = errors.New("date range too long")
)

// Limits bounds what callers may request. Zero values disable a bound.
type Limits struct {
	MaxLocations int
	MaxDays      int
}

// DefaultLimits returns the bounds used by the API and the CLI.
func DefaultLimits() Limits {
	return Limits{
		MaxLocations: 5,
		MaxDays:      7,
	}
}

// ValidateRequest applies caller-side bounds to a request. The pipeline
// itself accepts any request.
func ValidateRequest(req Request, limits Limits) error {
	if len(req.Locations) == 0 {
		return ErrNoLocations
	}
	if limits.MaxLocations > 0 && len(req.Locations) > limits.MaxLocations {
		return fmt.Errorf("%w: %d requested, at most %d allowed", ErrTooManyLocations, len(req.Locations), limits.MaxLocations)
	}

	seen := make(map[string]bool, len(req.Locations))
	for _, loc := range req.Locations {
		if seen[loc.ZipCode] {
			return fmt.Errorf("%w: %s", ErrDuplicateLocation, loc.ZipCode)
		}
		seen[loc.ZipCode] = true
	}

	if req.End.Before(req.Start) {
		return ErrInvertedRange
	}
	days := airquality.DaysInRange(req.Start, req.End)
	if limits.MaxDays > 0 && days > limits.MaxDays {
		return fmt.Errorf("%w: %d days requested, at most %d allowed", ErrRangeTooLong, days, limits.MaxDays)
	}

	return nil
}

// IsValidationError reports whether err came from ValidateRequest.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrNoLocations) ||
		errors.Is(err, ErrTooManyLocations) ||
		errors.Is(err, ErrDuplicateLocation) ||
		errors.Is(err, ErrInvertedRange) ||
		errors.Is(err, ErrRangeTooLong)
}
