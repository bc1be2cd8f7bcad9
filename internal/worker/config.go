// Package worker provides background refresh jobs for AQI Explorer.
package worker

import (
	"fmt"
	"time"

	"github.com/aqiexplorer/aqiexplorer/internal/aggregate"
	"github.com/aqiexplorer/aqiexplorer/internal/airquality"
)

// RefreshConfig holds configuration for the periodic refresh job.
type RefreshConfig struct {
	// ZipCodes selects the refreshed locations. If empty, the first
	// catalogue cities up to the location bound are used.
	ZipCodes []string

	// Days is the length of the trailing window, which ends yesterday.
	// Default: 1
	Days int

	// Interval is how often the scheduler runs the job.
	// Default: 1 hour
	Interval time.Duration

	// Timeout bounds one refresh run.
	// Default: 5 minutes
	Timeout time.Duration

	// Limits bounds the selection and window.
	Limits aggregate.Limits
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Days:     1,
		Interval: time.Hour,
		Timeout:  5 * time.Minute,
		Limits:   aggregate.DefaultLimits(),
	}
}

func (c RefreshConfig) withDefaults() RefreshConfig {
	def := DefaultRefreshConfig()
	if c.Days <= 0 {
		c.Days = def.Days
	}
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.Limits == (aggregate.Limits{}) {
		c.Limits = def.Limits
	}
	return c
}

// Locations resolves the configured ZIP codes against the catalogue.
func (c RefreshConfig) Locations() ([]airquality.Location, error) {
	c = c.withDefaults()
	if len(c.ZipCodes) == 0 {
		cities := airquality.DefaultCities()
		if len(cities) > c.Limits.MaxLocations {
			cities = cities[:c.Limits.MaxLocations]
		}
		return cities, nil
	}
	locations, err := airquality.ResolveCities(c.ZipCodes)
	if err != nil {
		return nil, fmt.Errorf("refresh selection: %w", err)
	}
	return locations, nil
}

// Window returns the trailing window of days ending the day before now.
func (c RefreshConfig) Window(now time.Time) (start, end time.Time) {
	c = c.withDefaults()
	end = airquality.Truncate(now).AddDate(0, 0, -1)
	start = end.AddDate(0, 0, -(c.Days - 1))
	return start, end
}

// Request builds the aggregation request for a run at now.
func (c RefreshConfig) Request(now time.Time) (aggregate.Request, error) {
	c = c.withDefaults()
	locations, err := c.Locations()
	if err != nil {
		return aggregate.Request{}, err
	}
	start, end := c.Window(now)
	req := aggregate.Request{Locations: locations, Start: start, End: end}
	if err := aggregate.ValidateRequest(req, c.Limits); err != nil {
		return aggregate.Request{}, fmt.Errorf("refresh selection: %w", err)
	}
	return req, nil
}
