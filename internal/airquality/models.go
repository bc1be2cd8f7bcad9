// Package airquality provides the AQI observation model, the fetcher contract
// and the views derived from an observation set.
package airquality

import (
	"context"
	"encoding/json"
	"time"
)

// Location is a caller-selected place identified by its postal code.
type Location struct {
	ZipCode string `json:"zipCode"`
	Label   string `json:"label"`
}

// Category is the AirNow health-impact tier for an AQI value.
type Category string

const (
	CategoryGood                        Category = "Good"
	CategoryModerate                    Category = "Moderate"
	CategoryUnhealthyForSensitiveGroups Category = "Unhealthy for Sensitive Groups"
	CategoryUnhealthy                   Category = "Unhealthy"
	CategoryVeryUnhealthy               Category = "Very Unhealthy"
	CategoryHazardous                   Category = "Hazardous"
)

// FallbackColor is used for any category outside the known tiers.
const FallbackColor = "gray"

var categoryColors = map[Category]string{
	CategoryGood:                        "green",
	CategoryModerate:                    "yellow",
	CategoryUnhealthyForSensitiveGroups: "orange",
	CategoryUnhealthy:                   "red",
	CategoryVeryUnhealthy:               "purple",
	CategoryHazardous:                   "maroon",
}

// Color returns the map marker color for the category.
func (c Category) Color() string {
	if color, ok := categoryColors[c]; ok {
		return color
	}
	return FallbackColor
}

// Known reports whether c is one of the six AirNow tiers.
func (c Category) Known() bool {
	_, ok := categoryColors[c]
	return ok
}

// Categories returns the tiers ordered from Good to Hazardous.
func Categories() []Category {
	return []Category{
		CategoryGood,
		CategoryModerate,
		CategoryUnhealthyForSensitiveGroups,
		CategoryUnhealthy,
		CategoryVeryUnhealthy,
		CategoryHazardous,
	}
}

// CategoryColors returns a copy of the category to color mapping.
func CategoryColors() map[Category]string {
	out := make(map[Category]string, len(categoryColors))
	for k, v := range categoryColors {
		out[k] = v
	}
	return out
}

// Observation is one upstream AQI record for a location on a date.
// ZipCode and Label identify the requested location; ReportingArea is the
// upstream monitoring area that produced the value.
type Observation struct {
	ZipCode       string    `json:"zipCode"`
	Label         string    `json:"label"`
	DateObserved  time.Time `json:"-"`
	ReportingArea string    `json:"reportingArea"`
	StateCode     string    `json:"stateCode"`
	ParameterName string    `json:"parameterName,omitempty"`
	AQI           int       `json:"aqi"`
	Category      Category  `json:"category"`
	Lat           float64   `json:"lat"`
	Lon           float64   `json:"lon"`
}

// Date returns the observed date formatted as YYYY-MM-DD.
func (o Observation) Date() string {
	return FormatDate(o.DateObserved)
}

// MarshalJSON renders the observed date as YYYY-MM-DD.
func (o Observation) MarshalJSON() ([]byte, error) {
	type alias Observation
	return json.Marshal(struct {
		Date string `json:"date"`
		alias
	}{Date: o.Date(), alias: alias(o)})
}

// WorkItem is a single (location, date) unit of fetch work.
type WorkItem struct {
	Location Location
	Date     time.Time
}

// Fetcher retrieves the observations for one location on one date.
// Implementations perform no retries.
type Fetcher interface {
	FetchObservations(ctx context.Context, zipCode string, date time.Time) ([]Observation, error)
}

// CredentialReporter is implemented by fetchers that know whether an API
// credential was configured.
type CredentialReporter interface {
	HasCredential() bool
}

// ExpandWorkItems builds the ordered work list for a run: locations in the
// given order, and within each location every date from start to end
// inclusive. An inverted range yields no items.
func ExpandWorkItems(locations []Location, start, end time.Time) []WorkItem {
	dates := DateRange(start, end)
	items := make([]WorkItem, 0, len(locations)*len(dates))
	for _, loc := range locations {
		for _, d := range dates {
			items = append(items, WorkItem{Location: loc, Date: d})
		}
	}
	return items
}
