package models

// City is one entry of the location catalogue.
type City struct {
	ZipCode string `json:"zipCode"`
	Label   string `json:"label"`
}

// CityList is the catalogue of selectable cities.
type CityList struct {
	Items []City `json:"items"`
}

// CategoryInfo describes one AQI category and its map colour.
type CategoryInfo struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
}

// CategoryList lists the AQI categories in ascending severity.
type CategoryList struct {
	Items    []CategoryInfo `json:"items"`
	Fallback string         `json:"fallbackColor"`
}
