package handler

import (
	"net/http"

	"github.com/aqiexplorer/aqiexplorer/internal/airquality"
	"github.com/aqiexplorer/aqiexplorer/internal/api/models"
	"github.com/aqiexplorer/aqiexplorer/internal/api/response"
)

// categoryRanges are the EPA index breakpoints for each tier.
var categoryRanges = map[airquality.Category][2]int{
	airquality.CategoryGood:                        {0, 50},
	airquality.CategoryModerate:                    {51, 100},
	airquality.CategoryUnhealthyForSensitiveGroups: {101, 150},
	airquality.CategoryUnhealthy:                   {151, 200},
	airquality.CategoryVeryUnhealthy:               {201, 300},
	airquality.CategoryHazardous:                   {301, 500},
}

// MetadataHandler handles metadata endpoints.
type MetadataHandler struct{}

// NewMetadataHandler creates a new MetadataHandler.
func NewMetadataHandler() *MetadataHandler {
	return &MetadataHandler{}
}

// ListCities handles GET /v1/metadata/cities - the selectable locations.
func (h *MetadataHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	cities := airquality.DefaultCities()
	list := models.CityList{Items: make([]models.City, 0, len(cities))}
	for _, c := range cities {
		list.Items = append(list.Items, models.City{ZipCode: c.ZipCode, Label: c.Label})
	}
	response.JSON(w, r, http.StatusOK, list)
}

// ListCategories handles GET /v1/metadata/categories - AQI tiers and their
// marker colours.
func (h *MetadataHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	list := models.CategoryList{Fallback: airquality.FallbackColor}
	for _, c := range airquality.Categories() {
		bounds := categoryRanges[c]
		list.Items = append(list.Items, models.CategoryInfo{
			Name:  string(c),
			Color: c.Color(),
			Min:   bounds[0],
			Max:   bounds[1],
		})
	}
	response.JSON(w, r, http.StatusOK, list)
}
