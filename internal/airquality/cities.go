package airquality

// DefaultCities returns the selectable city catalogue.
func DefaultCities() []Location {
	return []Location{
		{ZipCode: "30301", Label: "Atlanta, GA"},
		{ZipCode: "59101", Label: "Billings, MT"},
		{ZipCode: "02108", Label: "Boston, MA"},
		{ZipCode: "60601", Label: "Chicago, IL"},
		{ZipCode: "80202", Label: "Denver, CO"},
		{ZipCode: "50309", Label: "Des Moines, IA"},
		{ZipCode: "77001", Label: "Houston, TX"},
		{ZipCode: "64101", Label: "Kansas City, MO"},
		{ZipCode: "55401", Label: "Minneapolis, MN"},
		{ZipCode: "10001", Label: "New York, NY"},
		{ZipCode: "19104", Label: "Philadelphia, PA"},
		{ZipCode: "85001", Label: "Phoenix, AZ"},
		{ZipCode: "94103", Label: "San Francisco, CA"},
		{ZipCode: "98101", Label: "Seattle, WA"},
		{ZipCode: "68102", Label: "Omaha, NE"},
	}
}

// LookupCity finds a catalogue entry by ZIP code.
func LookupCity(zipCode string) (Location, bool) {
	for _, c := range DefaultCities() {
		if c.ZipCode == zipCode {
			return c, true
		}
	}
	return Location{}, false
}

// ResolveCities maps ZIP codes to catalogue locations, preserving order.
func ResolveCities(zipCodes []string) ([]Location, error) {
	locations := make([]Location, 0, len(zipCodes))
	for _, zip := range zipCodes {
		loc, ok := LookupCity(zip)
		if !ok {
			return nil, &UnknownCityError{ZipCode: zip}
		}
		locations = append(locations, loc)
	}
	return locations, nil
}

// UnknownCityError reports a ZIP code outside the catalogue.
type UnknownCityError struct {
	ZipCode string
}

func (e *UnknownCityError) Error() string {
	return ErrUnknownCity.Error() + ": " + e.ZipCode
}

// Unwrap lets errors.Is match ErrUnknownCity.
func (e *UnknownCityError) Unwrap() error {
	return ErrUnknownCity
}
