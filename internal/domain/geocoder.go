package domain

import "context"

// Place is a (city, region, country) triple returned by a geocoding provider.
type Place struct {
	City    string `json:"city"`
	Region  string `json:"state"`
	Country string `json:"country"`
}

// Complete reports whether every field is populated.
func (p Place) Complete() bool {
	return p.City != "" && p.Region != "" && p.Country != ""
}

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NearbyPlace is a populated place found around a search center. Region and
// Country are empty when the data source does not supply them.
type NearbyPlace struct {
	Name    string
	Region  string
	Country string
	Coordinates
}

// Autocompleter suggests cities for a partial search term.
type Autocompleter interface {
	AutocompleteCities(ctx context.Context, term string) ([]Place, error)
}

// Geocoder converts between free-text locations and coordinates.
type Geocoder interface {
	// Geocode resolves free text to coordinates. found is false when the
	// provider has no match.
	Geocode(ctx context.Context, text string) (c Coordinates, found bool, err error)

	// ReverseGeocode resolves coordinates to a place.
	ReverseGeocode(ctx context.Context, lat, lng float64) (p Place, found bool, err error)
}

// NearbyFinder lists populated places within radiusKm of center.
type NearbyFinder interface {
	NearbyPlaces(ctx context.Context, center Coordinates, radiusKm, limit int) ([]NearbyPlace, error)
}

// StatusChecker looks up the live business status of a named place.
type StatusChecker interface {
	// FindPlaceID resolves a free-text business query to a provider place id.
	FindPlaceID(ctx context.Context, query string) (id string, found bool, err error)

	// PlaceStatus returns the status of a place id.
	PlaceStatus(ctx context.Context, placeID string) (BusinessStatus, error)
}
