// Package google implements the geocoding capabilities on Google Maps
// Platform: Geocoding, Places autocomplete, Find Place and Place Details via
// googlemaps.github.io/maps, and Nearby Search on the Places API (New).
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"googlemaps.github.io/maps"

	"github.com/couchcryptid/truck-provider-search/internal/domain"
)

const defaultPlacesURL = "https://places.googleapis.com"

// Client implements domain.Autocompleter, domain.Geocoder,
// domain.NearbyFinder and domain.StatusChecker.
type Client struct {
	apiKey     string
	maps       *maps.Client
	httpClient *http.Client
	placesURL  string
	logger     *slog.Logger
}

// NewClient creates a Google Maps Platform client.
func NewClient(apiKey string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	return newClient(apiKey, timeout, "", defaultPlacesURL, logger)
}

func newClient(apiKey string, timeout time.Duration, mapsURL, placesURL string, logger *slog.Logger) (*Client, error) {
	httpClient := &http.Client{Timeout: timeout}

	opts := []maps.ClientOption{maps.WithAPIKey(apiKey), maps.WithHTTPClient(httpClient)}
	if mapsURL != "" {
		opts = append(opts, maps.WithBaseURL(mapsURL))
	}
	mc, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}

	return &Client{
		apiKey:     apiKey,
		maps:       mc,
		httpClient: httpClient,
		placesURL:  strings.TrimRight(placesURL, "/"),
		logger:     logger,
	}, nil
}

// AutocompleteCities suggests US and Canadian cities for a partial term.
func (c *Client) AutocompleteCities(ctx context.Context, term string) ([]domain.Place, error) {
	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) < 2 {
		return nil, nil
	}

	resp, err := c.maps.PlaceAutocomplete(ctx, &maps.PlaceAutocompleteRequest{
		Input: term,
		Types: maps.AutocompletePlaceTypeCities,
		Components: map[maps.Component][]string{
			maps.ComponentCountry: {"us", "ca"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("place autocomplete: %w", redactURL(err))
	}

	places := make([]domain.Place, 0, len(resp.Predictions))
	for _, p := range resp.Predictions {
		if place, ok := placeFromTerms(p.Terms); ok {
			places = append(places, place)
		}
	}
	c.logger.Debug("autocomplete", "term", term, "predictions", len(resp.Predictions), "places", len(places))
	return places, nil
}

// placeFromTerms reads city, region and country from a prediction's terms,
// e.g. ["Dallas", "TX", "USA"].
func placeFromTerms(terms []maps.AutocompleteTermOffset) (domain.Place, bool) {
	if len(terms) < 3 {
		return domain.Place{}, false
	}
	country := domain.CanonicalCountry(terms[len(terms)-1].Value)
	if !domain.IsSupportedCountry(country) {
		return domain.Place{}, false
	}
	return domain.Place{
		City:    strings.TrimSpace(terms[0].Value),
		Region:  strings.TrimSpace(terms[1].Value),
		Country: country,
	}, true
}

// Geocode converts free text to the coordinates of the best match.
func (c *Client) Geocode(ctx context.Context, text string) (domain.Coordinates, bool, error) {
	results, err := c.maps.Geocode(ctx, &maps.GeocodingRequest{Address: text})
	if err != nil {
		return domain.Coordinates{}, false, fmt.Errorf("forward geocode request: %w", redactURL(err))
	}
	if len(results) == 0 {
		return domain.Coordinates{}, false, nil
	}
	loc := results[0].Geometry.Location
	return domain.Coordinates{Lat: loc.Lat, Lng: loc.Lng}, true, nil
}

// ReverseGeocode converts coordinates to a city, region and country.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (domain.Place, bool, error) {
	results, err := c.maps.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: lat, Lng: lng},
	})
	if err != nil {
		return domain.Place{}, false, fmt.Errorf("reverse geocode request: %w", redactURL(err))
	}

	for _, r := range results {
		p := placeFromComponents(r.AddressComponents)
		if p.Complete() {
			return p, true, nil
		}
	}
	return domain.Place{}, false, nil
}

func placeFromComponents(components []maps.AddressComponent) domain.Place {
	var p domain.Place
	for _, comp := range components {
		for _, typ := range comp.Types {
			switch typ {
			case "locality":
				p.City = comp.LongName
			case "administrative_area_level_1":
				p.Region = comp.LongName
			case "country":
				p.Country = comp.LongName
			}
		}
	}
	return p
}

// FindPlaceID resolves a free-text business query to a place id.
func (c *Client) FindPlaceID(ctx context.Context, query string) (string, bool, error) {
	resp, err := c.maps.FindPlaceFromText(ctx, &maps.FindPlaceFromTextRequest{
		Input:     query,
		InputType: maps.FindPlaceFromTextInputTypeTextQuery,
		Fields:    []maps.PlaceSearchFieldMask{maps.PlaceSearchFieldMaskPlaceID},
	})
	if err != nil {
		return "", false, fmt.Errorf("find place: %w", redactURL(err))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].PlaceID == "" {
		return "", false, nil
	}
	return resp.Candidates[0].PlaceID, true, nil
}

// PlaceStatus reports whether a place is operating and currently open.
func (c *Client) PlaceStatus(ctx context.Context, placeID string) (domain.BusinessStatus, error) {
	details, err := c.maps.PlaceDetails(ctx, &maps.PlaceDetailsRequest{
		PlaceID: placeID,
		Fields: []maps.PlaceDetailsFieldMask{
			maps.PlaceDetailsFieldMaskBusinessStatus,
			maps.PlaceDetailsFieldMaskOpeningHours,
		},
	})
	if err != nil {
		return domain.StatusUnknown, fmt.Errorf("place details: %w", redactURL(err))
	}
	return statusFromDetails(details.BusinessStatus, details.OpeningHours), nil
}

func statusFromDetails(businessStatus string, hours *maps.OpeningHours) domain.BusinessStatus {
	switch businessStatus {
	case "CLOSED_PERMANENTLY":
		return domain.StatusClosedPermanently
	case "CLOSED_TEMPORARILY":
		return domain.StatusClosedTemporarily
	}
	if hours == nil || hours.OpenNow == nil {
		return domain.StatusUnknown
	}
	if *hours.OpenNow {
		return domain.StatusOpen
	}
	return domain.StatusClosed
}

// redactURL strips the query string, which carries credentials, from the URL
// embedded in transport errors.
func redactURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		if u, perr := url.Parse(ue.URL); perr == nil {
			u.RawQuery = ""
			ue.URL = u.String()
		} else {
			ue.URL = "<redacted>"
		}
	}
	return err
}
