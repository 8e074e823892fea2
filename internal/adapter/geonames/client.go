// Package geonames implements the geocoding capabilities on Geoapify (forward
// geocoding and city autocomplete) and GeoNames (nearby populated places and
// reverse geocoding).
package geonames

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/couchcryptid/truck-provider-search/internal/domain"
)

const (
	defaultGeoapifyURL = "https://api.geoapify.com"
	defaultGeoNamesURL = "http://api.geonames.org"

	// citiesFeature limits GeoNames results to places with more than 15000 inhabitants.
	citiesFeature = "cities15000"
)

// Client implements domain.Autocompleter, domain.Geocoder and domain.NearbyFinder.
type Client struct {
	apiKey      string
	username    string
	httpClient  *http.Client
	geoapifyURL string
	geonamesURL string
	logger      *slog.Logger
}

// NewClient creates a client using a Geoapify API key and a GeoNames username.
func NewClient(apiKey, username string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		apiKey:   apiKey,
		username: username,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		geoapifyURL: defaultGeoapifyURL,
		geonamesURL: defaultGeoNamesURL,
		logger:      logger,
	}
}

// Geocode converts free text to coordinates with the Geoapify geocoder.
func (c *Client) Geocode(ctx context.Context, text string) (domain.Coordinates, bool, error) {
	params := url.Values{
		"text":   {text},
		"limit":  {"1"},
		"apiKey": {c.apiKey},
	}

	var resp featureCollection
	if err := c.getJSON(ctx, c.geoapifyURL+"/v1/geocode/search?"+params.Encode(), "forward", &resp); err != nil {
		return domain.Coordinates{}, false, err
	}

	for _, f := range resp.Features {
		// GeoJSON uses lon,lat order.
		if len(f.Geometry.Coordinates) == 2 {
			return domain.Coordinates{Lat: f.Geometry.Coordinates[1], Lng: f.Geometry.Coordinates[0]}, true, nil
		}
	}
	return domain.Coordinates{}, false, nil
}

// AutocompleteCities suggests US and Canadian cities with the Geoapify
// autocomplete endpoint.
func (c *Client) AutocompleteCities(ctx context.Context, term string) ([]domain.Place, error) {
	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) < 2 {
		return nil, nil
	}

	params := url.Values{
		"text":   {term},
		"type":   {"city"},
		"filter": {"countrycode:us,ca"},
		"apiKey": {c.apiKey},
	}

	var resp featureCollection
	if err := c.getJSON(ctx, c.geoapifyURL+"/v1/geocode/autocomplete?"+params.Encode(), "autocomplete", &resp); err != nil {
		return nil, err
	}

	places := make([]domain.Place, 0, len(resp.Features))
	for _, f := range resp.Features {
		p := f.Properties
		region := strings.ToUpper(p.StateCode)
		if region == "" {
			region = p.State
		}
		place := domain.Place{City: p.City, Region: region, Country: domain.CanonicalCountry(p.Country)}
		if place.Complete() {
			places = append(places, place)
		}
	}
	return places, nil
}

// NearbyPlaces lists GeoNames cities within radiusKm of center.
func (c *Client) NearbyPlaces(ctx context.Context, center domain.Coordinates, radiusKm, limit int) ([]domain.NearbyPlace, error) {
	params := c.nearbyParams(center.Lat, center.Lng)
	params.Set("radius", strconv.Itoa(radiusKm))
	if limit > 0 {
		params.Set("maxRows", strconv.Itoa(limit))
	}

	names, err := c.findNearby(ctx, params, "nearby")
	if err != nil {
		return nil, err
	}

	out := make([]domain.NearbyPlace, 0, len(names))
	for _, n := range names {
		lat, lng, ok := n.coordinates()
		if n.Name == "" || !ok {
			continue
		}
		out = append(out, domain.NearbyPlace{
			Name:        n.Name,
			Region:      n.AdminName1,
			Country:     n.CountryName,
			Coordinates: domain.Coordinates{Lat: lat, Lng: lng},
		})
	}
	c.logger.Debug("geonames nearby", "radius_km", radiusKm, "returned", len(names), "usable", len(out))
	return out, nil
}

// ReverseGeocode returns the GeoNames city closest to the coordinates.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (domain.Place, bool, error) {
	params := c.nearbyParams(lat, lng)
	params.Set("maxRows", "1")

	names, err := c.findNearby(ctx, params, "reverse")
	if err != nil {
		return domain.Place{}, false, err
	}
	if len(names) == 0 {
		return domain.Place{}, false, nil
	}

	n := names[0]
	p := domain.Place{City: n.Name, Region: n.AdminName1, Country: n.CountryName}
	return p, p.Complete(), nil
}

func (c *Client) nearbyParams(lat, lng float64) url.Values {
	return url.Values{
		"lat":      {strconv.FormatFloat(lat, 'f', 6, 64)},
		"lng":      {strconv.FormatFloat(lng, 'f', 6, 64)},
		"cities":   {citiesFeature},
		"username": {c.username},
	}
}

func (c *Client) findNearby(ctx context.Context, params url.Values, source string) ([]geoName, error) {
	var resp geoNamesResponse
	if err := c.getJSON(ctx, c.geonamesURL+"/findNearbyPlaceNameJSON?"+params.Encode(), source, &resp); err != nil {
		return nil, err
	}
	// GeoNames reports account and quota errors in the body of a 200 response.
	if resp.Status != nil {
		return nil, fmt.Errorf("geonames API error: %d: %s", resp.Status.Value, resp.Status.Message)
	}
	return resp.GeoNames, nil
}

func (c *Client) getJSON(ctx context.Context, fullURL, source string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s geocode request: %w", source, redactURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s API error: status %d: %s", source, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Geoapify response types.

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	Geometry struct {
		Coordinates []float64 `json:"coordinates"` // [lon, lat]
	} `json:"geometry"`
	Properties struct {
		City      string `json:"city"`
		State     string `json:"state"`
		StateCode string `json:"state_code"`
		Country   string `json:"country"`
	} `json:"properties"`
}

// GeoNames response types.

type geoNamesResponse struct {
	GeoNames []geoName      `json:"geonames"`
	Status   *geoNameStatus `json:"status"`
}

type geoNameStatus struct {
	Message string `json:"message"`
	Value   int    `json:"value"`
}

type geoName struct {
	Name        string `json:"name"`
	AdminName1  string `json:"adminName1"`
	CountryName string `json:"countryName"`
	Lat         string `json:"lat"` // GeoNames encodes coordinates as strings
	Lng         string `json:"lng"`
}

func (g geoName) coordinates() (lat, lng float64, ok bool) {
	lat, errLat := strconv.ParseFloat(g.Lat, 64)
	lng, errLng := strconv.ParseFloat(g.Lng, 64)
	return lat, lng, errLat == nil && errLng == nil
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
