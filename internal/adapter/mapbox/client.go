// Package mapbox implements forward geocoding, reverse geocoding and city
// autocomplete on the Mapbox Geocoding API.
package mapbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/couchcryptid/truck-provider-search/internal/domain"
)

const (
	defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

	// autocompleteLimit is the most suggestions Mapbox returns per request.
	autocompleteLimit = "10"
)

// Client implements domain.Autocompleter and domain.Geocoder using the Mapbox
// Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		logger:  logger,
	}
}

// Geocode converts free text to the coordinates of the best matching place.
func (c *Client) Geocode(ctx context.Context, text string) (domain.Coordinates, bool, error) {
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"place,locality"},
	}

	resp, err := c.doRequest(ctx, strings.TrimSpace(text), params, "forward")
	if err != nil {
		return domain.Coordinates{}, false, err
	}
	for _, f := range resp.Features {
		// Mapbox uses lon,lat order.
		if len(f.Center) == 2 {
			return domain.Coordinates{Lat: f.Center[1], Lng: f.Center[0]}, true, nil
		}
	}
	return domain.Coordinates{}, false, nil
}

// ReverseGeocode returns the city containing the coordinates.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (domain.Place, bool, error) {
	coord := fmt.Sprintf("%.6f,%.6f", lng, lat)
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"place"},
	}

	resp, err := c.doRequest(ctx, coord, params, "reverse")
	if err != nil {
		return domain.Place{}, false, err
	}
	if len(resp.Features) == 0 {
		return domain.Place{}, false, nil
	}
	p := resp.Features[0].place()
	return p, p.Complete(), nil
}

// AutocompleteCities suggests US and Canadian cities for a partial term.
func (c *Client) AutocompleteCities(ctx context.Context, term string) ([]domain.Place, error) {
	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) < 2 {
		return nil, nil
	}

	params := url.Values{
		"access_token": {c.token},
		"autocomplete": {"true"},
		"types":        {"place"},
		"country":      {"us,ca"},
		"limit":        {autocompleteLimit},
	}

	resp, err := c.doRequest(ctx, term, params, "autocomplete")
	if err != nil {
		return nil, err
	}

	places := make([]domain.Place, 0, len(resp.Features))
	for _, f := range resp.Features {
		if p := f.place(); p.Complete() {
			places = append(places, p)
		}
	}
	c.logger.Debug("mapbox autocomplete", "term", term, "returned", len(resp.Features), "usable", len(places))
	return places, nil
}

func (c *Client) doRequest(ctx context.Context, query string, params url.Values, source string) (response, error) {
	fullURL := fmt.Sprintf("%s/%s.json?%s", c.baseURL, url.PathEscape(query), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("%s geocode request: %w", source, redactURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return response{}, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return response{}, fmt.Errorf("decode response: %w", err)
	}
	return mapboxResp, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID      string        `json:"id"`
	Center  []float64     `json:"center"` // [lon, lat]
	Text    string        `json:"text"`
	Context []contextItem `json:"context"`
}

// contextItem is one level of the feature's administrative hierarchy, such as
// "region.123" or "country.456".
type contextItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	ShortCode string `json:"short_code"`
}

// place extracts the city, region and country from a place feature. Regions
// are reported by their postal abbreviation when Mapbox supplies one
// ("US-TX" becomes "TX").
func (f feature) place() domain.Place {
	p := domain.Place{City: f.Text}
	for _, item := range f.Context {
		switch {
		case strings.HasPrefix(item.ID, "region."):
			p.Region = item.Text
			if _, abbrev, ok := strings.Cut(item.ShortCode, "-"); ok && abbrev != "" {
				p.Region = strings.ToUpper(abbrev)
			}
		case strings.HasPrefix(item.ID, "country."):
			p.Country = domain.CanonicalCountry(item.Text)
		}
	}
	return p
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
