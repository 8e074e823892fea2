package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/couchcryptid/truck-provider-search/internal/domain"
)

const (
	maxNearbyResults = 20
	maxNearbyRadiusM = 50000.0
	nearbyFieldMask  = "places.displayName,places.location"
)

// NearbyPlaces lists localities within radiusKm of center using the Places
// API (New) Nearby Search. Region and country are not requested.
func (c *Client) NearbyPlaces(ctx context.Context, center domain.Coordinates, radiusKm, limit int) ([]domain.NearbyPlace, error) {
	if limit <= 0 || limit > maxNearbyResults {
		limit = maxNearbyResults
	}
	radius := min(float64(radiusKm)*1000, maxNearbyRadiusM)

	body, err := json.Marshal(nearbyRequest{
		IncludedTypes:  []string{"locality"},
		MaxResultCount: limit,
		LocationRestriction: locationRestriction{
			Circle: circle{
				Center: latLng{Latitude: center.Lat, Longitude: center.Lng},
				Radius: radius,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode nearby request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.placesURL+"/v1/places:searchNearby", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", nearbyFieldMask)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nearby search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("places API error: status %d: %s", resp.StatusCode, b)
	}

	var nr nearbyResponse
	if err := json.NewDecoder(resp.Body).Decode(&nr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := make([]domain.NearbyPlace, 0, len(nr.Places))
	for _, p := range nr.Places {
		if p.DisplayName.Text == "" || p.Location == nil {
			continue
		}
		out = append(out, domain.NearbyPlace{
			Name:        p.DisplayName.Text,
			Coordinates: domain.Coordinates{Lat: p.Location.Latitude, Lng: p.Location.Longitude},
		})
	}
	return out, nil
}

// Places API (New) request and response types.

type nearbyRequest struct {
	IncludedTypes       []string            `json:"includedTypes"`
	MaxResultCount      int                 `json:"maxResultCount"`
	LocationRestriction locationRestriction `json:"locationRestriction"`
}

type locationRestriction struct {
	Circle circle `json:"circle"`
}

type circle struct {
	Center latLng  `json:"center"`
	Radius float64 `json:"radius"` // metres
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type nearbyResponse struct {
	Places []nearbyPlace `json:"places"`
}

type nearbyPlace struct {
	DisplayName localizedText `json:"displayName"`
	Location    *latLng       `json:"location"`
}

type localizedText struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode"`
}
