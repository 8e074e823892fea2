//go:build mapbox

package mapbox

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/truck-provider-search/internal/observability"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return NewClient(token, 10*time.Second, observability.DiscardLogger())
}

func TestSmoke_Geocode(t *testing.T) {
	c := smokeClient(t)

	coords, found, err := c.Geocode(context.Background(), "Austin, TX")
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, 30.27, coords.Lat, 0.1, "lat should be near Austin")
	assert.InDelta(t, -97.74, coords.Lng, 0.1, "lng should be near Austin")
}

func TestSmoke_ReverseGeocode(t *testing.T) {
	c := smokeClient(t)

	p, found, err := c.ReverseGeocode(context.Background(), 30.2672, -97.7431)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Austin", p.City)
	assert.Equal(t, "TX", p.Region)
	assert.Equal(t, "United States", p.Country)
}

func TestSmoke_AutocompleteCities(t *testing.T) {
	c := smokeClient(t)

	places, err := c.AutocompleteCities(context.Background(), "Dall")
	require.NoError(t, err)
	assert.NotEmpty(t, places)
}
