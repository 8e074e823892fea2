package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"

	"github.com/couchcryptid/truck-provider-search/internal/domain"
	"github.com/couchcryptid/truck-provider-search/internal/observability"
)

const (
	testKey           = "AIza-test"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := newClient(testKey, 5*time.Second, srv.URL, srv.URL, observability.DiscardLogger())
	require.NoError(t, err)
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, body string) {
	t.Helper()
	w.Header().Set(headerContentType, contentTypeJSON)
	_, err := io.WriteString(w, body)
	require.NoError(t, err)
}

func TestClient_AutocompleteCities(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/place/autocomplete/json", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "dal", q.Get("input"))
		assert.Equal(t, "(cities)", q.Get("types"))
		assert.Equal(t, "country:us|country:ca", q.Get("components"))
		assert.Equal(t, testKey, q.Get("key"))

		writeJSON(t, w, `{
			"status": "OK",
			"predictions": [
				{"description": "Dallas, TX, USA", "terms": [{"value": "Dallas"}, {"value": "TX"}, {"value": "USA"}]},
				{"description": "Dalhousie, NB, Canada", "terms": [{"value": "Dalhousie"}, {"value": "NB"}, {"value": "Canada"}]},
				{"description": "Dallas, Mexico", "terms": [{"value": "Dallas"}, {"value": "Mexico"}]},
				{"description": "Dalian, Liaoning, China", "terms": [{"value": "Dalian"}, {"value": "Liaoning"}, {"value": "China"}]}
			]
		}`)
	}))
	defer srv.Close()

	places, err := testClient(t, srv).AutocompleteCities(context.Background(), "dal")
	require.NoError(t, err)
	assert.Equal(t, []domain.Place{
		{City: "Dallas", Region: "TX", Country: "United States"},
		{City: "Dalhousie", Region: "NB", Country: "Canada"},
	}, places)
}

func TestClient_AutocompleteCities_ShortTermSkipsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()

	places, err := testClient(t, srv).AutocompleteCities(context.Background(), " d ")
	require.NoError(t, err)
	assert.Empty(t, places)
}

func TestClient_AutocompleteCities_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, `{"status": "REQUEST_DENIED", "error_message": "bad key"}`)
	}))
	defer srv.Close()

	_, err := testClient(t, srv).AutocompleteCities(context.Background(), "dal")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REQUEST_DENIED")
}

func TestClient_Geocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		assert.Equal(t, "Dallas, TX", r.URL.Query().Get("address"))
		writeJSON(t, w, `{
			"status": "OK",
			"results": [{"geometry": {"location": {"lat": 32.7767, "lng": -96.797}}}]
		}`)
	}))
	defer srv.Close()

	c, found, err := testClient(t, srv).Geocode(context.Background(), "Dallas, TX")
	require.NoError(t, err)
	assert.True(t, found)
	assert.InDelta(t, 32.7767, c.Lat, 0.0001)
	assert.InDelta(t, -96.797, c.Lng, 0.0001)
}

func TestClient_Geocode_ZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, `{"status": "ZERO_RESULTS", "results": []}`)
	}))
	defer srv.Close()

	_, found, err := testClient(t, srv).Geocode(context.Background(), "Atlantis")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClient_ReverseGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "32.9483,-96.7299", r.URL.Query().Get("latlng"))
		writeJSON(t, w, `{
			"status": "OK",
			"results": [
				{"address_components": [
					{"long_name": "75080", "short_name": "75080", "types": ["postal_code"]}
				]},
				{"address_components": [
					{"long_name": "Richardson", "short_name": "Richardson", "types": ["locality", "political"]},
					{"long_name": "Texas", "short_name": "TX", "types": ["administrative_area_level_1", "political"]},
					{"long_name": "United States", "short_name": "US", "types": ["country", "political"]}
				]}
			]
		}`)
	}))
	defer srv.Close()

	p, found, err := testClient(t, srv).ReverseGeocode(context.Background(), 32.9483, -96.7299)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, domain.Place{City: "Richardson", Region: "Texas", Country: "United States"}, p)
}

func TestClient_ReverseGeocode_Incomplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, `{
			"status": "OK",
			"results": [{"address_components": [
				{"long_name": "Gulf of Mexico", "types": ["natural_feature"]}
			]}]
		}`)
	}))
	defer srv.Close()

	_, found, err := testClient(t, srv).ReverseGeocode(context.Background(), 25, -90)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClient_FindPlaceIDAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/maps/api/place/findplacefromtext/json":
			assert.Equal(t, "Acme Towing, Dallas, TX, United States", r.URL.Query().Get("input"))
			assert.Equal(t, "textquery", r.URL.Query().Get("inputtype"))
			writeJSON(t, w, `{"status": "OK", "candidates": [{"place_id": "abc123"}]}`)
		case "/maps/api/place/details/json":
			assert.Equal(t, "abc123", r.URL.Query().Get("placeid"))
			writeJSON(t, w, `{"status": "OK", "result": {"business_status": "OPERATIONAL", "opening_hours": {"open_now": true}}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := testClient(t, srv)
	id, found, err := c.FindPlaceID(context.Background(), "Acme Towing, Dallas, TX, United States")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "abc123", id)

	status, err := c.PlaceStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, status)
}

func TestClient_FindPlaceID_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, `{"status": "ZERO_RESULTS", "candidates": []}`)
	}))
	defer srv.Close()

	_, found, err := testClient(t, srv).FindPlaceID(context.Background(), "Nobody, Nowhere")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStatusFromDetails(t *testing.T) {
	open, closed := true, false
	tests := []struct {
		name   string
		status string
		hours  *maps.OpeningHours
		want   domain.BusinessStatus
	}{
		{"closed permanently", "CLOSED_PERMANENTLY", &maps.OpeningHours{OpenNow: &open}, domain.StatusClosedPermanently},
		{"closed temporarily", "CLOSED_TEMPORARILY", nil, domain.StatusClosedTemporarily},
		{"open now", "OPERATIONAL", &maps.OpeningHours{OpenNow: &open}, domain.StatusOpen},
		{"closed now", "OPERATIONAL", &maps.OpeningHours{OpenNow: &closed}, domain.StatusClosed},
		{"no hours", "OPERATIONAL", nil, domain.StatusUnknown},
		{"no open_now", "", &maps.OpeningHours{}, domain.StatusUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFromDetails(tt.status, tt.hours))
		})
	}
}

func TestClient_NearbyPlaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/places:searchNearby", r.URL.Path)
		assert.Equal(t, testKey, r.Header.Get("X-Goog-Api-Key"))
		assert.Equal(t, nearbyFieldMask, r.Header.Get("X-Goog-FieldMask"))

		var req nearbyRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"locality"}, req.IncludedTypes)
		assert.Equal(t, 20, req.MaxResultCount)
		assert.InDelta(t, 32.7767, req.LocationRestriction.Circle.Center.Latitude, 0.0001)
		assert.InDelta(t, 50000.0, req.LocationRestriction.Circle.Radius, 0, "radius is capped")

		writeJSON(t, w, `{"places": [
			{"displayName": {"text": "Richardson"}, "location": {"latitude": 32.9483, "longitude": -96.7299}},
			{"displayName": {"text": "No Location"}},
			{"displayName": {"text": ""}, "location": {"latitude": 1, "longitude": 1}}
		]}`)
	}))
	defer srv.Close()

	places, err := testClient(t, srv).NearbyPlaces(context.Background(), domain.Coordinates{Lat: 32.7767, Lng: -96.797}, 100, 50)
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "Richardson", places[0].Name)
	assert.Empty(t, places[0].Region)
	assert.InDelta(t, -96.7299, places[0].Lng, 0.0001)
}

func TestClient_NearbyPlaces_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": {"message": "API key not valid"}}`))
	}))
	defer srv.Close()

	_, err := testClient(t, srv).NearbyPlaces(context.Background(), domain.Coordinates{}, 10, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestClient_NearbyPlaces_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, `{"places": [`)
	}))
	defer srv.Close()

	_, err := testClient(t, srv).NearbyPlaces(context.Background(), domain.Coordinates{}, 10, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_TransportErrorOmitsKey(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := testClient(t, srv)
	srv.Close()

	_, _, err := c.Geocode(context.Background(), "Dallas, TX")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forward geocode request")
	assert.NotContains(t, err.Error(), testKey)
}
