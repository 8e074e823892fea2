// Package gateway puts the interchangeable geocoding back-ends behind one
// facade whose methods never fail: transport errors, timeouts, malformed
// responses and missing back-ends all degrade to empty, not-found or Unknown
// results. Failures are logged and counted, never returned.
package gateway

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/golang/geo/s2"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/truck-provider-search/internal/domain"
	"github.com/couchcryptid/truck-provider-search/internal/observability"
)

const earthRadiusKm = 6371.0088

// Backends selects the implementation of each capability. Any field may be
// nil, in which case that capability always returns an empty result.
type Backends struct {
	Autocompleter domain.Autocompleter
	Geocoder      domain.Geocoder
	Nearby        domain.NearbyFinder
	Status        domain.StatusChecker
}

// Options tunes the gateway.
type Options struct {
	// Timeout bounds every individual back-end call.
	Timeout time.Duration
	// MaxNearby caps the number of nearby cities returned.
	MaxNearby int
	// Concurrency bounds parallel reverse lookups for nearby candidates.
	Concurrency int
}

// Gateway is the soft-failing geocoding facade used by the search engine.
type Gateway struct {
	backends    Backends
	timeout     time.Duration
	maxNearby   int
	concurrency int
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// New creates a Gateway over the given back-ends.
func New(b Backends, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Gateway {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.MaxNearby <= 0 {
		opts.MaxNearby = 20
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Gateway{
		backends:    b,
		timeout:     opts.Timeout,
		maxNearby:   opts.MaxNearby,
		concurrency: opts.Concurrency,
		logger:      logger,
		metrics:     metrics,
	}
}

// Autocomplete returns city suggestions for a partial term, limited to
// supported countries, deduplicated and sorted by city.
func (g *Gateway) Autocomplete(ctx context.Context, term string) []domain.Place {
	term = strings.TrimSpace(term)
	if g.backends.Autocompleter == nil || term == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	places, err := g.backends.Autocompleter.AutocompleteCities(ctx, term)
	g.observe("autocomplete", start, err, len(places) == 0)
	if err != nil {
		g.logger.Warn("autocomplete failed", "term", term, "error", err)
		return nil
	}

	seen := make(map[string]bool, len(places))
	out := make([]domain.Place, 0, len(places))
	for _, p := range places {
		if strings.TrimSpace(p.City) == "" || !domain.IsSupportedCountry(p.Country) {
			continue
		}
		p.Country = domain.CanonicalCountry(p.Country)
		key := placeKey(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	slices.SortStableFunc(out, comparePlaces)
	return out
}

// GeocodeToCoordinates resolves free text to coordinates.
func (g *Gateway) GeocodeToCoordinates(ctx context.Context, text string) (domain.Coordinates, bool) {
	text = strings.TrimSpace(text)
	if g.backends.Geocoder == nil || text == "" {
		return domain.Coordinates{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	c, found, err := g.backends.Geocoder.Geocode(ctx, text)
	g.observe("forward", start, err, !found)
	if err != nil {
		g.logger.Warn("forward geocoding failed", "location", text, "error", err)
		return domain.Coordinates{}, false
	}
	return c, found
}

// ReverseGeocode resolves coordinates to a complete (city, region, country) place.
func (g *Gateway) ReverseGeocode(ctx context.Context, lat, lng float64) (domain.Place, bool) {
	if g.backends.Geocoder == nil {
		return domain.Place{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	p, found, err := g.backends.Geocoder.ReverseGeocode(ctx, lat, lng)
	found = found && p.Complete()
	g.observe("reverse", start, err, !found)
	if err != nil {
		g.logger.Warn("reverse geocoding failed", "lat", lat, "lng", lng, "error", err)
		return domain.Place{}, false
	}
	if !found {
		return domain.Place{}, false
	}
	return p, true
}

// FindNearbyCities lists cities within radiusKm of location, excluding any
// whose name already appears in location. Candidates are ordered by distance
// and capped at the configured maximum. Candidates the nearby source returns
// without region or country are completed by reverse geocoding and dropped
// when that fails.
func (g *Gateway) FindNearbyCities(ctx context.Context, location string, radiusKm int) []domain.Place {
	if g.backends.Nearby == nil || radiusKm <= 0 {
		return nil
	}

	center, ok := g.GeocodeToCoordinates(ctx, location)
	if !ok {
		return nil
	}

	candidates := g.nearbyCandidates(ctx, location, center, radiusKm)
	if len(candidates) == 0 {
		return nil
	}

	resolved := make([]domain.Place, len(candidates))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for i, c := range candidates {
		if c.Region != "" && c.Country != "" {
			resolved[i] = domain.Place{City: c.Name, Region: c.Region, Country: c.Country}
			continue
		}
		eg.Go(func() error {
			p, ok := g.ReverseGeocode(egCtx, c.Lat, c.Lng)
			if ok {
				resolved[i] = domain.Place{City: c.Name, Region: p.Region, Country: p.Country}
			}
			return nil
		})
	}
	_ = eg.Wait()

	seen := make(map[string]bool, len(resolved))
	out := make([]domain.Place, 0, len(resolved))
	for _, p := range resolved {
		if p.City == "" {
			continue
		}
		key := placeKey(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

type nearbyCandidate struct {
	domain.NearbyPlace
	distanceKm float64
}

func (g *Gateway) nearbyCandidates(ctx context.Context, location string, center domain.Coordinates, radiusKm int) []nearbyCandidate {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	places, err := g.backends.Nearby.NearbyPlaces(ctx, center, radiusKm, g.maxNearby)
	g.observe("nearby", start, err, len(places) == 0)
	if err != nil {
		g.logger.Warn("nearby city lookup failed", "location", location, "radius_km", radiusKm, "error", err)
		return nil
	}

	origin := s2.LatLngFromDegrees(center.Lat, center.Lng)
	folded := domain.Fold(location)

	out := make([]nearbyCandidate, 0, len(places))
	for _, p := range places {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" || strings.Contains(folded, domain.Fold(p.Name)) {
			continue
		}
		dist := origin.Distance(s2.LatLngFromDegrees(p.Lat, p.Lng)).Radians() * earthRadiusKm
		if dist > float64(radiusKm) {
			continue
		}
		out = append(out, nearbyCandidate{NearbyPlace: p, distanceKm: dist})
	}

	slices.SortStableFunc(out, func(a, b nearbyCandidate) int {
		return cmp.Compare(a.distanceKm, b.distanceKm)
	})
	if len(out) > g.maxNearby {
		out = out[:g.maxNearby]
	}
	return out
}

// BusinessStatus returns the live status of a business. Any failure while
// resolving the place or its status yields StatusUnknown.
func (g *Gateway) BusinessStatus(ctx context.Context, name, city, region, country string) domain.BusinessStatus {
	if g.backends.Status == nil || strings.TrimSpace(name) == "" {
		return domain.StatusUnknown
	}

	query := fmt.Sprintf("%s, %s, %s, %s", name, city, region, country)

	idCtx, cancel := context.WithTimeout(ctx, g.timeout)
	start := time.Now()
	placeID, found, err := g.backends.Status.FindPlaceID(idCtx, query)
	cancel()
	g.observe("find_place", start, err, !found)
	if err != nil {
		g.logger.Warn("place lookup failed", "query", query, "error", err)
		return domain.StatusUnknown
	}
	if !found || placeID == "" {
		return domain.StatusUnknown
	}

	statusCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	start = time.Now()
	status, err := g.backends.Status.PlaceStatus(statusCtx, placeID)
	g.observe("status", start, err, status == "" || status == domain.StatusUnknown)
	if err != nil {
		g.logger.Warn("place status lookup failed", "place_id", placeID, "error", err)
		return domain.StatusUnknown
	}
	if status == "" {
		return domain.StatusUnknown
	}
	return status
}

func (g *Gateway) observe(method string, start time.Time, err error, empty bool) {
	if g.metrics == nil {
		return
	}
	g.metrics.GeocodeAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
	case empty:
		outcome = "empty"
	}
	g.metrics.GeocodeRequests.WithLabelValues(method, outcome).Inc()
}

func placeKey(p domain.Place) string {
	return domain.Fold(p.City) + "|" + domain.Fold(domain.CanonicalRegion(p.Region)) + "|" + domain.Fold(domain.CanonicalCountry(p.Country))
}

func comparePlaces(a, b domain.Place) int {
	if c := strings.Compare(domain.Fold(a.City), domain.Fold(b.City)); c != 0 {
		return c
	}
	if c := strings.Compare(domain.Fold(a.Region), domain.Fold(b.Region)); c != 0 {
		return c
	}
	return strings.Compare(domain.Fold(a.Country), domain.Fold(b.Country))
}
