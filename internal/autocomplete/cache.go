// Package autocomplete memoizes city suggestions per search term so repeated
// keystrokes do not hit the paid autocomplete API.
package autocomplete

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/truck-provider-search/internal/domain"
	"github.com/couchcryptid/truck-provider-search/internal/observability"
)

// DefaultTTL is how long a term's suggestions stay cached.
const DefaultTTL = 6 * time.Hour

// Source produces suggestions on a cache miss. It never fails; an unavailable
// back-end yields an empty list.
type Source interface {
	Autocomplete(ctx context.Context, term string) []domain.Place
}

// Store persists suggestion lists by key. A missing or expired key reports
// found=false.
type Store interface {
	Get(ctx context.Context, key string) (places []domain.Place, found bool, err error)
	Set(ctx context.Context, key string, places []domain.Place, ttl time.Duration) error
}

// Cache is a get-or-populate cache in front of a Source.
type Cache struct {
	source  Source
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Cache. A non-positive ttl selects DefaultTTL.
func New(source Source, store Store, ttl time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		source:  source,
		store:   store,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

// Key normalizes a term to its cache key. Blank terms map to "".
func Key(term string) string {
	return domain.Fold(term)
}

// Suggest returns the cached suggestions for term, computing and storing them
// on a miss. Concurrent callers for the same key share a single Source call.
// Empty results are cached too.
func (c *Cache) Suggest(ctx context.Context, term string) []domain.Place {
	key := Key(term)
	if key == "" {
		return nil
	}

	if places, ok := c.lookup(ctx, key); ok {
		c.record("hit")
		return places
	}
	c.record("miss")

	// The shared call must outlive any single caller's cancellation.
	shared := context.WithoutCancel(ctx)
	v, _, _ := c.group.Do(key, func() (any, error) {
		if places, ok := c.lookup(shared, key); ok {
			return places, nil
		}
		places := c.source.Autocomplete(shared, strings.TrimSpace(term))
		if places == nil {
			places = []domain.Place{}
		}
		if err := c.store.Set(shared, key, places, c.ttl); err != nil {
			c.record("error")
			c.logger.Warn("autocomplete cache write failed", "key", key, "error", err)
		}
		return places, nil
	})
	return slices.Clone(v.([]domain.Place))
}

func (c *Cache) lookup(ctx context.Context, key string) ([]domain.Place, bool) {
	places, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.record("error")
		c.logger.Warn("autocomplete cache read failed", "key", key, "error", err)
		return nil, false
	}
	return places, found
}

func (c *Cache) record(result string) {
	if c.metrics != nil {
		c.metrics.AutocompleteCache.WithLabelValues(result).Inc()
	}
}
