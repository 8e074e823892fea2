package gateway

import (
	"context"
	"sync"

	geohash "github.com/TomiHiltunen/geohash-golang"

	"github.com/couchcryptid/truck-provider-search/internal/domain"
	"github.com/couchcryptid/truck-provider-search/internal/observability"
)

// reverseKeyPrecision is the geohash length used for reverse-geocode cache
// keys. Seven characters is a cell of roughly 150 m.
const reverseKeyPrecision = 7

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder. metrics may be nil.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) Geocode(ctx context.Context, text string) (domain.Coordinates, bool, error) {
	key := "fwd:" + domain.Fold(text)
	if v, ok := c.cache.get(key); ok {
		c.record("forward", "hit")
		return v.coords, true, nil
	}
	c.record("forward", "miss")

	coords, found, err := c.inner.Geocode(ctx, text)
	if err != nil {
		return coords, found, err
	}
	// Only cache hits so transient "not found" responses can be retried.
	if found {
		c.cache.put(key, cacheValue{coords: coords})
	}
	return coords, found, nil
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (domain.Place, bool, error) {
	key := "rev:" + geohash.EncodeWithPrecision(lat, lng, reverseKeyPrecision)
	if v, ok := c.cache.get(key); ok {
		c.record("reverse", "hit")
		return v.place, true, nil
	}
	c.record("reverse", "miss")

	place, found, err := c.inner.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		return place, found, err
	}
	if found {
		c.cache.put(key, cacheValue{place: place})
	}
	return place, found, nil
}

func (c *CachedGeocoder) record(method, result string) {
	if c.metrics != nil {
		c.metrics.GeocodeCache.WithLabelValues(method, result).Inc()
	}
}

type cacheValue struct {
	coords domain.Coordinates
	place  domain.Place
}

// lruCache is a simple thread-safe LRU cache for geocoding results.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value cacheValue
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (cacheValue, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return cacheValue{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value cacheValue) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
