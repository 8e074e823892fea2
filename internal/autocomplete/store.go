package autocomplete

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/couchcryptid/truck-provider-search/internal/domain"
)

// MemoryStore keeps entries in process. Expired entries are dropped lazily
// when read.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clock   clockwork.Clock
}

type memoryEntry struct {
	places  []domain.Place
	expires time.Time
}

// NewMemoryStore creates an empty store. A nil clock selects domain.Clock().
func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = domain.Clock()
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		clock:   clock,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]domain.Place, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !s.clock.Now().Before(e.expires) {
		delete(s.entries, key)
		return nil, false, nil
	}
	return slices.Clone(e.places), true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, places []domain.Place, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = memoryEntry{
		places:  slices.Clone(places),
		expires: s.clock.Now().Add(ttl),
	}
	return nil
}

// Len returns the number of stored entries, including expired ones not yet
// evicted.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// RedisKeyPrefix namespaces autocomplete keys in a shared Redis.
const RedisKeyPrefix = "autocomplete:"

// RedisStore keeps entries in Redis as JSON with a native expiry.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore creates a store on an existing client.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]domain.Place, bool, error) {
	b, err := s.client.Get(ctx, RedisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var places []domain.Place
	if err := json.Unmarshal(b, &places); err != nil {
		return nil, false, fmt.Errorf("decode cached places: %w", err)
	}
	return places, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, places []domain.Place, ttl time.Duration) error {
	b, err := json.Marshal(places)
	if err != nil {
		return fmt.Errorf("encode places: %w", err)
	}
	if err := s.client.Set(ctx, RedisKeyPrefix+key, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
