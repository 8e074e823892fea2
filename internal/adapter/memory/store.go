// Package memory provides an in-process domain.ProviderStore used for local
// development and tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/couchcryptid/truck-provider-search/internal/domain"
)

// Store keeps providers in a slice guarded by a RWMutex. Records are copied on
// the way in and out so callers never share backing arrays with the store.
type Store struct {
	mu      sync.RWMutex
	records []domain.ProviderRecord
	nextID  int64
}

// NewStore creates a store seeded with records. Records with a zero ID are
// assigned one.
func NewStore(records ...domain.ProviderRecord) *Store {
	s := &Store{}
	for i := range records {
		r := records[i]
		_ = s.Save(context.Background(), &r)
	}
	return s
}

// FindMatching returns copies of every record the filter matches, ordered by id.
func (s *Store) FindMatching(_ context.Context, f domain.ProviderFilter) ([]domain.ProviderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ProviderRecord
	for _, r := range s.records {
		if f.Matches(r) {
			out = append(out, clone(r))
		}
	}
	return out, nil
}

// CountMatching returns the number of records the filter matches.
func (s *Store) CountMatching(_ context.Context, f domain.ProviderFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.records {
		if f.Matches(r) {
			n++
		}
	}
	return n, nil
}

// FindByID returns the record with the given id.
func (s *Store) FindByID(_ context.Context, id int64) (domain.ProviderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return clone(s.records[i]), nil
	}
	return domain.ProviderRecord{}, domain.ErrProviderNotFound
}

// Save inserts r, or replaces the record with the same id.
func (s *Store) Save(_ context.Context, r *domain.ProviderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == 0 {
		s.nextID++
		r.ID = s.nextID
	} else if r.ID > s.nextID {
		s.nextID = r.ID
	}

	c := clone(*r)
	slices.Sort(c.ActiveServices)
	if i := s.indexOf(r.ID); i >= 0 {
		s.records[i] = c
		return nil
	}

	s.records = append(s.records, c)
	slices.SortFunc(s.records, func(a, b domain.ProviderRecord) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) indexOf(id int64) int {
	for i, r := range s.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func clone(r domain.ProviderRecord) domain.ProviderRecord {
	r.Image = slices.Clone(r.Image)
	r.ActiveServices = slices.Clone(r.ActiveServices)
	return r
}
