package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// MemoryStore keeps sessions in a bounded in-process LRU.
type MemoryStore struct {
	cache *lru.Cache
	ttl   time.Duration
	mu    sync.Mutex
	now   func() time.Time
}

// NewMemoryStore holds at most maxEntries sessions for ttl each.
func NewMemoryStore(maxEntries int, ttl time.Duration) (*MemoryStore, error) {
	cache, err := lru.New(maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	return &MemoryStore{cache: cache, ttl: ttl, now: time.Now}, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	val, ok := s.cache.Get(id)
	if !ok {
		return Record{}, ErrNotFound
	}
	rec := val.(Record)
	if rec.Expired(s.now()) {
		s.cache.Remove(id)
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Save(_ context.Context, id string, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ExpiresAt = s.now().Add(s.ttl)
	s.cache.Add(id, rec)
	return rec, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(id)
	return nil
}

// Len returns the number of cached sessions, expired ones included.
func (s *MemoryStore) Len() int {
	return s.cache.Len()
}
