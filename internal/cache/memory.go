package cache

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryStore keeps entries in process memory. Expired entries are dropped
// lazily when read; there is no background sweep.
//
// With maxEntries <= 0 the store is an unbounded map. With maxEntries > 0 the
// least recently used entry is evicted once the bound is reached.
type MemoryStore struct {
	clock Clock

	mu      sync.RWMutex
	entries map[LookupKey]Entry

	bounded *lru.Cache[LookupKey, Entry]
}

// NewMemoryStore creates an in-process store
func NewMemoryStore(clock Clock, maxEntries int) (*MemoryStore, error) {
	if clock == nil {
		clock = SystemClock{}
	}

	s := &MemoryStore{clock: clock}

	if maxEntries > 0 {
		bounded, err := lru.New[LookupKey, Entry](maxEntries)
		if err != nil {
			return nil, err
		}
		s.bounded = bounded
		return s, nil
	}

	s.entries = make(map[LookupKey]Entry)
	return s, nil
}

// Get returns the entry for key if it has not expired
func (s *MemoryStore) Get(_ context.Context, key LookupKey) (Entry, bool, error) {
	entry, ok := s.load(key)
	if !ok {
		return Entry{}, false, nil
	}

	if !entry.ValidAt(s.clock.Now()) {
		s.remove(key, entry)
		return Entry{}, false, nil
	}

	return entry, true, nil
}

// Put stores entry under key, replacing any previous one
func (s *MemoryStore) Put(_ context.Context, key LookupKey, entry Entry) error {
	if s.bounded != nil {
		s.bounded.Add(key, entry)
		return nil
	}

	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included
func (s *MemoryStore) Len() int {
	if s.bounded != nil {
		return s.bounded.Len()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) load(key LookupKey) (Entry, bool) {
	if s.bounded != nil {
		return s.bounded.Get(key)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	return entry, ok
}

// remove deletes key only if it still holds the expired entry, so a fresh
// Put that raced with the read is kept.
func (s *MemoryStore) remove(key LookupKey, expired Entry) {
	if s.bounded != nil {
		if current, ok := s.bounded.Peek(key); ok && current.ExpiresAt.Equal(expired.ExpiresAt) {
			s.bounded.Remove(key)
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.entries[key]; ok && current.ExpiresAt.Equal(expired.ExpiresAt) {
		delete(s.entries, key)
	}
}
