package cache

import (
	"sync"
	"time"
)

// Store provides key/value storage with per-entry TTL. It memoizes
// extraction results, AI-analysis results, and full audit results so that
// repeated requests within a TTL window skip the expensive adapters.
//
// Implementations must be safe for concurrent use: the audit pipeline runs
// multiple workflow runs in parallel and every run reads and writes the
// shared store.
type Store interface {
	// Get retrieves a value by key. A value past its expiry is treated as
	// absent and evicted lazily.
	Get(key string) (any, bool)

	// Set stores a value with the given TTL. A non-positive TTL stores the
	// value without expiry.
	Set(key string, value any, ttl time.Duration)

	// Delete removes an entry. Returns true if the entry existed.
	Delete(key string) bool

	// Clear removes all entries.
	Clear()

	// Len returns the number of entries currently held, including entries
	// that have expired but not yet been evicted.
	Len() int
}

// entry is the internal storage structure for each cached value.
type entry struct {
	value     any
	expiresAt time.Time
}

// expired reports whether the entry is past its expiry at the given instant.
// Entries without expiry never expire.
func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore implements Store with a mutex-guarded map and a background
// janitor that purges expired entries, bounding memory to the set of live
// keys. Construct with NewMemoryStore and release with Close.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry

	janitorInterval time.Duration
	stop            chan struct{}
	stopOnce        sync.Once
}

// NewMemoryStore creates a MemoryStore and starts its cleanup janitor.
// If janitorInterval is not positive it defaults to one minute.
func NewMemoryStore(janitorInterval time.Duration) *MemoryStore {
	if janitorInterval <= 0 {
		janitorInterval = time.Minute
	}

	s := &MemoryStore{
		entries:         make(map[string]*entry),
		janitorInterval: janitorInterval,
		stop:            make(chan struct{}),
	}

	go s.janitor()

	return s
}

// Get retrieves a value by key, lazily evicting it if expired.
func (s *MemoryStore) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}

	if e.expired(time.Now()) {
		delete(s.entries, key)
		return nil, false
	}

	return e.value, true
}

// Set stores a value with the given TTL, replacing any existing entry.
func (s *MemoryStore) Set(key string, value any, ttl time.Duration) {
	e := &entry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
}

// Delete removes an entry, returning true if it existed.
func (s *MemoryStore) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
	}
	return ok
}

// Clear removes all entries.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]*entry)
	s.mu.Unlock()
}

// Len returns the current entry count.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the background janitor. The store remains usable afterwards,
// but expired entries are then only evicted lazily on read.
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// janitor periodically purges expired entries until Close is called.
func (s *MemoryStore) janitor() {
	ticker := time.NewTicker(s.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.purgeExpired()
		}
	}
}

// purgeExpired removes every entry past its expiry.
func (s *MemoryStore) purgeExpired() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
		}
	}
}
