package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultMaxEntries bounds the in-memory store.
const DefaultMaxEntries = 10000

// evictionInterval is how often the background sweep removes expired entries.
const evictionInterval = 60 * time.Second

type memEntry struct {
	value       json.RawMessage
	expiresAt   time.Time // zero means no expiry
	containsPII bool
	insertedAt  time.Time
}

func (e *memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is the bounded in-memory cache backend. Expired entries are
// dropped lazily on read and by a periodic sweep.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]*memEntry
	maxEntries int

	hits   atomic.Int64
	misses atomic.Int64

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewMemoryStore creates an in-memory store capped at maxEntries and starts
// the eviction sweep.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	s := &MemoryStore{
		entries:    make(map[string]*memEntry),
		maxEntries: maxEntries,
		stopCh:     make(chan struct{}),
	}
	go s.evictLoop()
	return s
}

// Close stops the eviction sweep.
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *MemoryStore) Get(_ context.Context, key string, opts GetOptions) (json.RawMessage, bool) {
	now := time.Now()

	s.mu.RLock()
	entry, ok := s.entries[Namespace+key]
	s.mu.RUnlock()

	if !ok || entry.expired(now) {
		if ok {
			s.deleteExpired(Namespace+key, now)
		}
		s.misses.Add(1)
		return nil, false
	}
	if opts.ExcludePII && entry.containsPII {
		s.misses.Add(1)
		return nil, false
	}

	s.hits.Add(1)
	return entry.value, true
}

func (s *MemoryStore) Set(_ context.Context, key string, value any, ttl time.Duration, containsPII bool) {
	raw, err := json.Marshal(value)
	if err != nil {
		slog.Warn("Cache set skipped: value not marshalable", "key", key, "error", err)
		return
	}

	entry := &memEntry{
		value:       raw,
		containsPII: containsPII,
		insertedAt:  time.Now(),
	}
	if ttl > 0 {
		entry.expiresAt = entry.insertedAt.Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[Namespace+key]; !exists && len(s.entries) >= s.maxEntries {
		s.evictOneLocked()
	}
	s.entries[Namespace+key] = entry
}

func (s *MemoryStore) Del(_ context.Context, key string) {
	s.mu.Lock()
	delete(s.entries, Namespace+key)
	s.mu.Unlock()
}

func (s *MemoryStore) Has(ctx context.Context, key string) bool {
	now := time.Now()
	s.mu.RLock()
	entry, ok := s.entries[Namespace+key]
	s.mu.RUnlock()
	return ok && !entry.expired(now)
}

func (s *MemoryStore) Clear(_ context.Context) {
	s.mu.Lock()
	s.entries = make(map[string]*memEntry)
	s.mu.Unlock()
}

func (s *MemoryStore) Stats(_ context.Context) Stats {
	s.mu.RLock()
	size := int64(len(s.entries))
	s.mu.RUnlock()
	return Stats{
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
		Size:   size,
	}
}

// deleteExpired re-checks under the write lock: a concurrent Set may have
// replaced the entry with a fresh one.
func (s *MemoryStore) deleteExpired(fullKey string, now time.Time) {
	s.mu.Lock()
	if current, ok := s.entries[fullKey]; ok && current.expired(now) {
		delete(s.entries, fullKey)
	}
	s.mu.Unlock()
}

// evictOneLocked removes the entry closest to expiry, falling back to the
// oldest insertion when nothing carries a TTL. Caller holds the write lock.
func (s *MemoryStore) evictOneLocked() {
	var victim string
	var victimEntry *memEntry
	for key, entry := range s.entries {
		if victimEntry == nil {
			victim, victimEntry = key, entry
			continue
		}
		switch {
		case !entry.expiresAt.IsZero() && (victimEntry.expiresAt.IsZero() || entry.expiresAt.Before(victimEntry.expiresAt)):
			victim, victimEntry = key, entry
		case entry.expiresAt.IsZero() && victimEntry.expiresAt.IsZero() && entry.insertedAt.Before(victimEntry.insertedAt):
			victim, victimEntry = key, entry
		}
	}
	if victim != "" {
		delete(s.entries, victim)
	}
}

func (s *MemoryStore) evictLoop() {
	ticker := time.NewTicker(evictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

func (s *MemoryStore) evictExpired() {
	now := time.Now()
	s.mu.Lock()
	for key, entry := range s.entries {
		if entry.expired(now) {
			delete(s.entries, key)
		}
	}
	s.mu.Unlock()
}
