package customer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "resolvr:customer_sessions:"

	// SessionRetention bounds how far back cross-channel linking reaches.
	SessionRetention = 90 * 24 * time.Hour
	// MaxSessions bounds the per-customer session index.
	MaxSessions = 20
)

// SessionIndex records which conversations belong to a customer, newest
// first, bounded to MaxSessions over SessionRetention.
type SessionIndex interface {
	Add(ctx context.Context, customerID, conversationID string, at time.Time) error
	// Recent returns conversation ids newest first.
	Recent(ctx context.Context, customerID string) ([]string, error)
}

// NewSessionIndex picks the backend: Redis when a client is supplied,
// otherwise memory.
func NewSessionIndex(rdb *redis.Client) SessionIndex {
	if rdb != nil {
		return &redisSessionIndex{rdb: rdb}
	}
	return &memorySessionIndex{sessions: make(map[string][]sessionEntry)}
}

type redisSessionIndex struct {
	rdb *redis.Client
}

func (s *redisSessionIndex) Add(ctx context.Context, customerID, conversationID string, at time.Time) error {
	key := sessionKeyPrefix + customerID
	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixMilli()), Member: conversationID})
	// Keep only the newest MaxSessions members.
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-MaxSessions-1))
	pipe.Expire(ctx, key, SessionRetention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("indexing session for %s: %w", customerID, err)
	}
	return nil
}

func (s *redisSessionIndex) Recent(ctx context.Context, customerID string) ([]string, error) {
	ids, err := s.rdb.ZRevRange(ctx, sessionKeyPrefix+customerID, 0, MaxSessions-1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing sessions for %s: %w", customerID, err)
	}
	return ids, nil
}

type sessionEntry struct {
	conversationID string
	at             time.Time
}

type memorySessionIndex struct {
	mu       sync.Mutex
	sessions map[string][]sessionEntry
}

func (s *memorySessionIndex) Add(_ context.Context, customerID, conversationID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.sessions[customerID]
	for i, e := range entries {
		if e.conversationID == conversationID {
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	entries = append(entries, sessionEntry{conversationID: conversationID, at: at})
	sort.Slice(entries, func(i, j int) bool { return entries[i].at.Before(entries[j].at) })
	if len(entries) > MaxSessions {
		entries = entries[len(entries)-MaxSessions:]
	}
	s.sessions[customerID] = entries
	return nil
}

func (s *memorySessionIndex) Recent(_ context.Context, customerID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.sessions[customerID]
	cutoff := time.Now().Add(-SessionRetention)
	var out []string
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].at.Before(cutoff) {
			continue
		}
		out = append(out, entries[i].conversationID)
	}
	return out, nil
}
