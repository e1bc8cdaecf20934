package sla

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	recordKeyPrefix = "resolvr:sla:"
	activeSetKey    = "resolvr:sla:active"

	// recordTTL caps how long a forgotten record can linger.
	recordTTL = 7 * 24 * time.Hour
)

// recordStore persists SLA records and the active-conversation set.
type recordStore interface {
	Get(ctx context.Context, conversationID string) (*Record, error)
	// Save writes the record; addActive also registers it in the active set.
	Save(ctx context.Context, rec *Record, addActive bool) error
	// Retire removes the conversation from the active set.
	Retire(ctx context.Context, conversationID string) error
	Active(ctx context.Context) ([]string, error)
}

type redisRecordStore struct {
	rdb *redis.Client
}

func (s *redisRecordStore) Get(ctx context.Context, conversationID string) (*Record, error) {
	data, err := s.rdb.Get(ctx, recordKeyPrefix+conversationID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading sla record %s: %w", conversationID, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding sla record %s: %w", conversationID, err)
	}
	return &rec, nil
}

func (s *redisRecordStore) Save(ctx context.Context, rec *Record, addActive bool) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding sla record %s: %w", rec.ConversationID, err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, recordKeyPrefix+rec.ConversationID, data, recordTTL)
	if addActive {
		pipe.SAdd(ctx, activeSetKey, rec.ConversationID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving sla record %s: %w", rec.ConversationID, err)
	}
	return nil
}

func (s *redisRecordStore) Retire(ctx context.Context, conversationID string) error {
	return s.rdb.SRem(ctx, activeSetKey, conversationID).Err()
}

func (s *redisRecordStore) Active(ctx context.Context) ([]string, error) {
	return s.rdb.SMembers(ctx, activeSetKey).Result()
}

type memoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	active  map[string]struct{}
}

func newMemoryRecordStore() *memoryRecordStore {
	return &memoryRecordStore{
		records: make(map[string]*Record),
		active:  make(map[string]struct{}),
	}
}

func (s *memoryRecordStore) Get(_ context.Context, conversationID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[conversationID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *memoryRecordStore) Save(_ context.Context, rec *Record, addActive bool) error {
	cp := *rec
	s.mu.Lock()
	s.records[rec.ConversationID] = &cp
	if addActive {
		s.active[rec.ConversationID] = struct{}{}
	}
	s.mu.Unlock()
	return nil
}

func (s *memoryRecordStore) Retire(_ context.Context, conversationID string) error {
	s.mu.Lock()
	delete(s.active, conversationID)
	s.mu.Unlock()
	return nil
}

func (s *memoryRecordStore) Active(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.active))
	for id := range s.active {
		out = append(out, id)
	}
	return out, nil
}
