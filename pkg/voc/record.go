package voc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/resolvr-ai/resolvr/pkg/models"
)

// RecordTTL is the VOC record retention period.
const RecordTTL = 90 * 24 * time.Hour

const recordKeyPrefix = "resolvr:voc:conv:"

// RecordStore persists per-turn VOC records, append-only per conversation.
type RecordStore interface {
	Save(ctx context.Context, rec *models.VOCRecord) error
	// List returns the conversation's records in append order.
	List(ctx context.Context, conversationID string) ([]models.VOCRecord, error)
}

// NewRecordStore picks the backend: Redis when a client is supplied,
// otherwise memory.
func NewRecordStore(rdb *redis.Client) RecordStore {
	if rdb != nil {
		return &redisRecordStore{rdb: rdb}
	}
	return &memoryRecordStore{records: make(map[string][]models.VOCRecord)}
}

type redisRecordStore struct {
	rdb *redis.Client
}

func (s *redisRecordStore) Save(ctx context.Context, rec *models.VOCRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding voc record %s: %w", rec.MessageID, err)
	}

	key := recordKeyPrefix + rec.ConversationID
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, RecordTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving voc record %s: %w", rec.MessageID, err)
	}
	return nil
}

func (s *redisRecordStore) List(ctx context.Context, conversationID string) ([]models.VOCRecord, error) {
	items, err := s.rdb.LRange(ctx, recordKeyPrefix+conversationID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing voc records for %s: %w", conversationID, err)
	}

	out := make([]models.VOCRecord, 0, len(items))
	for _, item := range items {
		var rec models.VOCRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("decoding voc record: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

type memoryRecordStore struct {
	mu      sync.RWMutex
	records map[string][]models.VOCRecord
}

func (s *memoryRecordStore) Save(_ context.Context, rec *models.VOCRecord) error {
	s.mu.Lock()
	s.records[rec.ConversationID] = append(s.records[rec.ConversationID], *rec)
	s.mu.Unlock()
	return nil
}

func (s *memoryRecordStore) List(_ context.Context, conversationID string) ([]models.VOCRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.VOCRecord, len(s.records[conversationID]))
	copy(out, s.records[conversationID])
	return out, nil
}
