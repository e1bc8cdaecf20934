package convstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/resolvr-ai/resolvr/pkg/models"
)

type memRecord struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is the in-memory conversation backend. Records are stored as
// JSON so Get always returns an independent copy, matching the Redis
// backend's semantics.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]memRecord)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Conversation, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()

	if !ok || time.Now().After(rec.expiresAt) {
		return nil, nil
	}

	var c models.Conversation
	if err := json.Unmarshal(rec.data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *MemoryStore) Save(_ context.Context, c *models.Conversation) error {
	prepareForSave(c)

	data, err := json.Marshal(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.records[c.ID] = memRecord{data: data, expiresAt: time.Now().Add(TTL)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.records, id)
	s.mu.Unlock()
	return nil
}
