package flows

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memoryStore is the in-process backend for development and tests.
type memoryStore struct {
	mu    sync.RWMutex
	flows map[string]map[string]Flow // tenantID -> flowID -> flow
}

func newMemoryStore() *memoryStore {
	return &memoryStore{flows: make(map[string]map[string]Flow)}
}

func (s *memoryStore) Create(_ context.Context, flow *Flow) error {
	prepareForCreate(flow, time.Now().UTC())

	s.mu.Lock()
	defer s.mu.Unlock()
	tenant, ok := s.flows[flow.TenantID]
	if !ok {
		tenant = make(map[string]Flow)
		s.flows[flow.TenantID] = tenant
	}
	tenant[flow.ID] = *flow
	return nil
}

func (s *memoryStore) Get(_ context.Context, tenantID, id string) (*Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	flow, ok := s.flows[tenantID][id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := flow
	return &copied, nil
}

func (s *memoryStore) List(_ context.Context, tenantID string) ([]Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Flow, 0, len(s.flows[tenantID]))
	for _, flow := range s.flows[tenantID] {
		out = append(out, flow)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *memoryStore) Update(_ context.Context, flow *Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.flows[flow.TenantID][flow.ID]
	if !ok {
		return ErrNotFound
	}
	prepareForUpdate(flow, &existing, time.Now().UTC())
	s.flows[flow.TenantID][flow.ID] = *flow
	return nil
}

func (s *memoryStore) Delete(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flows[tenantID][id]; !ok {
		return ErrNotFound
	}
	delete(s.flows[tenantID], id)
	return nil
}
