// Package flows stores tenant-scoped conversation flow definitions for the
// admin surface. A flow names a trigger intent and the steps to walk a
// customer through; the store is plain CRUD over Redis or memory.
package flows

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a flow does not exist for the tenant.
var ErrNotFound = errors.New("flow not found")

// StepType enumerates what a flow step does.
type StepType string

const (
	StepMessage   StepType = "message"
	StepTool      StepType = "tool"
	StepCondition StepType = "condition"
)

// Step is one node in a flow definition.
type Step struct {
	ID      string         `json:"id"`
	Type    StepType       `json:"type"`
	Message string         `json:"message,omitempty"`
	Tool    string         `json:"tool,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
	// Next names the following step; condition steps use OnTrue/OnFalse.
	Next    string `json:"next,omitempty"`
	OnTrue  string `json:"on_true,omitempty"`
	OnFalse string `json:"on_false,omitempty"`
}

// Flow is a named, versioned flow definition owned by a tenant.
type Flow struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	TriggerIntent string    `json:"trigger_intent,omitempty"`
	Steps         []Step    `json:"steps,omitempty"`
	Enabled       bool      `json:"enabled"`
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store is the flow definition CRUD interface.
type Store interface {
	Create(ctx context.Context, flow *Flow) error
	Get(ctx context.Context, tenantID, id string) (*Flow, error)
	// List returns the tenant's flows ordered by creation time.
	List(ctx context.Context, tenantID string) ([]Flow, error)
	Update(ctx context.Context, flow *Flow) error
	Delete(ctx context.Context, tenantID, id string) error
}

// NewStore picks the backend: Redis when a client is supplied, otherwise
// memory.
func NewStore(rdb *redis.Client) Store {
	if rdb != nil {
		return &redisStore{rdb: rdb}
	}
	return newMemoryStore()
}

// prepareForCreate stamps identity and timestamps on a new flow.
func prepareForCreate(flow *Flow, now time.Time) {
	if flow.ID == "" {
		flow.ID = uuid.NewString()
	}
	flow.Version = 1
	flow.CreatedAt = now
	flow.UpdatedAt = now
}

// prepareForUpdate bumps the version and update timestamp.
func prepareForUpdate(flow *Flow, existing *Flow, now time.Time) {
	flow.Version = existing.Version + 1
	flow.CreatedAt = existing.CreatedAt
	flow.UpdatedAt = now
}
