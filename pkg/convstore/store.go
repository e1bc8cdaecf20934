// Package convstore persists conversation records. Records live 24 hours
// and turns are trimmed on save: system turns are always preserved, and only
// the most recent MaxTurns user/assistant turns are kept.
package convstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/resolvr-ai/resolvr/pkg/models"
)

// MaxTurns bounds the non-system turns kept per conversation.
const MaxTurns = 20

// TTL is the conversation record lifetime.
const TTL = 24 * time.Hour

// Store is the conversation persistence capability set.
type Store interface {
	// Get returns the record, or nil when absent or expired.
	Get(ctx context.Context, id string) (*models.Conversation, error)
	// Save trims turns, bumps UpdatedAt, and writes the record with TTL.
	// Transport failures are logged by the implementation and returned for
	// the caller to swallow; a failed save must not abort the pipeline.
	Save(ctx context.Context, c *models.Conversation) error
	// Delete removes the record.
	Delete(ctx context.Context, id string) error
}

// New picks the backend: Redis when a client is supplied, otherwise memory.
func New(rdb *redis.Client) Store {
	if rdb != nil {
		return NewRedisStore(rdb)
	}
	return NewMemoryStore()
}

// trimTurns enforces the turn bound in place, preserving order: all system
// turns plus the last MaxTurns non-system turns.
func trimTurns(c *models.Conversation) {
	nonSystem := 0
	for _, t := range c.Turns {
		if t.Role != models.RoleSystem {
			nonSystem++
		}
	}
	if nonSystem <= MaxTurns {
		return
	}

	drop := nonSystem - MaxTurns
	trimmed := make([]models.Turn, 0, len(c.Turns)-drop)
	for _, t := range c.Turns {
		if t.Role != models.RoleSystem && drop > 0 {
			drop--
			continue
		}
		trimmed = append(trimmed, t)
	}
	c.Turns = trimmed
}

// prepareForSave applies the save-time invariants shared by both backends.
func prepareForSave(c *models.Conversation) {
	trimTurns(c)
	c.UpdatedAt = time.Now()
}
