package convstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/resolvr-ai/resolvr/pkg/models"
)

const keyPrefix = "conv:"

// RedisStore is the durable conversation backend.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a Redis-backed conversation store.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.Conversation, error) {
	data, err := s.rdb.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading conversation %s: %w", id, err)
	}

	var c models.Conversation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding conversation %s: %w", id, err)
	}
	return &c, nil
}

func (s *RedisStore) Save(ctx context.Context, c *models.Conversation) error {
	prepareForSave(c)

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding conversation %s: %w", c.ID, err)
	}

	if err := s.rdb.Set(ctx, keyPrefix+c.ID, data, TTL).Err(); err != nil {
		slog.Error("Conversation save failed", "conversation_id", c.ID, "error", err)
		return fmt.Errorf("saving conversation %s: %w", c.ID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("deleting conversation %s: %w", id, err)
	}
	return nil
}
