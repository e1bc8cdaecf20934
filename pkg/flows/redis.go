package flows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	flowKeyPrefix   = "resolvr:flows:"
	flowIndexSuffix = ":index"
)

// redisStore keeps each flow as a JSON value plus a per-tenant sorted set
// for creation-ordered listing.
type redisStore struct {
	rdb *redis.Client
}

func flowKey(tenantID, id string) string {
	return flowKeyPrefix + tenantID + ":" + id
}

func indexKey(tenantID string) string {
	return flowKeyPrefix + tenantID + flowIndexSuffix
}

func (s *redisStore) Create(ctx context.Context, flow *Flow) error {
	prepareForCreate(flow, time.Now().UTC())
	return s.write(ctx, flow, true)
}

func (s *redisStore) write(ctx context.Context, flow *Flow, index bool) error {
	data, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("encoding flow %s: %w", flow.ID, err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, flowKey(flow.TenantID, flow.ID), data, 0)
	if index {
		pipe.ZAdd(ctx, indexKey(flow.TenantID), redis.Z{
			Score:  float64(flow.CreatedAt.UnixMilli()),
			Member: flow.ID,
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving flow %s: %w", flow.ID, err)
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, tenantID, id string) (*Flow, error) {
	data, err := s.rdb.Get(ctx, flowKey(tenantID, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading flow %s: %w", id, err)
	}
	var flow Flow
	if err := json.Unmarshal(data, &flow); err != nil {
		return nil, fmt.Errorf("decoding flow %s: %w", id, err)
	}
	return &flow, nil
}

func (s *redisStore) List(ctx context.Context, tenantID string) ([]Flow, error) {
	ids, err := s.rdb.ZRange(ctx, indexKey(tenantID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing flows for %s: %w", tenantID, err)
	}
	out := make([]Flow, 0, len(ids))
	for _, id := range ids {
		flow, err := s.Get(ctx, tenantID, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *flow)
	}
	return out, nil
}

func (s *redisStore) Update(ctx context.Context, flow *Flow) error {
	existing, err := s.Get(ctx, flow.TenantID, flow.ID)
	if err != nil {
		return err
	}
	prepareForUpdate(flow, existing, time.Now().UTC())
	return s.write(ctx, flow, false)
}

func (s *redisStore) Delete(ctx context.Context, tenantID, id string) error {
	pipe := s.rdb.TxPipeline()
	del := pipe.Del(ctx, flowKey(tenantID, id))
	pipe.ZRem(ctx, indexKey(tenantID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deleting flow %s: %w", id, err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}
