package tools

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/resolvr-ai/resolvr/pkg/models"
)

// OrderIndexTTL bounds how long a looked-up order is kept for prefetch joins.
const OrderIndexTTL = 3 * time.Minute

const orderKeyPrefix = "order:no:"

// OrderIndex is the short-lived order snapshot index keyed by order number.
// Successful order lookups write here so a follow-up message (possibly on
// another channel) can prefetch without hitting the OMS again.
type OrderIndex interface {
	Put(ctx context.Context, order models.CachedOrder)
	Get(ctx context.Context, orderNo string) (*models.CachedOrder, bool)
}

// NewOrderIndex picks the backend: Redis when a client is supplied,
// otherwise memory.
func NewOrderIndex(rdb *redis.Client) OrderIndex {
	if rdb != nil {
		return &redisOrderIndex{rdb: rdb}
	}
	return &memoryOrderIndex{orders: make(map[string]memoryOrderEntry)}
}

type redisOrderIndex struct {
	rdb *redis.Client
}

func (idx *redisOrderIndex) Put(ctx context.Context, order models.CachedOrder) {
	data, err := json.Marshal(order)
	if err != nil {
		return
	}
	key := orderKeyPrefix + strings.ToUpper(order.OrderNo)
	if err := idx.rdb.Set(ctx, key, data, OrderIndexTTL).Err(); err != nil {
		slog.Warn("Order index write failed", "order_no", order.OrderNo, "error", err)
	}
}

func (idx *redisOrderIndex) Get(ctx context.Context, orderNo string) (*models.CachedOrder, bool) {
	data, err := idx.rdb.Get(ctx, orderKeyPrefix+strings.ToUpper(orderNo)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.Warn("Order index read failed", "order_no", orderNo, "error", err)
		return nil, false
	}
	var order models.CachedOrder
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, false
	}
	return &order, true
}

type memoryOrderEntry struct {
	order     models.CachedOrder
	expiresAt time.Time
}

type memoryOrderIndex struct {
	mu     sync.RWMutex
	orders map[string]memoryOrderEntry
}

func (idx *memoryOrderIndex) Put(_ context.Context, order models.CachedOrder) {
	idx.mu.Lock()
	idx.orders[strings.ToUpper(order.OrderNo)] = memoryOrderEntry{
		order:     order,
		expiresAt: time.Now().Add(OrderIndexTTL),
	}
	idx.mu.Unlock()
}

func (idx *memoryOrderIndex) Get(_ context.Context, orderNo string) (*models.CachedOrder, bool) {
	idx.mu.RLock()
	entry, ok := idx.orders[strings.ToUpper(orderNo)]
	idx.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	cp := entry.order
	return &cp, true
}
