package tools

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resolvr-ai/resolvr/pkg/cache"
	"github.com/resolvr-ai/resolvr/pkg/config"
	"github.com/resolvr-ai/resolvr/pkg/models"
)

type fakeOMS struct {
	orders  map[string]models.CachedOrder
	byPhone map[string][]models.CachedOrder
	refunds int
}

func (f *fakeOMS) OrdersByPhone(_ context.Context, phone string) ([]models.CachedOrder, error) {
	return f.byPhone[phone], nil
}

func (f *fakeOMS) OrderByNumber(_ context.Context, orderNo string) (*models.CachedOrder, error) {
	order, ok := f.orders[orderNo]
	if !ok {
		return nil, nil
	}
	return &order, nil
}

func (f *fakeOMS) InitiateRefund(_ context.Context, orderNo, reason string) (string, error) {
	if orderNo == "" {
		return "", fmt.Errorf("api error: order not found")
	}
	f.refunds++
	return fmt.Sprintf("RFD-%03d", f.refunds), nil
}

type fakeTracking struct{}

func (fakeTracking) Track(_ context.Context, awb string) (map[string]any, error) {
	return map[string]any{"awb": awb, "status": "in_transit", "eta": "tomorrow"}, nil
}

type fakeHandoff struct{ requests int }

func (f *fakeHandoff) RequestHuman(_ context.Context, conversationID, reason string) (string, error) {
	f.requests++
	return "TKT-9001", nil
}

func newBuiltinRuntime(t *testing.T, c Collaborators, idx OrderIndex) *Runtime {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, RegisterBuiltins(reg, c, idx))
	return NewRuntime(reg, cache.NewMemoryStore(100), nil, nil, nil, config.DefaultToolsConfig())
}

func TestBuiltin_LookupByPhoneIndexesOrders(t *testing.T) {
	oms := &fakeOMS{byPhone: map[string][]models.CachedOrder{
		"9876543210": {
			{OrderNo: "Q2593VU", Status: "shipped", AWB: "12345678901"},
			{OrderNo: "Q9000AA", Status: "processing"},
		},
	}}
	idx := NewOrderIndex(nil)
	rt := newBuiltinRuntime(t, Collaborators{OMS: oms}, idx)

	result := rt.Execute(context.Background(), "lookup_customer_orders",
		map[string]any{"phone": "9876543210"}, testCall())

	require.True(t, result.Success, result.Error)
	orders := result.Data["orders"].([]any)
	require.Len(t, orders, 2)

	indexed, ok := idx.Get(context.Background(), "Q2593VU")
	require.True(t, ok)
	assert.Equal(t, "9876543210", indexed.SourcePhone)
	assert.Equal(t, "shipped", indexed.Status)
}

func TestBuiltin_LookupByOrderNumber(t *testing.T) {
	oms := &fakeOMS{orders: map[string]models.CachedOrder{
		"Q2593VU": {OrderNo: "Q2593VU", Status: "shipped"},
	}}
	rt := newBuiltinRuntime(t, Collaborators{OMS: oms}, nil)

	result := rt.Execute(context.Background(), "lookup_customer_orders",
		map[string]any{"order_no": "Q2593VU"}, testCall())

	require.True(t, result.Success, result.Error)
	orders := result.Data["orders"].([]any)
	require.Len(t, orders, 1)
	assert.Equal(t, "Q2593VU", orders[0].(map[string]any)["order_no"])
}

func TestBuiltin_TrackShipmentResolvesAWBFromOrder(t *testing.T) {
	oms := &fakeOMS{orders: map[string]models.CachedOrder{
		"Q2593VU": {OrderNo: "Q2593VU", AWB: "12345678901"},
	}}
	rt := newBuiltinRuntime(t, Collaborators{OMS: oms, Tracking: fakeTracking{}}, nil)

	result := rt.Execute(context.Background(), "track_shipment",
		map[string]any{"order_no": "Q2593VU"}, testCall())

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "12345678901", result.Data["awb"])
	assert.Equal(t, "in_transit", result.Data["status"])
}

func TestBuiltin_InitiateRefund(t *testing.T) {
	oms := &fakeOMS{}
	rt := newBuiltinRuntime(t, Collaborators{OMS: oms}, nil)

	result := rt.Execute(context.Background(), "initiate_refund",
		map[string]any{"order_no": "Q2593VU", "reason": "damaged item"}, testCall())

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "RFD-001", result.Data["refund_id"])
	assert.Equal(t, 1, oms.refunds)
}

func TestBuiltin_RefundRequiresFields(t *testing.T) {
	rt := newBuiltinRuntime(t, Collaborators{OMS: &fakeOMS{}}, nil)

	result := rt.Execute(context.Background(), "initiate_refund",
		map[string]any{"order_no": "Q2593VU"}, testCall())

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "Invalid input")
}

func TestBuiltin_HandoffToHuman(t *testing.T) {
	handoff := &fakeHandoff{}
	rt := newBuiltinRuntime(t, Collaborators{Handoff: handoff}, nil)

	result := rt.Execute(context.Background(), "handoff_to_human",
		map[string]any{"reason": "legal threat"}, testCall())

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "TKT-9001", result.Data["ticket_ref"])
	assert.Equal(t, 1, handoff.requests)
}

func TestBuiltin_NilCollaboratorsSkipRegistration(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, RegisterBuiltins(reg, Collaborators{Handoff: &fakeHandoff{}}, nil))

	_, ok := reg.Get("lookup_customer_orders")
	assert.False(t, ok)
	_, ok = reg.Get("handoff_to_human")
	assert.True(t, ok)
}

func TestOrderIndex_RoundTripAndTTL(t *testing.T) {
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	indexes := map[string]OrderIndex{
		"memory": NewOrderIndex(nil),
		"redis":  NewOrderIndex(rdb),
	}

	for name, idx := range indexes {
		t.Run(name, func(t *testing.T) {
			idx.Put(ctx, models.CachedOrder{OrderNo: "q2593vu", Status: "shipped", SourcePhone: "9876543210"})

			got, ok := idx.Get(ctx, "Q2593VU")
			require.True(t, ok, "lookup is case-insensitive")
			assert.Equal(t, "shipped", got.Status)
			assert.Equal(t, "9876543210", got.SourcePhone)

			_, ok = idx.Get(ctx, "MISSING")
			assert.False(t, ok)
		})
	}

	mr.FastForward(OrderIndexTTL + time.Second)
	_, ok := indexes["redis"].Get(ctx, "Q2593VU")
	assert.False(t, ok, "index entry expires")
}
