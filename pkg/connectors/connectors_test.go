package connectors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resolvr-ai/resolvr/pkg/models"
	"github.com/resolvr-ai/resolvr/pkg/orchestrator"
)

func TestOMSClient_OrderByNumber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/Q2593VU", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(models.CachedOrder{OrderNo: "Q2593VU", Status: "shipped"})
	}))
	defer srv.Close()

	oms := NewOMSClient(Config{OMSBaseURL: srv.URL, APIKey: "secret"})
	order, err := oms.OrderByNumber(context.Background(), "Q2593VU")

	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, "shipped", order.Status)
}

func TestOMSClient_OrderNotFoundIsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	oms := NewOMSClient(Config{OMSBaseURL: srv.URL})
	order, err := oms.OrderByNumber(context.Background(), "NOPE")

	require.NoError(t, err)
	assert.Nil(t, order)
}

func TestOMSClient_OrdersByPhone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "+919876543210", r.URL.Query().Get("phone"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"orders": []models.CachedOrder{{OrderNo: "Q1"}, {OrderNo: "Q2"}},
		})
	}))
	defer srv.Close()

	oms := NewOMSClient(Config{OMSBaseURL: srv.URL})
	orders, err := oms.OrdersByPhone(context.Background(), "+919876543210")

	require.NoError(t, err)
	require.Len(t, orders, 2)
}

func TestOMSClient_ServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	oms := NewOMSClient(Config{OMSBaseURL: srv.URL})
	_, err := oms.OrderByNumber(context.Background(), "Q1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestTicketingClient_CreateAndHandoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tickets":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "conv-1", body["conversation_id"])
			_ = json.NewEncoder(w).Encode(map[string]string{"ticket_id": "TKT-1"})
		case "/tickets/handoff":
			_ = json.NewEncoder(w).Encode(map[string]string{"ticket_ref": "TKT-2"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	tc := NewTicketingClient(Config{TicketingBaseURL: srv.URL})

	id, err := tc.CreateTicket(context.Background(), orchestrator.TicketParams{
		ConversationID: "conv-1", TenantID: "acme", Channel: models.ChannelWeb, Subject: "order_status",
	})
	require.NoError(t, err)
	assert.Equal(t, "TKT-1", id)

	ref, err := tc.RequestHuman(context.Background(), "conv-1", "legal_threat")
	require.NoError(t, err)
	assert.Equal(t, "TKT-2", ref)
}

func TestOutboundWebhook_SendMessage(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/outbound/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	out := NewOutboundWebhook(Config{OutboundBaseURL: srv.URL})
	err := out.SendMessage(context.Background(), "conv-1", "Your order shipped.", models.ChannelWhatsApp)

	require.NoError(t, err)
	assert.Equal(t, "Your order shipped.", got["text"])
	assert.Equal(t, string(models.ChannelWhatsApp), got["channel"])
}

func TestProfileClient_Load(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/customers/ph:919876543210", r.URL.Path)
		_ = json.NewEncoder(w).Encode(models.CustomerProfile{
			CustomerID: "ph:919876543210",
			Name:       "Priya",
			Tier:       "gold",
			OrderCount: 7,
		})
	}))
	defer srv.Close()

	pc := NewProfileClient(Config{Customer360BaseURL: srv.URL})
	profile, err := pc.Load(context.Background(), "ph:919876543210")

	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "Priya", profile.Name)
	assert.Equal(t, "gold", profile.Tier)
}

func TestProfileClient_UnknownCustomerIsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	pc := NewProfileClient(Config{Customer360BaseURL: srv.URL})
	profile, err := pc.Load(context.Background(), "ph:000")

	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestKnowledgeClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "return window", r.URL.Query().Get("q"))
		assert.Equal(t, "acme", r.URL.Query().Get("tenant_id"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"hits": []map[string]any{{"title": "Returns", "snippet": "30 days", "score": 0.91}},
		})
	}))
	defer srv.Close()

	kc := NewKnowledgeClient(Config{KnowledgeBaseURL: srv.URL})
	hits, err := kc.Search(context.Background(), "acme", "return window", 5)

	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Returns", hits[0].Title)
}
