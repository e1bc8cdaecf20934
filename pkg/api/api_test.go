package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resolvr-ai/resolvr/pkg/audit"
	"github.com/resolvr-ai/resolvr/pkg/config"
	"github.com/resolvr-ai/resolvr/pkg/convstore"
	"github.com/resolvr-ai/resolvr/pkg/flows"
	"github.com/resolvr-ai/resolvr/pkg/health"
	"github.com/resolvr-ai/resolvr/pkg/models"
	"github.com/resolvr-ai/resolvr/pkg/piivault"
	"github.com/resolvr-ai/resolvr/pkg/tools"
)

const testAdminKey = "test-admin-key"

type fakePool struct {
	accepting bool
	submitted []*models.InboundMessage
}

func (p *fakePool) Submit(msg *models.InboundMessage) bool {
	if !p.accepting {
		return false
	}
	p.submitted = append(p.submitted, msg)
	return true
}

type fakeKnowledge struct {
	hits []tools.KnowledgeHit
}

func (k *fakeKnowledge) Search(_ context.Context, _, _ string, limit int) ([]tools.KnowledgeHit, error) {
	if len(k.hits) > limit {
		return k.hits[:limit], nil
	}
	return k.hits, nil
}

type testEnv struct {
	router *gin.Engine
	pool   *fakePool
	store  convstore.Store
	vault  piivault.Vault
	audit  audit.Chain
	flows  flows.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Tenants: config.NewTenantRegistry(map[string]*config.TenantConfig{
			config.DefaultTenantID: config.DefaultTenantConfig(config.DefaultTenantID),
			"acme":                 config.DefaultTenantConfig("acme"),
		}),
	}
	vault, err := piivault.New(nil, bytes.Repeat([]byte("k"), 32))
	require.NoError(t, err)

	env := &testEnv{
		pool:  &fakePool{accepting: true},
		store: convstore.New(nil),
		vault: vault,
		audit: audit.NewMemoryChain(),
		flows: flows.NewStore(nil),
	}
	srv := NewServer(Deps{
		Config:    cfg,
		AdminKey:  testAdminKey,
		Pool:      env.pool,
		Store:     env.store,
		Flows:     env.flows,
		Vault:     vault,
		Audit:     env.audit,
		Health:    health.NewTracker(5, 0, nil),
		Knowledge: &fakeKnowledge{hits: []tools.KnowledgeHit{{Title: "Returns policy", Snippet: "30 days", Score: 0.9}}},
	})
	env.router = srv.Router()
	return env
}

func (e *testEnv) do(method, path string, body any, admin bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("X-Admin-Key", testAdminKey)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func webhookBody(convID, text string) map[string]any {
	return map[string]any{
		"conversation_id": convID,
		"tenant_id":       "acme",
		"visitor_id":      "visitor-1",
		"message":         map[string]any{"text": text},
	}
}

func TestWebhook_AcceptsAndQueues(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/webhooks/web", webhookBody("conv-1", "hello"), false)

	require.Equal(t, http.StatusAccepted, w.Code)
	body := decode(t, w)
	assert.Equal(t, "accepted", body["status"])
	assert.NotEmpty(t, body["request_id"])
	require.Len(t, env.pool.submitted, 1)
	msg := env.pool.submitted[0]
	assert.Equal(t, models.ChannelWeb, msg.Channel)
	assert.Equal(t, "conv-1", msg.ConversationID)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestWebhook_UnknownChannel(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/webhooks/carrier-pigeon", webhookBody("conv-1", "hi"), false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhook_MissingFields(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/webhooks/web", map[string]any{"conversation_id": "conv-1"}, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhook_UnknownTenant(t *testing.T) {
	env := newTestEnv(t)
	body := webhookBody("conv-1", "hi")
	body["tenant_id"] = "nobody"
	w := env.do(http.MethodPost, "/webhooks/web", body, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhook_DefaultsTenant(t *testing.T) {
	env := newTestEnv(t)
	body := webhookBody("conv-1", "hi")
	delete(body, "tenant_id")

	w := env.do(http.MethodPost, "/webhooks/web", body, false)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, env.pool.submitted, 1)
	assert.Equal(t, config.DefaultTenantID, env.pool.submitted[0].TenantID)
}

func TestWebhook_PoolNotAccepting(t *testing.T) {
	env := newTestEnv(t)
	env.pool.accepting = false
	w := env.do(http.MethodPost, "/webhooks/web", webhookBody("conv-1", "hi"), false)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdmin_RequiresKey(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/admin/flows", nil, false)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/flows", nil)
	req.Header.Set("X-Admin-Key", "wrong")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdmin_EmptyKeyLocksSurface(t *testing.T) {
	srv := NewServer(Deps{AdminKey: ""})
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/admin/flows", nil)
	req.Header.Set("X-Admin-Key", "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdmin_FlowLifecycle(t *testing.T) {
	env := newTestEnv(t)

	created := env.do(http.MethodPost, "/admin/flows?tenant_id=acme", map[string]any{
		"name": "refund-escalation",
		"steps": []map[string]any{
			{"id": "s1", "type": "message", "message": "Let me check that refund."},
		},
	}, true)
	require.Equal(t, http.StatusCreated, created.Code)
	var flow flows.Flow
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &flow))
	assert.NotEmpty(t, flow.ID)
	assert.Equal(t, 1, flow.Version)
	assert.Equal(t, "acme", flow.TenantID)

	got := env.do(http.MethodGet, "/admin/flows/"+flow.ID+"?tenant_id=acme", nil, true)
	require.Equal(t, http.StatusOK, got.Code)

	flow.Name = "refund-escalation-v2"
	updated := env.do(http.MethodPut, "/admin/flows/"+flow.ID+"?tenant_id=acme", flow, true)
	require.Equal(t, http.StatusOK, updated.Code)
	var after flows.Flow
	require.NoError(t, json.Unmarshal(updated.Body.Bytes(), &after))
	assert.Equal(t, 2, after.Version)

	listed := env.do(http.MethodGet, "/admin/flows?tenant_id=acme", nil, true)
	require.Equal(t, http.StatusOK, listed.Code)

	deleted := env.do(http.MethodDelete, "/admin/flows/"+flow.ID+"?tenant_id=acme", nil, true)
	require.Equal(t, http.StatusOK, deleted.Code)

	missing := env.do(http.MethodGet, "/admin/flows/"+flow.ID+"?tenant_id=acme", nil, true)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestAdmin_FlowNotFound(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/admin/flows/nope", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdmin_DeleteConversationErasesEverything(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv := models.NewConversation("conv-gdpr", "acme", "visitor-1", models.ChannelWeb)
	require.NoError(t, env.store.Save(ctx, conv))
	token, err := env.vault.Tokenize(ctx, "conv-gdpr", "email", piivault.SeverityHigh, "user@example.com")
	require.NoError(t, err)

	w := env.do(http.MethodDelete, "/admin/conversations/conv-gdpr", nil, true)
	require.Equal(t, http.StatusOK, w.Code)

	gone, err := env.store.Get(ctx, "conv-gdpr")
	require.NoError(t, err)
	assert.Nil(t, gone)
	_, ok := env.vault.Detokenize(ctx, token)
	assert.False(t, ok)

	events, err := env.audit.Query(ctx, audit.Filter{Category: audit.CategoryGDPR})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "conversation_erased", events[0].Action)
}

func TestAdmin_DeleteConversationNotFound(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodDelete, "/admin/conversations/ghost", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCopilot_Context(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv := models.NewConversation("conv-ctx", "acme", "visitor-1", models.ChannelWeb)
	conv.Turns = append(conv.Turns, models.Turn{Role: models.RoleUser, Content: "where is my order"})
	require.NoError(t, env.store.Save(ctx, conv))

	w := env.do(http.MethodGet, "/copilot/context/conv-ctx", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Contains(t, body, "conversation")
}

func TestCopilot_ContextNotFound(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/copilot/context/ghost", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCopilot_SuggestWithoutAgent(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/copilot/suggest", map[string]any{"conversation_id": "conv-1"}, true)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCopilot_KnowledgeSearch(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/copilot/knowledge-search", map[string]any{
		"tenant_id": "acme",
		"query":     "return window",
	}, true)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	hits, ok := body["hits"].([]any)
	require.True(t, ok)
	require.Len(t, hits, 1)
}

func TestCopilot_KnowledgeSearchRequiresQuery(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/copilot/knowledge-search", map[string]any{"tenant_id": "acme"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthz_Healthy(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/healthz", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
}

func TestHealthz_FullDegradationReturns503(t *testing.T) {
	tracker := health.NewTracker(2, 0, nil)
	for _, dep := range []string{health.DepOMS, health.DepLLM, health.DepTracking} {
		tracker.RecordFailure(dep)
		tracker.RecordFailure(dep)
	}
	srv := NewServer(Deps{Health: tracker})
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
