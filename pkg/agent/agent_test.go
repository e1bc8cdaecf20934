package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resolvr-ai/resolvr/pkg/config"
	"github.com/resolvr-ai/resolvr/pkg/llm"
	"github.com/resolvr-ai/resolvr/pkg/models"
)

type scriptedLLM struct {
	reply    string
	err      error
	requests []llm.Request
}

func (s *scriptedLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

const goodReply = `{
	"user_facing_message": "Let me check that order for you.",
	"intent": "order_status",
	"should_escalate": false,
	"ticket_update_payload": {"summary": "order status check"},
	"tool_calls": [{"name": "functions.lookup_customer_orders", "args": {"order_no": "Q2593VU"}}],
	"confidence_score": 0.9
}`

func TestParseResponse_StripsFencesAndPrefixes(t *testing.T) {
	raw := "```json\n" + goodReply + "\n```"

	resp, err := ParseResponse(raw)
	require.NoError(t, err)

	assert.Equal(t, "order_status", resp.Intent)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "lookup_customer_orders", resp.ToolCalls[0].Name)
	assert.Equal(t, "Q2593VU", resp.ToolCalls[0].Args["order_no"])
	assert.InDelta(t, 0.9, resp.Confidence(), 0.001)
}

func TestParseResponse_RecoversObjectFromProse(t *testing.T) {
	raw := "Here is the JSON you asked for: " + goodReply

	resp, err := ParseResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "order_status", resp.Intent)
}

func TestParseResponse_SafeDefaults(t *testing.T) {
	resp, err := ParseResponse(`{"user_facing_message": "Hello!"}`)
	require.NoError(t, err)

	assert.Equal(t, "unknown", resp.Intent)
	assert.False(t, resp.ShouldEscalate)
	assert.Empty(t, resp.ToolCalls)
	assert.InDelta(t, 0.75, resp.Confidence(), 0.001, "missing score uses default")
}

func TestParseResponse_ClampsConfidence(t *testing.T) {
	resp, err := ParseResponse(`{"user_facing_message": "x", "confidence_score": 1.7}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, resp.Confidence())
}

func TestParseResponse_Errors(t *testing.T) {
	_, err := ParseResponse("")
	assert.Error(t, err)

	_, err = ParseResponse("not json at all")
	assert.Error(t, err)

	_, err = ParseResponse(`{"intent": "greeting"}`)
	assert.Error(t, err, "no message, escalation, or tool calls")
}

func TestProcess_BuildsPromptAndParses(t *testing.T) {
	client := &scriptedLLM{reply: goodReply}
	core := NewCore(client, config.DefaultLLMConfig(), nil, nil)

	memory := &models.StructuredMemory{Name: "Priya", OrderNumbers: []string{"Q2593VU"}}
	resp, err := core.Process(context.Background(), ProcessInput{
		UserText:      "where is my order",
		History:       []models.Turn{{Role: models.RoleUser, Content: "hi"}, {Role: models.RoleAssistant, Content: "hello"}},
		Memory:        memory,
		Channel:       models.ChannelWhatsApp,
		PromptVersion: PromptV2,
	})
	require.NoError(t, err)
	assert.Equal(t, "order_status", resp.Intent)

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.True(t, req.JSONMode)
	require.GreaterOrEqual(t, len(req.Messages), 4)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "Priya")
	assert.Contains(t, req.Messages[0].Content, "Q2593VU")
	assert.Contains(t, req.Messages[0].Content, "WhatsApp")
	assert.Equal(t, "where is my order", req.Messages[len(req.Messages)-1].Content)
}

func TestProcess_PropagatesLLMFailure(t *testing.T) {
	client := &scriptedLLM{err: fmt.Errorf("provider down")}
	core := NewCore(client, config.DefaultLLMConfig(), nil, nil)

	_, err := core.Process(context.Background(), ProcessInput{UserText: "hi", Channel: models.ChannelWeb})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")
}

func TestProcessWithToolResults_IncludesSummaries(t *testing.T) {
	client := &scriptedLLM{reply: `{"user_facing_message": "Your order Q2593VU is shipped.", "intent": "order_status"}`}
	core := NewCore(client, config.DefaultLLMConfig(), nil, nil)

	resp, err := core.ProcessWithToolResults(context.Background(), RefineInput{
		ProcessInput: ProcessInput{
			UserText: "where is my order",
			Channel:  models.ChannelWeb,
		},
		PreviousReply: "Let me check that order for you.",
		ToolResults: []*models.ToolResult{
			{Tool: "lookup_customer_orders", Success: true, Data: map[string]any{"orders": []any{map[string]any{"order_no": "Q2593VU", "status": "shipped"}}}},
			{Tool: "track_shipment", Success: false, Error: "timeout"},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, resp.UserFacingMessage, "shipped")

	last := client.requests[0].Messages[len(client.requests[0].Messages)-1]
	assert.Contains(t, last.Content, "lookup_customer_orders")
	assert.Contains(t, last.Content, `"success":true`)
	assert.Contains(t, last.Content, "timeout")
}

func TestProcessWithToolResults_FailureCarriesSuggestion(t *testing.T) {
	client := &scriptedLLM{reply: `{"user_facing_message": "Tracking is slow right now, bear with me.", "intent": "order_status"}`}
	core := NewCore(client, config.DefaultLLMConfig(), nil, nil)

	_, err := core.ProcessWithToolResults(context.Background(), RefineInput{
		ProcessInput: ProcessInput{
			UserText: "track my parcel",
			Channel:  models.ChannelWeb,
		},
		PreviousReply: "Let me track that for you.",
		ToolResults: []*models.ToolResult{
			{Tool: "track_shipment", Success: false, Error: "context deadline exceeded"},
		},
	})
	require.NoError(t, err)

	last := client.requests[0].Messages[len(client.requests[0].Messages)-1]
	assert.Contains(t, last.Content, `"failure_kind":"timeout"`)
	assert.Contains(t, last.Content, "retrying")
}

func TestBuildToolResultsFallback(t *testing.T) {
	text := BuildToolResultsFallback([]*models.ToolResult{
		{Tool: "lookup_customer_orders", Success: true, Data: map[string]any{
			"orders": []any{map[string]any{"order_no": "Q2593VU", "status": "shipped", "eta": "Thursday"}},
		}},
		{Tool: "track_shipment", Success: false, Error: "timeout"},
	})

	assert.Contains(t, text, "Q2593VU")
	assert.Contains(t, text, "shipped")
	assert.Contains(t, text, "Thursday")
	assert.NotContains(t, text, "timeout", "failed tools are omitted")
}

func TestBuildToolResultsFallback_AllFailed(t *testing.T) {
	text := BuildToolResultsFallback([]*models.ToolResult{
		{Tool: "track_shipment", Success: false, Error: "timeout"},
	})
	assert.Contains(t, text, "could not retrieve")
}

func TestStaticFallback(t *testing.T) {
	resp, ok := StaticFallback("Order_Status", "support@example.com")
	require.True(t, ok)
	assert.Contains(t, resp.UserFacingMessage, "support@example.com")
	assert.Equal(t, "order_status", resp.Intent)
	assert.Less(t, resp.Confidence(), 0.5, "static fallbacks are low-confidence")

	_, ok = StaticFallback("no_such_intent", "")
	assert.False(t, ok)
}
