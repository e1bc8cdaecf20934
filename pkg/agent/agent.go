// Package agent is the LLM-facing core: it renders prompts, invokes the
// model under the structured response contract, and parses the result. Tool
// execution and policy live elsewhere; this package only talks to the model.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/resolvr-ai/resolvr/pkg/config"
	"github.com/resolvr-ai/resolvr/pkg/health"
	"github.com/resolvr-ai/resolvr/pkg/llm"
	"github.com/resolvr-ai/resolvr/pkg/metrics"
	"github.com/resolvr-ai/resolvr/pkg/models"
	"github.com/resolvr-ai/resolvr/pkg/tools"
)

// historyLimit bounds how many prior turns are sent to the model.
const historyLimit = 12

// ProcessInput carries everything the first LLM call needs for one turn.
type ProcessInput struct {
	UserText         string
	History          []models.Turn
	Memory           *models.StructuredMemory
	Channel          models.Channel
	PromptVersion    string
	RequestID        string
	ProactiveContext string
	CustomerContext  string
}

// RefineInput extends ProcessInput with the tool results to fold into a
// refined reply.
type RefineInput struct {
	ProcessInput
	PreviousReply string
	ToolResults   []*models.ToolResult
}

// HealthRecorder receives LLM success/failure signals. Satisfied by the
// health tracker; nil disables recording.
type HealthRecorder interface {
	RecordSuccess(name string)
	RecordFailure(name string)
}

// Core invokes the model under the response contract.
type Core struct {
	client  llm.Client
	cfg     *config.LLMConfig
	metrics *metrics.Metrics // optional
	health  HealthRecorder   // optional
}

// NewCore wires the agent core. m and recorder may be nil.
func NewCore(client llm.Client, cfg *config.LLMConfig, m *metrics.Metrics, recorder HealthRecorder) *Core {
	return &Core{client: client, cfg: cfg, metrics: m, health: recorder}
}

// Process runs the first LLM call for a turn.
func (c *Core) Process(ctx context.Context, in ProcessInput) (*models.AgentResponse, error) {
	messages := c.buildMessages(in)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: in.UserText})
	return c.complete(ctx, "process", messages)
}

// ProcessWithToolResults runs the refinement call, folding tool outcomes
// into the final reply.
func (c *Core) ProcessWithToolResults(ctx context.Context, in RefineInput) (*models.AgentResponse, error) {
	messages := c.buildMessages(in.ProcessInput)
	messages = append(messages,
		llm.Message{Role: llm.RoleUser, Content: in.UserText},
		llm.Message{Role: llm.RoleAssistant, Content: in.PreviousReply},
		llm.Message{Role: llm.RoleUser, Content: toolResultsPrompt(in.ToolResults)},
	)
	return c.complete(ctx, "refine", messages)
}

func (c *Core) buildMessages(in ProcessInput) []llm.Message {
	system := BuildSystemPrompt(in.Channel, in.PromptVersion, in.Memory, in.ProactiveContext, in.CustomerContext)
	messages := []llm.Message{{Role: llm.RoleSystem, Content: system}}

	history := in.History
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	for _, turn := range history {
		role := llm.RoleUser
		if turn.Role == models.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Content})
	}
	return messages
}

func (c *Core) complete(ctx context.Context, kind string, messages []llm.Message) (*models.AgentResponse, error) {
	raw, err := c.client.Complete(ctx, llm.Request{Messages: messages, JSONMode: true})
	if err != nil {
		c.record(kind, "error")
		if c.health != nil {
			c.health.RecordFailure(health.DepLLM)
		}
		return nil, fmt.Errorf("llm %s call: %w", kind, err)
	}
	if c.health != nil {
		c.health.RecordSuccess(health.DepLLM)
	}

	resp, err := ParseResponse(raw)
	if err != nil {
		c.record(kind, "parse_error")
		slog.Warn("Model response failed contract parsing",
			"kind", kind, "error", err, "raw_prefix", prefix(raw, 120))
		return nil, err
	}
	c.record(kind, "ok")
	return resp, nil
}

func (c *Core) record(kind, status string) {
	if c.metrics != nil {
		c.metrics.LLMCalls.WithLabelValues(kind, status).Inc()
	}
}

// toolResultsPrompt renders a structured summary of each tool result for the
// refinement call.
func toolResultsPrompt(results []*models.ToolResult) string {
	var b strings.Builder
	b.WriteString("Tool results for your previous reply. Produce the final customer message, folding these in:\n")
	for _, result := range results {
		if result == nil {
			continue
		}
		entry := map[string]any{
			"tool":    result.Tool,
			"success": result.Success,
		}
		if result.Success {
			entry["data"] = result.Data
		} else {
			entry["error"] = result.Error
			if fc := tools.ClassifyFailure(result); fc != nil {
				entry["failure_kind"] = fc.Kind
				entry["suggestion"] = fc.Suggestion
			}
		}
		encoded, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		b.Write(encoded)
		b.WriteString("\n")
	}
	return b.String()
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
