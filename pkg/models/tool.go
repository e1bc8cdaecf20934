package models

import "time"

// ToolResult is the typed envelope every tool handler returns through the
// runtime. Exactly one of Data or Error is meaningful, selected by Success.
type ToolResult struct {
	Tool       string         `json:"tool"`
	Success    bool           `json:"success"`
	Data       map[string]any `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
	Cached     bool           `json:"cached,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// ToolCallLog is the structured log record emitted for every tool execution.
// Args are PII-redacted before logging; result data is never logged.
type ToolCallLog struct {
	Tool           string         `json:"tool"`
	Version        string         `json:"version"`
	Args           map[string]any `json:"args"`
	Success        bool           `json:"success"`
	Error          string         `json:"error,omitempty"`
	DurationMs     int64          `json:"duration_ms"`
	Timestamp      time.Time      `json:"timestamp"`
	RequestID      string         `json:"request_id,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	TenantID       string         `json:"tenant_id,omitempty"`
}

// FailureKind classifies a tool failure for the agent's benefit.
type FailureKind string

const (
	FailureTimeout    FailureKind = "timeout"
	FailureValidation FailureKind = "validation_error"
	FailureAPI        FailureKind = "api_error"
	FailureUnknown    FailureKind = "unknown"
)

// FailureContext is a human-oriented classification of a failed tool call
// that the agent can embed in its reply.
type FailureContext struct {
	Kind       FailureKind `json:"kind"`
	Suggestion string      `json:"suggestion"`
}
