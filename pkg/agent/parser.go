package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/resolvr-ai/resolvr/pkg/models"
)

// ParseResponse turns raw model output into the response contract. Code
// fences are stripped, the JSON is parsed strictly, required fields are
// coerced to safe defaults, and tool names lose any "functions." prefix the
// model may have invented.
func ParseResponse(raw string) (*models.AgentResponse, error) {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("empty model response")
	}

	var resp models.AgentResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return nil, fmt.Errorf("parsing model response: %w", err)
	}

	if resp.Intent == "" {
		resp.Intent = "unknown"
	}
	if resp.UserFacingMessage == "" && !resp.ShouldEscalate && len(resp.ToolCalls) == 0 {
		return nil, fmt.Errorf("model response carries no message, escalation, or tool calls")
	}

	calls := resp.ToolCalls[:0]
	for _, call := range resp.ToolCalls {
		call.Name = strings.TrimPrefix(call.Name, "functions.")
		if call.Name == "" {
			continue
		}
		if call.Args == nil {
			call.Args = map[string]any{}
		}
		calls = append(calls, call)
	}
	resp.ToolCalls = calls

	if score := resp.ConfidenceScore; score != nil {
		clamped := clamp01(*score)
		resp.ConfidenceScore = &clamped
	}
	return &resp, nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag, and trims to the outermost JSON object.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if idx := strings.Index(s, "\n"); idx >= 0 && !strings.HasPrefix(s, "{") {
			// Drop a language tag like "json".
			s = s[idx+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	// Some models prepend prose; recover the outermost object.
	if !strings.HasPrefix(s, "{") {
		start := strings.Index(s, "{")
		end := strings.LastIndex(s, "}")
		if start >= 0 && end > start {
			s = s[start : end+1]
		}
	}
	return s
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
