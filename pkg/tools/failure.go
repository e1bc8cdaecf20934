package tools

import (
	"strings"

	"github.com/resolvr-ai/resolvr/pkg/models"
)

// ClassifyFailure inspects a failed result and produces the failure context
// the agent embeds in its reply. Returns nil for successful results.
func ClassifyFailure(result *models.ToolResult) *models.FailureContext {
	if result == nil || result.Success {
		return nil
	}
	msg := strings.ToLower(result.Error)

	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return &models.FailureContext{
			Kind:       models.FailureTimeout,
			Suggestion: "The backend took too long to respond. Let the customer know you are retrying and ask them to wait a moment.",
		}
	case strings.Contains(msg, "invalid input") || strings.Contains(msg, "validation"):
		return &models.FailureContext{
			Kind:       models.FailureValidation,
			Suggestion: "Some details look missing or malformed. Ask the customer to confirm the order number or contact details.",
		}
	case strings.Contains(msg, "unavailable") || strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "status 5") || strings.Contains(msg, "api"):
		return &models.FailureContext{
			Kind:       models.FailureAPI,
			Suggestion: "The backing service is having trouble right now. Offer to follow up or hand off to a human agent.",
		}
	default:
		return &models.FailureContext{
			Kind:       models.FailureUnknown,
			Suggestion: "Something unexpected went wrong. Apologize and offer an alternative way to help.",
		}
	}
}
