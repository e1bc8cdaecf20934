// Package routing decides what happens to an agent response after the LLM:
// confidence gating, the ordered escalation policy, and skill-based routing
// of escalated conversations to human agents.
package routing

import (
	"fmt"
	"log/slog"

	"github.com/resolvr-ai/resolvr/pkg/models"
)

// Confidence thresholds. At or above high the response passes untouched;
// between medium and high it carries a soft disclaimer; below medium the
// caller gets one clarification attempt before escalation.
const (
	ConfidenceHigh   = 0.8
	ConfidenceMedium = 0.5
)

// disclaimers are appended to medium-confidence replies, keyed by detected
// language.
var disclaimers = map[string]string{
	"en":       "Please double-check this with our support team if anything looks off.",
	"hi":       "कृपया कोई भी संदेह होने पर हमारी सहायता टीम से पुष्टि कर लें।",
	"hinglish": "Agar kuch galat lage toh please humari support team se confirm kar lena.",
}

// ApplyConfidence mutates the response according to its confidence score.
// Low-confidence responses are allowed through exactly once; a second
// low-confidence turn escalates.
func ApplyConfidence(resp *models.AgentResponse, clarificationCount int) {
	score := resp.Confidence()

	switch {
	case score >= ConfidenceHigh:
		return
	case score >= ConfidenceMedium:
		resp.UserFacingMessage += "\n\n" + disclaimerFor(resp.DetectedLanguage)
	case clarificationCount == 0:
		slog.Debug("Low confidence response allowed through for clarification",
			"score", score)
	default:
		resp.ShouldEscalate = true
		resp.EscalationReason = fmt.Sprintf("Low confidence (%.2f) after clarification attempt", score)
	}
}

func disclaimerFor(language string) string {
	if d, ok := disclaimers[language]; ok {
		return d
	}
	return disclaimers["en"]
}
