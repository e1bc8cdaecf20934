package orchestrator

import (
	"fmt"
	"strings"

	"github.com/resolvr-ai/resolvr/pkg/models"
)

// buildEscalationSummary concatenates everything a human agent needs at
// pickup: urgency, risk flags, language, sentiment, customer stage, and the
// conversation length.
func buildEscalationSummary(conv *models.Conversation, resp *models.AgentResponse, vocResult *models.VOCResult) string {
	var parts []string

	if resp.EscalationReason != "" {
		parts = append(parts, "Reason: "+resp.EscalationReason)
	}
	if conv.PrimaryIntent != "" {
		parts = append(parts, "Intent: "+conv.PrimaryIntent)
	}
	if vocResult != nil {
		if vocResult.Urgency.Level != "" {
			parts = append(parts, "Urgency: "+string(vocResult.Urgency.Level))
		}
		if len(vocResult.RiskFlags) > 0 {
			flags := make([]string, 0, len(vocResult.RiskFlags))
			for _, f := range vocResult.RiskFlags {
				flags = append(flags, string(f))
			}
			parts = append(parts, "Risk flags: "+strings.Join(flags, ", "))
		}
		if lang := primaryLanguage(vocResult); lang != "" && lang != "en" {
			parts = append(parts, "Language: "+lang)
		}
	}
	if resp.Sentiment != nil {
		parts = append(parts, fmt.Sprintf("Sentiment: %s (%.2f)", resp.Sentiment.Label, resp.Sentiment.Score))
	}
	if resp.CustomerStage != "" {
		parts = append(parts, "Customer stage: "+resp.CustomerStage)
	}
	parts = append(parts, fmt.Sprintf("Turns so far: %d", conv.TurnCount))

	return strings.Join(parts, ". ")
}

func primaryLanguage(vocResult *models.VOCResult) string {
	best := ""
	bestConf := 0.0
	for _, l := range vocResult.DetectedLanguages {
		if l.Confidence > bestConf {
			best, bestConf = l.Language, l.Confidence
		}
	}
	return best
}
