package notify

import (
	"fmt"
	"strings"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/resolvr-ai/resolvr/pkg/sla"
)

const maxBlockTextLength = 2900

// BuildSLABreachMessage creates Block Kit blocks for an SLA breach alert.
func BuildSLABreachMessage(alert sla.Alert) []goslack.Block {
	metric := "first response"
	if alert.Metric == sla.MetricResolution {
		metric = "resolution"
	}
	header := fmt.Sprintf(":rotating_light: *SLA breach* — %s overdue", metric)
	detail := fmt.Sprintf("Conversation `%s` (tenant `%s`, tier `%s`)\nElapsed %s against a %s threshold.",
		alert.ConversationID, alert.TenantID, alert.Tier,
		alert.Elapsed.Round(time.Second), alert.Threshold)

	return []goslack.Block{
		section(header),
		section(truncateForSlack(detail)),
	}
}

// EscalationInput carries the facts shown in an escalation notification.
type EscalationInput struct {
	ConversationID string
	TenantID       string
	Channel        string
	Reason         string
	Urgency        string
	Summary        string
}

// BuildEscalationMessage creates Block Kit blocks for an escalation event.
func BuildEscalationMessage(input EscalationInput) []goslack.Block {
	header := fmt.Sprintf(":raising_hand: *Escalated to human* — %s", input.Reason)
	lines := []string{
		fmt.Sprintf("Conversation `%s` (tenant `%s`, channel `%s`)", input.ConversationID, input.TenantID, input.Channel),
	}
	if input.Urgency != "" {
		lines = append(lines, "Urgency: "+input.Urgency)
	}
	if input.Summary != "" {
		lines = append(lines, input.Summary)
	}

	return []goslack.Block{
		section(header),
		section(truncateForSlack(strings.Join(lines, "\n"))),
	}
}

func section(text string) goslack.Block {
	return goslack.NewSectionBlock(
		goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false),
		nil, nil,
	)
}

func truncateForSlack(text string) string {
	if len(text) <= maxBlockTextLength {
		return text
	}
	return text[:maxBlockTextLength] + "…"
}
