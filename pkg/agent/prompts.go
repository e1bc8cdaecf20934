package agent

import (
	"fmt"
	"strings"

	"github.com/resolvr-ai/resolvr/pkg/models"
)

// Prompt versions. v2 is the default; v1 is kept for experiment arms.
const (
	PromptV1 = "v1"
	PromptV2 = "v2"
)

const contractInstructions = `You must reply with a single JSON object and nothing else. Fields:
- "user_facing_message" (string, required): the reply shown to the customer.
- "intent" (string, required): the customer's intent for this turn.
- "extracted_fields" (object): any facts learned this turn (name, email, phone, order numbers).
- "should_escalate" (boolean, required) and "escalation_reason" (string).
- "ticket_update_payload" (object): {"summary","tags","status","lead_fields","intent_classification"}.
- "tool_calls" (array): [{"name","args"}] for any tools you need.
Optional fields when you are confident: "detected_language", "intent_confidence",
"secondary_intents", "sentiment" {"label","score","emotion"}, "extracted_entities",
"confidence_score", "clarification_needed", "customer_stage",
"resolution_receipt" {"action_taken","reference_id","expected_timeline","next_steps"},
"fcr_achieved".`

var basePrompts = map[string]string{
	PromptV1: `You are a support assistant for a retail business. Answer customer
questions about orders, shipments, returns, refunds, and products. Be brief
and factual. Never invent order details: use tools to look them up. Escalate
to a human when the customer is upset or asks for one.`,
	PromptV2: `You are the customer support agent for a retail business, handling
orders, shipments, returns, refunds, payments, and product questions across
chat channels. Ground every factual claim in tool results or conversation
memory; when you lack data, call a tool rather than guessing. Mirror the
customer's language, including Hindi and Hinglish. Keep replies short enough
for a chat bubble. Escalate when the customer is frustrated, threatens
escalation, or explicitly asks for a human.`,
}

var channelGuidance = map[models.Channel]string{
	models.ChannelWeb:          "Channel: web chat. Rich media cards are supported.",
	models.ChannelWhatsApp:     "Channel: WhatsApp. Keep messages under 1000 characters; emoji are fine; no markdown tables.",
	models.ChannelBusinessChat: "Channel: business chat. Plain text only, formal register.",
}

// BuildSystemPrompt assembles the system prompt for a turn.
func BuildSystemPrompt(channel models.Channel, version string, memory *models.StructuredMemory, proactiveContext, customerContext string) string {
	base, ok := basePrompts[version]
	if !ok {
		base = basePrompts[PromptV2]
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\n")
	if guidance, ok := channelGuidance[channel]; ok {
		b.WriteString(guidance)
		b.WriteString("\n\n")
	}
	if summary := memorySummary(memory); summary != "" {
		b.WriteString("Known customer context:\n")
		b.WriteString(summary)
		b.WriteString("\n")
	}
	if proactiveContext != "" {
		b.WriteString("Proactively detected issues:\n")
		b.WriteString(proactiveContext)
		b.WriteString("\n")
	}
	if customerContext != "" {
		b.WriteString("Customer profile:\n")
		b.WriteString(customerContext)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(contractInstructions)
	return b.String()
}

// memorySummary renders structured memory as a compact bullet list.
func memorySummary(m *models.StructuredMemory) string {
	if m == nil {
		return ""
	}
	var lines []string
	add := func(label, value string) {
		if value != "" {
			lines = append(lines, fmt.Sprintf("- %s: %s", label, value))
		}
	}
	add("name", m.Name)
	add("email", m.Email)
	add("phone", m.Phone)
	add("company", m.Company)
	add("intent so far", m.Intent)
	if len(m.ProductInterest) > 0 {
		add("product interest", strings.Join(m.ProductInterest, ", "))
	}
	if len(m.OrderNumbers) > 0 {
		add("order numbers", strings.Join(m.OrderNumbers, ", "))
	}
	for orderNo, order := range m.OrderDataCache {
		add("order "+orderNo, order.Status)
	}
	return strings.Join(lines, "\n")
}
