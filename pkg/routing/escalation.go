package routing

import (
	"fmt"
	"strings"

	"github.com/resolvr-ai/resolvr/pkg/config"
	"github.com/resolvr-ai/resolvr/pkg/metrics"
	"github.com/resolvr-ai/resolvr/pkg/models"
)

// EscalationInput bundles the per-turn signals the policy inspects.
type EscalationInput struct {
	Response           *models.AgentResponse
	VOC                *models.VOCResult
	MessageText        string
	ClarificationCount int
	TurnCount          int
	Channel            models.Channel
}

// EscalationPolicy evaluates the ordered escalation checks for a tenant.
type EscalationPolicy struct {
	metrics *metrics.Metrics // optional
}

// NewEscalationPolicy creates a policy. m may be nil.
func NewEscalationPolicy(m *metrics.Metrics) *EscalationPolicy {
	return &EscalationPolicy{metrics: m}
}

// Evaluate runs the checks in order and returns the first matching reason.
// The checks, in order: agent request, escalation intent, urgency, the four
// risk flags, sentiment, frustration keywords, and conversation-length
// limits.
func (p *EscalationPolicy) Evaluate(tenant *config.TenantConfig, in EscalationInput) (bool, string) {
	esc := tenant.Escalation

	if in.Response.ShouldEscalate {
		reason := in.Response.EscalationReason
		if reason == "" {
			reason = "Agent requested escalation"
		}
		return p.trigger("agent_requested", reason)
	}

	intent := strings.ToLower(in.Response.Intent)
	for _, e := range esc.EscalationIntents {
		if intent == strings.ToLower(e) {
			return p.trigger("escalation_intent", fmt.Sprintf("Intent %q requires a human", in.Response.Intent))
		}
	}

	if in.VOC != nil {
		for _, level := range esc.UrgencyAutoEscalate {
			if in.VOC.Urgency.Level == level {
				return p.trigger("urgency", fmt.Sprintf("Urgency level %s", level))
			}
		}
		for _, flag := range esc.RiskFlagAutoEscalate {
			if in.VOC.HasRiskFlag(flag) {
				return p.trigger("risk_flag_"+string(flag), fmt.Sprintf("Risk flag %s detected", flag))
			}
		}
	}

	if s := in.Response.Sentiment; s != nil && s.Score < esc.SentimentEscalationThreshold {
		return p.trigger("negative_sentiment", fmt.Sprintf("Sentiment score %.2f below threshold", s.Score))
	}

	lower := strings.ToLower(in.MessageText)
	for _, kw := range esc.FrustrationKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return p.trigger("frustration_keywords", fmt.Sprintf("Frustration keyword %q", kw))
		}
	}

	if esc.MaxClarifications > 0 && in.ClarificationCount >= esc.MaxClarifications {
		return p.trigger("max_clarifications", fmt.Sprintf("%d clarification attempts exhausted", in.ClarificationCount))
	}
	policy := tenant.ChannelPolicy(in.Channel)
	if policy.MaxTurnsBeforeEscalation > 0 && in.TurnCount >= policy.MaxTurnsBeforeEscalation {
		return p.trigger("max_turns", fmt.Sprintf("Conversation exceeded %d turns", policy.MaxTurnsBeforeEscalation))
	}

	return false, ""
}

func (p *EscalationPolicy) trigger(label, reason string) (bool, string) {
	if p.metrics != nil {
		p.metrics.EscalationsTriggered.WithLabelValues(label).Inc()
	}
	return true, reason
}
