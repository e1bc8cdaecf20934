package models

import "time"

// UrgencyLevel orders message urgency from low to critical.
type UrgencyLevel string

const (
	UrgencyLow      UrgencyLevel = "low"
	UrgencyMedium   UrgencyLevel = "medium"
	UrgencyHigh     UrgencyLevel = "high"
	UrgencyCritical UrgencyLevel = "critical"
)

// urgencyRank maps levels to a comparable order.
var urgencyRank = map[UrgencyLevel]int{
	UrgencyLow:      0,
	UrgencyMedium:   1,
	UrgencyHigh:     2,
	UrgencyCritical: 3,
}

// Bump returns the level one step above u, capped at critical.
func (u UrgencyLevel) Bump() UrgencyLevel {
	switch u {
	case UrgencyLow:
		return UrgencyMedium
	case UrgencyMedium:
		return UrgencyHigh
	default:
		return UrgencyCritical
	}
}

// AtLeast reports whether u is at or above other.
func (u UrgencyLevel) AtLeast(other UrgencyLevel) bool {
	return urgencyRank[u] >= urgencyRank[other]
}

// RiskFlag marks a deterministic risk signal found in an inbound message.
type RiskFlag string

const (
	RiskLegalThreat       RiskFlag = "legal_threat"
	RiskSocialMediaThreat RiskFlag = "social_media_threat"
	RiskPolicyException   RiskFlag = "policy_exception_requested"
	RiskRepeatComplaint   RiskFlag = "repeat_complaint"
)

// EntityType classifies an extracted entity.
type EntityType string

const (
	EntityOrderNumber EntityType = "order_number"
	EntityPhone       EntityType = "phone"
	EntityEmail       EntityType = "email"
	EntityAmount      EntityType = "amount"
	EntityReturnID    EntityType = "return_id"
	EntityPaymentID   EntityType = "payment_id"
	EntityAWB         EntityType = "awb"
)

// Entity is a deterministic extraction from raw message text.
// Value is normalized; RawText preserves the matched input.
type Entity struct {
	Type       EntityType `json:"type"`
	Value      string     `json:"value"`
	RawText    string     `json:"raw_text"`
	Confidence float64    `json:"confidence"`
}

// DetectedLanguage is one language hypothesis for the message text.
type DetectedLanguage struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
	Script     string  `json:"script,omitempty"`
}

// Urgency is the urgency classification with the signals that produced it.
type Urgency struct {
	Level   UrgencyLevel `json:"level"`
	Signals []string     `json:"signals,omitempty"`
}

// VOCResult is the output of the deterministic pre-processor for one turn.
type VOCResult struct {
	DetectedLanguages []DetectedLanguage `json:"detected_languages"`
	Entities          []Entity           `json:"entities"`
	Urgency           Urgency            `json:"urgency"`
	RiskFlags         []RiskFlag         `json:"risk_flags,omitempty"`
}

// HasRiskFlag reports whether flag was raised.
func (r *VOCResult) HasRiskFlag(flag RiskFlag) bool {
	for _, f := range r.RiskFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// EntitiesOfType returns all entities of the given type.
func (r *VOCResult) EntitiesOfType(t EntityType) []Entity {
	var out []Entity
	for _, e := range r.Entities {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// VOCRecord is the per-turn voice-of-customer record persisted for analytics.
// MessageID is conversationID + "-" + turnCount. Retention is 90 days.
type VOCRecord struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	TenantID       string    `json:"tenant_id"`
	Channel        Channel   `json:"channel"`
	Text           string    `json:"text"`
	Result         VOCResult `json:"result"`
	Intent         string    `json:"intent,omitempty"`
	SentimentScore *float64  `json:"sentiment_score,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
