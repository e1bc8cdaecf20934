package models

// Sentiment is the LLM's sentiment read of the user's last message.
// Score is in [-1, 1].
type Sentiment struct {
	Label   string  `json:"label"`
	Score   float64 `json:"score"`
	Emotion string  `json:"emotion,omitempty"`
}

// TicketUpdatePayload carries the ticket mutation the agent requested.
type TicketUpdatePayload struct {
	Summary              string            `json:"summary,omitempty"`
	Tags                 []string          `json:"tags,omitempty"`
	Status               string            `json:"status,omitempty"`
	LeadFields           map[string]string `json:"lead_fields,omitempty"`
	IntentClassification string            `json:"intent_classification,omitempty"`
}

// ToolCallRequest is one tool invocation the agent asked for.
type ToolCallRequest struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ResolutionReceipt summarizes a completed side effect for the user.
type ResolutionReceipt struct {
	ActionTaken      string `json:"action_taken"`
	ReferenceID      string `json:"reference_id,omitempty"`
	ExpectedTimeline string `json:"expected_timeline,omitempty"`
	NextSteps        string `json:"next_steps,omitempty"`
}

// AgentResponse is the parsed form of the LLM response contract. Required
// fields are coerced to safe defaults by the parser; optional VOC fields are
// pointers so downstream checks can distinguish absent from zero.
type AgentResponse struct {
	UserFacingMessage string              `json:"user_facing_message"`
	Intent            string              `json:"intent"`
	ExtractedFields   map[string]any      `json:"extracted_fields,omitempty"`
	ShouldEscalate    bool                `json:"should_escalate"`
	EscalationReason  string              `json:"escalation_reason,omitempty"`
	TicketUpdate      TicketUpdatePayload `json:"ticket_update_payload"`
	ToolCalls         []ToolCallRequest   `json:"tool_calls,omitempty"`

	// Optional VOC enrichments. Absent means the model did not emit them.
	DetectedLanguage     string             `json:"detected_language,omitempty"`
	IntentConfidence     *float64           `json:"intent_confidence,omitempty"`
	SecondaryIntents     []string           `json:"secondary_intents,omitempty"`
	Sentiment            *Sentiment         `json:"sentiment,omitempty"`
	ExtractedEntities    []Entity           `json:"extracted_entities,omitempty"`
	ConfidenceScore      *float64           `json:"confidence_score,omitempty"`
	ClarificationNeeded  bool               `json:"clarification_needed,omitempty"`
	CustomerStage        string             `json:"customer_stage,omitempty"`
	Receipt              *ResolutionReceipt `json:"resolution_receipt,omitempty"`
	FCRAchieved          *bool              `json:"fcr_achieved,omitempty"`
	ChannelPayload       *RichPayload       `json:"channel_payload,omitempty"`
}

// Confidence returns the confidence score, defaulting to 0.75 when the
// model omitted it.
func (r *AgentResponse) Confidence() float64 {
	if r.ConfidenceScore == nil {
		return 0.75
	}
	return *r.ConfidenceScore
}
