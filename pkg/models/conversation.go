// Package models defines the shared domain types exchanged between the
// orchestrator, stores, and services. Types here are plain data; behavior
// lives in the component packages.
package models

import (
	"time"
)

// ConversationState is the lifecycle state of a conversation.
type ConversationState string

// Conversation states. RESOLVED and ESCALATED are terminal.
const (
	StateNew               ConversationState = "NEW"
	StateActiveQA          ConversationState = "ACTIVE_QA"
	StateOrderInquiry      ConversationState = "ORDER_INQUIRY"
	StateShipmentTracking  ConversationState = "SHIPMENT_TRACKING"
	StateReturnRefund      ConversationState = "RETURN_REFUND"
	StateProductInquiry    ConversationState = "PRODUCT_INQUIRY"
	StateLeadQualification ConversationState = "LEAD_QUALIFICATION"
	StateMeetingBooking    ConversationState = "MEETING_BOOKING"
	StateSupportTriage     ConversationState = "SUPPORT_TRIAGE"
	StateResolved          ConversationState = "RESOLVED"
	StateEscalated         ConversationState = "ESCALATED"
)

// IsTerminal reports whether the state admits no further transitions.
func (s ConversationState) IsTerminal() bool {
	return s == StateResolved || s == StateEscalated
}

// TurnRole identifies the author of a conversation turn.
type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
	RoleSystem    TurnRole = "system"
)

// Turn is a single message within a conversation.
type Turn struct {
	Role      TurnRole  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// CachedOrder is an order snapshot kept in structured memory and in the
// short-lived order index. SourcePhone records the phone number the order
// was originally looked up with, for cross-channel prefetch joins.
type CachedOrder struct {
	OrderNo     string    `json:"order_no"`
	Status      string    `json:"status"`
	Items       []string  `json:"items,omitempty"`
	AmountPaise int64     `json:"amount_paise,omitempty"`
	AWB         string    `json:"awb,omitempty"`
	Courier     string    `json:"courier,omitempty"`
	ETA         string    `json:"eta,omitempty"`
	PlacedAt    time.Time `json:"placed_at,omitempty"`
	SourcePhone string    `json:"_sourcePhone,omitempty"`
}

// StructuredMemory is the durable per-conversation key-value memory.
// Known fields are typed; everything else goes to CustomFields.
type StructuredMemory struct {
	Name            string                 `json:"name,omitempty"`
	Email           string                 `json:"email,omitempty"`
	Phone           string                 `json:"phone,omitempty"`
	Company         string                 `json:"company,omitempty"`
	Intent          string                 `json:"intent,omitempty"`
	ProductInterest []string               `json:"productInterest,omitempty"`
	OrderNumbers    []string               `json:"orderNumbers,omitempty"`
	OrderDataCache  map[string]CachedOrder `json:"orderDataCache,omitempty"`
	// PIITokens maps a PII type to its vault token so the encrypted copy
	// can be referenced and purged per conversation.
	PIITokens    map[string]string `json:"piiTokens,omitempty"`
	CustomFields map[string]any    `json:"customFields,omitempty"`
}

// AddPIIToken records the vault token for a PII type.
func (m *StructuredMemory) AddPIIToken(piiType, token string) {
	if m.PIITokens == nil {
		m.PIITokens = make(map[string]string)
	}
	m.PIITokens[piiType] = token
}

// Set assigns a value to a known field by name, or to CustomFields otherwise.
// Empty string values are ignored so a later turn cannot erase earlier facts.
func (m *StructuredMemory) Set(field string, value any) {
	s, isString := value.(string)
	if isString && s == "" {
		return
	}
	switch field {
	case "name":
		if isString {
			m.Name = s
		}
	case "email":
		if isString {
			m.Email = s
		}
	case "phone":
		if isString {
			m.Phone = s
		}
	case "company":
		if isString {
			m.Company = s
		}
	case "intent":
		if isString {
			m.Intent = s
		}
	default:
		if m.CustomFields == nil {
			m.CustomFields = make(map[string]any)
		}
		m.CustomFields[field] = value
	}
}

// AddOrderNumber appends an order number if it is not already present.
func (m *StructuredMemory) AddOrderNumber(orderNo string) {
	for _, existing := range m.OrderNumbers {
		if existing == orderNo {
			return
		}
	}
	m.OrderNumbers = append(m.OrderNumbers, orderNo)
}

// CacheOrder stores an order snapshot under its order number.
func (m *StructuredMemory) CacheOrder(order CachedOrder) {
	if m.OrderDataCache == nil {
		m.OrderDataCache = make(map[string]CachedOrder)
	}
	m.OrderDataCache[order.OrderNo] = order
}

// Conversation is the durable record owned by the conversation store.
// The orchestrator holds a short-lived mutable reference during pipeline
// execution and saves it exactly once per message.
type Conversation struct {
	ID                    string            `json:"id"`
	TenantID              string            `json:"tenant_id"`
	State                 ConversationState `json:"state"`
	Turns                 []Turn            `json:"turns"`
	Memory                StructuredMemory  `json:"structured_memory"`
	TicketID              string            `json:"ticket_id,omitempty"`
	ClarificationCount    int               `json:"clarification_count"`
	TurnCount             int               `json:"turn_count"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
	VisitorID             string            `json:"visitor_id,omitempty"`
	EndedAt               *time.Time        `json:"ended_at,omitempty"`
	EndedBy               string            `json:"ended_by,omitempty"`
	CSATRating            *int              `json:"csat_rating,omitempty"`
	PrimaryIntent         string            `json:"primary_intent,omitempty"`
	SourceChannel         Channel           `json:"source_channel,omitempty"`
	LinkedConversationIDs []string          `json:"linked_conversation_ids,omitempty"`
	CustomerID            string            `json:"customer_id,omitempty"`
}

// NewConversation creates a fresh record in state NEW.
func NewConversation(id, tenantID, visitorID string, channel Channel) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:            id,
		TenantID:      tenantID,
		State:         StateNew,
		VisitorID:     visitorID,
		SourceChannel: channel,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// AppendTurn appends a turn and maintains the turn-count invariant:
// TurnCount counts user and assistant turns only.
func (c *Conversation) AppendTurn(role TurnRole, content string) {
	c.Turns = append(c.Turns, Turn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	if role != RoleSystem {
		c.TurnCount++
	}
}

// RecentHistory returns the last n non-system turns, oldest first.
func (c *Conversation) RecentHistory(n int) []Turn {
	var history []Turn
	for _, t := range c.Turns {
		if t.Role != RoleSystem {
			history = append(history, t)
		}
	}
	if len(history) > n {
		history = history[len(history)-n:]
	}
	return history
}
