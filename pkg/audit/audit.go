// Package audit provides the append-only, hash-chained audit log. Every
// event's dataHash covers its content plus the previous event's hash, so any
// later mutation breaks verification from that point on.
//
// Appends are best-effort from the pipeline's point of view: callers log
// failures and move on, because an audit outage must never block business
// operations.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// GenesisHash seeds the chain before any event exists.
const GenesisHash = "genesis"

// Category groups audit events.
type Category string

const (
	CategoryConversation      Category = "conversation"
	CategoryToolExecution     Category = "tool_execution"
	CategoryEscalation        Category = "escalation"
	CategoryStateTransition   Category = "state_transition"
	CategoryPIIAccess         Category = "pii_access"
	CategoryPIITokenize       Category = "pii_tokenize"
	CategoryPIIPurge          Category = "pii_purge"
	CategoryConfigChange      Category = "config_change"
	CategoryAdminAction       Category = "admin_action"
	CategoryCopilot           Category = "copilot"
	CategorySLA               Category = "sla"
	CategoryGDPR              Category = "gdpr"
	CategoryOrderModification Category = "order_modification"
	CategoryOutbound          Category = "outbound"
)

// Event is one audit chain record.
type Event struct {
	EventID        string         `json:"event_id"`
	Timestamp      time.Time      `json:"timestamp"`
	Actor          string         `json:"actor"`
	Action         string         `json:"action"`
	Category       Category       `json:"category"`
	ConversationID string         `json:"conversation_id,omitempty"`
	TenantID       string         `json:"tenant_id,omitempty"`
	Details        map[string]any `json:"details,omitempty"`
	PreviousHash   string         `json:"previous_hash"`
	DataHash       string         `json:"data_hash"`
}

// Filter selects events for Query.
type Filter struct {
	ConversationID string
	TenantID       string
	Category       Category
	Actor          string
	Since          time.Time
	Until          time.Time
	Limit          int
}

// matches reports whether ev passes the filter.
func (f *Filter) matches(ev *Event) bool {
	if f.ConversationID != "" && ev.ConversationID != f.ConversationID {
		return false
	}
	if f.TenantID != "" && ev.TenantID != f.TenantID {
		return false
	}
	if f.Category != "" && ev.Category != f.Category {
		return false
	}
	if f.Actor != "" && ev.Actor != f.Actor {
		return false
	}
	if !f.Since.IsZero() && ev.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && ev.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// Verification is the result of an integrity check.
type Verification struct {
	Valid    bool   `json:"valid"`
	BrokenAt string `json:"broken_at,omitempty"` // event id of the first broken link
}

// Chain is the audit log capability set shared by both backends.
type Chain interface {
	// Append fills in event id, timestamp, previous hash, and data hash,
	// then stores the event and advances the chain head.
	Append(ctx context.Context, ev Event) error
	// Query returns matching events in append order.
	Query(ctx context.Context, f Filter) ([]Event, error)
	// VerifyIntegrity recomputes hashes over the chain. With a conversation
	// id it checks per-event content integrity only, since linkage runs
	// through events of other conversations.
	VerifyIntegrity(ctx context.Context, conversationID string) (Verification, error)
}

// computeHash builds the canonical JSON form of the hashed fields and
// returns its SHA-256 hex digest. encoding/json sorts map keys, which makes
// the serialization deterministic.
func computeHash(ev *Event) string {
	canonical := map[string]any{
		"eventId":      ev.EventID,
		"timestamp":    ev.Timestamp.UTC().Format(time.RFC3339Nano),
		"actor":        ev.Actor,
		"action":       ev.Action,
		"category":     string(ev.Category),
		"details":      ev.Details,
		"previousHash": ev.PreviousHash,
	}
	data, _ := json.Marshal(canonical)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// seal assigns identity and hashes to a new event given the current head.
func seal(ev *Event, head string) {
	if ev.EventID == "" {
		ev.EventID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	ev.PreviousHash = head
	ev.DataHash = computeHash(ev)
}

// verifyEvents checks a full chain slice: content hashes and linkage.
func verifyEvents(events []Event) Verification {
	head := GenesisHash
	for i := range events {
		ev := &events[i]
		if ev.PreviousHash != head {
			return Verification{Valid: false, BrokenAt: ev.EventID}
		}
		if computeHash(ev) != ev.DataHash {
			return Verification{Valid: false, BrokenAt: ev.EventID}
		}
		head = ev.DataHash
	}
	return Verification{Valid: true}
}

// verifyContent checks per-event content hashes only.
func verifyContent(events []Event) Verification {
	for i := range events {
		ev := &events[i]
		if computeHash(ev) != ev.DataHash {
			return Verification{Valid: false, BrokenAt: ev.EventID}
		}
	}
	return Verification{Valid: true}
}
