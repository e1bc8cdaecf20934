// Package state implements the conversation lifecycle state machine. The
// transition table enumerates legal edges; illegal transitions are logged
// no-ops so a bad LLM classification can never corrupt a record.
package state

import (
	"log/slog"
	"strings"

	"github.com/resolvr-ai/resolvr/pkg/models"
)

// activeStates are the non-terminal states a live conversation moves between.
var activeStates = []models.ConversationState{
	models.StateActiveQA,
	models.StateOrderInquiry,
	models.StateShipmentTracking,
	models.StateReturnRefund,
	models.StateProductInquiry,
	models.StateLeadQualification,
	models.StateMeetingBooking,
	models.StateSupportTriage,
}

// transitions is the legal edge set. Any active state may move to any other
// active state or to a terminal one; terminal states have no outgoing edges.
var transitions = buildTransitions()

func buildTransitions() map[models.ConversationState]map[models.ConversationState]bool {
	table := make(map[models.ConversationState]map[models.ConversationState]bool)

	targets := make([]models.ConversationState, 0, len(activeStates)+2)
	targets = append(targets, activeStates...)
	targets = append(targets, models.StateResolved, models.StateEscalated)

	from := append([]models.ConversationState{models.StateNew}, activeStates...)
	for _, f := range from {
		table[f] = make(map[models.ConversationState]bool, len(targets))
		for _, t := range targets {
			table[f][t] = true
		}
	}
	return table
}

// intentStates maps canonical intents to their topic state. Intents not
// listed fall through to ACTIVE_QA.
var intentStates = map[string]models.ConversationState{
	"order_status":      models.StateOrderInquiry,
	"order_inquiry":     models.StateOrderInquiry,
	"cancel_order":      models.StateOrderInquiry,
	"track_shipment":    models.StateShipmentTracking,
	"shipment_tracking": models.StateShipmentTracking,
	"delivery_delay":    models.StateShipmentTracking,
	"return_request":    models.StateReturnRefund,
	"refund_status":     models.StateReturnRefund,
	"refund_dispute":    models.StateReturnRefund,
	"exchange_request":  models.StateReturnRefund,
	"product_question":  models.StateProductInquiry,
	"product_inquiry":   models.StateProductInquiry,
	"size_guide":        models.StateProductInquiry,
	"lead":              models.StateLeadQualification,
	"pricing_inquiry":   models.StateLeadQualification,
	"demo_request":      models.StateLeadQualification,
	"book_meeting":      models.StateMeetingBooking,
	"schedule_call":     models.StateMeetingBooking,
	"technical_issue":   models.StateSupportTriage,
	"bug_report":        models.StateSupportTriage,
	"account_issue":     models.StateSupportTriage,
}

// CanTransition reports whether the edge from→to is legal. Staying in place
// is always legal.
func CanTransition(from, to models.ConversationState) bool {
	if from == to {
		return true
	}
	return transitions[from][to]
}

// ResolveTargetState picks the state the conversation should move to for the
// classified intent. Escalation always wins.
func ResolveTargetState(current models.ConversationState, intent string, shouldEscalate bool) models.ConversationState {
	if shouldEscalate {
		return models.StateEscalated
	}
	if current.IsTerminal() {
		return current
	}
	if target, ok := intentStates[strings.ToLower(intent)]; ok {
		return target
	}
	if current == models.StateNew {
		return models.StateActiveQA
	}
	return current
}

// Apply transitions the conversation to target when the edge is legal;
// otherwise it logs and leaves the record untouched.
func Apply(c *models.Conversation, target models.ConversationState) {
	if c.State == target {
		return
	}
	if !CanTransition(c.State, target) {
		slog.Warn("Illegal state transition ignored",
			"conversation_id", c.ID, "from", c.State, "to", target)
		return
	}
	slog.Debug("Conversation state transition",
		"conversation_id", c.ID, "from", c.State, "to", target)
	c.State = target
}
