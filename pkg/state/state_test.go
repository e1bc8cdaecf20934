package state

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/resolvr-ai/resolvr/pkg/models"
)

func TestResolveTargetState_EscalationWins(t *testing.T) {
	got := ResolveTargetState(models.StateOrderInquiry, "order_status", true)
	assert.Equal(t, models.StateEscalated, got)
}

func TestResolveTargetState_IntentMapping(t *testing.T) {
	cases := []struct {
		intent string
		want   models.ConversationState
	}{
		{"order_status", models.StateOrderInquiry},
		{"track_shipment", models.StateShipmentTracking},
		{"refund_status", models.StateReturnRefund},
		{"product_question", models.StateProductInquiry},
		{"pricing_inquiry", models.StateLeadQualification},
		{"book_meeting", models.StateMeetingBooking},
		{"technical_issue", models.StateSupportTriage},
		{"Order_Status", models.StateOrderInquiry}, // case-insensitive
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ResolveTargetState(models.StateActiveQA, tc.intent, false), tc.intent)
	}
}

func TestResolveTargetState_GenericIntentFromNew(t *testing.T) {
	got := ResolveTargetState(models.StateNew, "greeting", false)
	assert.Equal(t, models.StateActiveQA, got)
}

func TestResolveTargetState_GenericIntentKeepsCurrent(t *testing.T) {
	got := ResolveTargetState(models.StateShipmentTracking, "greeting", false)
	assert.Equal(t, models.StateShipmentTracking, got)
}

func TestResolveTargetState_TerminalStaysPut(t *testing.T) {
	assert.Equal(t, models.StateResolved, ResolveTargetState(models.StateResolved, "order_status", false))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(models.StateNew, models.StateActiveQA))
	assert.True(t, CanTransition(models.StateOrderInquiry, models.StateReturnRefund))
	assert.True(t, CanTransition(models.StateActiveQA, models.StateResolved))
	assert.True(t, CanTransition(models.StateActiveQA, models.StateEscalated))
	assert.True(t, CanTransition(models.StateResolved, models.StateResolved), "self edge is legal")

	assert.False(t, CanTransition(models.StateResolved, models.StateActiveQA))
	assert.False(t, CanTransition(models.StateEscalated, models.StateResolved))
}

func TestApply_IllegalTransitionIsNoOp(t *testing.T) {
	c := models.NewConversation("c1", "default", "v", models.ChannelWeb)
	c.State = models.StateResolved

	Apply(c, models.StateActiveQA)
	assert.Equal(t, models.StateResolved, c.State)
}

func TestApply_LegalTransition(t *testing.T) {
	c := models.NewConversation("c1", "default", "v", models.ChannelWeb)

	Apply(c, models.StateOrderInquiry)
	assert.Equal(t, models.StateOrderInquiry, c.State)

	Apply(c, models.StateEscalated)
	assert.Equal(t, models.StateEscalated, c.State)
}
