package models

import "time"

// Channel identifies the inbound/outbound messaging channel.
type Channel string

const (
	ChannelWeb          Channel = "web"
	ChannelWhatsApp     Channel = "whatsapp"
	ChannelBusinessChat Channel = "business_chat"
)

// ValidChannel reports whether ch is one of the supported channels.
func ValidChannel(ch Channel) bool {
	switch ch {
	case ChannelWeb, ChannelWhatsApp, ChannelBusinessChat:
		return true
	}
	return false
}

// UserProfile carries identity hints supplied by the channel adapter.
type UserProfile struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// MessageBody is the message payload of an inbound message.
type MessageBody struct {
	Text string `json:"text"`
}

// InboundMessage is the normalized contract every channel webhook adapter
// produces. One inbound message drives one pipeline run.
type InboundMessage struct {
	Channel        Channel     `json:"channel"`
	ConversationID string      `json:"conversation_id"`
	VisitorID      string      `json:"visitor_id,omitempty"`
	TenantID       string      `json:"tenant_id"`
	UserProfile    UserProfile `json:"user_profile"`
	Message        MessageBody `json:"message"`
	Timestamp      time.Time   `json:"timestamp"`
	ContactID      string      `json:"contact_id,omitempty"`
	RequestID      string      `json:"request_id,omitempty"`
}

// RichPayload is a channel-neutral rich media payload produced by the agent.
// Channel adapters decide how (or whether) to render it.
type RichPayload struct {
	Type     string           `json:"type"`
	Title    string           `json:"title,omitempty"`
	Body     string           `json:"body,omitempty"`
	Elements []map[string]any `json:"elements,omitempty"`
}
