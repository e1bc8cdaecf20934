package notify

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/resolvr-ai/resolvr/pkg/config"
	"github.com/resolvr-ai/resolvr/pkg/sla"
)

// Service posts ops notifications to Slack.
// Nil-safe: all methods are no-ops when the service is nil.
type Service struct {
	client *Client
	logger *slog.Logger
}

// NewService builds a notifier from config. Returns nil when notifications
// are disabled or the token is missing, which callers treat as "no Slack".
func NewService(cfg *config.SlackConfig) *Service {
	if cfg == nil || !cfg.Enabled || cfg.Channel == "" {
		return nil
	}
	token := os.Getenv(cfg.TokenEnv)
	if token == "" {
		slog.Warn("Slack notifications enabled but token env is empty", "env", cfg.TokenEnv)
		return nil
	}
	return NewServiceWithClient(NewClient(token, cfg.Channel))
}

// NewServiceWithClient wraps a pre-built client. Useful for testing with a
// mock API server.
func NewServiceWithClient(client *Client) *Service {
	return &Service{
		client: client,
		logger: slog.Default().With("component", "notify"),
	}
}

// SLABreach implements sla.AlertSink.
// Fail-open: errors are logged, never returned.
func (s *Service) SLABreach(ctx context.Context, alert sla.Alert) {
	if s == nil {
		return
	}
	blocks := BuildSLABreachMessage(alert)
	if err := s.client.PostMessage(ctx, blocks, 5*time.Second); err != nil {
		s.logger.Error("Failed to send SLA breach notification",
			"conversation_id", alert.ConversationID,
			"metric", alert.Metric,
			"error", err)
	}
}

// Escalation announces a human handoff.
// Fail-open: errors are logged, never returned.
func (s *Service) Escalation(ctx context.Context, input EscalationInput) {
	if s == nil {
		return
	}
	blocks := BuildEscalationMessage(input)
	if err := s.client.PostMessage(ctx, blocks, 5*time.Second); err != nil {
		s.logger.Error("Failed to send escalation notification",
			"conversation_id", input.ConversationID,
			"reason", input.Reason,
			"error", err)
	}
}
