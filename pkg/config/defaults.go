package config

import (
	"time"

	"github.com/resolvr-ai/resolvr/pkg/models"
)

// DefaultTenantID is used when an inbound message names no tenant.
const DefaultTenantID = "default"

func defaultChannelPolicy() *ChannelPolicy {
	return &ChannelPolicy{
		MaxTurnsBeforeEscalation: 30,
		RichMedia:                false,
		AutoCreateTicket:         true,
	}
}

// DefaultTenantConfig returns the built-in tenant behavior. User-provided
// tenant YAML is merged over this.
func DefaultTenantConfig(id string) *TenantConfig {
	return &TenantConfig{
		ID: id,
		Escalation: EscalationConfig{
			EscalationIntents:            []string{"complaint", "refund_dispute", "talk_to_human"},
			UrgencyAutoEscalate:          []models.UrgencyLevel{models.UrgencyCritical},
			RiskFlagAutoEscalate: []models.RiskFlag{
				models.RiskLegalThreat,
				models.RiskSocialMediaThreat,
				models.RiskPolicyException,
				models.RiskRepeatComplaint,
			},
			SentimentEscalationThreshold: -0.7,
			FrustrationKeywords:          []string{"useless", "pathetic", "worst service", "fed up", "ridiculous"},
			MaxClarifications:            2,
		},
		VOC: VOCConfig{
			OrderNumberPrefixes:        []string{"Q", "ORD", "RS"},
			UrgencyElevationTurnCount:  10,
			ClarificationBumpThreshold: 1,
		},
		ChannelPolicies: map[models.Channel]*ChannelPolicy{
			models.ChannelWeb:          {MaxTurnsBeforeEscalation: 30, RichMedia: true, AutoCreateTicket: true},
			models.ChannelWhatsApp:     {MaxTurnsBeforeEscalation: 20, RichMedia: true, AutoCreateTicket: true},
			models.ChannelBusinessChat: {MaxTurnsBeforeEscalation: 20, RichMedia: false, AutoCreateTicket: true},
		},
		FeatureFlags:   map[string]bool{},
		PromptVersion:  "v2",
		SupportContact: "support@example.com",
	}
}

// DefaultDispatchConfig returns the built-in dispatch defaults.
func DefaultDispatchConfig() *DispatchConfig {
	return &DispatchConfig{
		WorkerCount:             8,
		MailboxDepth:            64,
		MessageTimeout:          2 * time.Minute,
		GracefulShutdownTimeout: 2 * time.Minute,
	}
}

// DefaultHealthConfig returns the built-in circuit breaker defaults.
func DefaultHealthConfig() *HealthConfig {
	return &HealthConfig{
		FailureThreshold: 5,
		CircuitReset:     30 * time.Second,
	}
}

// DefaultToolsConfig returns the built-in tool runtime defaults.
func DefaultToolsConfig() *ToolsConfig {
	return &ToolsConfig{
		ExecutionTimeout: 15 * time.Second,
		FastPathTools:    []string{"lookup_customer_orders", "track_shipment"},
	}
}

// DefaultLLMConfig returns the built-in LLM provider defaults.
func DefaultLLMConfig() *LLMConfig {
	return &LLMConfig{
		Provider:    "openai",
		Model:       "gpt-4o-mini",
		APIKeyEnv:   "LLM_API_KEY",
		Timeout:     30 * time.Second,
		Temperature: 0.2,
		MaxTokens:   1024,
	}
}

// DefaultSLAConfig returns the built-in SLA tiers.
func DefaultSLAConfig() *SLAConfig {
	return &SLAConfig{
		Tiers: map[string]SLATierConfig{
			"standard": {FirstResponse: 2 * time.Minute, Resolution: 4 * time.Hour},
			"priority": {FirstResponse: 1 * time.Minute, Resolution: 2 * time.Hour},
			"vip":      {FirstResponse: 30 * time.Second, Resolution: 1 * time.Hour},
		},
	}
}

// DefaultSlackConfig returns the built-in Slack notification defaults.
func DefaultSlackConfig() *SlackConfig {
	return &SlackConfig{
		Enabled:  false,
		TokenEnv: "SLACK_BOT_TOKEN",
	}
}
