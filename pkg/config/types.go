// Package config loads and validates the Resolvr configuration directory.
// Configuration is YAML with {{.VAR}} environment expansion; user-provided
// values are merged over built-in defaults.
package config

import (
	"time"

	"github.com/resolvr-ai/resolvr/pkg/models"
)

// ChannelPolicy holds per-channel conversation policy.
type ChannelPolicy struct {
	MaxTurnsBeforeEscalation int  `yaml:"max_turns_before_escalation"`
	RichMedia                bool `yaml:"rich_media"`
	AutoCreateTicket         bool `yaml:"auto_create_ticket"`
}

// EscalationConfig holds the tenant's escalation policy knobs.
type EscalationConfig struct {
	EscalationIntents            []string              `yaml:"escalation_intents"`
	UrgencyAutoEscalate          []models.UrgencyLevel `yaml:"urgency_auto_escalate"`
	RiskFlagAutoEscalate         []models.RiskFlag     `yaml:"risk_flag_auto_escalate"`
	SentimentEscalationThreshold float64               `yaml:"sentiment_escalation_threshold"`
	FrustrationKeywords          []string              `yaml:"frustration_keywords"`
	MaxClarifications            int                   `yaml:"max_clarifications"`
}

// VOCConfig holds tenant-tunable pre-processor thresholds.
type VOCConfig struct {
	// OrderNumberPrefixes are the tenant's order number prefixes, matched
	// case-insensitively at the start of a candidate token.
	OrderNumberPrefixes []string `yaml:"order_number_prefixes"`
	// UrgencyElevationTurnCount elevates low urgency to medium once the
	// conversation is longer than this many turns.
	UrgencyElevationTurnCount int `yaml:"urgency_elevation_turn_count"`
	// ClarificationBumpThreshold bumps urgency one level once the
	// clarification count exceeds this value.
	ClarificationBumpThreshold int `yaml:"clarification_bump_threshold"`
}

// TenantConfig is the per-tenant behavior configuration.
type TenantConfig struct {
	ID              string                            `yaml:"id"`
	DisplayName     string                            `yaml:"display_name"`
	Escalation      EscalationConfig                  `yaml:"escalation"`
	VOC             VOCConfig                         `yaml:"voc"`
	ChannelPolicies map[models.Channel]*ChannelPolicy `yaml:"channel_policies"`
	// FeatureFlags gates tools and optional behavior per tenant.
	FeatureFlags map[string]bool `yaml:"feature_flags"`
	// PromptVersion selects the default system prompt version.
	PromptVersion string `yaml:"prompt_version"`
	// SupportContact is embedded in generic failure fallbacks.
	SupportContact string `yaml:"support_contact"`
}

// ChannelPolicy returns the policy for ch, falling back to defaults.
func (t *TenantConfig) ChannelPolicy(ch models.Channel) *ChannelPolicy {
	if p, ok := t.ChannelPolicies[ch]; ok && p != nil {
		return p
	}
	return defaultChannelPolicy()
}

// FeatureEnabled reports whether a feature flag is on. Unknown flags are on
// by default: flags exist to switch features off per tenant.
func (t *TenantConfig) FeatureEnabled(key string) bool {
	if key == "" {
		return true
	}
	enabled, ok := t.FeatureFlags[key]
	if !ok {
		return true
	}
	return enabled
}

// LLMConfig configures the LLM provider used by the agent core.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
}

// DispatchConfig controls the per-conversation mailbox worker pool.
type DispatchConfig struct {
	// WorkerCount is the number of mailbox partitions. Messages for one
	// conversation always hash to the same partition, preserving order.
	WorkerCount int `yaml:"worker_count"`
	// MailboxDepth is the per-partition queue depth. On overflow the oldest
	// queued message is dropped with a warning.
	MailboxDepth int `yaml:"mailbox_depth"`
	// MessageTimeout bounds one pipeline run.
	MessageTimeout time.Duration `yaml:"message_timeout"`
	// GracefulShutdownTimeout is the max wait for in-flight pipelines on stop.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`
}

// HealthConfig controls the dependency circuit breaker.
type HealthConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	CircuitReset     time.Duration `yaml:"circuit_reset"`
}

// ToolsConfig holds runtime-wide tool settings.
type ToolsConfig struct {
	// ExecutionTimeout is the hard per-attempt handler timeout.
	ExecutionTimeout time.Duration `yaml:"execution_timeout"`
	// FastPathTools is the allowlist of tools whose uniform success skips the
	// refinement LLM call. Independent of cacheability.
	FastPathTools []string `yaml:"fast_path_tools"`
}

// SLATierConfig defines thresholds for one SLA tier.
type SLATierConfig struct {
	FirstResponse time.Duration `yaml:"first_response"`
	Resolution    time.Duration `yaml:"resolution"`
}

// SLAConfig maps tier names to thresholds.
type SLAConfig struct {
	Tiers map[string]SLATierConfig `yaml:"tiers"`
}

// HumanAgentConfig describes one member of the human support roster used
// for skill-based escalation routing.
type HumanAgentConfig struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	Skills    []string `yaml:"skills"`
	Languages []string `yaml:"languages"`
}

// SlackConfig holds ops-notification settings.
type SlackConfig struct {
	Enabled  bool   `yaml:"enabled"`
	TokenEnv string `yaml:"token_env"`
	Channel  string `yaml:"channel"`
}

// Config is the fully loaded, validated application configuration.
type Config struct {
	configDir string

	LLM      *LLMConfig      `yaml:"llm"`
	Dispatch *DispatchConfig `yaml:"dispatch"`
	Health   *HealthConfig   `yaml:"health"`
	Tools    *ToolsConfig    `yaml:"tools"`
	SLA      *SLAConfig      `yaml:"sla"`
	Slack    *SlackConfig    `yaml:"slack"`

	// RedisURL selects the durable backend. Empty means in-memory backends.
	RedisURL string `yaml:"redis_url"`
	// AdminAPIKeyEnv names the env var holding the shared admin header secret.
	AdminAPIKeyEnv string `yaml:"admin_api_key_env"`
	// PIIKeyEnv names the env var holding the vault encryption key material.
	PIIKeyEnv string `yaml:"pii_key_env"`

	// Agents is the human support roster for skill-based escalation
	// routing. An empty roster disables routing.
	Agents []HumanAgentConfig `yaml:"agents"`

	Tenants *TenantRegistry
}

// Stats summarizes loaded configuration for startup logging.
type Stats struct {
	Tenants int
}

// Stats returns configuration counts.
func (c *Config) Stats() Stats {
	return Stats{Tenants: c.Tenants.Len()}
}
