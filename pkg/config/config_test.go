package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resolvr-ai/resolvr/pkg/models"
)

func writeConfigDir(t *testing.T, resolvrYAML, tenantsYAML string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "resolvr.yaml"), []byte(resolvrYAML), 0o600))
	if tenantsYAML != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "tenants.yaml"), []byte(tenantsYAML), 0o600))
	}
	return dir
}

func TestInitialize_DefaultsOnly(t *testing.T) {
	dir := writeConfigDir(t, "llm:\n  model: gpt-4o-mini\n", "")

	cfg, err := Initialize(dir)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 8, cfg.Dispatch.WorkerCount)
	assert.Equal(t, 5, cfg.Health.FailureThreshold)
	assert.Equal(t, 15*time.Second, cfg.Tools.ExecutionTimeout)
	assert.True(t, cfg.Tenants.Has(DefaultTenantID))
}

func TestInitialize_MergesUserValuesOverDefaults(t *testing.T) {
	dir := writeConfigDir(t, `
llm:
  model: gpt-4o
  timeout: 10s
dispatch:
  worker_count: 3
tools:
  fast_path_tools: [lookup_customer_orders]
`, `
tenants:
  acme:
    escalation:
      max_clarifications: 3
      frustration_keywords: [hopeless]
`)

	cfg, err := Initialize(dir)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 10*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 3, cfg.Dispatch.WorkerCount)
	assert.Equal(t, []string{"lookup_customer_orders"}, cfg.Tools.FastPathTools)

	acme, err := cfg.Tenants.Get("acme")
	require.NoError(t, err)
	assert.Equal(t, 3, acme.Escalation.MaxClarifications)
	assert.Contains(t, acme.Escalation.FrustrationKeywords, "hopeless")
	// Defaults preserved where the user file is silent.
	assert.Equal(t, -0.7, acme.Escalation.SentimentEscalationThreshold)
	assert.NotEmpty(t, acme.VOC.OrderNumberPrefixes)
}

func TestInitialize_LoadsAgentRoster(t *testing.T) {
	dir := writeConfigDir(t, `
llm:
  model: gpt-4o-mini
agents:
  - id: a1
    name: Asha
    skills: [refund_status]
    languages: [hi, en]
  - id: a2
    name: Ben
    skills: [technical_issue]
    languages: [en]
`, "")

	cfg, err := Initialize(dir)
	require.NoError(t, err)

	require.Len(t, cfg.Agents, 2)
	assert.Equal(t, "a1", cfg.Agents[0].ID)
	assert.Equal(t, []string{"refund_status"}, cfg.Agents[0].Skills)
	assert.Equal(t, []string{"hi", "en"}, cfg.Agents[0].Languages)
}

func TestInitialize_RejectsAgentWithoutID(t *testing.T) {
	dir := writeConfigDir(t, "llm:\n  model: gpt-4o-mini\nagents:\n  - name: Asha\n", "")
	_, err := Initialize(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id")
}

func TestInitialize_MissingRootFile(t *testing.T) {
	_, err := Initialize(t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestInitialize_RejectsInvalidValues(t *testing.T) {
	dir := writeConfigDir(t, "llm:\n  model: gpt-4o\ndispatch:\n  worker_count: -1\n", "")
	_, err := Initialize(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker_count")
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("RESOLVR_TEST_URL", "redis://localhost:6379")

	out := ExpandEnv([]byte("redis_url: {{.RESOLVR_TEST_URL}}\n"))
	assert.Equal(t, "redis_url: redis://localhost:6379\n", string(out))

	// Literal dollars survive.
	out = ExpandEnv([]byte("keywords: [\"price$100\"]\n"))
	assert.Equal(t, "keywords: [\"price$100\"]\n", string(out))
}

func TestTenantRegistry_Resolve(t *testing.T) {
	reg := NewTenantRegistry(map[string]*TenantConfig{
		DefaultTenantID: DefaultTenantConfig(DefaultTenantID),
		"acme":          DefaultTenantConfig("acme"),
	})

	assert.Equal(t, "acme", reg.Resolve("acme").ID)
	assert.Equal(t, DefaultTenantID, reg.Resolve("").ID)
	assert.Equal(t, DefaultTenantID, reg.Resolve("missing").ID)
}

func TestTenantConfig_FeatureEnabled(t *testing.T) {
	tc := DefaultTenantConfig("t")
	tc.FeatureFlags = map[string]bool{"tool.initiate_refund": false}

	assert.False(t, tc.FeatureEnabled("tool.initiate_refund"))
	assert.True(t, tc.FeatureEnabled("tool.track_shipment"))
	assert.True(t, tc.FeatureEnabled(""))
}

func TestTenantConfig_ChannelPolicy(t *testing.T) {
	tc := DefaultTenantConfig("t")
	p := tc.ChannelPolicy(models.ChannelWhatsApp)
	require.NotNil(t, p)
	assert.Equal(t, 20, p.MaxTurnsBeforeEscalation)

	tc.ChannelPolicies = nil
	p = tc.ChannelPolicy(models.ChannelWeb)
	require.NotNil(t, p)
	assert.Equal(t, 30, p.MaxTurnsBeforeEscalation)
}
