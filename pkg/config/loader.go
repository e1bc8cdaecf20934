package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// resolvrYAML mirrors the resolvr.yaml file structure.
type resolvrYAML struct {
	LLM            *LLMConfig         `yaml:"llm"`
	Dispatch       *DispatchConfig    `yaml:"dispatch"`
	Health         *HealthConfig      `yaml:"health"`
	Tools          *ToolsConfig       `yaml:"tools"`
	SLA            *SLAConfig         `yaml:"sla"`
	Slack          *SlackConfig       `yaml:"slack"`
	RedisURL       string             `yaml:"redis_url"`
	AdminAPIKeyEnv string             `yaml:"admin_api_key_env"`
	PIIKeyEnv      string             `yaml:"pii_key_env"`
	Agents         []HumanAgentConfig `yaml:"agents"`
}

// tenantsYAML mirrors the tenants.yaml file structure.
type tenantsYAML struct {
	Tenants map[string]*TenantConfig `yaml:"tenants"`
}

// Initialize loads, merges, validates, and returns ready-to-use configuration.
//
// Steps performed:
//  1. Load resolvr.yaml and tenants.yaml from configDir
//  2. Expand {{.VAR}} environment references
//  3. Merge user values over built-in defaults
//  4. Build the tenant registry (default tenant always present)
//  5. Validate the result
func Initialize(configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized",
		"tenants", cfg.Stats().Tenants,
		"redis", cfg.RedisURL != "",
		"llm_provider", cfg.LLM.Provider)

	return cfg, nil
}

func load(configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	var root resolvrYAML
	if err := loader.loadYAML("resolvr.yaml", &root); err != nil {
		return nil, NewLoadError("resolvr.yaml", err)
	}

	tenants := tenantsYAML{Tenants: make(map[string]*TenantConfig)}
	if err := loader.loadYAML("tenants.yaml", &tenants); err != nil {
		// Tenants file is optional: the default tenant covers single-tenant
		// deployments.
		if !os.IsNotExist(err) && !isNotFound(err) {
			return nil, NewLoadError("tenants.yaml", err)
		}
	}

	cfg := &Config{
		configDir:      configDir,
		LLM:            DefaultLLMConfig(),
		Dispatch:       DefaultDispatchConfig(),
		Health:         DefaultHealthConfig(),
		Tools:          DefaultToolsConfig(),
		SLA:            DefaultSLAConfig(),
		Slack:          DefaultSlackConfig(),
		RedisURL:       root.RedisURL,
		AdminAPIKeyEnv: root.AdminAPIKeyEnv,
		PIIKeyEnv:      root.PIIKeyEnv,
		Agents:         root.Agents,
	}
	if cfg.AdminAPIKeyEnv == "" {
		cfg.AdminAPIKeyEnv = "ADMIN_API_KEY"
	}
	if cfg.PIIKeyEnv == "" {
		cfg.PIIKeyEnv = "PII_ENCRYPTION_KEY"
	}

	// Merge user-provided sections over defaults (non-zero values override).
	sections := []struct {
		name string
		dst  any
		src  any
	}{
		{"llm", cfg.LLM, root.LLM},
		{"dispatch", cfg.Dispatch, root.Dispatch},
		{"health", cfg.Health, root.Health},
		{"tools", cfg.Tools, root.Tools},
		{"sla", cfg.SLA, root.SLA},
		{"slack", cfg.Slack, root.Slack},
	}
	for _, s := range sections {
		if isNilPointer(s.src) {
			continue
		}
		if err := mergo.Merge(s.dst, s.src, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge %s config: %w", s.name, err)
		}
	}

	cfg.Tenants = NewTenantRegistry(mergeTenants(tenants.Tenants))

	return cfg, nil
}

// mergeTenants overlays user tenant configs on built-in defaults and
// guarantees the default tenant exists.
func mergeTenants(user map[string]*TenantConfig) map[string]*TenantConfig {
	merged := make(map[string]*TenantConfig, len(user)+1)

	for id, t := range user {
		base := DefaultTenantConfig(id)
		if t != nil {
			if err := mergo.Merge(base, t, mergo.WithOverride); err != nil {
				slog.Warn("Failed to merge tenant config, using defaults",
					"tenant", id, "error", err)
			}
		}
		base.ID = id
		merged[id] = base
	}

	if _, ok := merged[DefaultTenantID]; !ok {
		merged[DefaultTenantID] = DefaultTenantConfig(DefaultTenantID)
	}

	return merged
}

func validate(cfg *Config) error {
	v := newValidator(cfg)
	return v.validateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrConfigNotFound)
}

func isNilPointer(v any) bool {
	switch p := v.(type) {
	case *LLMConfig:
		return p == nil
	case *DispatchConfig:
		return p == nil
	case *HealthConfig:
		return p == nil
	case *ToolsConfig:
		return p == nil
	case *SLAConfig:
		return p == nil
	case *SlackConfig:
		return p == nil
	}
	return v == nil
}
