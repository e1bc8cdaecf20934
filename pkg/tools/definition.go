// Package tools implements the governed tool runtime: a registry of
// schema-validated tool definitions and an execution engine enforcing
// feature flags, channel allowlists, rate limits, dependency circuits,
// caching, timeouts, and retries around every side-effecting call.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/resolvr-ai/resolvr/pkg/config"
	"github.com/resolvr-ai/resolvr/pkg/models"
)

// AuthLevel gates who may invoke a tool.
type AuthLevel string

const (
	AuthNone    AuthLevel = "none"
	AuthService AuthLevel = "service"
)

// CallContext identifies the caller of a tool execution.
type CallContext struct {
	TenantID       string
	ConversationID string
	RequestID      string
	Channel        models.Channel
	Tenant         *config.TenantConfig
	AuthLevel      AuthLevel
}

// Handler performs the actual tool work. It must honor ctx cancellation.
type Handler func(ctx context.Context, args map[string]any, call CallContext) (map[string]any, error)

// Definition describes one registered tool and its governance settings.
type Definition struct {
	Name        string
	Version     string
	Description string

	// InputSchema and OutputSchema are JSON Schema documents. InputSchema is
	// required; OutputSchema is optional and validated best-effort.
	InputSchema  json.RawMessage
	OutputSchema json.RawMessage

	AuthLevel          AuthLevel
	RateLimitPerMinute int
	// AllowedChannels empty means every channel.
	AllowedChannels []models.Channel
	FeatureFlagKey  string

	Cacheable       bool
	CacheTTLSeconds int

	// Retryable defaults to true when nil.
	Retryable  *bool
	RetryDelay time.Duration

	// Dependency names the tracked backend this tool calls, for circuit
	// breaking and health recording. Empty means untracked.
	Dependency string

	Handler Handler
}

func (d *Definition) retryable() bool {
	return d.Retryable == nil || *d.Retryable
}

func (d *Definition) retryDelay() time.Duration {
	if d.RetryDelay > 0 {
		return d.RetryDelay
	}
	return time.Second
}

func (d *Definition) channelAllowed(ch models.Channel) bool {
	if len(d.AllowedChannels) == 0 {
		return true
	}
	for _, allowed := range d.AllowedChannels {
		if allowed == ch {
			return true
		}
	}
	return false
}

// compiledDefinition pairs a definition with its compiled schemas.
type compiledDefinition struct {
	def          *Definition
	inputSchema  *jsonschema.Schema
	outputSchema *jsonschema.Schema // nil when absent
}

// Registry holds the registered tool set. Registration compiles schemas
// once; lookups are lock-cheap.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*compiledDefinition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*compiledDefinition)}
}

// Register validates and adds a definition. Re-registering a name replaces
// the previous definition.
func (r *Registry) Register(def *Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool definition missing name")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %s missing handler", def.Name)
	}
	if len(def.InputSchema) == 0 {
		return fmt.Errorf("tool %s missing input schema", def.Name)
	}

	input, err := compileSchema(def.Name+"/input.json", def.InputSchema)
	if err != nil {
		return fmt.Errorf("tool %s input schema: %w", def.Name, err)
	}
	var output *jsonschema.Schema
	if len(def.OutputSchema) > 0 {
		output, err = compileSchema(def.Name+"/output.json", def.OutputSchema)
		if err != nil {
			return fmt.Errorf("tool %s output schema: %w", def.Name, err)
		}
	}

	r.mu.Lock()
	r.tools[def.Name] = &compiledDefinition{def: def, inputSchema: input, outputSchema: output}
	r.mu.Unlock()
	return nil
}

func (r *Registry) lookup(name string) (*compiledDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cd, ok := r.tools[name]
	return cd, ok
}

// Get returns the definition for name.
func (r *Registry) Get(name string) (*Definition, bool) {
	cd, ok := r.lookup(name)
	if !ok {
		return nil, false
	}
	return cd.def, true
}

// List returns every registered definition, unordered.
func (r *Registry) List() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Definition, 0, len(r.tools))
	for _, cd := range r.tools {
		out = append(out, cd.def)
	}
	return out
}

func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile(name)
}
