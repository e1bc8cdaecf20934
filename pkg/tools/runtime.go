package tools

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/resolvr-ai/resolvr/pkg/audit"
	"github.com/resolvr-ai/resolvr/pkg/cache"
	"github.com/resolvr-ai/resolvr/pkg/config"
	"github.com/resolvr-ai/resolvr/pkg/health"
	"github.com/resolvr-ai/resolvr/pkg/metrics"
	"github.com/resolvr-ai/resolvr/pkg/models"
)

// Runtime executes registered tools with the full governance battery.
type Runtime struct {
	registry *Registry
	cache    cache.Store
	health   *health.Tracker  // optional
	audit    audit.Chain      // optional
	metrics  *metrics.Metrics // optional
	cfg      *config.ToolsConfig

	limiters sync.Map // "tool|tenant" -> *rate.Limiter
}

// NewRuntime wires the runtime. health, chain, and m may be nil.
func NewRuntime(reg *Registry, store cache.Store, tracker *health.Tracker, chain audit.Chain, m *metrics.Metrics, cfg *config.ToolsConfig) *Runtime {
	return &Runtime{
		registry: reg,
		cache:    store,
		health:   tracker,
		audit:    chain,
		metrics:  m,
		cfg:      cfg,
	}
}

// Registry exposes the underlying registry.
func (rt *Runtime) Registry() *Registry {
	return rt.registry
}

// Execute runs one tool call through the governance pipeline and always
// returns a result envelope; failures are reported inside it, never as a
// panic or a Go error.
func (rt *Runtime) Execute(ctx context.Context, name string, args map[string]any, call CallContext) *models.ToolResult {
	start := time.Now()

	cd, ok := rt.registry.lookup(name)
	if !ok {
		return rt.finish(ctx, nil, args, call, start, failed(name, fmt.Sprintf("Unknown tool: %s", name)))
	}
	def := cd.def

	if call.Tenant != nil && !call.Tenant.FeatureEnabled(def.FeatureFlagKey) {
		return rt.finish(ctx, def, args, call, start, failed(name, fmt.Sprintf("Tool %s: feature not enabled", name)))
	}
	if def.AuthLevel == AuthService && call.AuthLevel != AuthService {
		return rt.finish(ctx, def, args, call, start, failed(name, fmt.Sprintf("Tool %s requires service authorization", name)))
	}
	if !def.channelAllowed(call.Channel) {
		return rt.finish(ctx, def, args, call, start, failed(name, fmt.Sprintf("Tool %s not supported on this channel", name)))
	}

	if !rt.allow(def, call.TenantID) {
		if rt.metrics != nil {
			rt.metrics.ToolRateLimited.WithLabelValues(name, call.TenantID).Inc()
		}
		return rt.finish(ctx, def, args, call, start, failed(name, fmt.Sprintf("Tool %s: rate limit exceeded", name)))
	}

	if def.Dependency != "" && rt.health != nil && !rt.health.IsAvailable(def.Dependency) {
		return rt.finish(ctx, def, args, call, start, failed(name, fmt.Sprintf("Tool %s: service temporarily unavailable", name)))
	}

	cacheKey := ""
	if def.Cacheable && def.CacheTTLSeconds > 0 && rt.cache != nil {
		cacheKey = CacheKey(name, args)
		if data, hit := cache.GetJSON[map[string]any](ctx, rt.cache, cacheKey, cache.GetOptions{}); hit {
			if rt.metrics != nil {
				rt.metrics.ToolCacheHits.WithLabelValues(name).Inc()
			}
			result := &models.ToolResult{Tool: name, Success: true, Data: data, Cached: true}
			return rt.finish(ctx, def, args, call, start, result)
		}
		if rt.metrics != nil {
			rt.metrics.ToolCacheMisses.WithLabelValues(name).Inc()
		}
	}

	if err := cd.inputSchema.Validate(toJSONValue(args)); err != nil {
		if rt.metrics != nil {
			rt.metrics.ToolValidationFailures.WithLabelValues(name, "input").Inc()
		}
		return rt.finish(ctx, def, args, call, start, failed(name, fmt.Sprintf("Invalid input: %v", err)))
	}

	data, err := rt.attempt(ctx, def, args, call)
	if err != nil && def.retryable() && ctx.Err() == nil {
		if rt.metrics != nil {
			rt.metrics.ToolRetries.WithLabelValues(name).Inc()
		}
		select {
		case <-time.After(def.retryDelay()):
			data, err = rt.attempt(ctx, def, args, call)
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	if def.Dependency != "" && rt.health != nil {
		if err != nil {
			rt.health.RecordFailure(def.Dependency)
		} else {
			rt.health.RecordSuccess(def.Dependency)
		}
	}

	var result *models.ToolResult
	if err != nil {
		result = failed(name, errorMessage(err))
	} else {
		result = &models.ToolResult{Tool: name, Success: true, Data: data}
		if cacheKey != "" {
			rt.cache.Set(ctx, cacheKey, data, time.Duration(def.CacheTTLSeconds)*time.Second, false)
		}
		if cd.outputSchema != nil {
			if verr := cd.outputSchema.Validate(toJSONValue(data)); verr != nil {
				// Best-effort: the result is still returned.
				if rt.metrics != nil {
					rt.metrics.ToolValidationFailures.WithLabelValues(name, "output").Inc()
				}
				slog.Warn("Tool output failed schema validation",
					"tool", name, "error", verr)
			}
		}
	}
	return rt.finish(ctx, def, args, call, start, result)
}

// attempt runs the handler once under the hard execution timeout.
func (rt *Runtime) attempt(ctx context.Context, def *Definition, args map[string]any, call CallContext) (map[string]any, error) {
	timeout := 15 * time.Second
	if rt.cfg != nil && rt.cfg.ExecutionTimeout > 0 {
		timeout = rt.cfg.ExecutionTimeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		data map[string]any
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		data, err := def.Handler(actx, args, call)
		done <- outcome{data: data, err: err}
	}()

	select {
	case o := <-done:
		return o.data, o.err
	case <-actx.Done():
		return nil, actx.Err()
	}
}

// finish stamps duration, emits metrics, the structured log, and the audit
// event, then returns the result.
func (rt *Runtime) finish(ctx context.Context, def *Definition, args map[string]any, call CallContext, start time.Time, result *models.ToolResult) *models.ToolResult {
	result.DurationMs = time.Since(start).Milliseconds()

	version := ""
	if def != nil {
		version = def.Version
	}
	status := "error"
	if result.Success {
		status = "ok"
	}
	if rt.metrics != nil {
		rt.metrics.ToolCallDuration.WithLabelValues(result.Tool, version, status).
			Observe(time.Since(start).Seconds())
	}

	logRecord := models.ToolCallLog{
		Tool:           result.Tool,
		Version:        version,
		Args:           RedactArgs(args),
		Success:        result.Success,
		Error:          result.Error,
		DurationMs:     result.DurationMs,
		Timestamp:      time.Now(),
		RequestID:      call.RequestID,
		ConversationID: call.ConversationID,
		TenantID:       call.TenantID,
	}
	slog.Info("Tool executed",
		"tool", logRecord.Tool,
		"version", logRecord.Version,
		"success", logRecord.Success,
		"cached", result.Cached,
		"duration_ms", logRecord.DurationMs,
		"args", logRecord.Args,
		"data", "[redacted]",
		"error", logRecord.Error,
		"request_id", logRecord.RequestID,
		"conversation_id", logRecord.ConversationID)

	if rt.audit != nil {
		ev := audit.Event{
			Actor:          "tool_runtime",
			Action:         "tool_executed",
			Category:       audit.CategoryToolExecution,
			ConversationID: call.ConversationID,
			TenantID:       call.TenantID,
			Details: map[string]any{
				"tool":        result.Tool,
				"success":     result.Success,
				"cached":      result.Cached,
				"duration_ms": result.DurationMs,
			},
		}
		go func() {
			actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := rt.audit.Append(actx, ev); err != nil {
				slog.Warn("Tool audit append failed", "tool", result.Tool, "error", err)
			}
		}()
	}
	return result
}

// allow applies the per-(tool,tenant) token bucket.
func (rt *Runtime) allow(def *Definition, tenantID string) bool {
	if def.RateLimitPerMinute <= 0 {
		return true
	}
	key := def.Name + "|" + tenantID
	v, ok := rt.limiters.Load(key)
	if !ok {
		limiter := rate.NewLimiter(rate.Limit(float64(def.RateLimitPerMinute)/60.0), def.RateLimitPerMinute)
		v, _ = rt.limiters.LoadOrStore(key, limiter)
	}
	return v.(*rate.Limiter).Allow()
}

// CacheKey derives the deterministic cache key for a tool call. Map keys are
// sorted by the JSON encoder, so equal args always produce equal keys.
func CacheKey(name string, args map[string]any) string {
	raw, err := json.Marshal(args)
	if err != nil {
		raw = []byte("{}")
	}
	sum := md5.Sum(raw)
	return "tool:" + name + ":" + hex.EncodeToString(sum[:])[:16]
}

// toJSONValue round-trips a Go map through JSON so the schema validator sees
// the same value shapes a decoded document would have.
func toJSONValue(v map[string]any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}

func failed(name, msg string) *models.ToolResult {
	return &models.ToolResult{Tool: name, Success: false, Error: msg}
}

func errorMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout: tool execution exceeded the time limit"
	}
	return err.Error()
}
