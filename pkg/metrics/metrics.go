// Package metrics defines the Prometheus instruments shared across the
// pipeline. A single Metrics value is created at startup and threaded
// through the application context.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every instrument the platform emits.
type Metrics struct {
	registry *prometheus.Registry

	MessagesProcessed  *prometheus.CounterVec // labels: tenant, channel, status
	PipelineStepErrors *prometheus.CounterVec // labels: step
	PipelineDuration   *prometheus.HistogramVec

	ToolCallDuration       *prometheus.HistogramVec // labels: tool, version, status
	ToolRetries            *prometheus.CounterVec   // labels: tool
	ToolValidationFailures *prometheus.CounterVec   // labels: tool, direction
	ToolCacheHits          *prometheus.CounterVec   // labels: tool
	ToolCacheMisses        *prometheus.CounterVec   // labels: tool
	ToolRateLimited        *prometheus.CounterVec   // labels: tool, tenant

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	EscalationsTriggered *prometheus.CounterVec // labels: reason
	VOCUrgency           *prometheus.CounterVec // labels: level
	LLMCalls             *prometheus.CounterVec // labels: kind, status
	SLABreaches          *prometheus.CounterVec // labels: tier, metric
	DependencyState      *prometheus.GaugeVec   // labels: dependency (0 healthy, 1 degraded, 2 open)
}

// New creates and registers all instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{registry: reg}

	m.MessagesProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resolvr", Name: "messages_processed_total",
		Help: "Inbound messages processed through the pipeline.",
	}, []string{"tenant", "channel", "status"})

	m.PipelineStepErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resolvr", Name: "pipeline_step_errors_total",
		Help: "Pipeline step failures that were absorbed.",
	}, []string{"step"})

	m.PipelineDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "resolvr", Name: "pipeline_duration_seconds",
		Help:    "End-to-end pipeline latency per message.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"tenant", "channel"})

	m.ToolCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "resolvr", Name: "tool_call_duration_seconds",
		Help:    "Tool handler latency.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"tool", "version", "status"})

	m.ToolRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resolvr", Name: "tool_retries_total",
		Help: "Tool handler retry attempts.",
	}, []string{"tool"})

	m.ToolValidationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resolvr", Name: "tool_validation_failures_total",
		Help: "Tool schema validation failures by direction (input/output).",
	}, []string{"tool", "direction"})

	m.ToolCacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resolvr", Name: "tool_cache_hits_total",
		Help: "Tool result cache hits.",
	}, []string{"tool"})

	m.ToolCacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resolvr", Name: "tool_cache_misses_total",
		Help: "Tool result cache misses.",
	}, []string{"tool"})

	m.ToolRateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resolvr", Name: "tool_rate_limited_total",
		Help: "Tool invocations rejected by the per-tenant rate limit.",
	}, []string{"tool", "tenant"})

	m.CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "resolvr", Name: "cache_hits_total", Help: "Cache store hits.",
	})
	m.CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "resolvr", Name: "cache_misses_total", Help: "Cache store misses.",
	})

	m.EscalationsTriggered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resolvr", Name: "escalations_triggered_total",
		Help: "Escalations by triggering policy check.",
	}, []string{"reason"})

	m.VOCUrgency = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resolvr", Name: "voc_urgency_total",
		Help: "Urgency classifications emitted by the pre-processor.",
	}, []string{"level"})

	m.LLMCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resolvr", Name: "llm_calls_total",
		Help: "LLM invocations by kind (process/refine) and status.",
	}, []string{"kind", "status"})

	m.SLABreaches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resolvr", Name: "sla_breaches_total",
		Help: "SLA threshold breaches by tier and metric (ttfr/ttr).",
	}, []string{"tier", "metric"})

	m.DependencyState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "resolvr", Name: "dependency_state",
		Help: "Dependency health: 0 healthy, 1 degraded, 2 circuit open.",
	}, []string{"dependency"})

	reg.MustRegister(
		m.MessagesProcessed, m.PipelineStepErrors, m.PipelineDuration,
		m.ToolCallDuration, m.ToolRetries, m.ToolValidationFailures,
		m.ToolCacheHits, m.ToolCacheMisses, m.ToolRateLimited,
		m.CacheHits, m.CacheMisses,
		m.EscalationsTriggered, m.VOCUrgency, m.LLMCalls, m.SLABreaches,
		m.DependencyState,
	)

	return m
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
