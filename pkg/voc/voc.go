// Package voc is the deterministic voice-of-customer pre-processor. It runs
// synchronously on every inbound turn before the LLM is involved: language
// detection, entity extraction, urgency classification, and risk flags, all
// from fixed rules so the same text and context always produce the same
// output.
package voc

import (
	"github.com/resolvr-ai/resolvr/pkg/config"
	"github.com/resolvr-ai/resolvr/pkg/metrics"
	"github.com/resolvr-ai/resolvr/pkg/models"
)

// Context carries the conversation signals that influence urgency and risk.
// All fields are optional; the zero value means a first turn.
type Context struct {
	TurnCount          int
	ClarificationCount int
	PreviousIntents    []string
}

// Processor runs the pre-processing battery. Safe for concurrent use; all
// state is immutable after construction.
type Processor struct {
	metrics *metrics.Metrics // optional
}

// NewProcessor creates a processor. m may be nil.
func NewProcessor(m *metrics.Metrics) *Processor {
	return &Processor{metrics: m}
}

// Process analyzes one inbound message under the tenant's thresholds.
func (p *Processor) Process(text string, tenant *config.TenantConfig, pctx Context) models.VOCResult {
	result := models.VOCResult{
		DetectedLanguages: detectLanguages(text),
		Entities:          extractEntities(text, tenant.VOC.OrderNumberPrefixes),
		RiskFlags:         detectRiskFlags(text, pctx.PreviousIntents),
	}
	result.Urgency = classifyUrgency(text, tenant.VOC, pctx)

	if p.metrics != nil {
		p.metrics.VOCUrgency.WithLabelValues(string(result.Urgency.Level)).Inc()
	}
	return result
}
