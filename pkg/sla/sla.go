// Package sla assigns service tiers and tracks time-to-first-response and
// time-to-resolution per conversation, emitting alerts when a tier threshold
// is crossed.
package sla

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/resolvr-ai/resolvr/pkg/config"
	"github.com/resolvr-ai/resolvr/pkg/metrics"
	"github.com/resolvr-ai/resolvr/pkg/models"
)

// Metric names used in breach alerts and counters.
const (
	MetricFirstResponse = "first_response"
	MetricResolution    = "resolution"
)

// DefaultTier is used when no customer attribute selects a better one.
const DefaultTier = "standard"

// Record is the per-conversation SLA tracking state.
type Record struct {
	ConversationID        string     `json:"conversation_id"`
	TenantID              string     `json:"tenant_id"`
	Tier                  string     `json:"tier"`
	StartedAt             time.Time  `json:"started_at"`
	FirstResponseAt       *time.Time `json:"first_response_at,omitempty"`
	ResolvedAt            *time.Time `json:"resolved_at,omitempty"`
	FirstResponseBreached bool       `json:"first_response_breached"`
	ResolutionBreached    bool       `json:"resolution_breached"`
}

// Alert describes one SLA breach.
type Alert struct {
	ConversationID string
	TenantID       string
	Tier           string
	Metric         string
	Elapsed        time.Duration
	Threshold      time.Duration
}

func (a Alert) String() string {
	return fmt.Sprintf("SLA breach: %s %s tier=%s elapsed=%s threshold=%s",
		a.ConversationID, a.Metric, a.Tier, a.Elapsed.Round(time.Second), a.Threshold)
}

// AlertSink receives breach alerts. Implementations must not block.
type AlertSink interface {
	SLABreach(ctx context.Context, alert Alert)
}

// Engine tracks SLA records for active conversations.
type Engine struct {
	cfg     *config.SLAConfig
	store   recordStore
	sink    AlertSink        // optional
	metrics *metrics.Metrics // optional
	now     func() time.Time // test hook
}

// NewEngine creates an engine. rdb selects the backend (nil for memory);
// sink and m may be nil.
func NewEngine(cfg *config.SLAConfig, rdb *redis.Client, sink AlertSink, m *metrics.Metrics) *Engine {
	var store recordStore
	if rdb != nil {
		store = &redisRecordStore{rdb: rdb}
	} else {
		store = newMemoryRecordStore()
	}
	return &Engine{cfg: cfg, store: store, sink: sink, metrics: m, now: time.Now}
}

// AssignTier picks the SLA tier from customer attributes. An explicit tier
// on the profile wins when it is configured; otherwise lifetime value and
// order history decide.
func (e *Engine) AssignTier(profile *models.CustomerProfile) string {
	if profile == nil {
		return DefaultTier
	}
	if profile.Tier != "" {
		if _, ok := e.cfg.Tiers[profile.Tier]; ok {
			return profile.Tier
		}
	}
	switch {
	case profile.LifetimeValuePaise >= 5_000_000:
		return "vip"
	case profile.OrderCount >= 10:
		return "priority"
	default:
		return DefaultTier
	}
}

// Start creates the SLA record for a conversation unless one already exists.
func (e *Engine) Start(ctx context.Context, conversationID, tenantID, tier string) error {
	existing, err := e.store.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return e.store.Save(ctx, &Record{
		ConversationID: conversationID,
		TenantID:       tenantID,
		Tier:           tier,
		StartedAt:      e.now(),
	}, true)
}

// RecordFirstResponse stamps the first assistant reply time, once.
func (e *Engine) RecordFirstResponse(ctx context.Context, conversationID string) error {
	rec, err := e.store.Get(ctx, conversationID)
	if err != nil || rec == nil {
		return err
	}
	if rec.FirstResponseAt != nil {
		return nil
	}
	now := e.now()
	rec.FirstResponseAt = &now
	return e.store.Save(ctx, rec, false)
}

// RecordResolution stamps the resolution time and retires the record from
// the active set.
func (e *Engine) RecordResolution(ctx context.Context, conversationID string) error {
	rec, err := e.store.Get(ctx, conversationID)
	if err != nil || rec == nil {
		return err
	}
	if rec.ResolvedAt == nil {
		now := e.now()
		rec.ResolvedAt = &now
		if err := e.store.Save(ctx, rec, false); err != nil {
			return err
		}
	}
	return e.store.Retire(ctx, conversationID)
}

// CheckBreaches evaluates the conversation's record against its tier
// thresholds, marking new breaches and emitting alerts. Already-reported
// breaches are not re-alerted.
func (e *Engine) CheckBreaches(ctx context.Context, conversationID string) []Alert {
	rec, err := e.store.Get(ctx, conversationID)
	if err != nil || rec == nil {
		return nil
	}
	tier, ok := e.cfg.Tiers[rec.Tier]
	if !ok {
		return nil
	}

	now := e.now()
	var alerts []Alert

	if !rec.FirstResponseBreached {
		elapsed, breached := elapsedOver(rec.StartedAt, rec.FirstResponseAt, now, tier.FirstResponse)
		if breached {
			rec.FirstResponseBreached = true
			alerts = append(alerts, Alert{
				ConversationID: rec.ConversationID, TenantID: rec.TenantID, Tier: rec.Tier,
				Metric: MetricFirstResponse, Elapsed: elapsed, Threshold: tier.FirstResponse,
			})
		}
	}
	if !rec.ResolutionBreached {
		elapsed, breached := elapsedOver(rec.StartedAt, rec.ResolvedAt, now, tier.Resolution)
		if breached {
			rec.ResolutionBreached = true
			alerts = append(alerts, Alert{
				ConversationID: rec.ConversationID, TenantID: rec.TenantID, Tier: rec.Tier,
				Metric: MetricResolution, Elapsed: elapsed, Threshold: tier.Resolution,
			})
		}
	}

	if len(alerts) == 0 {
		return nil
	}
	if err := e.store.Save(ctx, rec, false); err != nil {
		slog.Warn("SLA record save failed after breach", "conversation_id", conversationID, "error", err)
	}
	for _, alert := range alerts {
		slog.Warn("SLA breach detected",
			"conversation_id", alert.ConversationID,
			"tier", alert.Tier,
			"metric", alert.Metric,
			"elapsed", alert.Elapsed,
			"threshold", alert.Threshold)
		if e.metrics != nil {
			e.metrics.SLABreaches.WithLabelValues(alert.Tier, alert.Metric).Inc()
		}
		if e.sink != nil {
			e.sink.SLABreach(ctx, alert)
		}
	}
	return alerts
}

// Get returns the SLA record, or nil when none exists.
func (e *Engine) Get(ctx context.Context, conversationID string) (*Record, error) {
	return e.store.Get(ctx, conversationID)
}

// Active lists conversation ids with open SLA records.
func (e *Engine) Active(ctx context.Context) ([]string, error) {
	return e.store.Active(ctx)
}

// elapsedOver measures start→(done|now) and reports whether it exceeds the
// threshold. A completed metric within threshold can never breach later.
func elapsedOver(start time.Time, done *time.Time, now time.Time, threshold time.Duration) (time.Duration, bool) {
	end := now
	if done != nil {
		end = *done
	}
	elapsed := end.Sub(start)
	return elapsed, elapsed > threshold
}
