// Package health tracks per-dependency failure state and gates calls with a
// circuit breaker. It also derives the overall degradation level the
// orchestrator uses to pick fallback behavior.
package health

import (
	"log/slog"
	"sync"
	"time"

	"github.com/resolvr-ai/resolvr/pkg/metrics"
)

// Tracked dependency names.
const (
	DepRedis     = "redis"
	DepOMS       = "oms"
	DepTracking  = "tracking"
	DepTicketing = "ticketing"
	DepLLM       = "llm"
	DepSearch    = "search"
	DepPayment   = "payment"
)

// Dependencies lists every tracked dependency.
var Dependencies = []string{DepRedis, DepOMS, DepTracking, DepTicketing, DepLLM, DepSearch, DepPayment}

// Status is the health classification of one dependency.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusOpen     Status = "open"
)

// DegradationLevel is the platform-wide degradation classification.
type DegradationLevel string

const (
	DegradationNone    DegradationLevel = "none"
	DegradationPartial DegradationLevel = "partial"
	DegradationFull    DegradationLevel = "full"
)

// DepSnapshot is the externally visible state of one dependency.
type DepSnapshot struct {
	Name                string    `json:"name"`
	Status              Status    `json:"status"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	CircuitOpenUntil    time.Time `json:"circuit_open_until,omitempty"`
}

type depState struct {
	consecutiveFailures int
	circuitOpen         bool
	circuitOpenUntil    time.Time
	probeInFlight       bool
}

// Tracker is the process-wide dependency health registry. Safe for
// concurrent use.
type Tracker struct {
	mu        sync.Mutex
	deps      map[string]*depState
	threshold int
	resetWin  time.Duration
	metrics   *metrics.Metrics // optional
	now       func() time.Time // test hook
}

// NewTracker creates a tracker for the standard dependency set. m may be nil.
func NewTracker(threshold int, resetWindow time.Duration, m *metrics.Metrics) *Tracker {
	if threshold <= 0 {
		threshold = 5
	}
	if resetWindow <= 0 {
		resetWindow = 30 * time.Second
	}
	t := &Tracker{
		deps:      make(map[string]*depState, len(Dependencies)),
		threshold: threshold,
		resetWin:  resetWindow,
		metrics:   m,
		now:       time.Now,
	}
	for _, name := range Dependencies {
		t.deps[name] = &depState{}
	}
	return t
}

func (t *Tracker) state(name string) *depState {
	s, ok := t.deps[name]
	if !ok {
		s = &depState{}
		t.deps[name] = s
	}
	return s
}

// RecordSuccess resets the dependency to healthy.
func (t *Tracker) RecordSuccess(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.state(name)
	if s.circuitOpen {
		slog.Info("Dependency recovered, closing circuit", "dependency", name)
	}
	s.consecutiveFailures = 0
	s.circuitOpen = false
	s.circuitOpenUntil = time.Time{}
	s.probeInFlight = false
	t.publishLocked(name, s)
}

// RecordFailure increments the failure count; at the threshold the circuit
// opens for the reset window.
func (t *Tracker) RecordFailure(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.state(name)
	s.consecutiveFailures++
	s.probeInFlight = false

	if s.consecutiveFailures >= t.threshold {
		s.circuitOpen = true
		s.circuitOpenUntil = t.now().Add(t.resetWin)
		slog.Warn("Dependency circuit opened",
			"dependency", name,
			"failures", s.consecutiveFailures,
			"reopen_at", s.circuitOpenUntil)
	} else if s.consecutiveFailures >= t.threshold/2 {
		slog.Warn("Dependency degraded",
			"dependency", name, "failures", s.consecutiveFailures)
	}
	t.publishLocked(name, s)
}

// IsAvailable reports whether calls to the dependency may proceed. When the
// open window has expired, exactly one caller is let through as the
// half-open probe until its outcome is recorded.
func (t *Tracker) IsAvailable(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.state(name)
	if !s.circuitOpen {
		return true
	}
	if t.now().Before(s.circuitOpenUntil) {
		return false
	}
	if s.probeInFlight {
		return false
	}
	s.probeInFlight = true
	return true
}

// Status returns the dependency's health classification.
func (t *Tracker) Status(name string) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statusLocked(t.state(name))
}

func (t *Tracker) statusLocked(s *depState) Status {
	switch {
	case s.circuitOpen && t.now().Before(s.circuitOpenUntil):
		return StatusOpen
	case s.circuitOpen:
		// Window expired, awaiting probe outcome.
		return StatusOpen
	case s.consecutiveFailures >= t.threshold/2:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// Degradation derives the platform degradation level: full when 3+
// dependencies are down, partial when any is down or 2+ are degraded.
func (t *Tracker) Degradation() DegradationLevel {
	t.mu.Lock()
	defer t.mu.Unlock()

	var down, degraded int
	for _, s := range t.deps {
		switch t.statusLocked(s) {
		case StatusOpen:
			down++
		case StatusDegraded:
			degraded++
		}
	}

	switch {
	case down >= 3:
		return DegradationFull
	case down >= 1 || degraded >= 2:
		return DegradationPartial
	default:
		return DegradationNone
	}
}

// Snapshot returns the state of every tracked dependency.
func (t *Tracker) Snapshot() []DepSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]DepSnapshot, 0, len(Dependencies))
	for _, name := range Dependencies {
		s := t.state(name)
		snap := DepSnapshot{
			Name:                name,
			Status:              t.statusLocked(s),
			ConsecutiveFailures: s.consecutiveFailures,
		}
		if s.circuitOpen {
			snap.CircuitOpenUntil = s.circuitOpenUntil
		}
		out = append(out, snap)
	}
	return out
}

func (t *Tracker) publishLocked(name string, s *depState) {
	if t.metrics == nil {
		return
	}
	var v float64
	switch t.statusLocked(s) {
	case StatusDegraded:
		v = 1
	case StatusOpen:
		v = 2
	}
	t.metrics.DependencyState.WithLabelValues(name).Set(v)
}
