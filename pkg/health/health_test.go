package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestTracker(threshold int, window time.Duration) (*Tracker, *time.Time) {
	tr := NewTracker(threshold, window, nil)
	now := time.Now()
	tr.now = func() time.Time { return now }
	return tr, &now
}

func TestTracker_HealthyByDefault(t *testing.T) {
	tr, _ := newTestTracker(5, 30*time.Second)
	for _, dep := range Dependencies {
		assert.True(t, tr.IsAvailable(dep), dep)
		assert.Equal(t, StatusHealthy, tr.Status(dep), dep)
	}
	assert.Equal(t, DegradationNone, tr.Degradation())
}

func TestTracker_DegradedAtHalfThreshold(t *testing.T) {
	tr, _ := newTestTracker(5, 30*time.Second)

	tr.RecordFailure(DepOMS)
	assert.Equal(t, StatusHealthy, tr.Status(DepOMS))

	tr.RecordFailure(DepOMS)
	assert.Equal(t, StatusDegraded, tr.Status(DepOMS))
	assert.True(t, tr.IsAvailable(DepOMS), "degraded dependency still accepts calls")
}

func TestTracker_CircuitOpensAtThreshold(t *testing.T) {
	tr, _ := newTestTracker(5, 30*time.Second)

	for i := 0; i < 5; i++ {
		tr.RecordFailure(DepLLM)
	}
	assert.Equal(t, StatusOpen, tr.Status(DepLLM))
	assert.False(t, tr.IsAvailable(DepLLM))
}

func TestTracker_HalfOpenProbe(t *testing.T) {
	tr, now := newTestTracker(5, 30*time.Second)

	for i := 0; i < 5; i++ {
		tr.RecordFailure(DepTracking)
	}
	assert.False(t, tr.IsAvailable(DepTracking))

	// Window expires: exactly one probe gets through.
	*now = now.Add(31 * time.Second)
	assert.True(t, tr.IsAvailable(DepTracking))
	assert.False(t, tr.IsAvailable(DepTracking), "second caller must wait for probe outcome")

	// Probe succeeds: circuit closes.
	tr.RecordSuccess(DepTracking)
	assert.True(t, tr.IsAvailable(DepTracking))
	assert.Equal(t, StatusHealthy, tr.Status(DepTracking))
}

func TestTracker_ProbeFailureReopens(t *testing.T) {
	tr, now := newTestTracker(5, 30*time.Second)

	for i := 0; i < 5; i++ {
		tr.RecordFailure(DepPayment)
	}
	*now = now.Add(31 * time.Second)
	assert.True(t, tr.IsAvailable(DepPayment))

	tr.RecordFailure(DepPayment)
	assert.False(t, tr.IsAvailable(DepPayment))
	assert.Equal(t, StatusOpen, tr.Status(DepPayment))
}

func TestTracker_SuccessResets(t *testing.T) {
	tr, _ := newTestTracker(5, 30*time.Second)

	tr.RecordFailure(DepOMS)
	tr.RecordFailure(DepOMS)
	tr.RecordSuccess(DepOMS)
	assert.Equal(t, StatusHealthy, tr.Status(DepOMS))
	assert.Equal(t, 0, tr.Snapshot()[1].ConsecutiveFailures) // oms is second in Dependencies
}

func TestTracker_DegradationLevels(t *testing.T) {
	tr, _ := newTestTracker(4, 30*time.Second)

	assert.Equal(t, DegradationNone, tr.Degradation())

	// Two degraded dependencies → partial.
	tr.RecordFailure(DepOMS)
	tr.RecordFailure(DepOMS)
	tr.RecordFailure(DepSearch)
	tr.RecordFailure(DepSearch)
	assert.Equal(t, DegradationPartial, tr.Degradation())

	// One open dependency → still partial.
	tr.RecordSuccess(DepOMS)
	tr.RecordSuccess(DepSearch)
	for i := 0; i < 4; i++ {
		tr.RecordFailure(DepOMS)
	}
	assert.Equal(t, DegradationPartial, tr.Degradation())

	// Three open dependencies → full.
	for i := 0; i < 4; i++ {
		tr.RecordFailure(DepSearch)
		tr.RecordFailure(DepPayment)
	}
	assert.Equal(t, DegradationFull, tr.Degradation())
}
