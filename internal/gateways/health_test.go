package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEndpointMetrics_RecordSuccess(t *testing.T) {
	metrics := NewEndpointMetrics()

	metrics.RecordSuccess(100)
	metrics.RecordSuccess(200)

	assert.Equal(t, int64(2), metrics.TotalRequests.Load())
	assert.Equal(t, int64(2), metrics.SuccessfulReqs.Load())
	assert.Equal(t, int64(0), metrics.FailedReqs.Load())
	assert.Equal(t, float64(1.0), metrics.SuccessRate())
	assert.Equal(t, int64(150), metrics.AvgLatencyMs())
}

func TestEndpointMetrics_RecordFailure(t *testing.T) {
	metrics := NewEndpointMetrics()

	metrics.RecordSuccess(100)
	metrics.RecordFailure()
	metrics.RecordFailure()

	assert.Equal(t, int64(3), metrics.TotalRequests.Load())
	assert.Equal(t, int64(1), metrics.SuccessfulReqs.Load())
	assert.Equal(t, int64(2), metrics.FailedReqs.Load())
	assert.InDelta(t, 0.333, metrics.SuccessRate(), 0.01)
	assert.Equal(t, int32(2), metrics.ConsecutiveFails.Load())
}

func TestEndpointMetrics_P95Latency(t *testing.T) {
	metrics := NewEndpointMetrics()

	for i := int64(0); i < 100; i++ {
		metrics.RecordSuccess(i * 10)
	}

	p95 := metrics.P95LatencyMs()
	assert.GreaterOrEqual(t, p95, int64(900))
	assert.LessOrEqual(t, p95, int64(990))
}

func TestHealthTracker_Allow(t *testing.T) {
	tracker := NewHealthTracker("test")

	t.Run("healthy endpoint is allowed", func(t *testing.T) {
		tracker.setState(StateHealthy)
		assert.NoError(t, tracker.Allow())
	})

	t.Run("degraded endpoint is allowed", func(t *testing.T) {
		tracker.setState(StateDegraded)
		assert.NoError(t, tracker.Allow())
	})

	t.Run("open circuit fails fast before cooldown", func(t *testing.T) {
		tracker.setState(StateCircuitOpen)
		tracker.circuitOpenUntil.Store(time.Now().Add(10 * time.Second).Unix())
		assert.ErrorIs(t, tracker.Allow(), ErrCircuitOpen)
	})

	t.Run("open circuit reopens degraded after cooldown", func(t *testing.T) {
		tracker.setState(StateCircuitOpen)
		tracker.circuitOpenUntil.Store(time.Now().Add(-1 * time.Second).Unix())
		assert.NoError(t, tracker.Allow())
		assert.Equal(t, StateDegraded, tracker.GetState())
	})

	t.Run("nil tracker is always allowed", func(t *testing.T) {
		var nilTracker *HealthTracker
		assert.NoError(t, nilTracker.Allow())
	})
}

func TestHealthTracker_CircuitOpensAfterThreshold(t *testing.T) {
	tracker := NewHealthTracker("test")

	for i := int32(0); i < defaultFailureThreshold-1; i++ {
		tracker.RecordFailure()
	}
	assert.NotEqual(t, StateCircuitOpen, tracker.GetState())

	tracker.RecordFailure()
	assert.Equal(t, StateCircuitOpen, tracker.GetState())
	assert.Greater(t, tracker.circuitOpenUntil.Load(), time.Now().Unix())
}

func TestHealthTracker_SuccessResetsConsecutiveFails(t *testing.T) {
	tracker := NewHealthTracker("test")

	tracker.RecordFailure()
	tracker.RecordFailure()
	tracker.RecordSuccess(50 * time.Millisecond)

	assert.Equal(t, int32(0), tracker.metrics.ConsecutiveFails.Load())
	assert.NotEqual(t, StateCircuitOpen, tracker.GetState())
}

func TestHealthTracker_DegradedRecovery(t *testing.T) {
	tracker := NewHealthTracker("test")
	tracker.setState(StateDegraded)

	for i := 0; i < 10; i++ {
		tracker.RecordSuccess(20 * time.Millisecond)
	}

	assert.Equal(t, StateHealthy, tracker.GetState())
}

func TestHealthTracker_Stats(t *testing.T) {
	tracker := NewHealthTracker("carrier-sms")

	tracker.RecordSuccess(100 * time.Millisecond)
	tracker.RecordSuccess(200 * time.Millisecond)
	tracker.RecordFailure()

	stats := tracker.Stats()
	assert.Equal(t, "carrier-sms", stats.Name)
	// One failure in three drops the success rate below the degradation
	// threshold.
	assert.Equal(t, "DEGRADED", stats.State)
	assert.Equal(t, int64(3), stats.TotalRequests)
	assert.Equal(t, int64(2), stats.SuccessfulReqs)
	assert.Equal(t, int64(1), stats.FailedReqs)
	assert.InDelta(t, 0.666, stats.SuccessRate, 0.01)
	// The average is taken over every request, failures included.
	assert.Equal(t, int64(100), stats.AvgLatencyMs)
	assert.Equal(t, int64(200), stats.LastLatencyMs)
	assert.Equal(t, int32(1), stats.ConsecutiveFails)
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    EndpointState
		expected string
	}{
		{StateHealthy, "HEALTHY"},
		{StateDegraded, "DEGRADED"},
		{StateCircuitOpen, "CIRCUIT_OPEN"},
		{EndpointState(999), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, stateString(tt.state))
		})
	}
}
