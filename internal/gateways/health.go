package gateway

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimasrn/messaging-gateway/pkg/logger"
)

var ErrCircuitOpen = errors.New("platform circuit open")

type EndpointState int32

const (
	StateHealthy EndpointState = iota
	StateDegraded
	StateCircuitOpen
)

const (
	defaultFailureThreshold = 5
	defaultCircuitCooldown  = 30 * time.Second
	degradedSuccessRate     = 0.8
)

// EndpointMetrics tracks request outcomes against one platform endpoint.
type EndpointMetrics struct {
	TotalRequests    atomic.Int64
	SuccessfulReqs   atomic.Int64
	FailedReqs       atomic.Int64
	TotalLatencyMs   atomic.Int64
	LastLatencyMs    atomic.Int64
	ConsecutiveFails atomic.Int32
	LastErrorTime    atomic.Int64
	LastSuccessTime  atomic.Int64

	mu             sync.RWMutex
	latencyHistory []int64 // last N latencies for percentile calculation
	maxHistorySize int
}

func NewEndpointMetrics() *EndpointMetrics {
	return &EndpointMetrics{
		latencyHistory: make([]int64, 0, 100),
		maxHistorySize: 100,
	}
}

func (m *EndpointMetrics) RecordSuccess(latencyMs int64) {
	m.TotalRequests.Add(1)
	m.SuccessfulReqs.Add(1)
	m.TotalLatencyMs.Add(latencyMs)
	m.LastLatencyMs.Store(latencyMs)
	m.ConsecutiveFails.Store(0)
	m.LastSuccessTime.Store(time.Now().Unix())

	m.mu.Lock()
	if len(m.latencyHistory) >= m.maxHistorySize {
		m.latencyHistory = m.latencyHistory[1:]
	}
	m.latencyHistory = append(m.latencyHistory, latencyMs)
	m.mu.Unlock()
}

func (m *EndpointMetrics) RecordFailure() {
	m.TotalRequests.Add(1)
	m.FailedReqs.Add(1)
	m.ConsecutiveFails.Add(1)
	m.LastErrorTime.Store(time.Now().Unix())
}

func (m *EndpointMetrics) AvgLatencyMs() int64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 0
	}
	return m.TotalLatencyMs.Load() / total
}

func (m *EndpointMetrics) SuccessRate() float64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 1.0
	}
	return float64(m.SuccessfulReqs.Load()) / float64(total)
}

func (m *EndpointMetrics) P95LatencyMs() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.latencyHistory) == 0 {
		return 0
	}

	sorted := make([]int64, len(m.latencyHistory))
	copy(sorted, m.latencyHistory)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	p95Index := int(float64(len(sorted)) * 0.95)
	if p95Index >= len(sorted) {
		p95Index = len(sorted) - 1
	}
	return sorted[p95Index]
}

// HealthTracker is a per-platform circuit breaker. Transport failures
// open the circuit after a threshold of consecutive fails; sends during
// the cooldown fail fast with ErrCircuitOpen so the queue backs the
// message off instead of burning a timeout per attempt.
type HealthTracker struct {
	name             string
	metrics          *EndpointMetrics
	state            atomic.Int32
	circuitOpenUntil atomic.Int64

	failureThreshold int32
	cooldown         time.Duration
}

func NewHealthTracker(name string) *HealthTracker {
	t := &HealthTracker{
		name:             name,
		metrics:          NewEndpointMetrics(),
		failureThreshold: defaultFailureThreshold,
		cooldown:         defaultCircuitCooldown,
	}
	t.state.Store(int32(StateHealthy))
	return t
}

func (t *HealthTracker) GetState() EndpointState {
	return EndpointState(t.state.Load())
}

func (t *HealthTracker) setState(state EndpointState) {
	t.state.Store(int32(state))
}

// Allow reports whether a request may be attempted. A circuit that has
// cooled down reopens half-way, in the degraded state.
func (t *HealthTracker) Allow() error {
	if t == nil {
		return nil
	}
	if t.GetState() == StateCircuitOpen {
		if time.Now().Unix() > t.circuitOpenUntil.Load() {
			t.setState(StateDegraded)
			return nil
		}
		return ErrCircuitOpen
	}
	return nil
}

func (t *HealthTracker) RecordSuccess(latency time.Duration) {
	if t == nil {
		return
	}
	t.metrics.RecordSuccess(latency.Milliseconds())

	if t.GetState() == StateDegraded && t.metrics.SuccessRate() >= degradedSuccessRate {
		t.setState(StateHealthy)
		logger.Info("platform endpoint recovered", "platform", t.name)
	}
}

func (t *HealthTracker) RecordFailure() {
	if t == nil {
		return
	}
	t.metrics.RecordFailure()

	fails := t.metrics.ConsecutiveFails.Load()
	if fails >= t.failureThreshold && t.GetState() != StateCircuitOpen {
		t.setState(StateCircuitOpen)
		t.circuitOpenUntil.Store(time.Now().Add(t.cooldown).Unix())
		logger.Warn("platform circuit opened",
			"platform", t.name,
			"consecutive_fails", fails,
			"cooldown", t.cooldown)
	} else if t.metrics.SuccessRate() < degradedSuccessRate && t.GetState() == StateHealthy {
		t.setState(StateDegraded)
		logger.Warn("platform endpoint degraded",
			"platform", t.name,
			"success_rate", t.metrics.SuccessRate())
	}
}

// EndpointStats is a point-in-time view of one platform's health.
type EndpointStats struct {
	Name             string
	State            string
	TotalRequests    int64
	SuccessfulReqs   int64
	FailedReqs       int64
	SuccessRate      float64
	AvgLatencyMs     int64
	P95LatencyMs     int64
	LastLatencyMs    int64
	ConsecutiveFails int32
}

func (t *HealthTracker) Stats() EndpointStats {
	return EndpointStats{
		Name:             t.name,
		State:            stateString(t.GetState()),
		TotalRequests:    t.metrics.TotalRequests.Load(),
		SuccessfulReqs:   t.metrics.SuccessfulReqs.Load(),
		FailedReqs:       t.metrics.FailedReqs.Load(),
		SuccessRate:      t.metrics.SuccessRate(),
		AvgLatencyMs:     t.metrics.AvgLatencyMs(),
		P95LatencyMs:     t.metrics.P95LatencyMs(),
		LastLatencyMs:    t.metrics.LastLatencyMs.Load(),
		ConsecutiveFails: t.metrics.ConsecutiveFails.Load(),
	}
}

func stateString(state EndpointState) string {
	switch state {
	case StateHealthy:
		return "HEALTHY"
	case StateDegraded:
		return "DEGRADED"
	case StateCircuitOpen:
		return "CIRCUIT_OPEN"
	default:
		return "UNKNOWN"
	}
}
