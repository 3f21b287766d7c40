package gateway

import "sync/atomic"

// MetricID indexes one engine counter.
type MetricID uint16

const (
	MetricSignInSuccess MetricID = iota
	MetricSignInFailure
	MetricSignInRateLimited
	MetricSignInResetRequired
	MetricChallengeIssued
	MetricPasscodeVerified
	MetricPasscodeIncorrect
	MetricPasscodeExpired
	MetricPasscodeResent
	MetricResendRateLimited
	MetricRegisterEnrolled
	MetricRegisterRerouted
	MetricRegisterRateLimited
	MetricRegisterFailure
	MetricResetRequested
	MetricResetCompleted
	MetricResetExpired
	MetricResetRateLimited
	MetricReconcileCredentialRepaired
	MetricReconcileFlagSynced
	MetricReconcileFailure
	MetricSessionIssued
	MetricSessionRefreshed
	MetricSignOut
	MetricFlowStateRejected
	MetricProviderUnavailable
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is the in-process counter registry. All methods are safe for
// concurrent use and are no-ops when the registry is disabled.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics builds a registry from cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Enabled reports whether the registry records anything.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value reads a single counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. A disabled registry yields empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}

	s := MetricsSnapshot{Counters: make(map[MetricID]uint64, int(metricIDCount))}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
