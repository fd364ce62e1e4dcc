package goIdentity

import (
	"sync/atomic"
	"time"
)

// MetricID names one engine counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts login attempts that issued tokens.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts login attempts rejected for credentials or verification state.
	MetricLoginFailure
	// MetricLoginRateLimited counts login attempts rejected by the failure throttle.
	MetricLoginRateLimited
	// MetricRegisterSuccess counts accounts created.
	MetricRegisterSuccess
	// MetricRegisterDuplicate counts registrations rejected because the identifier was taken.
	MetricRegisterDuplicate
	MetricRefreshSuccess
	MetricRefreshFailure
	// MetricRefreshReuseDetected counts rotations of an already rotated token; the whole chain is revoked.
	MetricRefreshReuseDetected
	// MetricSessionCreated counts token pairs minted by login or federated sign-in.
	MetricSessionCreated
	MetricLogout
	MetricLogoutAll
	MetricVerificationRequested
	MetricVerificationConfirmed
	MetricVerificationFailure
	MetricPasswordResetRequested
	MetricPasswordResetSuccess
	MetricPasswordResetFailure
	// MetricCodeIssued counts one-time codes stored, for any channel and purpose.
	MetricCodeIssued
	MetricCodeRateLimited
	// MetricCodeRejected counts matched codes refused because they expired or ran out of attempts.
	MetricCodeRejected
	// MetricDeliveryFailure counts code or confirmation messages the delivery collaborator failed to send.
	MetricDeliveryFailure
	MetricLinkInitiated
	MetricLinkCompleted
	MetricLinkConflict
	MetricLinkFailure
	MetricFederatedSignIn
	// MetricValidateLatency is the access-token validation latency histogram.
	MetricValidateLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters plus one latency histogram.
// A nil or disabled Metrics ignores every call.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns counters configured by cfg. A disabled config yields
// a Metrics whose methods are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram of id when latency histograms are enabled.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricValidateLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. Histograms are included only when latency
// tracking is on.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricValidateLatency].buckets[i])
		}
		s.Histograms[MetricValidateLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
