package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hshs"

// Verification results.
const (
	ResultValid       = "valid"
	ResultMalformed   = "malformed"
	ResultExpired     = "expired"
	ResultInvalidWork = "invalid_work"
	ResultBadSig      = "bad_signature"
	ResultReplayed    = "replayed"
	ResultOther       = "other"
)

// Metrics groups the collectors of the issuer, solver and verifier.
type Metrics struct {
	issued        *prometheus.CounterVec
	solveDuration *prometheus.HistogramVec
	counterSize   prometheus.Histogram
	verified      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		issued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "issuer",
			Name:      "challenges_total",
			Help:      "Number of issued challenges",
		}, []string{"bits"}),
		solveDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "solve_duration_seconds",
			Help:      "Time spent solving challenges",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		}, []string{"solved"}),
		counterSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "counter_size_bytes",
			Help:      "Length of winning counters",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 16),
		}),
		verified: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verifier",
			Name:      "verifications_total",
			Help:      "Number of verified challenges by result",
		}, []string{"result"}),
	}
}

// Issued records a newly issued challenge. A nil receiver is a no-op.
func (m *Metrics) Issued(bits string) {
	if m == nil {
		return
	}
	m.issued.WithLabelValues(bits).Inc()
}

// Solved records a finished solve attempt.
func (m *Metrics) Solved(solved bool, took time.Duration, counterSize int) {
	if m == nil {
		return
	}
	label := "false"
	if solved {
		label = "true"
		m.counterSize.Observe(float64(counterSize))
	}
	m.solveDuration.WithLabelValues(label).Observe(took.Seconds())
}

// Verified records the outcome of a verification.
func (m *Metrics) Verified(result string) {
	if m == nil {
		return
	}
	m.verified.WithLabelValues(result).Inc()
}
