// Package metrics exposes Prometheus collectors for the session pool and
// the command executor.
//
// A nil *Metrics is valid and records nothing, so library code can take
// one unconditionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "workbox"

// Reasons a session leaves the pool.
const (
	ReasonExit     = "exit"
	ReasonClose    = "close"
	ReasonCloseAll = "close_all"
)

// Execution outcomes.
const (
	OutcomeExited   = "exited"
	OutcomeTimeout  = "timeout"
	OutcomeRejected = "rejected"
	OutcomeCanceled = "canceled"
	OutcomeError    = "error"
)

// Metrics holds all collectors.
type Metrics struct {
	SessionsActive  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionsClosed  *prometheus.CounterVec

	Executions        *prometheus.CounterVec
	ExecutionDuration prometheus.Histogram
	TruncatedOutputs  prometheus.Counter
}

// New registers every collector with reg. Passing nil uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live PTY sessions",
		}),
		SessionsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of PTY sessions created",
		}),
		SessionsClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Total number of PTY sessions removed from the pool",
		}, []string{"reason"}),

		Executions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Total number of one-shot command executions",
		}, []string{"outcome"}),
		ExecutionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Wall-clock duration of spawned command executions",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		TruncatedOutputs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "execution_truncated_total",
			Help:      "Executions whose output exceeded the cap",
		}),
	}
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
	m.SessionsActive.Inc()
}

func (m *Metrics) SessionClosed(reason string) {
	if m == nil {
		return
	}
	m.SessionsClosed.WithLabelValues(reason).Inc()
	m.SessionsActive.Dec()
}

// ExecutionFinished records one execution. took is ignored for rejected
// commands, which never spawn.
func (m *Metrics) ExecutionFinished(outcome string, took time.Duration, truncated bool) {
	if m == nil {
		return
	}
	m.Executions.WithLabelValues(outcome).Inc()
	if outcome != OutcomeRejected {
		m.ExecutionDuration.Observe(took.Seconds())
	}
	if truncated {
		m.TruncatedOutputs.Inc()
	}
}
