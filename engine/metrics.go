package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	turns        prometheus.Counter
	newRealities prometheus.Counter
	errors       *prometheus.CounterVec
	duration     prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		turns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reality_turns_total",
			Help: "Turns processed successfully.",
		}),
		newRealities: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reality_new_realities_total",
			Help: "Turns classified as a new reality.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reality_turn_errors_total",
			Help: "Failed turns by error kind.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reality_turn_duration_seconds",
			Help:    "Turn latency, successful or not.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.turns, m.newRealities, m.errors, m.duration)
	}
	return m
}

func (m *Metrics) turnCompleted(isNew bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.turns.Inc()
	if isNew {
		m.newRealities.Inc()
	}
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) turnFailed(kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(kind).Inc()
	m.duration.Observe(elapsed.Seconds())
}
