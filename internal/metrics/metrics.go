// Package metrics exposes Prometheus counters for the HTTP API and for
// recorded workouts.
package metrics

import (
	"github.com/claude/pushreps/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pushreps"

type Manager struct {
	// counters
	CounterRequests           *prometheus.CounterVec
	CounterSessions           *prometheus.CounterVec
	CounterReps               prometheus.Counter
	CounterPersistenceFailure prometheus.Counter

	// gauges
	GaugePendingSessions prometheus.Gauge

	// histograms
	HistRequestDuration prometheus.Histogram
}

// NewRegistry returns a registry with Go runtime and process collectors plus
// any extra collectors, such as a database pool collector.
func NewRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewBuildInfoCollector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	reg.MustRegister(extra...)
	return reg
}

func NewManager(reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	return &Manager{
		CounterRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "The total number of API requests",
		}, []string{"method", "status"}),
		CounterSessions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workout",
			Name:      "sessions_recorded_total",
			Help:      "Completed sessions persisted to the progress store",
		}, []string{"plan"}),
		CounterReps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workout",
			Name:      "reps_recorded_total",
			Help:      "Push-ups in persisted sessions",
		}),
		CounterPersistenceFailure: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workout",
			Name:      "persistence_failures_total",
			Help:      "Failed attempts to persist a completed session",
		}),
		GaugePendingSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workout",
			Name:      "pending_sessions",
			Help:      "Completed sessions waiting to be persisted",
		}),
		HistRequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of API requests in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

// SessionRecorded counts a persisted session.
func (m *Manager) SessionRecorded(rec models.SessionRecord) {
	m.CounterSessions.WithLabelValues(string(rec.PlanID)).Inc()
	m.CounterReps.Add(float64(rec.TotalReps))
}

func (m *Manager) PersistenceFailed() {
	m.CounterPersistenceFailure.Inc()
}

func (m *Manager) PendingChanged(n int) {
	m.GaugePendingSessions.Set(float64(n))
}
