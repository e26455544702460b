package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus metrics for the orchestration engine.
//
// Tracked series:
//   - Active session count for capacity planning
//   - Conversation turns by outcome
//   - Provider errors by pipeline stage
//   - Turn pipeline latency
//   - Idle sweeper reaps
//   - Call terminations by reason
type Metrics struct {
	// ActiveSessions is a gauge tracking currently active call sessions.
	ActiveSessions prometheus.Gauge

	// TurnsTotal counts conversation turns.
	// Labels: status (completed|no_speech|dropped|error)
	TurnsTotal *prometheus.CounterVec

	// TurnDuration measures full pipeline latency in seconds.
	// Buckets span 0.1s to 30s; a turn includes four provider calls.
	TurnDuration prometheus.Histogram

	// ProviderErrors counts provider failures by pipeline stage.
	// Labels: stage (transcribe|classify|generate|synthesize|summarize|persist)
	ProviderErrors *prometheus.CounterVec

	// SweeperReaped counts sessions force-terminated by the idle sweeper.
	SweeperReaped prometheus.Counter

	// CallsEnded counts call terminations.
	// Labels: reason (completed|transfer|error_limit_exceeded|timeout|...)
	CallsEnded *prometheus.CounterVec

	// CallDuration measures call lifetime in seconds.
	CallDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the given registerer.
// Pass prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voxflow_active_sessions",
			Help: "Number of currently active call sessions.",
		}),
		TurnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxflow_turns_total",
			Help: "Conversation turns processed, by outcome.",
		}, []string{"status"}),
		TurnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxflow_turn_duration_seconds",
			Help:    "End-to-end turn pipeline latency.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		ProviderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxflow_provider_errors_total",
			Help: "Provider failures by pipeline stage.",
		}, []string{"stage"}),
		SweeperReaped: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxflow_sweeper_reaped_total",
			Help: "Sessions force-terminated by the idle sweeper.",
		}),
		CallsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxflow_calls_ended_total",
			Help: "Call terminations by reason.",
		}, []string{"reason"}),
		CallDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxflow_call_duration_seconds",
			Help:    "Call lifetime from session creation to termination.",
			Buckets: []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
		}),
	}
}

// NewNopMetrics returns metrics backed by a private registry. Intended for tests.
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
