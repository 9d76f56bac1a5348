package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions     prometheus.Gauge
	SessionEvents      *prometheus.CounterVec
	TurnOutcomes       *prometheus.CounterVec
	ModerationFindings *prometheus.CounterVec
	ProviderErrors     *prometheus.CounterVec
	TurnLatency        prometheus.Histogram

	window *turnStageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active chat sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		TurnOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_outcomes_total",
			Help:      "Completed turns by terminal action.",
		}, []string{"action"}),
		ModerationFindings: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moderation_findings_total",
			Help:      "Moderation findings by stage, category and detector.",
		}, []string{"stage", "category", "detector"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider errors by provider and code.",
		}, []string{"provider", "code"}),
		TurnLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_ms",
			Help:      "End-to-end turn latency in milliseconds.",
			Buckets:   []float64{50, 100, 200, 350, 500, 800, 1200, 2000, 4000},
		}),
		window: newTurnStageWindow(256),
	}
}

func (m *Metrics) ObserveTurnLatency(d time.Duration) {
	m.TurnLatency.Observe(float64(d.Milliseconds()))
}

// ObserveTurnStage records a stage latency in the rolling window.
func (m *Metrics) ObserveTurnStage(stage string, d time.Duration) {
	if m == nil || m.window == nil {
		return
	}
	m.window.Observe(stage, float64(d.Microseconds())/1000.0)
}

// ObserveTurnIndicator counts a named event in the rolling window.
func (m *Metrics) ObserveTurnIndicator(name string) {
	if m == nil || m.window == nil {
		return
	}
	m.window.ObserveIndicator(name)
}

// TurnStageSnapshotNow reports the rolling stage latency percentiles.
func (m *Metrics) TurnStageSnapshotNow() TurnStageSnapshot {
	if m == nil || m.window == nil {
		return TurnStageSnapshot{}
	}
	return m.window.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
