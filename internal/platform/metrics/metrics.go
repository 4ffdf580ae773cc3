package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dispatchdesk"

// Metrics holds the client's instruments on a private registry; nothing is
// registered globally.
type Metrics struct {
	registry *prometheus.Registry

	Unauthorized       prometheus.Counter
	SessionTransitions *prometheus.CounterVec
	SnapshotsApplied   *prometheus.CounterVec
	SnapshotsDiscarded *prometheus.CounterVec
	PullFailures       prometheus.Counter
	LiveChannelState   prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Unauthorized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_unauthorized_total",
			Help:      "Responses with status 401 observed by the transport guard.",
		}),
		SessionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Session state machine transitions by target status.",
		}, []string{"status"}),
		SnapshotsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dashboard_snapshots_applied_total",
			Help:      "Dashboard snapshots applied to the view state by source.",
		}, []string{"source"}),
		SnapshotsDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dashboard_snapshots_discarded_total",
			Help:      "Dashboard snapshots dropped because the view was unmounted or superseded.",
		}, []string{"source"}),
		PullFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dashboard_pull_failures_total",
			Help:      "Failed dashboard pull fetches.",
		}),
		LiveChannelState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_channel_state",
			Help:      "Live update channel state (0 closed, 1 connecting, 2 open).",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		m.Unauthorized,
		m.SessionTransitions,
		m.SnapshotsApplied,
		m.SnapshotsDiscarded,
		m.PullFailures,
		m.LiveChannelState,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// The helpers below accept a nil receiver so components can run without metrics.

func (m *Metrics) IncUnauthorized() {
	if m != nil {
		m.Unauthorized.Inc()
	}
}

func (m *Metrics) IncTransition(status string) {
	if m != nil {
		m.SessionTransitions.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncApplied(source string) {
	if m != nil {
		m.SnapshotsApplied.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) IncDiscarded(source string) {
	if m != nil {
		m.SnapshotsDiscarded.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) IncPullFailure() {
	if m != nil {
		m.PullFailures.Inc()
	}
}

func (m *Metrics) SetLiveState(state int) {
	if m != nil {
		m.LiveChannelState.Set(float64(state))
	}
}
