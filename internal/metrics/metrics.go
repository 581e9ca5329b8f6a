// Package metrics holds the Prometheus instruments of the bot.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "validade"

// Metrics groups all Prometheus instruments used by the service. Methods
// on a nil *Metrics are no-ops so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	ActiveSessions     prometheus.Gauge
	Messages           *prometheus.CounterVec
	Transitions        *prometheus.CounterVec
	Extractions        *prometheus.CounterVec
	ExtractionLatency  *prometheus.HistogramVec
	RemindersCommitted prometheus.Counter
	RemindersFired     *prometheus.CounterVec
	RemindersPastDue   prometheus.Counter
	ArmedTimers        prometheus.Gauge
}

// New registers every instrument on a fresh registry, together with the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of open reminder conversations.",
		}),
		Messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Inbound messages by channel.",
		}, []string{"channel"}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Conversation steps by resulting state.",
		}, []string{"state"}),
		Extractions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Extraction calls by source and outcome.",
		}, []string{"source", "outcome"}),
		ExtractionLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_latency_ms",
			Help:      "Extraction call latency in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		}, []string{"source"}),
		RemindersCommitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_committed_total",
			Help:      "Reminders persisted on confirmation.",
		}),
		RemindersFired: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_fired_total",
			Help:      "Fired reminders by delivery outcome.",
		}, []string{"outcome"}),
		RemindersPastDue: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_past_due_total",
			Help:      "Schedule calls skipped because the fire time had passed.",
		}),
		ArmedTimers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "armed_timers",
			Help:      "Reminder timers currently armed.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) MessageReceived(channel string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(channel).Inc()
}

func (m *Metrics) StateReached(state string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(state).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

// ObserveExtraction records one extraction call; outcome is "ok",
// "empty" or "error".
func (m *Metrics) ObserveExtraction(source, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Extractions.WithLabelValues(source, outcome).Inc()
	m.ExtractionLatency.WithLabelValues(source).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) ReminderCommitted() {
	if m == nil {
		return
	}
	m.RemindersCommitted.Inc()
}

// ReminderFired records a fired reminder; outcome is "sent" or "failed".
func (m *Metrics) ReminderFired(outcome string) {
	if m == nil {
		return
	}
	m.RemindersFired.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ReminderPastDue() {
	if m == nil {
		return
	}
	m.RemindersPastDue.Inc()
}

func (m *Metrics) SetArmedTimers(n int) {
	if m == nil {
		return
	}
	m.ArmedTimers.Set(float64(n))
}
