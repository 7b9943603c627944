// Package metrics provides Prometheus metrics for the radio server
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the radio server.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Session protocol metrics
	EventsTotal    *prometheus.CounterVec
	EventDuration  *prometheus.HistogramVec
	ActiveSessions prometheus.Gauge
	ActiveScans    prometheus.Gauge

	// Dialogue metrics
	DialogueTurnDuration prometheus.Histogram
	LLMFallbacksTotal    *prometheus.CounterVec
	TTSFailuresTotal     *prometheus.CounterVec

	// Narrative metrics
	FlagsSetTotal *prometheus.CounterVec

	ServerStartTime time.Time
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	m.EventsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frequency_events_total",
			Help: "Total number of client events handled",
		},
		[]string{"event", "status"},
	)

	m.EventDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "frequency_event_duration_seconds",
			Help:    "Duration of client event handling in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"event"},
	)

	m.ActiveSessions = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "frequency_active_sessions",
			Help: "Number of open radio sessions",
		},
	)

	m.ActiveScans = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "frequency_active_scans",
			Help: "Number of sessions currently scanning",
		},
	)

	m.DialogueTurnDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "frequency_dialogue_turn_duration_seconds",
			Help:    "Duration of a full push-to-talk turn in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2, 4, 8, 16, 32},
		},
	)

	m.LLMFallbacksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frequency_llm_fallbacks_total",
			Help: "Total number of scripted replies served instead of a model reply",
		},
		[]string{"reason"},
	)

	m.TTSFailuresTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frequency_tts_failures_total",
			Help: "Total number of replies sent without audio",
		},
		[]string{"reason"},
	)

	m.FlagsSetTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frequency_flags_set_total",
			Help: "Total number of narrative flags newly set",
		},
		[]string{"source"},
	)

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "frequency_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
		func() float64 { return time.Since(m.ServerStartTime).Seconds() },
	)

	return m
}

// RecordEvent records a handled client event with its status
func (m *Metrics) RecordEvent(event, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(event, status).Inc()
	m.EventDuration.WithLabelValues(event).Observe(duration.Seconds())
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.ActiveSessions.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.ActiveSessions.Dec()
	}
}

func (m *Metrics) ScanStarted() {
	if m != nil {
		m.ActiveScans.Inc()
	}
}

func (m *Metrics) ScanStopped() {
	if m != nil {
		m.ActiveScans.Dec()
	}
}

func (m *Metrics) RecordDialogueTurn(duration time.Duration) {
	if m != nil {
		m.DialogueTurnDuration.Observe(duration.Seconds())
	}
}

func (m *Metrics) RecordLLMFallback(reason string) {
	if m != nil {
		m.LLMFallbacksTotal.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) RecordTTSFailure(reason string) {
	if m != nil {
		m.TTSFailuresTotal.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) RecordFlagSet(source string) {
	if m != nil {
		m.FlagsSetTotal.WithLabelValues(source).Inc()
	}
}
