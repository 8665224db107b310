package internal

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts backup attempts. A nil *Metrics records nothing.
type Metrics struct {
	pushes  *prometheus.CounterVec
	fetches *prometheus.CounterVec
	events  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scb",
			Name:      "push_total",
			Help:      "Channel backup push attempts by backend and outcome.",
		}, []string{"backend", "outcome"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scb",
			Name:      "fetch_total",
			Help:      "Channel backup fetch attempts by backend and outcome.",
		}, []string{"backend", "outcome"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scb",
			Name:      "stream_events_total",
			Help:      "Daemon backup stream events by kind.",
		}, []string{"kind"}),
	}
}

// Describe is part of prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.pushes.Describe(ch)
	m.fetches.Describe(ch)
	m.events.Describe(ch)
}

// Collect is part of prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.pushes.Collect(ch)
	m.fetches.Collect(ch)
	m.events.Collect(ch)
}

func (m *Metrics) push(backend, outcome string) {
	if m == nil {
		return
	}
	m.pushes.WithLabelValues(backend, outcome).Inc()
}

func (m *Metrics) fetch(backend string, o Outcome) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(backend, o.String()).Inc()
}

func (m *Metrics) event(k EventKind) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(k.String()).Inc()
}
