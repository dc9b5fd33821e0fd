package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for a harvest run.
type Metrics struct {
	registry     *prometheus.Registry
	messages     *prometheus.CounterVec
	sourcePages  prometheus.Counter
	cutoff       prometheus.Gauge
	runDuration  prometheus.Gauge
	lastRunStart prometheus.Gauge
}

// New builds a Metrics with its own registry labelled with the channel name.
func New(channel string) *Metrics {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"channel": channel}
	m := &Metrics{
		registry: registry,
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "tgharvest",
			Name:        "messages_total",
			Help:        "Messages handled by the sync loop, by outcome",
			ConstLabels: labels,
		}, []string{"outcome"}),
		sourcePages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "tgharvest",
			Name:        "source_pages_total",
			Help:        "Pages fetched from the message source",
			ConstLabels: labels,
		}),
		cutoff: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "tgharvest",
			Name:        "last_run_cutoff_timestamp_seconds",
			Help:        "Cutoff used by the last run",
			ConstLabels: labels,
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "tgharvest",
			Name:        "last_run_duration_seconds",
			Help:        "Wall time of the last run",
			ConstLabels: labels,
		}),
		lastRunStart: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "tgharvest",
			Name:        "last_run_start_timestamp_seconds",
			Help:        "Start time of the last run",
			ConstLabels: labels,
		}),
	}

	registry.MustRegister(
		m.messages,
		m.sourcePages,
		m.cutoff,
		m.runDuration,
		m.lastRunStart,
	)
	return m
}

// Registry exposes the underlying gatherer.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// IncMessages increments the counter for an outcome
// (created, updated, skipped, failed).
func (m *Metrics) IncMessages(outcome string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(outcome).Inc()
}

// IncSourcePages counts one fetched source page.
func (m *Metrics) IncSourcePages() {
	if m == nil {
		return
	}
	m.sourcePages.Inc()
}

// ObserveRun records the start, cutoff and duration of a run.
func (m *Metrics) ObserveRun(start, cutoff time.Time, dur time.Duration) {
	if m == nil {
		return
	}
	m.lastRunStart.Set(float64(start.Unix()))
	m.cutoff.Set(float64(cutoff.Unix()))
	m.runDuration.Set(dur.Seconds())
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
