// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "famcal"

// Metrics groups every collector. Construct one per registry.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	expansions          prometheus.Counter
	expandedEvents      prometheus.Counter
	expandedOccurrences prometheus.Counter
	expansionFaults     prometheus.Counter
	expansionDuration   prometheus.Histogram

	reminders *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		expansions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "expander",
			Name:      "windows_total",
			Help:      "Occurrence windows expanded (cache misses).",
		}),
		expandedEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "expander",
			Name:      "events_total",
			Help:      "Base events loaded for expansion.",
		}),
		expandedOccurrences: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "expander",
			Name:      "occurrences_total",
			Help:      "Occurrences produced by expansion.",
		}),
		expansionFaults: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "expander",
			Name:      "faults_total",
			Help:      "Events skipped because their recurrence could not be expanded.",
		}),
		expansionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "expander",
			Name:      "window_duration_seconds",
			Help:      "Time spent loading and expanding one window.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		reminders: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminder",
			Name:      "notifications_total",
			Help:      "Reminder notifications by outcome.",
		}, []string{"outcome"}),
	}
}

// ObserveExpansion records one ListOccurrences expansion.
func (m *Metrics) ObserveExpansion(events, occurrences, faults int, elapsed time.Duration) {
	m.expansions.Inc()
	m.expandedEvents.Add(float64(events))
	m.expandedOccurrences.Add(float64(occurrences))
	m.expansionFaults.Add(float64(faults))
	m.expansionDuration.Observe(elapsed.Seconds())
}

// ObserveRequest records one HTTP request against its route template.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveReminder records a reminder delivery; outcome is "sent" or "failed".
func (m *Metrics) ObserveReminder(outcome string) {
	m.reminders.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
