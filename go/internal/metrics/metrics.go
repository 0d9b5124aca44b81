package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector defines the interface for collecting scoreboard metrics
type Collector interface {
	RecordEventPublished(eventType string, delivered int)
	RecordSubscribers(delta int)
	RecordSubscriberDropped(reason string)
	RecordTimerStarted()
	RecordTimerStopped(reason string)
	RecordMutation(operation string, success bool, duration time.Duration)
	RecordRelayPublish(success bool)
}

// NoOpCollector is a no-op implementation for when metrics aren't needed
type NoOpCollector struct{}

func (NoOpCollector) RecordEventPublished(eventType string, delivered int)                   {}
func (NoOpCollector) RecordSubscribers(delta int)                                            {}
func (NoOpCollector) RecordSubscriberDropped(reason string)                                  {}
func (NoOpCollector) RecordTimerStarted()                                                    {}
func (NoOpCollector) RecordTimerStopped(reason string)                                       {}
func (NoOpCollector) RecordMutation(operation string, success bool, duration time.Duration) {}
func (NoOpCollector) RecordRelayPublish(success bool)                                        {}

// OrNoOp returns c, or a NoOpCollector when c is nil.
func OrNoOp(c Collector) Collector {
	if c == nil {
		return NoOpCollector{}
	}
	return c
}

// PrometheusMetrics implements Collector using the Prometheus client library
type PrometheusMetrics struct {
	registry *prometheus.Registry

	eventsPublished    *prometheus.CounterVec
	eventDeliveries    *prometheus.CounterVec
	subscribers        prometheus.Gauge
	subscribersDropped *prometheus.CounterVec
	activeTimers       prometheus.Gauge
	timerStops         *prometheus.CounterVec
	mutations          *prometheus.CounterVec
	mutationDuration   *prometheus.HistogramVec
	relayPublishes     *prometheus.CounterVec
}

// NewPrometheusMetrics registers all scoreboard collectors on a fresh registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scoreboard",
			Name:      "events_published_total",
			Help:      "Match events handed to the broadcast hub.",
		}, []string{"type"}),
		eventDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scoreboard",
			Name:      "event_deliveries_total",
			Help:      "Per-subscriber successful event deliveries.",
		}, []string{"type"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scoreboard",
			Name:      "subscribers",
			Help:      "Currently subscribed push channels across all matches.",
		}),
		subscribersDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scoreboard",
			Name:      "subscribers_dropped_total",
			Help:      "Subscribers removed after a failed send.",
		}, []string{"reason"}),
		activeTimers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scoreboard",
			Name:      "active_timers",
			Help:      "Match countdowns with a live scheduler task.",
		}),
		timerStops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scoreboard",
			Name:      "timer_stops_total",
			Help:      "Scheduler tasks ended, by reason.",
		}, []string{"reason"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scoreboard",
			Name:      "mutations_total",
			Help:      "Match mutation requests, by operation and outcome.",
		}, []string{"operation", "status"}),
		mutationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scoreboard",
			Name:      "mutation_duration_seconds",
			Help:      "Time spent inside the match critical section.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}, []string{"operation"}),
		relayPublishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scoreboard",
			Name:      "relay_publish_total",
			Help:      "Events mirrored to the message bus, by outcome.",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		m.eventsPublished,
		m.eventDeliveries,
		m.subscribers,
		m.subscribersDropped,
		m.activeTimers,
		m.timerStops,
		m.mutations,
		m.mutationDuration,
		m.relayPublishes,
		prometheus.NewGoCollector(),
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PrometheusMetrics) RecordEventPublished(eventType string, delivered int) {
	m.eventsPublished.WithLabelValues(eventType).Inc()
	if delivered > 0 {
		m.eventDeliveries.WithLabelValues(eventType).Add(float64(delivered))
	}
}

func (m *PrometheusMetrics) RecordSubscribers(delta int) {
	m.subscribers.Add(float64(delta))
}

func (m *PrometheusMetrics) RecordSubscriberDropped(reason string) {
	m.subscribersDropped.WithLabelValues(reason).Inc()
}

func (m *PrometheusMetrics) RecordTimerStarted() {
	m.activeTimers.Inc()
}

func (m *PrometheusMetrics) RecordTimerStopped(reason string) {
	m.activeTimers.Dec()
	m.timerStops.WithLabelValues(reason).Inc()
}

func (m *PrometheusMetrics) RecordMutation(operation string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.mutations.WithLabelValues(operation, status).Inc()
	m.mutationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordRelayPublish(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.relayPublishes.WithLabelValues(status).Inc()
}
