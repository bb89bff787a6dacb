// Package metrics exposes the Prometheus instrumentation shared by the
// routing, delivery and escalation components. Metrics are registered on
// the default registry; serve them with promhttp in the host process.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RoutingCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertkit_routing_cache_lookups_total",
			Help: "Routing cache lookups partitioned by outcome",
		},
		[]string{"outcome"}, // outcome: hit, miss
	)

	RoutesComputed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertkit_routes_computed_total",
			Help: "Full routing evaluations that bypassed or missed the cache",
		},
	)

	NotificationsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertkit_notifications_enqueued_total",
			Help: "Notifications accepted into the delivery queue by priority",
		},
		[]string{"priority"},
	)

	NotificationsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertkit_notifications_dropped_total",
			Help: "Notifications dropped before dispatch",
		},
		[]string{"reason"}, // reason: throttled, queue_full, expired
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "alertkit_delivery_queue_depth",
			Help: "Current number of notifications waiting for dispatch",
		},
	)

	DeliveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertkit_delivery_attempts_total",
			Help: "Per-channel delivery attempts by result",
		},
		[]string{"channel", "result"}, // result: success, failure
	)

	DeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alertkit_delivery_duration_seconds",
			Help:    "Wall time of a single channel send",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~160s
		},
		[]string{"channel"},
	)

	Escalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertkit_escalations_total",
			Help: "Escalation decisions by outcome",
		},
		[]string{"outcome"}, // outcome: escalated, limit_reached, no_match
	)
)

func RecordCacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	RoutingCacheLookups.WithLabelValues(outcome).Inc()
}

func RecordDeliveryAttempt(channel string, success bool, duration time.Duration) {
	result := "failure"
	if success {
		result = "success"
	}
	DeliveryAttempts.WithLabelValues(channel, result).Inc()
	DeliveryDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

func RecordDrop(reason string) {
	NotificationsDropped.WithLabelValues(reason).Inc()
}

func RecordEscalation(outcome string) {
	Escalations.WithLabelValues(outcome).Inc()
}
