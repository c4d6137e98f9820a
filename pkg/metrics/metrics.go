// Package metrics provides Prometheus metrics for the Clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProximityScansTotal tracks candidate scans by route
	ProximityScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "proximity",
			Name:      "scans_total",
			Help:      "Total number of proximity candidate scans",
		},
		[]string{"route"},
	)

	// ProximityScanDuration tracks candidate scan duration in seconds
	ProximityScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "proximity",
			Name:      "scan_duration_seconds",
			Help:      "Duration of proximity candidate scans in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"route"},
	)

	// CrossingsTotal tracks counted crossings
	CrossingsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "crossings",
			Name:      "counted_total",
			Help:      "Total number of crossings that incremented a pair counter",
		},
	)

	// UnlocksTotal tracks pairs reaching the unlock threshold
	UnlocksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "crossings",
			Name:      "unlocks_total",
			Help:      "Total number of pairs that reached the unlock threshold",
		},
	)

	// AlertsTotal tracks anonymized alert outcomes
	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "alerts",
			Name:      "detections_total",
			Help:      "Total number of anonymized alert detections by outcome",
		},
		[]string{"outcome"},
	)

	// CleanupDeletedTotal tracks records purged by the retention janitor
	CleanupDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "cleanup",
			Name:      "deleted_total",
			Help:      "Total number of expired records deleted by cleanup",
		},
		[]string{"store"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)
)

// RecordScan records a proximity scan metric
func RecordScan(route string, durationSeconds float64) {
	ProximityScansTotal.WithLabelValues(route).Inc()
	ProximityScanDuration.WithLabelValues(route).Observe(durationSeconds)
}

// RecordAlert records an anonymized alert outcome
func RecordAlert(outcome string) {
	AlertsTotal.WithLabelValues(outcome).Inc()
}

// RecordCleanup records records deleted by a cleanup pass
func RecordCleanup(store string, deleted int64) {
	CleanupDeletedTotal.WithLabelValues(store).Add(float64(deleted))
}
