// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

// Package metrics defines the Prometheus instrumentation for both Overwatch
// binaries. Agent-side series cover capture, the durable queue, and
// delivery; server-side series cover ingestion, persistence, and the
// aggregation API. Collectors register on the default registry via
// promauto, so importing the package is enough to expose them.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Capture Metrics (agent)
	EventsCaptured = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overwatch_events_captured_total",
			Help: "Total number of entity and error-log events captured",
		},
		[]string{"entity", "type"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overwatch_events_dropped_total",
			Help: "Total number of captured events dropped before enqueue",
		},
		[]string{"reason"}, // "rate_limit", "publish_failed", "serialize"
	)

	SnapshotsScheduled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "overwatch_snapshots_scheduled_total",
			Help: "Total number of snapshot markers enqueued by the scheduler",
		},
	)

	SnapshotBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "overwatch_snapshot_build_duration_seconds",
			Help:    "Duration of snapshot document assembly in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Queue Metrics (agent)
	QueuePublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overwatch_queue_published_total",
			Help: "Total number of messages published to the durable queue",
		},
		[]string{"topic"},
	)

	QueueConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overwatch_queue_consumed_total",
			Help: "Total number of messages consumed from the durable queue",
		},
		[]string{"topic"},
	)

	// Delivery Metrics (agent)
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overwatch_deliveries_total",
			Help: "Total number of delivery attempts by outcome",
		},
		[]string{"kind", "outcome"}, // kind: "event", "system_data"; outcome: "success", "rejected", "failed", "dropped"
	)

	DeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "overwatch_delivery_duration_seconds",
			Help:    "Duration of delivery HTTP calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	CircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "overwatch_delivery_breaker_state",
			Help: "Delivery circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	CredentialDaysRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "overwatch_credential_days_remaining",
			Help: "Whole days until the stored access token expires (negative when expired)",
		},
	)

	// Ingest Metrics (server)
	IngestAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overwatch_ingest_accepted_total",
			Help: "Total number of payloads accepted and persisted",
		},
		[]string{"kind"},
	)

	IngestRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overwatch_ingest_rejected_total",
			Help: "Total number of payloads rejected before persistence",
		},
		[]string{"kind", "reason"}, // reason: "auth", "validation", "database"
	)

	ChildPersistFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overwatch_child_persist_failures_total",
			Help: "Total number of snapshot child records that failed to persist",
		},
		[]string{"child"}, // "issue", "extension"
	)

	// Database Metrics (server)
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "overwatch_db_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overwatch_db_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// API Metrics (server)
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overwatch_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "overwatch_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "overwatch_api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	TokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overwatch_tokens_issued_total",
			Help: "Total number of access token grants by outcome",
		},
		[]string{"outcome"}, // "issued", "rejected"
	)
)

// RecordCapture records one captured event.
func RecordCapture(entity, action string) {
	EventsCaptured.WithLabelValues(entity, action).Inc()
}

// RecordDrop records one captured event dropped before enqueue.
func RecordDrop(reason string) {
	EventsDropped.WithLabelValues(reason).Inc()
}

// RecordDelivery records a delivery attempt and its outcome.
func RecordDelivery(kind, outcome string, duration time.Duration) {
	Deliveries.WithLabelValues(kind, outcome).Inc()
	DeliveryDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordDBQuery records a database query metric.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks in-flight API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
