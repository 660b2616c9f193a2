// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Stream metrics
	NotificationsReceived prometheus.Counter
	StreamReconnects      prometheus.Counter
	FilterReplacements    prometheus.Counter
	FilterRollbacks       prometheus.Counter

	// Pipeline metrics
	TransactionsProcessed prometheus.Counter
	DuplicatesSkipped     prometheus.Counter
	EventsMatched         *prometheus.CounterVec
	PayloadsDropped       *prometheus.CounterVec

	// Classification metrics
	ClassificationRuns     *prometheus.CounterVec
	ClassificationPartials prometheus.Counter
	ClassifiedWallets      *prometheus.GaugeVec
	ClassificationDuration prometheus.Histogram

	// Tracker metrics
	StatusTransitions *prometheus.CounterVec
	StatesInitialized prometheus.Counter

	// Dispatch metrics
	AlertsEnqueued  prometheus.Counter
	AlertsDelivered *prometheus.CounterVec
	AlertQueueDepth prometheus.Gauge
	DeliveryLatency prometheus.Histogram

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastNotificationAt prometheus.Gauge
	LastSweepAt        prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_sentinel"
	}

	return &Metrics{
		// Stream metrics
		NotificationsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "notifications_received_total",
			Help:      "Total number of transaction notifications received",
		}),
		StreamReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Total number of websocket reconnects",
		}),
		FilterReplacements: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "filter_replacements_total",
			Help:      "Total number of subscription filter replacements sent",
		}),
		FilterRollbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "filter_rollbacks_total",
			Help:      "Total number of filter replacements rolled back",
		}),

		// Pipeline metrics
		TransactionsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "transactions_processed_total",
			Help:      "Total number of transactions run through the pipeline",
		}),
		DuplicatesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "duplicates_skipped_total",
			Help:      "Total number of already-processed signatures skipped",
		}),
		EventsMatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "events_matched_total",
			Help:      "Total number of events matched to classified wallets by role and action",
		}, []string{"role", "action"}),
		PayloadsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "payloads_dropped_total",
			Help:      "Total number of payloads dropped by reason",
		}, []string{"reason"}),

		// Classification metrics
		ClassificationRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "runs_total",
			Help:      "Total number of classification runs by outcome",
		}, []string{"outcome"}),
		ClassificationPartials: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "partial_failures_total",
			Help:      "Total number of partial sub-classification failures",
		}),
		ClassifiedWallets: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "classified_wallets",
			Help:      "Wallets classified in the most recent run by role",
		}, []string{"role"}),
		ClassificationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "duration_seconds",
			Help:      "Classification run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Tracker metrics
		StatusTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "status_transitions_total",
			Help:      "Total number of holding status transitions by target status",
		}, []string{"status"}),
		StatesInitialized: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "states_initialized_total",
			Help:      "Total number of wallet states seeded",
		}),

		// Dispatch metrics
		AlertsEnqueued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "alerts_enqueued_total",
			Help:      "Total number of alerts accepted into the queue",
		}),
		AlertsDelivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "alerts_delivered_total",
			Help:      "Total number of delivery attempts by outcome",
		}, []string{"outcome"}),
		AlertQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "queue_depth",
			Help:      "Current number of queued alerts",
		}),
		DeliveryLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "delivery_latency_seconds",
			Help:      "Time from enqueue to delivery attempt in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastNotificationAt: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_notification_timestamp",
			Help:      "Unix timestamp of the last stream notification",
		}),
		LastSweepAt: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_sweep_timestamp",
			Help:      "Unix timestamp of the last reclassification sweep",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordNotification marks one received stream notification.
func RecordNotification(unixSeconds float64) {
	DefaultMetrics.NotificationsReceived.Inc()
	DefaultMetrics.LastNotificationAt.Set(unixSeconds)
}

// RecordTransactionProcessed increments the processed transaction counter.
func RecordTransactionProcessed() {
	DefaultMetrics.TransactionsProcessed.Inc()
}

// RecordDuplicateSkipped increments the duplicate signature counter.
func RecordDuplicateSkipped() {
	DefaultMetrics.DuplicatesSkipped.Inc()
}

// RecordEventMatched records a matched classified-wallet event.
func RecordEventMatched(role, action string) {
	DefaultMetrics.EventsMatched.WithLabelValues(role, action).Inc()
}

// RecordPayloadDropped records a dropped payload.
func RecordPayloadDropped(reason string) {
	DefaultMetrics.PayloadsDropped.WithLabelValues(reason).Inc()
}

// RecordClassificationRun records one classification run.
func RecordClassificationRun(outcome string, durationSeconds float64) {
	DefaultMetrics.ClassificationRuns.WithLabelValues(outcome).Inc()
	DefaultMetrics.ClassificationDuration.Observe(durationSeconds)
}

// RecordStatusTransition records a holding status transition.
func RecordStatusTransition(status string) {
	DefaultMetrics.StatusTransitions.WithLabelValues(status).Inc()
}

// RecordDelivery records one delivery attempt.
func RecordDelivery(outcome string) {
	DefaultMetrics.AlertsDelivered.WithLabelValues(outcome).Inc()
}

// UpdateQueueDepth updates the alert queue depth gauge.
func UpdateQueueDepth(depth int) {
	DefaultMetrics.AlertQueueDepth.Set(float64(depth))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
