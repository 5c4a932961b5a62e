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
	// Classification metrics
	EventsClassified *prometheus.CounterVec
	EventsDiscarded  *prometheus.CounterVec
	EventPanics      *prometheus.CounterVec

	// Persistence metrics
	TransactionsRecorded  *prometheus.CounterVec
	TransactionDuplicates *prometheus.CounterVec
	AggregateErrors       *prometheus.CounterVec

	// Alert metrics
	AlertsDispatched *prometheus.CounterVec

	// Upstream metrics
	PriceLookups       *prometheus.CounterVec
	RPCCallLatency     *prometheus.HistogramVec
	SubscriptionDrops  *prometheus.CounterVec
	ActiveTrackedToken *prometheus.GaugeVec

	// Latency metrics
	EventProcessingLatency *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance registered with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "safeguard_bot"
	}
	f := promauto.With(reg)

	return &Metrics{
		EventsClassified: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "events_classified_total",
			Help:      "Total number of events classified as swaps by chain and direction",
		}, []string{"chain", "direction"}),
		EventsDiscarded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "events_discarded_total",
			Help:      "Total number of events discarded by chain and reason",
		}, []string{"chain", "reason"}),
		EventPanics: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "event_panics_total",
			Help:      "Total number of events whose processing panicked",
		}, []string{"chain"}),

		TransactionsRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "transactions_recorded_total",
			Help:      "Total number of new transactions persisted",
		}, []string{"chain"}),
		TransactionDuplicates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "transaction_duplicates_total",
			Help:      "Total number of inserts resolved as already recorded",
		}, []string{"chain"}),
		AggregateErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "aggregate_errors_total",
			Help:      "Total number of failed daily aggregate updates",
		}, []string{"chain"}),

		AlertsDispatched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alert",
			Name:      "dispatched_total",
			Help:      "Total number of alert dispatch outcomes",
		}, []string{"chain", "outcome"}),

		PriceLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "price",
			Name:      "lookups_total",
			Help:      "Total number of price lookups by source and outcome",
		}, []string{"source", "outcome"}),
		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_latency_seconds",
			Help:      "Chain RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"chain", "method"}),
		SubscriptionDrops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "subscription_drops_total",
			Help:      "Total number of lost log subscriptions",
		}, []string{"chain"}),
		ActiveTrackedToken: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tokens",
			Name:      "active",
			Help:      "Number of active tracked tokens by chain",
		}, []string{"chain"}),

		EventProcessingLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "event_processing_latency_seconds",
			Help:      "Event processing latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"chain"}),

		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", prometheus.DefaultRegisterer)

// RecordClassified increments the classified events counter.
func RecordClassified(chain, direction string) {
	DefaultMetrics.EventsClassified.WithLabelValues(chain, direction).Inc()
}

// RecordDiscarded increments the discarded events counter.
func RecordDiscarded(chain, reason string) {
	DefaultMetrics.EventsDiscarded.WithLabelValues(chain, reason).Inc()
}

// RecordPanic increments the recovered panic counter.
func RecordPanic(chain string) {
	DefaultMetrics.EventPanics.WithLabelValues(chain).Inc()
}

// RecordTransaction records a persisted transaction, or a duplicate.
func RecordTransaction(chain string, created bool) {
	if created {
		DefaultMetrics.TransactionsRecorded.WithLabelValues(chain).Inc()
		return
	}
	DefaultMetrics.TransactionDuplicates.WithLabelValues(chain).Inc()
}

// RecordAggregateError increments the aggregate failure counter.
func RecordAggregateError(chain string) {
	DefaultMetrics.AggregateErrors.WithLabelValues(chain).Inc()
}

// RecordAlert records an alert dispatch outcome (sent, skipped, failed).
func RecordAlert(chain, outcome string) {
	DefaultMetrics.AlertsDispatched.WithLabelValues(chain, outcome).Inc()
}

// RecordPriceLookup records a price lookup by source (cache, dex, native)
// and outcome (hit, miss, error).
func RecordPriceLookup(source, outcome string) {
	DefaultMetrics.PriceLookups.WithLabelValues(source, outcome).Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(chain, method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(chain, method).Observe(seconds)
}

// RecordSubscriptionDrop increments the lost subscription counter.
func RecordSubscriptionDrop(chain string) {
	DefaultMetrics.SubscriptionDrops.WithLabelValues(chain).Inc()
}

// SetActiveTokens sets the active tracked token gauge for a chain.
func SetActiveTokens(chain string, n int) {
	DefaultMetrics.ActiveTrackedToken.WithLabelValues(chain).Set(float64(n))
}

// RecordEventLatency records end-to-end event processing latency.
func RecordEventLatency(chain string, seconds float64) {
	DefaultMetrics.EventProcessingLatency.WithLabelValues(chain).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
