package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal tracks settled operations per op and outcome (success, fatal)
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esguard_operations_total",
			Help: "Total number of settled cluster operations",
		},
		[]string{"op", "outcome"},
	)

	// RetriesTotal tracks scheduled retries per op and failure category
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esguard_retries_total",
			Help: "Total number of retries scheduled after a retriable failure",
		},
		[]string{"op", "category"},
	)

	// BackoffDelay tracks the delays drawn by the backoff timer
	BackoffDelay = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "esguard_backoff_delay_seconds",
			Help:    "Backoff delay before a retry in seconds",
			Buckets: []float64{1, 5, 10, 20, 30, 45, 60},
		},
		[]string{"op"},
	)

	// BulkResubmittedDocs tracks documents resent after an overload rejection
	BulkResubmittedDocs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "esguard_bulk_resubmitted_docs_total",
			Help: "Total number of bulk documents resubmitted after es_rejected_execution_exception",
		},
	)

	// ShardFailuresTotal tracks failed shards seen in search responses
	ShardFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esguard_shard_failures_total",
			Help: "Total number of failed shards reported by search responses",
		},
		[]string{"type"},
	)

	// DeadLetteredDocs tracks documents parked after a fatal bulk failure
	DeadLetteredDocs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "esguard_dead_lettered_docs_total",
			Help: "Total number of bulk documents written to the dead letter store",
		},
	)

	// TransportLatency tracks round trip latency of the underlying transport
	TransportLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "esguard_transport_latency_seconds",
			Help:    "Cluster round trip latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// DeadLetterPending tracks documents waiting in the dead letter store
	DeadLetterPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "esguard_dead_letter_pending",
			Help: "Number of pending documents in the dead letter store",
		},
	)

	// DBConnectionPoolUsage tracks open connections as a percentage of the pool limit
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "esguard_db_connection_pool_usage_percent",
			Help: "Dead letter database connection pool usage percentage",
		},
	)
)
