package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomeEmpty = "empty"
)

var (
	oracleRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_oracle_requests_total",
			Help: "Total number of text-completion calls by purpose and outcome.",
		},
		[]string{"purpose", "outcome"},
	)
	oracleLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askdb_oracle_latency_seconds",
			Help:    "Text-completion call latency by purpose.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		},
		[]string{"purpose"},
	)
	queryExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_query_executions_total",
			Help: "Total number of generated SQL executions by outcome.",
		},
		[]string{"outcome"},
	)
	queryLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_query_latency_seconds",
			Help:    "Generated SQL execution latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	catalogRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_catalog_requests_total",
			Help: "Total number of catalog lookups by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	sanitizerRewritesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askdb_sanitizer_rewrites_total",
			Help: "Total number of model outputs the sanitizer had to change.",
		},
	)
	historyRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "askdb_history_records",
			Help: "Current number of records in the session history.",
		},
	)
	sessionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_session_transitions_total",
			Help: "Total number of session context transitions by target phase.",
		},
		[]string{"phase"},
	)
)

func init() {
	prometheus.MustRegister(
		oracleRequestsTotal,
		oracleLatencySeconds,
		queryExecutionsTotal,
		queryLatencySeconds,
		catalogRequestsTotal,
		sanitizerRewritesTotal,
		historyRecords,
		sessionTransitionsTotal,
	)
}

func ObserveOracleCall(purpose, outcome string, elapsed time.Duration) {
	oracleRequestsTotal.WithLabelValues(purpose, outcome).Inc()
	oracleLatencySeconds.WithLabelValues(purpose).Observe(elapsed.Seconds())
}

func ObserveQueryExecution(outcome string, elapsed time.Duration) {
	queryExecutionsTotal.WithLabelValues(outcome).Inc()
	queryLatencySeconds.Observe(elapsed.Seconds())
}

func ObserveCatalogRequest(operation, outcome string) {
	catalogRequestsTotal.WithLabelValues(operation, outcome).Inc()
}

func IncrementSanitizerRewrite() {
	sanitizerRewritesTotal.Inc()
}

func SetHistoryRecords(count int) {
	if count < 0 {
		count = 0
	}
	historyRecords.Set(float64(count))
}

func IncrementSessionTransition(phase string) {
	sessionTransitionsTotal.WithLabelValues(phase).Inc()
}
