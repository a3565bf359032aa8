package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
)

var (
	datasetsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdata_datasets_ingested_total",
			Help: "Total number of dataset ingest attempts by file kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
	rowsIngestedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askdata_rows_ingested_total",
			Help: "Total number of rows loaded into session stores.",
		},
	)
	synthesisRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdata_synthesis_requests_total",
			Help: "Total number of question-to-SQL synthesis calls by outcome.",
		},
		[]string{"outcome"},
	)
	synthesisLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdata_synthesis_latency_ms",
			Help:    "Latency of the text completion call in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		},
	)
	queryExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdata_query_executions_total",
			Help: "Total number of query executions by outcome.",
		},
		[]string{"outcome"},
	)
	queryLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdata_query_latency_ms",
			Help:    "Query execution latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "askdata_active_sessions",
			Help: "Current number of live sessions.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		datasetsIngestedTotal,
		rowsIngestedTotal,
		synthesisRequestsTotal,
		synthesisLatencyMs,
		queryExecutionsTotal,
		queryLatencyMs,
		activeSessions,
	)
}

func ObserveIngest(kind, outcome string, rows int) {
	datasetsIngestedTotal.WithLabelValues(kind, outcome).Inc()
	if rows > 0 {
		rowsIngestedTotal.Add(float64(rows))
	}
}

func ObserveSynthesis(outcome string, elapsed time.Duration) {
	synthesisRequestsTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeRejected {
		synthesisLatencyMs.Observe(float64(elapsed.Milliseconds()))
	}
}

func ObserveQuery(outcome string, elapsed time.Duration) {
	queryExecutionsTotal.WithLabelValues(outcome).Inc()
	queryLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func SetActiveSessions(count int) {
	if count < 0 {
		count = 0
	}
	activeSessions.Set(float64(count))
}
