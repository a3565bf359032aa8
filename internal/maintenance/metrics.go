package maintenance

import "github.com/prometheus/client_golang/prometheus"

var (
	sweepRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askdata_session_sweep_runs_total",
			Help: "Total number of idle session sweeps.",
		},
	)
	sessionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askdata_sessions_expired_total",
			Help: "Total number of sessions closed for being idle.",
		},
	)
)

func init() {
	prometheus.MustRegister(sweepRunsTotal, sessionsExpiredTotal)
}
