package coordinator

import "github.com/prometheus/client_golang/prometheus"

// Metric label values for poll outcomes.
const (
	outcomeCompleted    = "completed"
	outcomeFailed       = "failed"
	outcomeInvalidState = "invalid_state"
	outcomeTimeout      = "timeout"
	outcomeAborted      = "aborted"
	outcomeError        = "error"
)

var (
	pollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgen_coordinator_polls_total",
			Help: "Total number of finished polls by outcome.",
		},
		[]string{"outcome"},
	)

	pollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docgen_coordinator_poll_seconds",
			Help:    "Time spent in WaitForResult, in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	pollAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docgen_coordinator_poll_attempts",
			Help:    "Number of state checks performed per poll.",
			Buckets: prometheus.LinearBuckets(1, 2, 10),
		},
	)

	activePolls = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "docgen_coordinator_active_polls",
			Help: "Number of polls currently waiting for a result.",
		},
	)

	earlyWakes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docgen_coordinator_early_wakes_total",
			Help: "Total number of poll sleeps cut short by a cancel signal.",
		},
	)

	markFailedErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docgen_coordinator_mark_failed_errors_total",
			Help: "Total number of failed attempts to mark a timed-out request as failed.",
		},
	)
)

func init() {
	prometheus.MustRegister(pollsTotal)
	prometheus.MustRegister(pollDuration)
	prometheus.MustRegister(pollAttempts)
	prometheus.MustRegister(activePolls)
	prometheus.MustRegister(earlyWakes)
	prometheus.MustRegister(markFailedErrors)

	for _, o := range []string{
		outcomeCompleted, outcomeFailed, outcomeInvalidState,
		outcomeTimeout, outcomeAborted, outcomeError,
	} {
		pollsTotal.WithLabelValues(o)
	}
}
