package stm

import "github.com/prometheus/client_golang/prometheus"

const (
	resultCommit  = "commit"
	resultError   = "error"
	resultStopped = "stopped"
)

var (
	txnCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinystm",
			Subsystem: "txn",
			Name:      "total",
			Help:      "Counter of finished transactions by result.",
		}, []string{"result"})

	conflictCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tinystm",
			Subsystem: "txn",
			Name:      "conflicts_total",
			Help:      "Counter of commits rejected by validation.",
		})

	attemptsHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tinystm",
			Subsystem: "txn",
			Name:      "attempts",
			Help:      "Bucketed histogram of attempts needed per transaction.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		})

	txnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tinystm",
			Subsystem: "txn",
			Name:      "duration_seconds",
			Help:      "Bucketed histogram of transaction latency including retries.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 20),
		})
)

func init() {
	prometheus.MustRegister(txnCounter)
	prometheus.MustRegister(conflictCounter)
	prometheus.MustRegister(attemptsHistogram)
	prometheus.MustRegister(txnDuration)
}
