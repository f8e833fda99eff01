package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		operationsStarted,
		operationsFinished,
		operationAttempts,
		operationRunSeconds,
		persistenceWriteFailures,
		sweepClaims,
		staleReaped,
	)
}

var (
	operationsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "operations_started_total",
			Help: "Operations created, labeled by type and origin (start|retry).",
		},
		[]string{"type", "origin"},
	)

	operationsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "operations_finished_total",
			Help: "Operations finalized, labeled by type, status and error kind.",
		},
		[]string{"type", "status", "kind"}, // status: 'completed', 'failed'
	)

	operationAttempts = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "operation_attempts",
			Help:    "Provider attempts used per finalized operation.",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
		[]string{"type"},
	)

	operationRunSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "operation_run_seconds",
			Help:    "Wall-clock duration from claim to terminal write.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 120},
		},
		[]string{"type"},
	)

	persistenceWriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "persistence_write_failures_total",
			Help: "Result sink writes that failed after an operation completed.",
		},
		[]string{"type"},
	)

	sweepClaims = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "operation_sweep_claims_total",
			Help: "Pending operations picked up by the periodic sweep.",
		},
	)

	staleReaped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "operation_stale_reaped_total",
			Help: "Processing operations failed by the stale reaper.",
		},
	)
)

func IncOperationStarted(opType, origin string) {
	operationsStarted.WithLabelValues(norm(opType), norm(origin)).Inc()
}

func ObserveOperationFinished(opType, status, kind string, attempts int, elapsed time.Duration) {
	if kind == "" {
		kind = "none"
	}
	operationsFinished.WithLabelValues(norm(opType), norm(status), norm(kind)).Inc()
	operationAttempts.WithLabelValues(norm(opType)).Observe(float64(attempts))
	operationRunSeconds.WithLabelValues(norm(opType)).Observe(elapsed.Seconds())
}

func IncPersistenceWriteFailure(opType string) {
	persistenceWriteFailures.WithLabelValues(norm(opType)).Inc()
}

func IncSweepClaim() { sweepClaims.Inc() }

func AddStaleReaped(n int) { staleReaped.Add(float64(n)) }
