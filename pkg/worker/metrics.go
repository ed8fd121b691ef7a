package worker

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics holds the Prometheus metrics of the fulfillment worker
type WorkerMetrics struct {
	RequestsObserved  prometheus.Counter
	Executions        *prometheus.CounterVec
	Submissions       *prometheus.CounterVec
	ExecutionDuration prometheus.Histogram
	InFlight          prometheus.Gauge
	LastHeight        prometheus.Gauge
}

var (
	workerMetricsOnce sync.Once
	workerMetrics     *WorkerMetrics
)

// NewWorkerMetrics creates and registers worker metrics (singleton pattern)
func NewWorkerMetrics() *WorkerMetrics {
	workerMetricsOnce.Do(func() {
		workerMetrics = &WorkerMetrics{
			RequestsObserved: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "prover",
					Subsystem: "worker",
					Name:      "requests_observed_total",
					Help:      "Proof requests seen in finalized blocks",
				},
			),
			Executions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "prover",
					Subsystem: "worker",
					Name:      "executions_total",
					Help:      "Program executions by outcome",
				},
				[]string{"outcome"},
			),
			Submissions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "prover",
					Subsystem: "worker",
					Name:      "submissions_total",
					Help:      "Proof submissions by outcome",
				},
				[]string{"outcome"},
			),
			ExecutionDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: "prover",
					Subsystem: "worker",
					Name:      "execution_duration_seconds",
					Help:      "Time spent executing and proving a program",
					Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
				},
			),
			InFlight: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "prover",
					Subsystem: "worker",
					Name:      "tasks_in_flight",
					Help:      "Fulfillment tasks queued or running",
				},
			),
			LastHeight: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "prover",
					Subsystem: "worker",
					Name:      "last_height",
					Help:      "Height of the last dispatched block",
				},
			),
		}
	})
	return workerMetrics
}
