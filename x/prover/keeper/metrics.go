package keeper

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ProverMetrics holds all Prometheus metrics for the prover module
type ProverMetrics struct {
	ProgramsUploaded prometheus.Counter
	ProofRequests    *prometheus.CounterVec
	ProofsVerified   *prometheus.CounterVec
	ProofsRejected   *prometheus.CounterVec
	TxsFailed        *prometheus.CounterVec

	// Escrow metrics, in reward denom units
	EscrowReserved prometheus.Counter
	EscrowReleased prometheus.Counter
	RewardsPaid    prometheus.Counter
}

var (
	proverMetricsOnce sync.Once
	proverMetrics     *ProverMetrics
)

// NewProverMetrics creates and registers prover metrics (singleton pattern)
func NewProverMetrics() *ProverMetrics {
	proverMetricsOnce.Do(func() {
		proverMetrics = &ProverMetrics{
			ProgramsUploaded: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "prover",
					Subsystem: "ledger",
					Name:      "programs_uploaded_total",
					Help:      "Total programs registered",
				},
			),
			ProofRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "prover",
					Subsystem: "ledger",
					Name:      "proof_requests_total",
					Help:      "Total proof requests posted",
				},
				[]string{"overwrite"},
			),
			ProofsVerified: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "prover",
					Subsystem: "ledger",
					Name:      "proofs_verified_total",
					Help:      "Total proofs accepted",
				},
				[]string{"settled"},
			),
			ProofsRejected: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "prover",
					Subsystem: "ledger",
					Name:      "proofs_rejected_total",
					Help:      "Total proofs rejected",
				},
				[]string{"reason"},
			),
			TxsFailed: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "prover",
					Subsystem: "ledger",
					Name:      "txs_failed_total",
					Help:      "Total transactions that failed",
				},
				[]string{"error"},
			),
			EscrowReserved: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "prover",
					Subsystem: "escrow",
					Name:      "reserved_total",
					Help:      "Total reward amount reserved",
				},
			),
			EscrowReleased: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "prover",
					Subsystem: "escrow",
					Name:      "released_total",
					Help:      "Total reward amount released to requesters on overwrite",
				},
			),
			RewardsPaid: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "prover",
					Subsystem: "escrow",
					Name:      "rewards_paid_total",
					Help:      "Total reward amount paid to provers",
				},
			),
		}
	})
	return proverMetrics
}
