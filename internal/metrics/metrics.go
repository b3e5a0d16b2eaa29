package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EscrowOperationsTotal counts ledger operations by outcome
	EscrowOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_operations_total",
			Help: "Total number of escrow ledger operations",
		},
		[]string{"operation", "status"},
	)

	// EscrowAllowance tracks the last observed allowance per ledger and token
	EscrowAllowance = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "escrow_allowance",
			Help: "Current escrow allowance by ledger and token",
		},
		[]string{"ledger", "token"},
	)

	// BridgeRequestsTotal counts gateway requests by direction, action and outcome
	BridgeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_requests_total",
			Help: "Total number of bridge gateway requests",
		},
		[]string{"direction", "action", "status"},
	)

	// RemoteCallDuration tracks how long remote ledger invocations take
	RemoteCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_remote_call_duration_seconds",
			Help:    "Remote ledger call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	// ErrorsTotal counts errors by component and type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// TransactionsSent counts transactions submitted to an EVM chain
	TransactionsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_transactions_sent_total",
			Help: "Total number of transactions sent",
		},
		[]string{"status"},
	)

	// GasUsed tracks gas used by remote ledger transactions, by entry point selector
	GasUsed = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_gas_used",
			Help:    "Gas used for remote ledger transactions",
			Buckets: []float64{21000, 50000, 100000, 200000, 300000, 500000},
		},
		[]string{"selector"},
	)
)
