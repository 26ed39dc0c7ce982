// Package metrics records transaction and RPC metrics for a poolkit run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics holds the Prometheus metrics for one process.
// A nil *PrometheusMetrics is valid and records nothing.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// Transaction counters
	TxTotal *prometheus.CounterVec

	// Histograms
	GasUsed     *prometheus.HistogramVec
	ReceiptWait *prometheus.HistogramVec
	RPCLatency  *prometheus.HistogramVec

	// Error tracking
	ErrorsTotal *prometheus.CounterVec

	RunDuration *prometheus.GaugeVec
}

// NewPrometheusMetrics creates metrics registered on a fresh registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		registry: reg,

		TxTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poolkit_transactions_total",
				Help: "Transactions by name and outcome",
			},
			[]string{"tx", "status"},
		),

		GasUsed: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "poolkit_gas_used",
				Help:    "Gas used by mined transactions",
				Buckets: []float64{21_000, 50_000, 100_000, 200_000, 300_000, 500_000, 1_000_000, 2_000_000, 5_000_000},
			},
			[]string{"tx"},
		),

		ReceiptWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "poolkit_receipt_wait_seconds",
				Help:    "Time from send to receipt",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"tx"},
		),

		RPCLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "poolkit_rpc_latency_seconds",
				Help:    "RPC call latency by method",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "status"},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poolkit_errors_total",
				Help: "Errors by category",
			},
			[]string{"category"},
		),

		RunDuration: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "poolkit_run_duration_seconds",
				Help: "Wall time of the last run by command and status",
			},
			[]string{"command", "status"},
		),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Tx outcome labels.
const (
	TxSuccess  = "success"
	TxReverted = "reverted"
	TxFailed   = "failed"
)

// RecordTx records the outcome of a named transaction. gasUsed and wait are
// only observed for mined transactions.
func (m *PrometheusMetrics) RecordTx(name, status string, gasUsed uint64, wait time.Duration) {
	if m == nil {
		return
	}
	m.TxTotal.WithLabelValues(name, status).Inc()
	if status == TxFailed {
		return
	}
	m.GasUsed.WithLabelValues(name).Observe(float64(gasUsed))
	m.ReceiptWait.WithLabelValues(name).Observe(wait.Seconds())
}

// knownRPCMethods is a fixed set of known RPC methods to prevent cardinality explosion
var knownRPCMethods = map[string]bool{
	"eth_chainId":               true,
	"eth_sendRawTransaction":    true,
	"eth_getTransactionCount":   true,
	"eth_getCode":               true,
	"eth_gasPrice":              true,
	"eth_getBalance":            true,
	"eth_getTransactionReceipt": true,
	"eth_estimateGas":           true,
	"eth_call":                  true,
}

// RecordRPC records an RPC round trip. Its signature matches
// rpc.ClientConfig.OnCall.
func (m *PrometheusMetrics) RecordRPC(method string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	// Bucket unknown methods into 'other' to prevent cardinality explosion
	bucketedMethod := method
	if !knownRPCMethods[method] {
		bucketedMethod = "other"
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	m.RPCLatency.WithLabelValues(bucketedMethod, status).Observe(elapsed.Seconds())
}

// RecordError records an error.
func (m *PrometheusMetrics) RecordError(category string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(category).Inc()
}

// RecordRun records the wall time of a finished command.
func (m *PrometheusMetrics) RecordRun(command string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "completed"
	if err != nil {
		status = "error"
	}
	m.RunDuration.WithLabelValues(command, status).Set(elapsed.Seconds())
}
