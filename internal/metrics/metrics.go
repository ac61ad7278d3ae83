// Package metrics defines the prometheus collectors for walletd.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProvisionsTotal tracks provisioning attempts by outcome
	ProvisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletd_provisions_total",
			Help: "Total number of wallet provisioning attempts",
		},
		[]string{"outcome"},
	)

	// ProvisionFailuresTotal tracks recorded failures by code
	ProvisionFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletd_provision_failures_total",
			Help: "Total number of recorded provisioning failures",
		},
		[]string{"code"},
	)

	// ProvisionRetriesTotal tracks retry steps by result
	ProvisionRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletd_provision_retries_total",
			Help: "Total number of provisioning retry steps",
		},
		[]string{"step"},
	)

	// RPCProbesTotal tracks endpoint probes by outcome
	RPCProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletd_rpc_probes_total",
			Help: "Total number of RPC endpoint probes",
		},
		[]string{"endpoint", "outcome"},
	)

	// RPCFailoversTotal tracks failovers away from the primary endpoint
	RPCFailoversTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "walletd_rpc_failovers_total",
			Help: "Total number of RPC endpoint failovers",
		},
	)

	// RPCActiveEndpoint tracks the priority index of the active endpoint
	RPCActiveEndpoint = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "walletd_rpc_active_endpoint_index",
			Help: "Priority index of the active RPC endpoint (-1 when disconnected)",
		},
	)

	// ProbeLatency tracks endpoint probe latency
	ProbeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "walletd_rpc_probe_latency_seconds",
			Help:    "RPC endpoint probe latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// DBConnectionPoolUsage tracks database pool utilization
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "walletd_db_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
