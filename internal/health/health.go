// Package health provides system health monitoring and status reporting.
package health

import "github.com/opengrants/walletd/internal/infra/rpc"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// RPCHealth reports the endpoint pool state.
type RPCHealth struct {
	Status         string               `json:"status"`
	ActiveEndpoint string               `json:"active_endpoint,omitempty"`
	Endpoints      []rpc.EndpointStatus `json:"endpoints"`
}

// ComponentHealth reports a single dependency check.
type ComponentHealth struct {
	Status SystemStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// ContractHealth reports one contract binding.
type ContractHealth struct {
	State  string `json:"state"`
	Reason string `json:"reason,omitempty"`
}

// Report contains the full system health report.
type Report struct {
	SystemStatus  SystemStatus              `json:"system_status"`
	RPC           RPCHealth                 `json:"rpc"`
	Database      ComponentHealth           `json:"database"`
	RetryQueue    ComponentHealth           `json:"retry_queue"`
	Contracts     map[string]ContractHealth `json:"contracts"`
	FailedWallets int                       `json:"failed_wallets"`
}
