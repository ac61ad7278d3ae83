package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opengrants/walletd/internal/infra/contract"
	"github.com/opengrants/walletd/internal/infra/rpc"
	"github.com/opengrants/walletd/internal/infra/storage"
)

// EndpointPool is the view of the RPC pool the monitor needs.
type EndpointPool interface {
	State() rpc.State
	ActiveURL() string
	Endpoints() []rpc.EndpointStatus
}

// Pinger is a dependency that can answer a liveness check. The postgres DB
// and the Redis client both satisfy it.
type Pinger interface {
	Health(ctx context.Context) error
}

// Monitor aggregates health status from various system components.
type Monitor struct {
	pool       EndpointPool
	db         Pinger
	queue      Pinger
	contracts  []*contract.Handle
	walletRepo storage.WalletRepository

	lastCheck  time.Time
	lastReport *Report
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor. db and queue may be nil when the
// corresponding backend is not configured; they are then skipped.
func NewMonitor(
	pool EndpointPool,
	db Pinger,
	queue Pinger,
	contracts []*contract.Handle,
	walletRepo storage.WalletRepository,
) *Monitor {
	return &Monitor{
		pool:       pool,
		db:         db,
		queue:      queue,
		contracts:  contracts,
		walletRepo: walletRepo,
	}
}

// CheckHealth builds the health report. Checks are rate limited to once per
// 10s to avoid spamming the database and RPC on scraper traffic.
func (m *Monitor) CheckHealth(ctx context.Context) *Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastCheck) < 10*time.Second && m.lastReport != nil {
		return m.lastReport
	}

	report := &Report{
		SystemStatus: StatusHealthy,
		Contracts:    make(map[string]ContractHealth),
	}

	// 1. RPC pool
	poolState := m.pool.State()
	report.RPC = RPCHealth{
		Status:         string(poolState),
		ActiveEndpoint: m.pool.ActiveURL(),
		Endpoints:      m.pool.Endpoints(),
	}

	// 2. Database and retry queue, pinged concurrently
	var g errgroup.Group
	g.Go(func() error {
		report.Database = m.check(ctx, m.db)
		return nil
	})
	g.Go(func() error {
		report.RetryQueue = m.check(ctx, m.queue)
		return nil
	})
	_ = g.Wait()

	// 3. Contract bindings
	degradedContracts := false
	for _, h := range m.contracts {
		ch := ContractHealth{State: string(h.State())}
		if h.Err() != nil {
			ch.Reason = h.Err().Error()
		}
		if h.State() == contract.StateDegraded {
			degradedContracts = true
		}
		report.Contracts[h.Name()] = ch
	}

	// 4. Failed provisions awaiting retry
	if m.walletRepo != nil {
		if failed, err := m.walletRepo.ListFailed(ctx); err == nil {
			report.FailedWallets = len(failed)
		}
	}

	// Evaluate status (worst case wins). A dead database or a fully
	// disconnected pool is critical; everything else degrades.
	switch {
	case report.Database.Status == StatusCritical, poolState == rpc.StateDisconnected:
		report.SystemStatus = StatusCritical
	case poolState == rpc.StateDegraded,
		degradedContracts,
		report.RetryQueue.Status != StatusHealthy,
		report.FailedWallets > 0:
		report.SystemStatus = StatusDegraded
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}

func (m *Monitor) check(ctx context.Context, p Pinger) ComponentHealth {
	if p == nil {
		return ComponentHealth{Status: StatusHealthy}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := p.Health(checkCtx); err != nil {
		return ComponentHealth{Status: StatusCritical, Error: err.Error()}
	}
	return ComponentHealth{Status: StatusHealthy}
}
