package health

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/opengrants/walletd/internal/core/domain"
	"github.com/opengrants/walletd/internal/infra/contract"
	"github.com/opengrants/walletd/internal/infra/rpc"
	"github.com/opengrants/walletd/internal/infra/storage/memory"
)

type stubPool struct {
	state rpc.State
	url   string
}

func (s *stubPool) State() rpc.State                { return s.state }
func (s *stubPool) ActiveURL() string               { return s.url }
func (s *stubPool) Endpoints() []rpc.EndpointStatus { return nil }

type stubPinger struct {
	err error
}

func (s *stubPinger) Health(ctx context.Context) error { return s.err }

func TestMonitor_Healthy(t *testing.T) {
	monitor := NewMonitor(
		&stubPool{state: rpc.StateConnected, url: "http://primary"},
		&stubPinger{},
		&stubPinger{},
		nil,
		memory.NewWalletRepo(),
	)

	report := monitor.CheckHealth(context.Background())
	if report.SystemStatus != StatusHealthy {
		t.Errorf("expected healthy, got %s", report.SystemStatus)
	}
	if report.RPC.ActiveEndpoint != "http://primary" {
		t.Errorf("expected active endpoint in report, got %q", report.RPC.ActiveEndpoint)
	}
}

func TestMonitor_DegradedPool(t *testing.T) {
	monitor := NewMonitor(
		&stubPool{state: rpc.StateDegraded, url: "http://backup"},
		&stubPinger{},
		&stubPinger{},
		nil,
		memory.NewWalletRepo(),
	)

	report := monitor.CheckHealth(context.Background())
	if report.SystemStatus != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.SystemStatus)
	}
}

func TestMonitor_DisconnectedPoolIsCritical(t *testing.T) {
	monitor := NewMonitor(
		&stubPool{state: rpc.StateDisconnected},
		&stubPinger{},
		&stubPinger{},
		nil,
		memory.NewWalletRepo(),
	)

	report := monitor.CheckHealth(context.Background())
	if report.SystemStatus != StatusCritical {
		t.Errorf("expected critical, got %s", report.SystemStatus)
	}
}

func TestMonitor_DeadDatabaseIsCritical(t *testing.T) {
	monitor := NewMonitor(
		&stubPool{state: rpc.StateConnected},
		&stubPinger{err: errors.New("connection refused")},
		&stubPinger{},
		nil,
		memory.NewWalletRepo(),
	)

	report := monitor.CheckHealth(context.Background())
	if report.SystemStatus != StatusCritical {
		t.Errorf("expected critical, got %s", report.SystemStatus)
	}
	if report.Database.Error == "" {
		t.Errorf("expected database error in report")
	}
}

func TestMonitor_DegradedContract(t *testing.T) {
	h := contract.Bind("entryPoint", "", "[]", nil)

	monitor := NewMonitor(
		&stubPool{state: rpc.StateConnected},
		&stubPinger{},
		&stubPinger{},
		[]*contract.Handle{h},
		memory.NewWalletRepo(),
	)

	report := monitor.CheckHealth(context.Background())
	if report.SystemStatus != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.SystemStatus)
	}
	ch, ok := report.Contracts["entryPoint"]
	if !ok || ch.State != string(contract.StateDegraded) || ch.Reason == "" {
		t.Errorf("expected degraded contract with reason, got %+v", ch)
	}
}

func TestMonitor_FailedWalletsDegrade(t *testing.T) {
	repo := memory.NewWalletRepo()
	userID := uuid.New()
	rec := &domain.WalletRecord{UserID: userID, Status: domain.StatusAddressPredicted}
	if _, _, err := repo.CreateIfAbsent(context.Background(), rec); err != nil {
		t.Fatalf("CreateIfAbsent failed: %v", err)
	}
	if err := repo.RecordFailure(context.Background(), userID, domain.FailureRPCUnavailable, "down"); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}

	monitor := NewMonitor(
		&stubPool{state: rpc.StateConnected},
		&stubPinger{},
		&stubPinger{},
		nil,
		repo,
	)

	report := monitor.CheckHealth(context.Background())
	if report.SystemStatus != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.SystemStatus)
	}
	if report.FailedWallets != 1 {
		t.Errorf("expected 1 failed wallet, got %d", report.FailedWallets)
	}
}
