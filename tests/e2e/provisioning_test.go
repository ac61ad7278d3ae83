package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/opengrants/walletd/internal/control"
	"github.com/opengrants/walletd/internal/core/config"
	"github.com/opengrants/walletd/internal/core/domain"
	"github.com/opengrants/walletd/internal/health"
	"github.com/opengrants/walletd/internal/infra/rpc"
)

// chainServer is a local JSON-RPC endpoint answering eth_chainId.
func chainServer(t *testing.T, chainIDHex string, healthy *atomic.Bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if healthy != nil && !healthy.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req["id"],
			"result":  chainIDHex,
		})
	}))
}

func deadServer(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

// Registration on a mostly-down chain: the pool fails over to the last
// candidate, the user still gets a deterministic predicted address, and the
// health surface reports degraded rather than broken.
func TestRegistrationSurvivesEndpointOutage(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var primaryUp atomic.Bool

	primary := chainServer(t, "0x1", &primaryUp)
	defer primary.Close()
	backup := chainServer(t, "0x1", nil)
	defer backup.Close()

	cfg := config.AppConfig{
		Server: config.ServerConfig{Port: 0},
		Chain: config.ChainConfig{
			ChainID:      1,
			Endpoints:    []string{primary.URL, deadServer(t), backup.URL},
			ProbeTimeout: 2 * time.Second,
		},
		Contracts: []config.ContractConfig{
			{Name: "walletFactory"}, // unconfigured, must degrade not crash
		},
		Retry: config.RetryConfig{Enabled: false},
	}

	svc, err := control.NewService(cfg)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	defer svc.Stop(context.Background())

	// Primary is down; first use walks to the backup.
	if _, err := svc.Pool().Client(ctx); err != nil {
		t.Fatalf("Expected failover to the reachable endpoint, got %v", err)
	}
	if got := svc.Pool().State(); got != rpc.StateDegraded {
		t.Fatalf("Expected degraded pool, got %s", got)
	}
	if svc.Pool().ActiveURL() != backup.URL {
		t.Fatalf("Expected backup active, got %s", svc.Pool().ActiveURL())
	}

	// Registration proceeds normally on the degraded chain.
	userID := uuid.New()
	st, err := svc.Provisioner().ProvisionForNewUser(ctx, userID, "bob@site.com")
	if err != nil {
		t.Fatalf("ProvisionForNewUser failed: %v", err)
	}
	if st.Status != domain.StatusAddressPredicted {
		t.Errorf("Expected address_predicted, got %s", st.Status)
	}
	if st.Address == "" || st.Degraded {
		t.Errorf("Expected a deterministic address, got %q degraded=%v", st.Address, st.Degraded)
	}
	if st.ErrorCode != nil {
		t.Errorf("Expected no stored error, got %s", *st.ErrorCode)
	}

	// Health reflects the partial outage without going critical.
	report := svc.Health().CheckHealth(ctx)
	if report.SystemStatus != health.StatusDegraded {
		t.Errorf("Expected degraded system status, got %s", report.SystemStatus)
	}
	if report.RPC.Status != string(rpc.StateDegraded) {
		t.Errorf("Expected degraded rpc status, got %s", report.RPC.Status)
	}
	if _, ok := report.Contracts["walletFactory"]; !ok {
		t.Errorf("Expected walletFactory binding in health report")
	}

	// Primary comes back; an explicit reprobe restores connected state.
	primaryUp.Store(true)
	if err := svc.Pool().Reprobe(ctx); err != nil {
		t.Fatalf("Reprobe failed: %v", err)
	}
	if got := svc.Pool().State(); got != rpc.StateConnected {
		t.Errorf("Expected connected after reprobe, got %s", got)
	}

	// The predicted address survives the whole episode untouched.
	after, err := svc.Provisioner().Status(ctx, userID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if after.Address != st.Address || after.Salt != st.Salt {
		t.Errorf("Stored prediction changed: had (%s, %d), got (%s, %d)",
			st.Address, st.Salt, after.Address, after.Salt)
	}
}

// A chain-wide outage never blocks registration; the wallet lifecycle
// catches up when retried.
func TestRegistrationWithAllEndpointsDown(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg := config.AppConfig{
		Server: config.ServerConfig{Port: 0},
		Chain: config.ChainConfig{
			ChainID:      1,
			Endpoints:    []string{deadServer(t), deadServer(t)},
			ProbeTimeout: time.Second,
		},
	}

	svc, err := control.NewService(cfg)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	defer svc.Stop(context.Background())

	// Salt and address derivation are chain-independent; registration works.
	userID := uuid.New()
	st, err := svc.Provisioner().ProvisionForNewUser(ctx, userID, "bob@site.com")
	if err != nil {
		t.Fatalf("ProvisionForNewUser failed: %v", err)
	}
	if st.Status != domain.StatusAddressPredicted {
		t.Errorf("Expected address_predicted, got %s", st.Status)
	}

	// Deployment marking still verifies determinism locally.
	if err := svc.Provisioner().MarkDeployed(ctx, userID); err != nil {
		t.Fatalf("MarkDeployed failed: %v", err)
	}
	after, err := svc.Provisioner().Status(ctx, userID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if after.Status != domain.StatusDeployed {
		t.Errorf("Expected deployed, got %s", after.Status)
	}
}
