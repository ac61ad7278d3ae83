package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/opengrants/walletd/internal/core/config"
	"github.com/opengrants/walletd/internal/core/domain"
	"github.com/opengrants/walletd/internal/infra/contract"
)

func testConfig() config.AppConfig {
	return config.AppConfig{
		Server: config.ServerConfig{Port: 0},
		Chain: config.ChainConfig{
			ChainID:      1,
			Endpoints:    []string{"http://127.0.0.1:1"},
			ProbeTimeout: time.Second,
		},
		Contracts: []config.ContractConfig{
			{Name: "entryPoint"}, // no address configured
		},
	}
}

func TestNewService_MemoryMode(t *testing.T) {
	svc, err := NewService(testConfig())
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	// A contract without an address binds degraded, not fatally.
	h := svc.Contract("entryPoint")
	if h == nil {
		t.Fatal("Expected entryPoint binding")
	}
	if h.State() != contract.StateDegraded {
		t.Errorf("Expected degraded binding, got %s", h.State())
	}
	if !errors.Is(h.Err(), contract.ErrContractNotConfigured) {
		t.Errorf("Expected ErrContractNotConfigured, got %v", h.Err())
	}

	// Provisioning works without any backend configured.
	userID := uuid.New()
	st, err := svc.Provisioner().ProvisionForNewUser(context.Background(), userID, "carol@example.com")
	if err != nil {
		t.Fatalf("ProvisionForNewUser failed: %v", err)
	}
	if st.Status != domain.StatusAddressPredicted {
		t.Errorf("Expected address_predicted, got %s", st.Status)
	}
	if st.Address == "" {
		t.Errorf("Expected a predicted address")
	}
}

func TestService_StartStop(t *testing.T) {
	svc, err := NewService(testConfig())
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := svc.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}
