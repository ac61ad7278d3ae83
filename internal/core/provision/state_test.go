package provision

import (
	"testing"

	"github.com/opengrants/walletd/internal/core/domain"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name  string
		from  State
		to    State
		valid bool
	}{
		{"pending to salt_assigned", domain.StatusPending, domain.StatusSaltAssigned, true},
		{"pending to failed", domain.StatusPending, domain.StatusFailed, true},
		{"pending skips to predicted", domain.StatusPending, domain.StatusAddressPredicted, false},
		{"salt_assigned to predicted", domain.StatusSaltAssigned, domain.StatusAddressPredicted, true},
		{"salt_assigned to failed", domain.StatusSaltAssigned, domain.StatusFailed, true},
		{"salt_assigned skips to deployed", domain.StatusSaltAssigned, domain.StatusDeployed, false},
		{"predicted to deployed", domain.StatusAddressPredicted, domain.StatusDeployed, true},
		{"predicted to failed", domain.StatusAddressPredicted, domain.StatusFailed, true},
		{"failed retries via salt_assigned", domain.StatusFailed, domain.StatusSaltAssigned, true},
		{"failed cannot skip to predicted", domain.StatusFailed, domain.StatusAddressPredicted, false},
		{"failed cannot skip to deployed", domain.StatusFailed, domain.StatusDeployed, false},
		{"deployed is terminal", domain.StatusDeployed, domain.StatusFailed, false},
		{"deployed cannot regress", domain.StatusDeployed, domain.StatusPending, false},
		{"no silent regression", domain.StatusAddressPredicted, domain.StatusSaltAssigned, false},
		{"unknown state", State("bogus"), domain.StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.valid {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.valid)
			}
		})
	}
}

func TestStateDescription(t *testing.T) {
	for state := range ValidTransitions {
		if StateDescription(state) == "Unknown state" {
			t.Errorf("State %s has no description", state)
		}
	}
	if StateDescription(State("bogus")) != "Unknown state" {
		t.Errorf("Expected unknown state fallback")
	}
}
