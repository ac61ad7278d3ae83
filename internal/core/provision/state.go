package provision

import (
	"errors"

	"github.com/opengrants/walletd/internal/core/domain"
)

// State is an alias for domain.DeploymentStatus for internal use.
type State = domain.DeploymentStatus

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// ValidTransitions defines allowed deployment status transitions.
// Key is the current state, value is the list of valid next states.
// Transitions are monotonic except for the explicit failed -> salt_assigned
// retry edge; a status never silently regresses.
var ValidTransitions = map[State][]State{
	domain.StatusPending:          {domain.StatusSaltAssigned, domain.StatusFailed},
	domain.StatusSaltAssigned:     {domain.StatusAddressPredicted, domain.StatusFailed},
	domain.StatusAddressPredicted: {domain.StatusDeployed, domain.StatusFailed},
	domain.StatusDeployed:         {},
	domain.StatusFailed:           {domain.StatusSaltAssigned},
}

// CanTransition checks if a transition from one state to another is valid.
func CanTransition(from, to State) bool {
	validTargets, ok := ValidTransitions[from]
	if !ok {
		return false
	}

	for _, target := range validTargets {
		if target == to {
			return true
		}
	}
	return false
}

// StateDescription returns a human-readable description of a state.
func StateDescription(s State) string {
	switch s {
	case domain.StatusPending:
		return "Pending - record created, nothing derived yet"
	case domain.StatusSaltAssigned:
		return "Salt assigned - address prediction not yet stored"
	case domain.StatusAddressPredicted:
		return "Address predicted - awaiting funded on-chain deployment"
	case domain.StatusDeployed:
		return "Deployed - wallet live on chain"
	case domain.StatusFailed:
		return "Failed - stored failure awaiting retry"
	default:
		return "Unknown state"
	}
}
