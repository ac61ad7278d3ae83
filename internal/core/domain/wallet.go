package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeploymentStatus tracks how far a user's counterfactual wallet has
// progressed from registration to on-chain deployment.
type DeploymentStatus string

const (
	StatusPending          DeploymentStatus = "pending"
	StatusSaltAssigned     DeploymentStatus = "salt_assigned"
	StatusAddressPredicted DeploymentStatus = "address_predicted"
	StatusDeployed         DeploymentStatus = "deployed"
	StatusFailed           DeploymentStatus = "failed"
)

// FailureCode classifies provisioning failures for operator triage.
// Codes are persisted verbatim.
type FailureCode string

const (
	FailureHashing               FailureCode = "HASHING_FAILURE"
	FailureAddressDerivation     FailureCode = "ADDRESS_DERIVATION_FAILURE"
	FailureRPCUnavailable        FailureCode = "RPC_UNAVAILABLE"
	FailureAdminKeyUnavailable   FailureCode = "ADMIN_KEY_UNAVAILABLE"
	FailureContractNotConfigured FailureCode = "CONTRACT_NOT_CONFIGURED"
)

// WalletRecord is the persisted provisioning state for one user. A record is
// created exactly once at registration and never deleted; failed attempts
// remain visible as history until the next successful retry.
type WalletRecord struct {
	UserID      uuid.UUID        `db:"user_id"`
	HashedEmail string           `db:"hashed_email"`
	Salt        int64            `db:"wallet_salt"`
	Address     string           `db:"wallet_address"`
	Status      DeploymentStatus `db:"deployment_status"`

	// ErrorCode and ErrorMessage are populated only while Status is failed
	// and are cleared on successful retry.
	ErrorCode    *string `db:"wallet_error_code"`
	ErrorMessage *string `db:"wallet_creation_error"`

	// Degraded marks records whose address came from the entropy fallback
	// rather than deterministic derivation. They need manual reconciliation.
	Degraded bool `db:"degraded"`

	CreatedAt  time.Time  `db:"created_at"`
	VerifiedAt *time.Time `db:"verified_at"`
}

// HasFailure reports whether the record carries a stored failure.
func (r *WalletRecord) HasFailure() bool {
	return r.Status == StatusFailed
}
