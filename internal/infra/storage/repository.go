package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/opengrants/walletd/internal/core/domain"
)

var (
	// ErrWalletNotFound is returned when no wallet record exists for a user.
	ErrWalletNotFound = errors.New("wallet record not found")
)

// WalletRepository handles wallet provisioning records. Records are additive:
// nothing here deletes a record.
type WalletRepository interface {
	// CreateIfAbsent inserts the record unless one already exists for the
	// user. It returns the stored record and whether this call created it.
	// Under concurrent registration the first writer wins and later callers
	// observe the stored salt/address.
	CreateIfAbsent(ctx context.Context, rec *domain.WalletRecord) (*domain.WalletRecord, bool, error)

	// GetByUserID retrieves the record for a user.
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.WalletRecord, error)

	// SetStatus updates the deployment status only.
	SetStatus(ctx context.Context, userID uuid.UUID, status domain.DeploymentStatus) error

	// AssignSalt stores a salt and moves the record to salt_assigned,
	// clearing any stored failure so error fields are only ever populated
	// while the record sits in failed state.
	AssignSalt(ctx context.Context, userID uuid.UUID, salt int64) error

	// UpdatePrediction stores a salt/address pair, moves the record to
	// address_predicted and clears any stored failure.
	UpdatePrediction(ctx context.Context, userID uuid.UUID, salt int64, address string, degraded bool) error

	// RecordFailure moves the record to failed, storing the code and message
	// verbatim. Salt and address are left untouched.
	RecordFailure(ctx context.Context, userID uuid.UUID, code domain.FailureCode, message string) error

	// MarkDeployed moves the record to deployed and stamps verified_at.
	MarkDeployed(ctx context.Context, userID uuid.UUID) error

	// ListFailed returns all records currently in failed state.
	ListFailed(ctx context.Context) ([]*domain.WalletRecord, error)
}
