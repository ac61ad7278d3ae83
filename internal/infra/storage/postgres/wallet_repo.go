package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/opengrants/walletd/internal/core/domain"
	"github.com/opengrants/walletd/internal/infra/storage"
)

// WalletRepo implements storage.WalletRepository using PostgreSQL.
type WalletRepo struct {
	db *DB
}

// NewWalletRepo creates a new PostgreSQL wallet repository.
func NewWalletRepo(db *DB) *WalletRepo {
	return &WalletRepo{db: db}
}

const insertWalletQuery = `
INSERT INTO wallet_records (
	user_id, hashed_email, wallet_salt, wallet_address, deployment_status,
	wallet_error_code, wallet_creation_error, degraded, created_at
) VALUES (
	:user_id, :hashed_email, :wallet_salt, :wallet_address, :deployment_status,
	:wallet_error_code, :wallet_creation_error, :degraded, :created_at
)
ON CONFLICT (user_id) DO NOTHING`

// CreateIfAbsent inserts the record unless one already exists for the user.
// ON CONFLICT DO NOTHING makes the first writer win under concurrent
// registration; losers read back the stored record.
func (r *WalletRepo) CreateIfAbsent(
	ctx context.Context,
	rec *domain.WalletRecord,
) (*domain.WalletRecord, bool, error) {
	res, err := r.db.NamedExecContext(ctx, insertWalletQuery, rec)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert wallet record: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read insert result: %w", err)
	}

	stored, err := r.GetByUserID(ctx, rec.UserID)
	if err != nil {
		return nil, false, err
	}
	return stored, inserted == 1, nil
}

// GetByUserID retrieves the record for a user.
func (r *WalletRepo) GetByUserID(
	ctx context.Context,
	userID uuid.UUID,
) (*domain.WalletRecord, error) {
	var rec domain.WalletRecord
	err := r.db.GetContext(ctx, &rec,
		`SELECT * FROM wallet_records WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet record: %w", err)
	}
	return &rec, nil
}

// SetStatus updates the deployment status only.
func (r *WalletRepo) SetStatus(
	ctx context.Context,
	userID uuid.UUID,
	status domain.DeploymentStatus,
) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE wallet_records SET deployment_status = $2 WHERE user_id = $1`,
		userID, status)
	if err != nil {
		return fmt.Errorf("failed to set status: %w", err)
	}
	return requireRow(res)
}

// AssignSalt stores a salt, moves the record to salt_assigned and clears any
// stored failure.
func (r *WalletRepo) AssignSalt(ctx context.Context, userID uuid.UUID, salt int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE wallet_records
		 SET wallet_salt = $2,
		     deployment_status = $3,
		     wallet_error_code = NULL,
		     wallet_creation_error = NULL
		 WHERE user_id = $1`,
		userID, salt, domain.StatusSaltAssigned)
	if err != nil {
		return fmt.Errorf("failed to assign salt: %w", err)
	}
	return requireRow(res)
}

// UpdatePrediction stores a salt/address pair, moves the record to
// address_predicted and clears any stored failure.
func (r *WalletRepo) UpdatePrediction(
	ctx context.Context,
	userID uuid.UUID,
	salt int64,
	address string,
	degraded bool,
) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE wallet_records
		 SET wallet_salt = $2,
		     wallet_address = $3,
		     degraded = $4,
		     deployment_status = $5,
		     wallet_error_code = NULL,
		     wallet_creation_error = NULL
		 WHERE user_id = $1`,
		userID, salt, address, degraded, domain.StatusAddressPredicted)
	if err != nil {
		return fmt.Errorf("failed to update prediction: %w", err)
	}
	return requireRow(res)
}

// RecordFailure moves the record to failed, storing code and message verbatim.
func (r *WalletRepo) RecordFailure(
	ctx context.Context,
	userID uuid.UUID,
	code domain.FailureCode,
	message string,
) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE wallet_records
		 SET deployment_status = $2,
		     wallet_error_code = $3,
		     wallet_creation_error = $4
		 WHERE user_id = $1`,
		userID, domain.StatusFailed, string(code), message)
	if err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}
	return requireRow(res)
}

// MarkDeployed moves the record to deployed and stamps verified_at.
func (r *WalletRepo) MarkDeployed(ctx context.Context, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE wallet_records
		 SET deployment_status = $2, verified_at = now()
		 WHERE user_id = $1`,
		userID, domain.StatusDeployed)
	if err != nil {
		return fmt.Errorf("failed to mark deployed: %w", err)
	}
	return requireRow(res)
}

// ListFailed returns all records currently in failed state.
func (r *WalletRepo) ListFailed(ctx context.Context) ([]*domain.WalletRecord, error) {
	var recs []*domain.WalletRecord
	err := r.db.SelectContext(ctx, &recs,
		`SELECT * FROM wallet_records
		 WHERE deployment_status = $1
		 ORDER BY created_at`, domain.StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed records: %w", err)
	}
	return recs, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if n == 0 {
		return storage.ErrWalletNotFound
	}
	return nil
}
