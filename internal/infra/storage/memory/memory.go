// Package memory provides an in-memory wallet repository for tests and for
// running without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opengrants/walletd/internal/core/domain"
	"github.com/opengrants/walletd/internal/infra/storage"
)

// WalletRepo implements storage.WalletRepository in memory.
type WalletRepo struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*domain.WalletRecord
}

// NewWalletRepo creates an empty in-memory wallet repository.
func NewWalletRepo() *WalletRepo {
	return &WalletRepo{records: make(map[uuid.UUID]*domain.WalletRecord)}
}

func (r *WalletRepo) CreateIfAbsent(
	ctx context.Context,
	rec *domain.WalletRecord,
) (*domain.WalletRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.records[rec.UserID]; ok {
		cp := *existing
		return &cp, false, nil
	}

	cp := *rec
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.records[rec.UserID] = &cp

	out := cp
	return &out, true, nil
}

func (r *WalletRepo) GetByUserID(
	ctx context.Context,
	userID uuid.UUID,
) (*domain.WalletRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[userID]
	if !ok {
		return nil, storage.ErrWalletNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *WalletRepo) SetStatus(
	ctx context.Context,
	userID uuid.UUID,
	status domain.DeploymentStatus,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[userID]
	if !ok {
		return storage.ErrWalletNotFound
	}
	rec.Status = status
	return nil
}

func (r *WalletRepo) AssignSalt(ctx context.Context, userID uuid.UUID, salt int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[userID]
	if !ok {
		return storage.ErrWalletNotFound
	}
	rec.Salt = salt
	rec.Status = domain.StatusSaltAssigned
	rec.ErrorCode = nil
	rec.ErrorMessage = nil
	return nil
}

func (r *WalletRepo) UpdatePrediction(
	ctx context.Context,
	userID uuid.UUID,
	salt int64,
	address string,
	degraded bool,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[userID]
	if !ok {
		return storage.ErrWalletNotFound
	}
	rec.Salt = salt
	rec.Address = address
	rec.Degraded = degraded
	rec.Status = domain.StatusAddressPredicted
	rec.ErrorCode = nil
	rec.ErrorMessage = nil
	return nil
}

func (r *WalletRepo) RecordFailure(
	ctx context.Context,
	userID uuid.UUID,
	code domain.FailureCode,
	message string,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[userID]
	if !ok {
		return storage.ErrWalletNotFound
	}
	codeStr := string(code)
	rec.Status = domain.StatusFailed
	rec.ErrorCode = &codeStr
	rec.ErrorMessage = &message
	return nil
}

func (r *WalletRepo) MarkDeployed(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[userID]
	if !ok {
		return storage.ErrWalletNotFound
	}
	now := time.Now()
	rec.Status = domain.StatusDeployed
	rec.VerifiedAt = &now
	return nil
}

func (r *WalletRepo) ListFailed(ctx context.Context) ([]*domain.WalletRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.WalletRecord
	for _, rec := range r.records {
		if rec.Status == domain.StatusFailed {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}
