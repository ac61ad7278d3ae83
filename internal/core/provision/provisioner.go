// Package provision owns the per-user wallet provisioning lifecycle:
// pending -> salt_assigned -> address_predicted -> deployed, with an explicit
// failed state that retries re-enter through salt_assigned.
//
// This is the single place where failures are absorbed into persisted state.
// A registration call always completes cleanly, success or clean failure;
// the caller never sees a half-written record or an escaped panic from
// address derivation.
package provision

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opengrants/walletd/internal/core/domain"
	"github.com/opengrants/walletd/internal/core/wallet"
	"github.com/opengrants/walletd/internal/infra/storage"
	"github.com/opengrants/walletd/internal/metrics"
)

var (
	// ErrAddressMismatch is returned when recomputing the counterfactual
	// address does not reproduce the stored value. This is a functional bug,
	// never a transient condition; the record must not be marked deployed.
	ErrAddressMismatch = errors.New("recomputed address does not match stored address")

	// ErrDegradedRecord is returned when an operation requires deterministic
	// derivation but the record carries an entropy-fallback address.
	ErrDegradedRecord = errors.New("degraded record requires manual reconciliation")
)

// RetryQueue receives user IDs whose provisioning failed so a background
// worker can retry them. A nil queue disables automatic retries.
type RetryQueue interface {
	Enqueue(ctx context.Context, userID uuid.UUID) error
}

// Status is the provisioning view exposed to the user-profile collaborator.
type Status struct {
	Address   string
	Salt      int64
	Status    domain.DeploymentStatus
	ErrorCode *string
	Degraded  bool
}

// Provisioner drives wallet records through the provisioning state machine.
type Provisioner struct {
	repo  storage.WalletRepository
	queue RetryQueue
	log   *slog.Logger
}

// NewProvisioner creates a provisioner. queue may be nil.
func NewProvisioner(repo storage.WalletRepository, queue RetryQueue) *Provisioner {
	return &Provisioner{
		repo:  repo,
		queue: queue,
		log:   slog.Default(),
	}
}

// ProvisionForNewUser allocates a salt and predicted address for a freshly
// registered user and persists them. Everything here is cheap, local and
// synchronous; no network is touched. The call is idempotent: repeated or
// concurrent calls for the same user return the already-stored (salt,
// address) pair rather than allocating a second one.
func (p *Provisioner) ProvisionForNewUser(ctx context.Context, userID uuid.UUID, email string) (*Status, error) {
	digest, err := wallet.HashIdentifier(email)
	if err != nil {
		return p.provisionFailed(ctx, userID, domain.FailureHashing, err)
	}

	salt, err := wallet.AllocateSalt()
	if err != nil {
		return p.provisionFailed(ctx, userID, domain.FailureAddressDerivation, err)
	}

	address, degraded := p.deriveAddress(digest, salt)

	rec := &domain.WalletRecord{
		UserID:      userID,
		HashedEmail: hex.EncodeToString(digest[:]),
		Salt:        salt,
		Address:     address,
		Status:      domain.StatusAddressPredicted,
		Degraded:    degraded,
		CreatedAt:   time.Now().UTC(),
	}

	stored, created, err := p.repo.CreateIfAbsent(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to persist wallet record: %w", err)
	}

	if !created {
		// Lost the race (or repeated call): the first writer's salt wins.
		p.log.Debug("wallet record already exists, reusing stored prediction",
			"user_id", userID, "status", stored.Status)
		metrics.ProvisionsTotal.WithLabelValues("duplicate").Inc()
		return statusOf(stored), nil
	}

	if degraded {
		p.log.Warn("address derivation fell back to entropy, record flagged",
			"user_id", userID)
		metrics.ProvisionsTotal.WithLabelValues("degraded").Inc()
	} else {
		metrics.ProvisionsTotal.WithLabelValues("ok").Inc()
	}

	return statusOf(stored), nil
}

// deriveAddress predicts the wallet address, falling back to best-effort
// entropy when deterministic derivation fails so registration can still
// complete. The boolean reports whether the fallback was taken.
func (p *Provisioner) deriveAddress(digest [32]byte, salt int64) (string, bool) {
	addr, err := wallet.PredictAddress(digest, salt)
	if err == nil {
		return addr.Hex(), false
	}

	p.log.Warn("deterministic derivation failed, using entropy fallback", "error", err)
	fb, ferr := wallet.FallbackAddress()
	if ferr != nil {
		// No entropy either; leave the address empty and let the degraded
		// flag route the record to manual reconciliation.
		return "", true
	}
	return fb.Hex(), true
}

// provisionFailed persists a clean failed record so registration itself can
// still succeed; the user sees "wallet pending", not an error page.
func (p *Provisioner) provisionFailed(ctx context.Context, userID uuid.UUID, code domain.FailureCode, cause error) (*Status, error) {
	rec := &domain.WalletRecord{
		UserID:    userID,
		Status:    domain.StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	stored, created, err := p.repo.CreateIfAbsent(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to persist wallet record: %w", err)
	}
	if created {
		if err := p.RecordFailure(ctx, userID, code, cause.Error()); err != nil {
			return nil, err
		}
		stored, err = p.repo.GetByUserID(ctx, userID)
		if err != nil {
			return nil, err
		}
	}

	metrics.ProvisionsTotal.WithLabelValues("failed").Inc()
	return statusOf(stored), nil
}

// RecordFailure persists a failure without discarding the already-assigned
// salt and address, so retry resumes from salt_assigned rather than pending.
func (p *Provisioner) RecordFailure(ctx context.Context, userID uuid.UUID, code domain.FailureCode, message string) error {
	rec, err := p.repo.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}

	if rec.Status != domain.StatusFailed && !CanTransition(rec.Status, domain.StatusFailed) {
		return fmt.Errorf("%w: cannot fail record in state %s", ErrInvalidTransition, rec.Status)
	}

	if err := p.repo.RecordFailure(ctx, userID, code, message); err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}
	metrics.ProvisionFailuresTotal.WithLabelValues(string(code)).Inc()

	if p.queue != nil {
		if err := p.queue.Enqueue(ctx, userID); err != nil {
			// Retry scheduling is best-effort; the record itself is safe.
			p.log.Warn("failed to enqueue wallet retry", "user_id", userID, "error", err)
		}
	}

	return nil
}

// Retry re-attempts the next incomplete provisioning step. It is idempotent:
// a deployed or address_predicted record is a no-op. A failed record first
// re-enters salt_assigned, preserving the stored salt unless the failure
// category invalidated derivation; the stored error is cleared only once a
// subsequent step succeeds.
func (p *Provisioner) Retry(ctx context.Context, userID uuid.UUID) error {
	rec, err := p.repo.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}

	switch rec.Status {
	case domain.StatusDeployed, domain.StatusAddressPredicted:
		return nil

	case domain.StatusFailed:
		salt := rec.Salt
		if needsRederivation(rec.ErrorCode) || salt == 0 {
			salt, err = wallet.AllocateSalt()
			if err != nil {
				return fmt.Errorf("failed to reallocate salt: %w", err)
			}
		}
		if err := p.repo.AssignSalt(ctx, userID, salt); err != nil {
			return fmt.Errorf("failed to re-enter salt_assigned: %w", err)
		}
		metrics.ProvisionRetriesTotal.WithLabelValues("resumed").Inc()
		return nil

	case domain.StatusPending:
		salt, err := wallet.AllocateSalt()
		if err != nil {
			return fmt.Errorf("failed to allocate salt: %w", err)
		}
		if err := p.repo.AssignSalt(ctx, userID, salt); err != nil {
			return fmt.Errorf("failed to assign salt: %w", err)
		}
		return nil

	case domain.StatusSaltAssigned:
		return p.completePrediction(ctx, rec)

	default:
		return fmt.Errorf("%w: unknown state %s", ErrInvalidTransition, rec.Status)
	}
}

// completePrediction runs the salt_assigned -> address_predicted step,
// clearing any stored failure on success.
func (p *Provisioner) completePrediction(ctx context.Context, rec *domain.WalletRecord) error {
	digest, err := parseDigest(rec.HashedEmail)

	var address string
	degraded := rec.Degraded
	if err != nil {
		// Digest unusable; entropy fallback keeps the lifecycle moving and
		// the degraded flag routes the record to manual reconciliation.
		address, err = fallbackHex()
		if err != nil {
			return err
		}
		degraded = true
	} else {
		addr, derr := wallet.PredictAddress(digest, rec.Salt)
		if derr != nil {
			address, err = fallbackHex()
			if err != nil {
				return err
			}
			degraded = true
		} else {
			address = addr.Hex()
		}
	}

	if err := p.repo.UpdatePrediction(ctx, rec.UserID, rec.Salt, address, degraded); err != nil {
		return fmt.Errorf("failed to store prediction: %w", err)
	}
	metrics.ProvisionRetriesTotal.WithLabelValues("predicted").Inc()
	return nil
}

// MarkDeployed records that the wallet is live on chain. The stored address
// is recomputed first; a mismatch aborts the transition.
func (p *Provisioner) MarkDeployed(ctx context.Context, userID uuid.UUID) error {
	rec, err := p.repo.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}

	if rec.Status == domain.StatusDeployed {
		return nil
	}
	if !CanTransition(rec.Status, domain.StatusDeployed) {
		return fmt.Errorf("%w: cannot deploy from state %s", ErrInvalidTransition, rec.Status)
	}
	if rec.Degraded {
		return ErrDegradedRecord
	}

	digest, err := parseDigest(rec.HashedEmail)
	if err != nil {
		return fmt.Errorf("stored digest unusable: %w", err)
	}
	recomputed, err := wallet.PredictAddress(digest, rec.Salt)
	if err != nil {
		return fmt.Errorf("failed to recompute address: %w", err)
	}
	if recomputed.Hex() != rec.Address {
		return fmt.Errorf("%w: stored %s, recomputed %s",
			ErrAddressMismatch, rec.Address, recomputed.Hex())
	}

	return p.repo.MarkDeployed(ctx, userID)
}

// Status returns the provisioning view for the user-profile API.
func (p *Provisioner) Status(ctx context.Context, userID uuid.UUID) (*Status, error) {
	rec, err := p.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return statusOf(rec), nil
}

// needsRederivation reports whether a stored failure invalidates the
// previously derived salt, forcing a fresh draw on retry.
func needsRederivation(code *string) bool {
	if code == nil {
		return false
	}
	switch domain.FailureCode(*code) {
	case domain.FailureHashing, domain.FailureAddressDerivation:
		return true
	}
	return false
}

func statusOf(rec *domain.WalletRecord) *Status {
	return &Status{
		Address:   rec.Address,
		Salt:      rec.Salt,
		Status:    rec.Status,
		ErrorCode: rec.ErrorCode,
		Degraded:  rec.Degraded,
	}
}

func parseDigest(hexDigest string) ([32]byte, error) {
	var digest [32]byte
	raw, err := hex.DecodeString(hexDigest)
	if err != nil {
		return digest, fmt.Errorf("invalid stored digest: %w", err)
	}
	if len(raw) != 32 {
		return digest, fmt.Errorf("invalid stored digest length %d", len(raw))
	}
	copy(digest[:], raw)
	return digest, nil
}

func fallbackHex() (string, error) {
	addr, err := wallet.FallbackAddress()
	if err != nil {
		return "", fmt.Errorf("entropy fallback failed: %w", err)
	}
	return addr.Hex(), nil
}
