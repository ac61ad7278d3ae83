// Package worker runs the background retry loop for failed wallet
// provisions.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opengrants/walletd/internal/core/config"
	"github.com/opengrants/walletd/internal/core/domain"
	"github.com/opengrants/walletd/internal/core/provision"
)

// Queue is the scheduling surface the retrier drains. The Redis retry queue
// satisfies it.
type Queue interface {
	Due(ctx context.Context, limit int64) ([]uuid.UUID, error)
	Remove(ctx context.Context, userID uuid.UUID) error
	Requeue(ctx context.Context, userID uuid.UUID, delay time.Duration) error
}

// Retrier drains due retry entries and advances each record one provisioning
// step per pass. Records that reach a predicted or deployed address leave
// the queue; everything else is rescheduled.
type Retrier struct {
	cfg   config.RetryConfig
	queue Queue
	prov  *provision.Provisioner
	log   *slog.Logger
}

// NewRetrier creates a new retry worker.
func NewRetrier(cfg config.RetryConfig, queue Queue, prov *provision.Provisioner) *Retrier {
	return &Retrier{
		cfg:   cfg,
		queue: queue,
		prov:  prov,
		log:   slog.Default(),
	}
}

// Start runs the retry loop until the context is cancelled.
func (r *Retrier) Start(ctx context.Context) {
	if !r.cfg.Enabled || r.queue == nil {
		return
	}

	interval := r.cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial pass picks up entries left over from a previous run.
	r.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

func (r *Retrier) drain(ctx context.Context) {
	due, err := r.queue.Due(ctx, 100)
	if err != nil {
		r.log.Error("Failed to read retry queue", "error", err)
		return
	}

	for _, userID := range due {
		if ctx.Err() != nil {
			return
		}
		r.retryOne(ctx, userID)
	}
}

func (r *Retrier) retryOne(ctx context.Context, userID uuid.UUID) {
	if err := r.prov.Retry(ctx, userID); err != nil {
		r.log.Warn("Wallet retry step failed", "user_id", userID, "error", err)
		r.reschedule(ctx, userID)
		return
	}

	st, err := r.prov.Status(ctx, userID)
	if err != nil {
		r.log.Warn("Failed to read wallet status after retry", "user_id", userID, "error", err)
		r.reschedule(ctx, userID)
		return
	}

	switch st.Status {
	case domain.StatusAddressPredicted, domain.StatusDeployed:
		if err := r.queue.Remove(ctx, userID); err != nil {
			r.log.Warn("Failed to dequeue retried wallet", "user_id", userID, "error", err)
		}
		r.log.Info("Wallet provisioning recovered", "user_id", userID, "status", st.Status)
	default:
		// Mid-lifecycle, run the next step shortly.
		if err := r.queue.Requeue(ctx, userID, time.Second); err != nil {
			r.log.Warn("Failed to reschedule wallet retry", "user_id", userID, "error", err)
		}
	}
}

func (r *Retrier) reschedule(ctx context.Context, userID uuid.UUID) {
	interval := r.cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	if err := r.queue.Requeue(ctx, userID, interval); err != nil {
		r.log.Warn("Failed to reschedule wallet retry", "user_id", userID, "error", err)
	}
}
