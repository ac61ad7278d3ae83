package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/opengrants/walletd/internal/core/config"
	"github.com/opengrants/walletd/internal/core/domain"
	"github.com/opengrants/walletd/internal/core/provision"
	"github.com/opengrants/walletd/internal/infra/storage/memory"
)

// fakeQueue is an in-memory Queue where every entry is always due.
type fakeQueue struct {
	mu      sync.Mutex
	members map[uuid.UUID]bool
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{members: make(map[uuid.UUID]bool)}
}

func (q *fakeQueue) Enqueue(ctx context.Context, userID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.members[userID] = true
	return nil
}

func (q *fakeQueue) Due(ctx context.Context, limit int64) ([]uuid.UUID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []uuid.UUID
	for id := range q.members {
		out = append(out, id)
	}
	return out, nil
}

func (q *fakeQueue) Remove(ctx context.Context, userID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.members, userID)
	return nil
}

func (q *fakeQueue) Requeue(ctx context.Context, userID uuid.UUID, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.members[userID] = true
	return nil
}

func (q *fakeQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.members)
}

func TestRetrier_RecoversFailedRecord(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewWalletRepo()
	queue := newFakeQueue()
	prov := provision.NewProvisioner(repo, queue)

	userID := uuid.New()
	if _, err := prov.ProvisionForNewUser(ctx, userID, "alice@example.com"); err != nil {
		t.Fatalf("ProvisionForNewUser failed: %v", err)
	}

	before, err := repo.GetByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("GetByUserID failed: %v", err)
	}

	if err := prov.RecordFailure(ctx, userID, domain.FailureRPCUnavailable, "endpoint down"); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if queue.len() != 1 {
		t.Fatalf("Expected failure to be enqueued, queue has %d entries", queue.len())
	}

	retrier := NewRetrier(config.RetryConfig{Enabled: true, Interval: time.Minute}, queue, prov)

	// First pass moves failed back to salt_assigned and keeps the entry.
	retrier.drain(ctx)
	mid, err := repo.GetByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("GetByUserID failed: %v", err)
	}
	if mid.Status != domain.StatusSaltAssigned {
		t.Fatalf("Expected salt_assigned after first pass, got %s", mid.Status)
	}
	if mid.Salt != before.Salt {
		t.Errorf("Transient failure should preserve the salt: had %d, got %d", before.Salt, mid.Salt)
	}

	// Second pass completes the prediction and dequeues.
	retrier.drain(ctx)
	after, err := repo.GetByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("GetByUserID failed: %v", err)
	}
	if after.Status != domain.StatusAddressPredicted {
		t.Fatalf("Expected address_predicted after second pass, got %s", after.Status)
	}
	if after.Address != before.Address {
		t.Errorf("Retry should reproduce the original address: had %s, got %s", before.Address, after.Address)
	}
	if after.ErrorCode != nil || after.ErrorMessage != nil {
		t.Errorf("Successful retry must clear stored failure, got code=%v msg=%v", after.ErrorCode, after.ErrorMessage)
	}
	if queue.len() != 0 {
		t.Errorf("Expected recovered record to leave the queue, %d entries remain", queue.len())
	}
}

func TestRetrier_DeployedIsNoOp(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewWalletRepo()
	queue := newFakeQueue()
	prov := provision.NewProvisioner(repo, queue)

	userID := uuid.New()
	if _, err := prov.ProvisionForNewUser(ctx, userID, "bob@example.com"); err != nil {
		t.Fatalf("ProvisionForNewUser failed: %v", err)
	}
	if err := prov.MarkDeployed(ctx, userID); err != nil {
		t.Fatalf("MarkDeployed failed: %v", err)
	}

	queue.Enqueue(ctx, userID)

	retrier := NewRetrier(config.RetryConfig{Enabled: true}, queue, prov)
	retrier.drain(ctx)

	rec, err := repo.GetByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("GetByUserID failed: %v", err)
	}
	if rec.Status != domain.StatusDeployed {
		t.Errorf("Deployed record must stay deployed, got %s", rec.Status)
	}
	if queue.len() != 0 {
		t.Errorf("Stale entry for a deployed record should be dropped")
	}
}
