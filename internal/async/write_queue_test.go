package async

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tomaszkw/docmeter/constants"
	"github.com/tomaszkw/docmeter/internal/entity"
)

type recordingRepo struct {
	mu      sync.Mutex
	applied []entity.Job
}

func (r *recordingRepo) Insert(ctx context.Context, job *entity.Job) error { return nil }

func (r *recordingRepo) ApplyUpdate(ctx context.Context, job *entity.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = append(r.applied, *job)
	return nil
}

func (r *recordingRepo) GetByID(ctx context.Context, id string) (*entity.Job, error) {
	return nil, nil
}

func (r *recordingRepo) ListBySession(ctx context.Context, sessionID string) ([]*entity.Job, error) {
	return nil, nil
}

func TestWriteQueueDrainsOnShutdown(t *testing.T) {
	repo := &recordingRepo{}
	q := NewWriteQueue(repo, nil, WithWorkers(2), WithQueueSize(16))

	for i := 0; i < 10; i++ {
		upd := Update{
			Job:        entity.Job{ID: "job-1", Status: constants.JobStatusStarted},
			ReceivedAt: time.Now(),
		}
		if err := q.Enqueue(context.Background(), upd); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if got := len(repo.applied); got != 10 {
		t.Fatalf("applied %d updates, want 10", got)
	}
}

func TestWriteQueueEnqueueAfterShutdown(t *testing.T) {
	repo := &recordingRepo{}
	q := NewWriteQueue(repo, nil, WithWorkers(1))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q.Shutdown(ctx)
	q.Shutdown(ctx)

	// Must not panic on the closed channel.
	if err := q.Enqueue(context.Background(), Update{Job: entity.Job{ID: "late"}}); err != nil {
		t.Fatalf("Enqueue after shutdown: %v", err)
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.applied) != 0 {
		t.Fatalf("expected no writes, got %d", len(repo.applied))
	}
}
