package async

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/tomaszkw/docmeter/internal/repository"
)

// WriteQueue persists job updates off the feed callback goroutine so a
// slow database write never stalls status delivery.
type WriteQueue struct {
	jobs    repository.JobRepository
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Update
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*WriteQueue)

func WithWorkers(n int) Option {
	return func(q *WriteQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *WriteQueue) {
		if n > 0 {
			q.ch = make(chan Update, n)
		}
	}
}
func WithWriteTimeout(d time.Duration) Option {
	return func(q *WriteQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewWriteQueue(jobs repository.JobRepository, logger *slog.Logger, opts ...Option) *WriteQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &WriteQueue{
		jobs:    jobs,
		logger:  logger,
		workers: 2,
		timeout: 5 * time.Second,
		ch:      make(chan Update, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *WriteQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("status writer started", "worker_id", workerID)

				for upd := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					err := q.jobs.ApplyUpdate(ctx, &upd.Job)
					cancel()

					if err != nil {
						q.logger.Error("job update not persisted", "worker_id", workerID, "job_id", upd.Job.ID, "error", err)
					}
				}

				q.logger.Info("status writer stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *WriteQueue) Enqueue(_ context.Context, upd Update) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "job_id", upd.Job.ID)
		return nil
	}
	select {
	case q.ch <- upd:
	default:
		q.logger.Warn("queue full, applying backpressure", "job_id", upd.Job.ID)
		q.ch <- upd
	}
	return nil
}

func (q *WriteQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
