package track

import (
	"log/slog"
	"sync"

	"github.com/tomaszkw/docmeter/internal/entity"
)

// Feed is the push channel carrying job updates. Subscribe registers a
// handler for one job id and returns a release that stops delivery. A feed
// that never delivers is tolerated; the tracker's detach stays the
// caller's escape hatch.
type Feed interface {
	Subscribe(jobID string, handler func(entity.Job)) (release func(), err error)
}

// UpdateFunc receives every accepted update with the current record.
type UpdateFunc func(entity.Job)

// CompleteFunc receives the final record, at most once per tracked job.
type CompleteFunc func(entity.Job)

// Tracker converges a client-held job record to the backend-authoritative
// terminal state exactly once.
type Tracker struct {
	feed   Feed
	logger *slog.Logger
}

func NewTracker(feed Feed, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{feed: feed, logger: logger}
}

// Track subscribes to updates for jobID. onComplete fires exactly once,
// only for a terminal status, after which the subscription is released.
// The returned detach may be called at any time; once it returns, no
// callback fires, even for a delivery already in flight.
func (t *Tracker) Track(jobID string, onUpdate UpdateFunc, onComplete CompleteFunc) (func(), error) {
	sub := &subscription{
		jobID:      jobID,
		onUpdate:   onUpdate,
		onComplete: onComplete,
		logger:     t.logger,
	}
	release, err := t.feed.Subscribe(jobID, sub.deliver)
	if err != nil {
		return nil, err
	}

	sub.mu.Lock()
	if sub.done {
		// A terminal update landed before Subscribe returned.
		sub.mu.Unlock()
		release()
	} else {
		sub.release = release
		sub.mu.Unlock()
	}
	return sub.detach, nil
}

type subscription struct {
	jobID      string
	onUpdate   UpdateFunc
	onComplete CompleteFunc
	logger     *slog.Logger

	// mu is held across callback invocation so detach cannot return while
	// a delivery is being applied: detachment wins the race.
	mu      sync.Mutex
	done    bool
	release func()
}

func (s *subscription) deliver(job entity.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		// Late or duplicate message after terminal/detach.
		return
	}

	switch {
	case job.Status.IsTerminal():
		s.done = true
		if s.onUpdate != nil {
			s.onUpdate(job)
		}
		if s.onComplete != nil {
			s.onComplete(job)
		}
		s.logger.Info("job reached terminal state", "job_id", s.jobID, "status", job.Status)
		s.releaseLocked()
	case job.Status == "":
		s.logger.Warn("job update without status ignored", "job_id", s.jobID)
	default:
		// Non-terminal refresh: record fields update, state stays pending.
		if s.onUpdate != nil {
			s.onUpdate(job)
		}
	}
}

func (s *subscription) detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	s.releaseLocked()
}

func (s *subscription) releaseLocked() {
	if s.release != nil {
		s.release()
		s.release = nil
	}
}
