// Package refresh decides the refetch cadence for the photo collection.
// While the queue reports activity or the collection holds transient items,
// the collection is refetched at a fixed short interval; when both predicates
// go false the scheduler stops cleanly, leaving no background polling while
// idle.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/ricordi-app/ricordi-sync/internal/logging"
	"github.com/ricordi-app/ricordi-sync/internal/models"
)

// Scheduler arms a refetch loop while anything is in flight and disarms it
// when idle. Re-entering the active state re-arms polling from scratch.
type Scheduler struct {
	interval  time.Duration
	transient func() bool              // external collection predicate
	refetch   func(ctx context.Context) error
	logger    *logging.Logger

	mu          sync.Mutex
	hasActivity bool
	cancel      context.CancelFunc
	done        chan struct{}
	parent      context.Context
	stopped     bool
}

// NewScheduler creates a scheduler. transient reports whether the current
// collection still holds pending/analyzing items; refetch reloads it.
func NewScheduler(ctx context.Context, interval time.Duration, transient func() bool, refetch func(ctx context.Context) error, logger *logging.Logger) *Scheduler {
	return &Scheduler{
		interval:  interval,
		transient: transient,
		refetch:   refetch,
		logger:    logger,
		parent:    ctx,
	}
}

// Observe feeds the scheduler a new queue snapshot. The refetch loop runs
// while the snapshot reports activity or the collection predicate is true,
// and is cancelled cleanly once both are false.
func (s *Scheduler) Observe(snap models.JobSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hasActivity = snap.HasActivity()
	s.evaluateLocked()
}

// Poke re-evaluates the collection predicate without a new snapshot, e.g.
// right after a refetch changed the collection.
func (s *Scheduler) Poke() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluateLocked()
}

// Active reports whether the refetch loop is currently armed.
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Stop disarms the scheduler permanently.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.disarmLocked()
	done := s.done
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

// evaluateLocked arms or disarms the loop based on the two predicates.
// Caller holds s.mu.
func (s *Scheduler) evaluateLocked() {
	if s.stopped {
		return
	}

	active := s.hasActivity || s.transient()

	switch {
	case active && s.cancel == nil:
		ctx, cancel := context.WithCancel(s.parent)
		s.cancel = cancel
		s.done = make(chan struct{})
		s.logger.Debug().Msg("collection refresh armed")
		go s.loop(ctx, s.done)
	case !active && s.cancel != nil:
		s.logger.Debug().Msg("collection refresh disarmed")
		s.disarmLocked()
	}
}

// disarmLocked cancels the running loop. Caller holds s.mu.
func (s *Scheduler) disarmLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.refetch(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				// Transient refetch failure: keep the cadence, the next
				// tick retries.
				s.logger.Debug().Err(err).Msg("collection refetch failed")
				continue
			}

			// The refetch may have drained the last transient item. If the
			// queue is also idle, stop from within one tick.
			s.mu.Lock()
			if !s.hasActivity && !s.transient() {
				s.disarmLocked()
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
		}
	}
}
