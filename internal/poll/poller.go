// Package poll implements the queue-status poller. It periodically fetches a
// queue snapshot from the server and publishes it to subscribers; rendering
// never drives the poll cadence.
package poll

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ricordi-app/ricordi-sync/internal/events"
	"github.com/ricordi-app/ricordi-sync/internal/logging"
	"github.com/ricordi-app/ricordi-sync/internal/models"
)

// StatusClient fetches queue snapshots from the server boundary.
type StatusClient interface {
	QueueStatus(ctx context.Context) (*models.JobSnapshot, error)
}

// Poller periodically fetches the queue snapshot and publishes each applied
// snapshot wholesale on the event bus. Responses are tagged with a sequence
// number at the moment the request is issued; a response is applied only if
// its sequence number is the highest seen so far, so a slow stale poll can
// never overwrite a newer one.
type Poller struct {
	client     StatusClient
	bus        *events.EventBus
	logger     *logging.Logger
	interval   time.Duration
	maxRetries int

	seq atomic.Uint64 // issued at request time

	mu         sync.Mutex
	appliedSeq uint64
	latest     *models.JobSnapshot
	failures   int  // consecutive failures
	surfaced   bool // error already surfaced for this outage

	kick    chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
	runMu   sync.Mutex
}

// NewPoller creates a poller. It does not start polling until Start.
func NewPoller(client StatusClient, bus *events.EventBus, logger *logging.Logger, interval time.Duration, maxRetries int) *Poller {
	return &Poller{
		client:     client,
		bus:        bus,
		logger:     logger,
		interval:   interval,
		maxRetries: maxRetries,
		kick:       make(chan struct{}, 1),
	}
}

// Start begins the polling loop. Calling Start on a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	if p.running {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	p.running = true

	go p.loop(ctx)
}

// Stop halts the polling loop and waits for it to exit.
func (p *Poller) Stop() {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	if !p.running {
		return
	}
	p.cancel()
	<-p.done
	p.running = false
}

// PollNow forces an immediate poll instead of waiting for the next scheduled
// tick. Used after operations that change queue state sharply (stop-all,
// bulk-analyze). Non-blocking; a pending kick is not duplicated.
func (p *Poller) PollNow() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Latest returns the most recently applied snapshot, or false if no poll has
// succeeded yet.
func (p *Poller) Latest() (models.JobSnapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest == nil {
		return models.JobSnapshot{}, false
	}
	return *p.latest, true
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// First poll immediately; subscribers should not wait a full interval
	// for the initial snapshot.
	p.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		case <-p.kick:
			p.pollOnce(ctx)
		}
	}
}

// pollOnce issues one request and applies the result. The poller never dies
// on a transient failure: errors are counted, surfaced once per outage after
// the retry bound, and polling continues.
func (p *Poller) pollOnce(ctx context.Context) {
	seq := p.seq.Add(1)

	snap, err := p.client.QueueStatus(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.recordFailure(err)
		return
	}

	snap.Seq = seq
	p.apply(snap)
}

// apply publishes the snapshot if it is newer than everything applied so far.
// An older response that resolves after a newer one is discarded.
func (p *Poller) apply(snap *models.JobSnapshot) bool {
	p.mu.Lock()
	if snap.Seq <= p.appliedSeq {
		p.mu.Unlock()
		p.logger.Debug().
			Uint64("seq", snap.Seq).
			Uint64("applied", p.appliedSeq).
			Msg("discarding stale queue snapshot")
		return false
	}
	p.appliedSeq = snap.Seq
	p.latest = snap
	p.failures = 0
	p.surfaced = false
	p.mu.Unlock()

	p.bus.Publish(&events.SnapshotEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventSnapshot, Time: time.Now()},
		Snapshot:  *snap,
	})
	return true
}

func (p *Poller) recordFailure(err error) {
	p.mu.Lock()
	p.failures++
	failures := p.failures
	surface := failures >= p.maxRetries && !p.surfaced
	if surface {
		p.surfaced = true
	}
	p.mu.Unlock()

	if surface {
		p.logger.Warn().Err(err).Int("failures", failures).Msg("queue-status polling degraded")
		p.bus.Publish(&events.PollErrorEvent{
			BaseEvent: events.BaseEvent{EventType: events.EventPollError, Time: time.Now()},
			Failures:  failures,
			Err:       err,
		})
		return
	}
	p.logger.Debug().Err(err).Int("failures", failures).Msg("queue-status poll failed, will retry")
}
