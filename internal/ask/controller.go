// Package ask owns the single-flight slot for the long-running memory query.
// At most one query is in flight per controller; cancellation is explicit,
// never silent replacement.
package ask

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ricordi-app/ricordi-sync/internal/constants"
	"github.com/ricordi-app/ricordi-sync/internal/events"
	"github.com/ricordi-app/ricordi-sync/internal/logging"
	"github.com/ricordi-app/ricordi-sync/internal/models"
)

// ErrAlreadyPending is returned when Ask is called while a query is in
// flight. Concurrent asks on the same slot are rejected at the call site,
// not queued.
var ErrAlreadyPending = errors.New("a question is already pending")

// State of the single-flight slot.
type State string

const (
	StateIdle    State = "idle"
	StatePending State = "pending"
)

// Querier is the server boundary for the memory query.
type Querier interface {
	Ask(ctx context.Context, question, model string) (*models.AskAnswer, error)
}

// query is the in-flight request: id, live cancel token, start time.
type query struct {
	id        string
	cancel    context.CancelFunc
	startedAt time.Time
	// terminated is set by Cancel. Once set, the request's eventual
	// resolution is discarded entirely: its terminal message was already
	// appended, and no further state mutation may occur.
	terminated bool
}

// Controller is the cancellation state machine:
// Idle -> Pending -> {Completed, Cancelled, Failed} -> Idle.
// Exactly one terminal event is published per query.
type Controller struct {
	client Querier
	bus    *events.EventBus
	logger *logging.Logger

	mu      sync.Mutex
	current *query
}

// NewController creates an ask controller in the Idle state.
func NewController(client Querier, bus *events.EventBus, logger *logging.Logger) *Controller {
	return &Controller{
		client: client,
		bus:    bus,
		logger: logger,
	}
}

// State returns the current slot state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return StatePending
	}
	return StateIdle
}

// Ask issues the query asynchronously and returns its id. Fails with
// ErrAlreadyPending if the slot is not Idle. The outcome arrives as exactly
// one AskEvent on the bus.
func (c *Controller) Ask(ctx context.Context, question, model string) (string, error) {
	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return "", ErrAlreadyPending
	}

	queryCtx, cancel := context.WithCancel(ctx)
	q := &query{
		id:        uuid.NewString(),
		cancel:    cancel,
		startedAt: time.Now(),
	}
	c.current = q
	c.mu.Unlock()

	c.logger.Debug().Str("query_id", q.id).Msg("ask issued")

	go c.run(queryCtx, q, question, model)
	return q.id, nil
}

// Cancel signals the in-flight query's token and appends the single
// "interrupted" terminal message. No-op when Idle. Cancellation is not a
// failure: it is reported with its own message, never as an error.
func (c *Controller) Cancel() {
	c.mu.Lock()
	q := c.current
	if q == nil || q.terminated {
		c.mu.Unlock()
		return
	}
	q.terminated = true
	c.current = nil
	c.mu.Unlock()

	q.cancel()

	c.logger.Info().Str("query_id", q.id).Msg("ask interrupted")
	c.bus.Publish(&events.AskEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventAsk, Time: time.Now()},
		QueryID:   q.id,
		Outcome:   events.AskInterrupted,
		Message:   constants.AskInterruptedMessage,
	})
}

// run executes the query and classifies its resolution. A query cancelled
// through Cancel already produced its terminal message; whatever the network
// call eventually returns is discarded without any further mutation.
func (c *Controller) run(ctx context.Context, q *query, question, model string) {
	defer q.cancel()

	answer, err := c.client.Ask(ctx, question, model)

	c.mu.Lock()
	if q.terminated {
		c.mu.Unlock()
		return
	}
	c.current = nil
	c.mu.Unlock()

	if err != nil {
		// The context may have been cancelled by the parent rather than via
		// Cancel; classify that as an interruption too, not a failure.
		if errors.Is(err, context.Canceled) {
			c.bus.Publish(&events.AskEvent{
				BaseEvent: events.BaseEvent{EventType: events.EventAsk, Time: time.Now()},
				QueryID:   q.id,
				Outcome:   events.AskInterrupted,
				Message:   constants.AskInterruptedMessage,
			})
			return
		}

		c.logger.Warn().Str("query_id", q.id).Err(err).Msg("ask failed")
		c.bus.Publish(&events.AskEvent{
			BaseEvent: events.BaseEvent{EventType: events.EventAsk, Time: time.Now()},
			QueryID:   q.id,
			Outcome:   events.AskFailed,
			Err:       err,
		})
		return
	}

	c.logger.Debug().
		Str("query_id", q.id).
		Str("model", answer.Model).
		Int("context_items", answer.ContextItems).
		Msg("ask completed")
	c.bus.Publish(&events.AskEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventAsk, Time: time.Now()},
		QueryID:   q.id,
		Outcome:   events.AskCompleted,
		Answer:    answer,
	})
}
