// Package events provides the event bus that decouples the coordinators from
// whatever renders their output. Coordinators publish; rendering is a pure
// subscriber and never drives poll cadence.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ricordi-app/ricordi-sync/internal/constants"
	"github.com/ricordi-app/ricordi-sync/internal/models"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventSnapshot     EventType = "snapshot"      // New queue snapshot published
	EventPollError    EventType = "poll_error"    // Poll retries exhausted (non-fatal)
	EventRefresh      EventType = "refresh"       // Collection refetch completed
	EventUploadChange EventType = "upload_change" // One upload item changed state
	EventBatchSettled EventType = "batch_settled" // An upload batch settled
	EventBulkSettled  EventType = "bulk_settled"  // A bulk operation settled
	EventAsk          EventType = "ask"           // Ask slot terminal outcome
	EventError        EventType = "error"         // Batch-level failure surfaced to the user
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// SnapshotEvent carries a freshly applied queue snapshot.
type SnapshotEvent struct {
	BaseEvent
	Snapshot models.JobSnapshot
}

// PollErrorEvent is published once per outage, after the retry bound is
// exhausted. Polling continues; subscribers show a banner, nothing more.
type PollErrorEvent struct {
	BaseEvent
	Failures int
	Err      error
}

// RefreshEvent carries the refetched photo collection.
type RefreshEvent struct {
	BaseEvent
	Photos []models.Photo
}

// UploadChangeEvent reports a single upload item transition.
type UploadChangeEvent struct {
	BaseEvent
	ItemID   string
	Filename string
	Status   string
	Message  string
	PhotoID  string // server id, set on success
	Err      error
}

// BatchSettledEvent is the single "collection changed" signal per upload
// batch. Exactly one per batch, never one per file.
type BatchSettledEvent struct {
	BaseEvent
	Succeeded int
	Failed    int
}

// BulkSettledEvent reports the settlement of a bulk operation.
type BulkSettledEvent struct {
	BaseEvent
	Operation string // "delete", "analyze", "stop-all"
	Requested int
	Succeeded int
	Failed    int
	Queued    int // analyze: server ack
	Cleared   int // stop-all: server ack
}

// AskOutcome classifies how an ask slot reached a terminal state.
type AskOutcome string

const (
	AskCompleted   AskOutcome = "completed"
	AskInterrupted AskOutcome = "interrupted"
	AskFailed      AskOutcome = "failed"
)

// AskEvent is the single terminal message for an ask query. Exactly one is
// published per query; a cancelled query's late resolution publishes nothing.
type AskEvent struct {
	BaseEvent
	QueryID string
	Outcome AskOutcome
	Message string
	Answer  *models.AskAnswer
	Err     error
}

// ErrorEvent represents a batch-level failure surfaced for visibility.
type ErrorEvent struct {
	BaseEvent
	Scope string
	Err   error
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers. Non-blocking: a subscriber with
// a full buffer drops the event rather than stalling a coordinator.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range eb.all {
		close(ch)
	}
}

// Unsubscribe removes a subscription channel from a specific event type
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	subscribers := eb.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			break
		}
	}
}

// UnsubscribeAll removes a subscription channel from all event types
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	for eventType, subscribers := range eb.subscribers {
		for i, subCh := range subscribers {
			if subCh == ch {
				subscribers[i] = subscribers[len(subscribers)-1]
				eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
				break
			}
		}
	}

	for i, subCh := range eb.all {
		if subCh == ch {
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			break
		}
	}
}

// PublishError is a convenience method for publishing batch-level failures.
func (eb *EventBus) PublishError(scope string, err error) {
	eb.Publish(&ErrorEvent{
		BaseEvent: BaseEvent{EventType: EventError, Time: time.Now()},
		Scope:     scope,
		Err:       err,
	})
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}
