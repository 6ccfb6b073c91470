package constants

import (
	"time"
)

// Upload configuration
const (
	// DefaultMaxConcurrent - maximum number of concurrent photo uploads.
	// Uploads beyond this wait for a semaphore slot.
	DefaultMaxConcurrent = 4

	// SuccessRetention - how long a successfully uploaded item stays in the
	// visible set before it is removed. Error items stay until dismissed.
	SuccessRetention = 4 * time.Second
)

// Polling configuration
const (
	// DefaultPollInterval - interval between queue-status polls while active.
	DefaultPollInterval = 3 * time.Second

	// DefaultRefreshInterval - interval between collection refetches while
	// the queue or the collection reports transient work.
	DefaultRefreshInterval = 3 * time.Second

	// PollMaxRetries - consecutive poll failures tolerated before the error
	// is surfaced. Polling continues regardless; the poller never dies on a
	// transient failure.
	PollMaxRetries = 3

	// ElapsedTickInterval - local tick for elapsed-time recomputation.
	// Deliberately a separate timer from the poll loop so a slow poll never
	// starves elapsed-time updates.
	ElapsedTickInterval = 1 * time.Second
)

// HTTP configuration
const (
	// RequestTimeout - overall timeout for ordinary API requests.
	// The /memory/ask query is exempt: it is long-running and bounded only
	// by explicit cancellation.
	RequestTimeout = 30 * time.Second

	// RetryMax - transient retry attempts for ordinary API requests.
	RetryMax = 3

	// RetryWaitMin - minimum backoff between retries.
	RetryWaitMin = 500 * time.Millisecond

	// RetryWaitMax - maximum backoff between retries.
	RetryWaitMax = 5 * time.Second

	// HTTPIdleConnTimeout - how long idle connections are kept in the pool.
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - TLS handshake deadline.
	HTTPTLSHandshakeTimeout = 10 * time.Second
)

// Event bus configuration
const (
	// EventBusDefaultBuffer - default per-subscriber channel buffer.
	EventBusDefaultBuffer = 256

	// EventBusMaxBuffer - upper bound on per-subscriber channel buffer.
	EventBusMaxBuffer = 4096
)

// AskInterruptedMessage is the terminal log entry appended when an in-flight
// ask is cancelled by the user. Cancellation is not a failure and must never
// be reported as one.
const AskInterruptedMessage = "Risposta interrotta."
