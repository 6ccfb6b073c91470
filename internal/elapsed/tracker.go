package elapsed

import (
	"sync"
	"time"

	"github.com/ricordi-app/ricordi-sync/internal/logging"
)

// Entry holds the elapsed-time state for one in-progress photo.
type Entry struct {
	ItemID               string
	StartEpochMs         int64
	LastComputedSeconds  int
	authoritativeSeconds int
	hasAuthoritative     bool
}

// Tracker maintains one entry per photo the external collection currently
// considers in progress, and recomputes elapsed seconds on a fixed local
// tick. The local clock is display-only and not authoritative: clock skew
// or suspension may cause jumps, which is accepted.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*Entry
	store   *Store
	logger  *logging.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewTracker creates a tracker and restores persisted start timestamps.
// A store read failure degrades to empty state; elapsed display is not worth
// failing startup over.
func NewTracker(store *Store, logger *logging.Logger) *Tracker {
	t := &Tracker{
		entries: make(map[string]*Entry),
		store:   store,
		logger:  logger,
		now:     time.Now,
	}

	if store != nil {
		started, err := store.Restore()
		if err != nil {
			logger.Warn().Err(err).Msg("could not restore elapsed state, starting fresh")
			started = make(map[string]int64)
		}
		for id, startMs := range started {
			t.entries[id] = &Entry{ItemID: id, StartEpochMs: startMs}
		}
	}

	return t
}

// StartTracking records a start timestamp for the item if absent.
// Idempotent: repeated calls preserve the original start time, which is what
// keeps elapsed counters stable across restarts.
func (t *Tracker) StartTracking(itemID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[itemID]; exists {
		return
	}
	t.entries[itemID] = &Entry{
		ItemID:       itemID,
		StartEpochMs: t.now().UnixMilli(),
	}
	t.flushLocked()
}

// StopTracking removes the entry for the item.
func (t *Tracker) StopTracking(itemID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[itemID]; !exists {
		return
	}
	delete(t.entries, itemID)
	t.flushLocked()
}

// Sync reconciles tracked entries with the set of item ids the external
// collection currently marks in progress: missing entries are created,
// entries for items no longer in progress are removed. Invariant: after
// Sync, entry count equals in-progress count.
func (t *Tracker) Sync(inProgress []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	keep := make(map[string]bool, len(inProgress))
	changed := false

	for _, id := range inProgress {
		keep[id] = true
		if _, exists := t.entries[id]; !exists {
			t.entries[id] = &Entry{ItemID: id, StartEpochMs: t.now().UnixMilli()}
			changed = true
		}
	}
	for id := range t.entries {
		if !keep[id] {
			delete(t.entries, id)
			changed = true
		}
	}

	if changed {
		t.flushLocked()
	}
}

// Tick recomputes elapsed seconds for every tracked entry.
// Elapsed seconds are always a non-negative integer.
func (t *Tracker) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	nowMs := t.now().UnixMilli()
	for _, e := range t.entries {
		secs := int((nowMs - e.StartEpochMs) / 1000)
		if secs < 0 {
			secs = 0
		}
		e.LastComputedSeconds = secs
	}
}

// SetAuthoritative records the server-reported elapsed seconds for an item.
// The authoritative value takes precedence over the local estimate in
// Elapsed until the entry is removed.
func (t *Tracker) SetAuthoritative(itemID string, seconds int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, exists := t.entries[itemID]
	if !exists {
		return
	}
	e.authoritativeSeconds = seconds
	e.hasAuthoritative = true
}

// Elapsed returns the display value for an item: the server's authoritative
// seconds when known, the local estimate otherwise.
func (t *Tracker) Elapsed(itemID string) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, exists := t.entries[itemID]
	if !exists {
		return 0, false
	}
	if e.hasAuthoritative {
		return e.authoritativeSeconds, true
	}
	return e.LastComputedSeconds, true
}

// Count returns the number of tracked entries.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// flushLocked persists start timestamps. Caller holds t.mu.
func (t *Tracker) flushLocked() {
	if t.store == nil {
		return
	}
	started := make(map[string]int64, len(t.entries))
	for id, e := range t.entries {
		started[id] = e.StartEpochMs
	}
	if err := t.store.Flush(started); err != nil {
		t.logger.Warn().Err(err).Msg("could not persist elapsed state")
	}
}
