package elapsed

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ricordi-app/ricordi-sync/internal/logging"
)

func TestStartTrackingIdempotent(t *testing.T) {
	tr := NewTracker(nil, logging.Nop())

	base := time.Unix(1000, 0)
	tr.now = func() time.Time { return base }
	tr.StartTracking("a")

	// A later repeated start must not reset the original timestamp
	tr.now = func() time.Time { return base.Add(30 * time.Second) }
	tr.StartTracking("a")
	tr.Tick()

	secs, ok := tr.Elapsed("a")
	if !ok {
		t.Fatal("entry should exist")
	}
	if secs != 30 {
		t.Errorf("elapsed = %d, want 30", secs)
	}
}

func TestTickComputesWholeSeconds(t *testing.T) {
	tr := NewTracker(nil, logging.Nop())

	base := time.Unix(1000, 0)
	tr.now = func() time.Time { return base }
	tr.StartTracking("a")

	tr.now = func() time.Time { return base.Add(2500 * time.Millisecond) }
	tr.Tick()

	if secs, _ := tr.Elapsed("a"); secs != 2 {
		t.Errorf("elapsed = %d, want 2 (floor of 2.5s)", secs)
	}
}

func TestTickClampsNegative(t *testing.T) {
	tr := NewTracker(nil, logging.Nop())

	base := time.Unix(1000, 0)
	tr.now = func() time.Time { return base }
	tr.StartTracking("a")

	// Clock moved backwards
	tr.now = func() time.Time { return base.Add(-time.Minute) }
	tr.Tick()

	if secs, _ := tr.Elapsed("a"); secs != 0 {
		t.Errorf("elapsed = %d, want 0", secs)
	}
}

func TestSyncMatchesInProgressSet(t *testing.T) {
	tr := NewTracker(nil, logging.Nop())

	tr.StartTracking("a")
	tr.StartTracking("b")

	tr.Sync([]string{"b", "c"})

	if tr.Count() != 2 {
		t.Errorf("count = %d, want 2", tr.Count())
	}
	if _, ok := tr.Elapsed("a"); ok {
		t.Error("a should have been removed")
	}
	if _, ok := tr.Elapsed("b"); !ok {
		t.Error("b should survive the sync")
	}
	if _, ok := tr.Elapsed("c"); !ok {
		t.Error("c should have been created")
	}
}

func TestAuthoritativeOverridesLocal(t *testing.T) {
	tr := NewTracker(nil, logging.Nop())

	base := time.Unix(1000, 0)
	tr.now = func() time.Time { return base }
	tr.StartTracking("a")

	tr.now = func() time.Time { return base.Add(10 * time.Second) }
	tr.Tick()

	tr.SetAuthoritative("a", 99)

	if secs, _ := tr.Elapsed("a"); secs != 99 {
		t.Errorf("elapsed = %d, want authoritative 99", secs)
	}

	// Further local ticks must not displace the server value
	tr.now = func() time.Time { return base.Add(20 * time.Second) }
	tr.Tick()
	if secs, _ := tr.Elapsed("a"); secs != 99 {
		t.Errorf("elapsed = %d, want 99 after tick", secs)
	}
}

func TestSetAuthoritativeUnknownItemIsNoop(t *testing.T) {
	tr := NewTracker(nil, logging.Nop())
	tr.SetAuthoritative("ghost", 5)
	if tr.Count() != 0 {
		t.Error("unknown item should not create an entry")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "elapsed-state.json")
	store := NewStore(path)

	tr := NewTracker(store, logging.Nop())
	base := time.Unix(5000, 0)
	tr.now = func() time.Time { return base }
	tr.StartTracking("a")
	tr.StartTracking("b")
	tr.StopTracking("b")

	// A fresh tracker restores the surviving start timestamp
	restored := NewTracker(NewStore(path), logging.Nop())
	if restored.Count() != 1 {
		t.Fatalf("restored count = %d, want 1", restored.Count())
	}

	restored.now = func() time.Time { return base.Add(45 * time.Second) }
	restored.Tick()
	if secs, _ := restored.Elapsed("a"); secs != 45 {
		t.Errorf("restored elapsed = %d, want 45", secs)
	}
}

func TestStoreRestoreMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope.json"))
	started, err := store.Restore()
	if err != nil {
		t.Fatalf("Restore of missing file should not error: %v", err)
	}
	if len(started) != 0 {
		t.Errorf("started = %v, want empty", started)
	}
}
