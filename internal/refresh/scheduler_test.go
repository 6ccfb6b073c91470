package refresh

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ricordi-app/ricordi-sync/internal/logging"
	"github.com/ricordi-app/ricordi-sync/internal/models"
)

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestArmsOnActivity(t *testing.T) {
	var refetches atomic.Int32
	var transient atomic.Bool
	transient.Store(true)

	s := NewScheduler(context.Background(), 10*time.Millisecond,
		func() bool { return transient.Load() },
		func(ctx context.Context) error { refetches.Add(1); return nil },
		logging.Nop())
	defer s.Stop()

	s.Observe(models.JobSnapshot{QueueSize: 1})

	if !s.Active() {
		t.Fatal("scheduler should arm on an active snapshot")
	}
	waitFor(t, func() bool { return refetches.Load() >= 2 }, "repeated refetches")
}

func TestIdleSnapshotNeverArms(t *testing.T) {
	s := NewScheduler(context.Background(), 10*time.Millisecond,
		func() bool { return false },
		func(ctx context.Context) error { return nil },
		logging.Nop())
	defer s.Stop()

	s.Observe(models.JobSnapshot{})

	if s.Active() {
		t.Error("idle snapshot with settled collection should not arm")
	}
}

func TestTransientCollectionKeepsLoopAlive(t *testing.T) {
	var refetches atomic.Int32
	var transient atomic.Bool
	transient.Store(true)

	s := NewScheduler(context.Background(), 10*time.Millisecond,
		func() bool { return transient.Load() },
		func(ctx context.Context) error { refetches.Add(1); return nil },
		logging.Nop())
	defer s.Stop()

	// Queue idle but collection still transient
	s.Observe(models.JobSnapshot{})

	if !s.Active() {
		t.Fatal("transient collection should keep the loop armed")
	}
	waitFor(t, func() bool { return refetches.Load() >= 1 }, "refetch while transient")
}

func TestStopsWithinOneTickOfIdle(t *testing.T) {
	var transient atomic.Bool
	transient.Store(true)

	s := NewScheduler(context.Background(), 10*time.Millisecond,
		func() bool { return transient.Load() },
		func(ctx context.Context) error { return nil },
		logging.Nop())
	defer s.Stop()

	s.Observe(models.JobSnapshot{QueueSize: 1})
	waitFor(t, func() bool { return s.Active() }, "arming")

	// Both predicates go false; the loop notices after its next refetch
	transient.Store(false)
	s.Observe(models.JobSnapshot{})

	waitFor(t, func() bool { return !s.Active() }, "disarm within a tick")
}

func TestSelfDisarmAfterLastTransientDrains(t *testing.T) {
	var transient atomic.Bool
	transient.Store(true)

	s := NewScheduler(context.Background(), 10*time.Millisecond,
		func() bool { return transient.Load() },
		func(ctx context.Context) error {
			// This refetch observes the last item settling
			transient.Store(false)
			return nil
		},
		logging.Nop())
	defer s.Stop()

	// Queue already idle; only the collection predicate holds the loop
	s.Observe(models.JobSnapshot{})
	waitFor(t, func() bool { return !s.Active() }, "self-disarm after refetch")
}

func TestReArmsOnNewActivity(t *testing.T) {
	var refetches atomic.Int32

	s := NewScheduler(context.Background(), 10*time.Millisecond,
		func() bool { return false },
		func(ctx context.Context) error { refetches.Add(1); return nil },
		logging.Nop())
	defer s.Stop()

	s.Observe(models.JobSnapshot{QueueSize: 1})
	waitFor(t, func() bool { return s.Active() }, "first arm")

	s.Observe(models.JobSnapshot{})
	waitFor(t, func() bool { return !s.Active() }, "disarm")

	s.Observe(models.JobSnapshot{TotalInProgress: 1})
	if !s.Active() {
		t.Error("new activity should re-arm from scratch")
	}
}

func TestRefetchErrorKeepsCadence(t *testing.T) {
	var refetches atomic.Int32

	s := NewScheduler(context.Background(), 10*time.Millisecond,
		func() bool { return true },
		func(ctx context.Context) error {
			refetches.Add(1)
			return errors.New("server unavailable")
		},
		logging.Nop())
	defer s.Stop()

	s.Observe(models.JobSnapshot{QueueSize: 1})
	waitFor(t, func() bool { return refetches.Load() >= 3 }, "retries after failures")

	if !s.Active() {
		t.Error("refetch failures should not disarm the loop")
	}
}

func TestStopIsPermanent(t *testing.T) {
	s := NewScheduler(context.Background(), 10*time.Millisecond,
		func() bool { return true },
		func(ctx context.Context) error { return nil },
		logging.Nop())

	s.Observe(models.JobSnapshot{QueueSize: 1})
	s.Stop()

	if s.Active() {
		t.Error("Stop should disarm")
	}

	s.Observe(models.JobSnapshot{QueueSize: 5})
	if s.Active() {
		t.Error("a stopped scheduler must never re-arm")
	}
}
