package bulk

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ricordi-app/ricordi-sync/internal/events"
	"github.com/ricordi-app/ricordi-sync/internal/logging"
)

// fakeBulkClient scripts per-operation outcomes and counts calls.
type fakeBulkClient struct {
	mu          sync.Mutex
	deleted     []string
	failDelete  map[string]bool
	analyzeErr  error
	analyzedIDs []string
	profile     string
	stopErr     error
	cleared     int
}

func (f *fakeBulkClient) DeletePhoto(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	if f.failDelete[id] {
		return errors.New("photo is being analyzed")
	}
	return nil
}

func (f *fakeBulkClient) BulkAnalyze(ctx context.Context, ids []string, profile string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.analyzeErr != nil {
		return 0, f.analyzeErr
	}
	f.analyzedIDs = ids
	f.profile = profile
	return len(ids), nil
}

func (f *fakeBulkClient) StopAllAnalyses(ctx context.Context) (int, error) {
	if f.stopErr != nil {
		return 0, f.stopErr
	}
	return f.cleared, nil
}

// fakeKicker counts forced polls.
type fakeKicker struct {
	kicks atomic.Int32
}

func (f *fakeKicker) PollNow() { f.kicks.Add(1) }

func TestDeleteSelectedOneCallPerID(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()

	client := &fakeBulkClient{}
	c := NewCoordinator(client, &fakeKicker{}, bus, logging.Nop())

	sel := NewSelection()
	sel.Add("a")
	sel.Add("b")
	sel.Add("c")

	result := c.DeleteSelected(context.Background(), sel)

	if len(client.deleted) != 3 {
		t.Errorf("issued %d delete calls, want exactly 3", len(client.deleted))
	}
	if result.Succeeded != 3 || result.Failed != 0 {
		t.Errorf("result = %+v, want 3 succeeded", result)
	}
	if sel.Len() != 0 {
		t.Error("selection should be cleared after settling")
	}
}

func TestDeleteFailuresAreIsolatedAndSelectionStillClears(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()

	client := &fakeBulkClient{failDelete: map[string]bool{"b": true}}
	c := NewCoordinator(client, &fakeKicker{}, bus, logging.Nop())

	sel := NewSelection()
	sel.Add("a")
	sel.Add("b")
	sel.Add("c")

	result := c.DeleteSelected(context.Background(), sel)

	if len(client.deleted) != 3 {
		t.Errorf("a failure must not stop later deletions; got %d calls", len(client.deleted))
	}
	if result.Succeeded != 2 || result.Failed != 1 {
		t.Errorf("result = %+v, want 2 succeeded 1 failed", result)
	}
	if sel.Len() != 0 {
		t.Error("selection clears regardless of per-id failures")
	}
}

func TestDeletePublishesSettledEvent(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	ch := bus.Subscribe(events.EventBulkSettled)

	c := NewCoordinator(&fakeBulkClient{}, &fakeKicker{}, bus, logging.Nop())
	sel := NewSelection()
	sel.Add("a")
	c.DeleteSelected(context.Background(), sel)

	select {
	case ev := <-ch:
		settled := ev.(*events.BulkSettledEvent)
		if settled.Operation != "delete" || settled.Succeeded != 1 {
			t.Errorf("settled event = %+v", settled)
		}
	case <-time.After(time.Second):
		t.Fatal("no bulk settled event")
	}
}

func TestAnalyzeSelectedSingleBatchedCall(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()

	client := &fakeBulkClient{}
	kicker := &fakeKicker{}
	c := NewCoordinator(client, kicker, bus, logging.Nop())

	sel := NewSelection()
	sel.Add("a")
	sel.Add("b")

	result, err := c.AnalyzeSelected(context.Background(), sel, "detailed")
	if err != nil {
		t.Fatalf("AnalyzeSelected failed: %v", err)
	}
	if result.Queued != 2 {
		t.Errorf("Queued = %d, want server ack 2", result.Queued)
	}
	if len(client.analyzedIDs) != 2 {
		t.Errorf("batched ids = %v, want both", client.analyzedIDs)
	}
	if client.profile != "detailed" {
		t.Errorf("profile = %q, want detailed", client.profile)
	}
	if sel.Len() != 0 {
		t.Error("selection should clear on success")
	}
	if kicker.kicks.Load() != 1 {
		t.Error("analyze should force an immediate poll")
	}
}

func TestAnalyzeFailureLeavesSelection(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	errCh := bus.Subscribe(events.EventError)

	client := &fakeBulkClient{analyzeErr: errors.New("queue full")}
	kicker := &fakeKicker{}
	c := NewCoordinator(client, kicker, bus, logging.Nop())

	sel := NewSelection()
	sel.Add("a")
	sel.Add("b")

	if _, err := c.AnalyzeSelected(context.Background(), sel, ""); err == nil {
		t.Fatal("expected error")
	}
	if sel.Len() != 2 {
		t.Error("failed analyze must leave the selection intact for retry")
	}
	if kicker.kicks.Load() != 0 {
		t.Error("failed analyze should not force a poll")
	}

	select {
	case <-errCh:
	case <-time.After(time.Second):
		t.Fatal("failure should surface as an error event")
	}
}

func TestStopAllForcesPoll(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()

	client := &fakeBulkClient{cleared: 4}
	kicker := &fakeKicker{}
	c := NewCoordinator(client, kicker, bus, logging.Nop())

	result, err := c.StopAll(context.Background())
	if err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
	if result.Cleared != 4 {
		t.Errorf("Cleared = %d, want 4", result.Cleared)
	}
	if kicker.kicks.Load() != 1 {
		t.Error("stop-all should force an immediate poll")
	}
}

func TestStopAllFailure(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()

	client := &fakeBulkClient{stopErr: errors.New("boom")}
	kicker := &fakeKicker{}
	c := NewCoordinator(client, kicker, bus, logging.Nop())

	if _, err := c.StopAll(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if kicker.kicks.Load() != 0 {
		t.Error("failed stop-all should not force a poll")
	}
}

func TestSelection(t *testing.T) {
	sel := NewSelection()

	sel.Add("b")
	sel.Add("a")
	sel.Add("a") // duplicate
	if sel.Len() != 2 {
		t.Errorf("len = %d, want 2", sel.Len())
	}

	ids := sel.IDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("IDs = %v, want sorted [a b]", ids)
	}

	sel.Toggle("a")
	if sel.Contains("a") {
		t.Error("toggle should remove a present id")
	}
	sel.Toggle("c")
	if !sel.Contains("c") {
		t.Error("toggle should add an absent id")
	}

	sel.Prune(func(id string) bool { return id == "b" })
	if sel.Len() != 1 || !sel.Contains("b") {
		t.Errorf("after prune: %v", sel.IDs())
	}

	sel.Clear()
	if sel.Len() != 0 {
		t.Error("clear should empty the selection")
	}
}
