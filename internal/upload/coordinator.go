package upload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ricordi-app/ricordi-sync/internal/api"
	"github.com/ricordi-app/ricordi-sync/internal/events"
	"github.com/ricordi-app/ricordi-sync/internal/logging"
	"github.com/ricordi-app/ricordi-sync/internal/models"
)

// Uploader is the server boundary the coordinator needs.
type Uploader interface {
	UploadPhoto(ctx context.Context, path string) (*models.UploadResponse, error)
}

// Summary holds the aggregate result of a settled batch.
type Summary struct {
	Succeeded int
	Failed    int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d succeeded, %d failed", s.Succeeded, s.Failed)
}

// Coordinator drains submitted files through a bounded number of concurrent
// uploads. Each file's failure is isolated; one rejection never blocks or
// rolls back its siblings. Items that reach success are removed from the
// visible set after a fixed retention delay; error items stay until the user
// removes them.
type Coordinator struct {
	client        Uploader
	bus           *events.EventBus
	logger        *logging.Logger
	maxConcurrent int
	retention     time.Duration

	mu    sync.Mutex
	items []*Item
	byID  map[string]*Item

	semaphore chan struct{}
}

// NewCoordinator creates an upload coordinator.
func NewCoordinator(client Uploader, bus *events.EventBus, logger *logging.Logger, maxConcurrent int, retention time.Duration) *Coordinator {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Coordinator{
		client:        client,
		bus:           bus,
		logger:        logger,
		maxConcurrent: maxConcurrent,
		retention:     retention,
		byID:          make(map[string]*Item),
		semaphore:     make(chan struct{}, maxConcurrent),
	}
}

// Submit uploads the given files and blocks until the batch settles.
// Transitions are applied in the order the underlying requests resolve, not
// submission order. Exactly one BatchSettledEvent is published per batch —
// the single "collection changed" signal — regardless of per-file outcomes.
func (c *Coordinator) Submit(ctx context.Context, paths []string) Summary {
	if len(paths) == 0 {
		return Summary{}
	}

	batch := make([]*Item, 0, len(paths))
	c.mu.Lock()
	for _, path := range paths {
		item := newItem(path)
		c.items = append(c.items, item)
		c.byID[item.ID] = item
		batch = append(batch, item)
	}
	c.mu.Unlock()

	for _, item := range batch {
		c.publishChange(item)
	}

	var wg sync.WaitGroup
	for _, item := range batch {
		wg.Add(1)
		go func(it *Item) {
			defer wg.Done()
			c.uploadOne(ctx, it)
		}(item)
	}
	wg.Wait()

	var summary Summary
	c.mu.Lock()
	for _, item := range batch {
		if item.Status == StatusSuccess {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	c.mu.Unlock()

	c.logger.Info().
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Msg("upload batch settled")

	c.bus.Publish(&events.BatchSettledEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventBatchSettled, Time: time.Now()},
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
	})

	return summary
}

// uploadOne runs a single file through the semaphore and applies its
// terminal state.
func (c *Coordinator) uploadOne(ctx context.Context, item *Item) {
	c.semaphore <- struct{}{}
	defer func() { <-c.semaphore }()

	if !c.transition(item.ID, StatusUploading, "", "") {
		return
	}

	resp, err := c.client.UploadPhoto(ctx, item.SourcePath)
	if err != nil {
		c.transition(item.ID, StatusError, api.Detail(err), "")
		c.logger.Warn().Str("file", item.Filename).Err(err).Msg("upload failed")
		return
	}

	c.transition(item.ID, StatusSuccess, resp.Message, resp.Photo.ID)
	c.logger.Debug().Str("file", item.Filename).Str("photo_id", resp.Photo.ID).Msg("upload complete")

	if c.retention > 0 {
		itemID := item.ID
		time.AfterFunc(c.retention, func() {
			c.removeIf(itemID, StatusSuccess)
		})
	}
}

// transition applies a status change, enforcing monotonicity. Returns false
// when the change would move backwards (or the item is gone), in which case
// nothing is mutated or published.
func (c *Coordinator) transition(itemID string, status Status, message, photoID string) bool {
	c.mu.Lock()
	item, exists := c.byID[itemID]
	if !exists || status.rank() <= item.Status.rank() {
		c.mu.Unlock()
		return false
	}
	item.Status = status
	if status == StatusSuccess {
		item.PhotoID = photoID
	}
	if status.Terminal() {
		item.Message = message
		item.CompletedAt = time.Now()
	}
	snapshot := *item
	c.mu.Unlock()

	c.publishChangeCopy(snapshot)
	return true
}

// Remove deletes an item at the user's request. Only pending and error items
// can be removed explicitly; success items leave on their own after the
// retention delay.
func (c *Coordinator) Remove(itemID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.byID[itemID]
	if !exists {
		return false
	}
	if item.Status != StatusPending && item.Status != StatusError {
		return false
	}
	c.removeLocked(itemID)
	return true
}

// removeIf drops the item only when it still has the expected status.
func (c *Coordinator) removeIf(itemID string, status Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.byID[itemID]
	if !exists || item.Status != status {
		return
	}
	c.removeLocked(itemID)
}

// removeLocked removes an item from both indexes. Caller holds c.mu.
func (c *Coordinator) removeLocked(itemID string) {
	delete(c.byID, itemID)
	for i, it := range c.items {
		if it.ID == itemID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			break
		}
	}
}

// VisibleItems returns a copy of the current item list for display.
func (c *Coordinator) VisibleItems() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Item, len(c.items))
	for i, item := range c.items {
		out[i] = *item
	}
	return out
}

func (c *Coordinator) publishChange(item *Item) {
	c.mu.Lock()
	snapshot := *item
	c.mu.Unlock()
	c.publishChangeCopy(snapshot)
}

func (c *Coordinator) publishChangeCopy(item Item) {
	var err error
	if item.Status == StatusError && item.Message != "" {
		err = fmt.Errorf("%s", item.Message)
	}
	c.bus.Publish(&events.UploadChangeEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventUploadChange, Time: time.Now()},
		ItemID:    item.ID,
		Filename:  item.Filename,
		Status:    string(item.Status),
		Message:   item.Message,
		PhotoID:   item.PhotoID,
		Err:       err,
	})
}
