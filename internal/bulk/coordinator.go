package bulk

import (
	"context"
	"time"

	"github.com/ricordi-app/ricordi-sync/internal/events"
	"github.com/ricordi-app/ricordi-sync/internal/logging"
)

// Client is the server boundary for bulk operations.
type Client interface {
	DeletePhoto(ctx context.Context, id string) error
	BulkAnalyze(ctx context.Context, ids []string, profile string) (int, error)
	StopAllAnalyses(ctx context.Context) (int, error)
}

// Kicker forces an out-of-schedule queue-status poll. After stop-all or a
// bulk analyze the activity predicate changes sharply, so the next snapshot
// should not wait for the scheduled tick.
type Kicker interface {
	PollNow()
}

// Result summarizes a settled bulk operation.
type Result struct {
	Requested int
	Succeeded int
	Failed    int
	Queued    int // analyze: server acknowledgment
	Cleared   int // stop-all: server acknowledgment
}

// Coordinator executes bulk operations against a selection set.
type Coordinator struct {
	client Client
	poller Kicker
	bus    *events.EventBus
	logger *logging.Logger
}

// NewCoordinator creates a bulk operation coordinator.
func NewCoordinator(client Client, poller Kicker, bus *events.EventBus, logger *logging.Logger) *Coordinator {
	return &Coordinator{
		client: client,
		poller: poller,
		bus:    bus,
		logger: logger,
	}
}

// DeleteSelected issues one removal per selected id. Failures are isolated:
// every id gets its call regardless of earlier errors, and the summary
// reports how many succeeded. The selection is cleared once the batch
// settles, whatever the individual outcomes.
func (c *Coordinator) DeleteSelected(ctx context.Context, sel *Selection) Result {
	ids := sel.IDs()
	result := Result{Requested: len(ids)}

	for _, id := range ids {
		if err := c.client.DeletePhoto(ctx, id); err != nil {
			result.Failed++
			c.logger.Warn().Str("photo_id", id).Err(err).Msg("delete failed")
			continue
		}
		result.Succeeded++
	}

	sel.Clear()

	c.logger.Info().
		Int("requested", result.Requested).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Msg("bulk delete settled")
	c.publish("delete", result)

	return result
}

// AnalyzeSelected issues one batched request carrying the full id list and
// the chosen processing profile. The server enqueues and acknowledges
// immediately; this never waits for analysis completion. On success the
// selection is cleared and an immediate poll is forced; on failure the
// selection is left unchanged so the user can retry.
func (c *Coordinator) AnalyzeSelected(ctx context.Context, sel *Selection, profile string) (Result, error) {
	ids := sel.IDs()
	result := Result{Requested: len(ids)}

	queued, err := c.client.BulkAnalyze(ctx, ids, profile)
	if err != nil {
		c.logger.Error().Int("requested", result.Requested).Err(err).Msg("bulk analyze failed")
		c.bus.PublishError("bulk-analyze", err)
		return result, err
	}

	result.Queued = queued
	result.Succeeded = result.Requested
	sel.Clear()
	c.poller.PollNow()

	c.logger.Info().Int("queued", queued).Str("profile", profile).Msg("bulk analyze enqueued")
	c.publish("analyze", result)

	return result, nil
}

// StopAll clears the server-side analysis queue. On success an immediate
// poll is forced, since the activity predicate will have changed sharply.
func (c *Coordinator) StopAll(ctx context.Context) (Result, error) {
	cleared, err := c.client.StopAllAnalyses(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("stop-all failed")
		c.bus.PublishError("stop-all", err)
		return Result{}, err
	}

	result := Result{Cleared: cleared}
	c.poller.PollNow()

	c.logger.Info().Int("queue_cleared", cleared).Msg("analysis queue cleared")
	c.publish("stop-all", result)

	return result, nil
}

func (c *Coordinator) publish(operation string, result Result) {
	c.bus.Publish(&events.BulkSettledEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventBulkSettled, Time: time.Now()},
		Operation: operation,
		Requested: result.Requested,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Queued:    result.Queued,
		Cleared:   result.Cleared,
	})
}
