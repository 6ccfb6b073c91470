// Package cli provides queue status commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/ricordi-app/ricordi-sync/internal/api"
	"github.com/ricordi-app/ricordi-sync/internal/config"
	"github.com/ricordi-app/ricordi-sync/internal/constants"
	"github.com/ricordi-app/ricordi-sync/internal/elapsed"
	"github.com/ricordi-app/ricordi-sync/internal/events"
	"github.com/ricordi-app/ricordi-sync/internal/models"
	"github.com/ricordi-app/ricordi-sync/internal/poll"
	"github.com/ricordi-app/ricordi-sync/internal/refresh"
)

// newStatusCmd creates the 'status' command.
func newStatusCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show analysis queue status and photo collection",
		Long: `Show the server's analysis queue and the photo collection.

One-shot by default. With --watch, polls the queue on the configured
cadence, refreshes the collection while anything is pending or analyzing,
and tracks per-photo elapsed timers until interrupted with Ctrl+C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := newAPIClient()
			if err != nil {
				return err
			}

			if watch {
				return watchStatus(GetContext(), client, cfg)
			}
			return showStatus(GetContext(), client)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep polling until interrupted")

	return cmd
}

// showStatus fetches one snapshot and one collection listing and renders them.
func showStatus(ctx context.Context, client *api.Client) error {
	snap, err := client.QueueStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch queue status: %w", err)
	}

	photos, err := client.ListPhotos(ctx)
	if err != nil {
		return fmt.Errorf("failed to list photos: %w", err)
	}

	printSnapshot(os.Stdout, *snap)
	fmt.Println()
	printPhotoTable(photos)

	return nil
}

// printSnapshot renders the queue summary lines.
func printSnapshot(out io.Writer, snap models.JobSnapshot) {
	worker := "idle"
	if snap.WorkerRunning {
		worker = "running"
	}

	fmt.Fprintf(out, "Queue: %d waiting, %d in progress, worker %s\n",
		snap.QueueSize, snap.TotalInProgress, worker)
	if snap.RewritePending > 0 {
		fmt.Fprintf(out, "Rewrites pending: %d\n", snap.RewritePending)
	}
	if snap.CurrentPhoto != nil {
		fmt.Fprintf(out, "Analyzing: %s (%s elapsed)\n",
			snap.CurrentPhoto.Filename,
			formatSeconds(snap.CurrentPhoto.ElapsedSeconds))
	}
	if !snap.HasActivity() {
		fmt.Fprintln(out, "Pipeline idle.")
	}
}

// printPhotoTable renders the collection as a table.
func printPhotoTable(photos []models.Photo) {
	if len(photos) == 0 {
		fmt.Println("No photos.")
		return
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"ID", "FILENAME", "STATE"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft},
		{Number: 3, Align: text.AlignLeft},
	})

	for _, p := range photos {
		tw.AppendRow(table.Row{p.ID, p.Filename, photoState(p)})
	}

	fmt.Println(tw.Render())
}

func photoState(p models.Photo) string {
	switch {
	case p.Analyzing:
		return "analyzing"
	case p.AnalysisPending:
		return "pending"
	default:
		return "ready"
	}
}

func formatSeconds(s int) string {
	return (time.Duration(s) * time.Second).String()
}

// watcher holds the state shared by the watch loop's event and tick arms.
// The photo collection is also read by the refetch scheduler's transient
// predicate, which runs on its own goroutine.
type watcher struct {
	client  *api.Client
	tracker *elapsed.Tracker
	out     io.Writer

	mu      sync.Mutex
	photos  []models.Photo
	current *models.CurrentPhoto
}

// initialSync reconciles restored elapsed entries against the live
// collection. Without it, a tracker restored from disk would keep entries
// for photos that finished while the process was down: an idle pipeline
// never arms the refetch scheduler, so no later Sync would ever run.
func (w *watcher) initialSync(ctx context.Context) error {
	photos, err := w.client.ListPhotos(ctx)
	if err != nil {
		return err
	}
	w.setPhotos(photos)
	return nil
}

func (w *watcher) setPhotos(photos []models.Photo) {
	w.mu.Lock()
	w.photos = photos
	w.mu.Unlock()
	w.tracker.Sync(inProgressIDs(photos))
}

func (w *watcher) anyTransient() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return models.AnyTransient(w.photos)
}

func (w *watcher) handleSnapshot(snap models.JobSnapshot) {
	w.mu.Lock()
	w.current = snap.CurrentPhoto
	w.mu.Unlock()

	if snap.CurrentPhoto != nil {
		w.tracker.StartTracking(snap.CurrentPhoto.ID)
		w.tracker.SetAuthoritative(snap.CurrentPhoto.ID, snap.CurrentPhoto.ElapsedSeconds)
	}
	printSnapshot(w.out, snap)
}

func (w *watcher) handleRefresh(photos []models.Photo) {
	w.setPhotos(photos)
	fmt.Fprintf(w.out, "Collection refreshed: %d photos, %d transient\n",
		len(photos), countTransient(photos))
}

// tick recomputes local elapsed estimates and re-renders the analyzing
// line between polls. The display value comes from the tracker, so the
// last server-reported seconds win over the local estimate.
func (w *watcher) tick() {
	w.tracker.Tick()

	w.mu.Lock()
	current := w.current
	w.mu.Unlock()
	if current == nil {
		return
	}

	secs, ok := w.tracker.Elapsed(current.ID)
	if !ok {
		return
	}
	fmt.Fprintf(w.out, "Analyzing: %s (%s elapsed)\n",
		current.Filename, formatSeconds(secs))
}

// watchStatus wires the poller, refetch scheduler, and elapsed tracker
// together and renders bus events until the context is cancelled.
func watchStatus(ctx context.Context, client *api.Client, cfg *config.Config) error {
	log := GetLogger()
	bus := events.NewEventBus(0)
	defer bus.Close()

	store := elapsed.NewStore(cfg.ElapsedStatePath())
	tracker := elapsed.NewTracker(store, log)

	w := &watcher{client: client, tracker: tracker, out: os.Stdout}
	if err := w.initialSync(ctx); err != nil {
		log.Warn().Err(err).Msg("initial collection fetch failed")
	}

	poller := poll.NewPoller(client, bus, log,
		time.Duration(cfg.Poll.IntervalSeconds)*time.Second, cfg.Poll.MaxRetries)

	scheduler := refresh.NewScheduler(ctx,
		time.Duration(cfg.Refresh.IntervalSeconds)*time.Second,
		w.anyTransient,
		func(ctx context.Context) error {
			fresh, err := client.ListPhotos(ctx)
			if err != nil {
				return err
			}
			bus.Publish(&events.RefreshEvent{
				BaseEvent: events.BaseEvent{EventType: events.EventRefresh, Time: time.Now()},
				Photos:    fresh,
			})
			return nil
		},
		log)
	defer scheduler.Stop()

	ch := bus.SubscribeAll()

	poller.Start(ctx)
	defer poller.Stop()

	// The elapsed tick runs on its own timer so a slow poll never starves
	// the display.
	ticker := time.NewTicker(constants.ElapsedTickInterval)
	defer ticker.Stop()

	fmt.Println("Watching queue (Ctrl+C to stop)...")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.tick()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			switch e := ev.(type) {
			case *events.SnapshotEvent:
				scheduler.Observe(e.Snapshot)
				w.handleSnapshot(e.Snapshot)
			case *events.RefreshEvent:
				w.handleRefresh(e.Photos)
			case *events.PollErrorEvent:
				fmt.Printf("Server unreachable after %d attempts: %v\n", e.Failures, e.Err)
			}
		}
	}
}

func inProgressIDs(photos []models.Photo) []string {
	var ids []string
	for _, p := range photos {
		if p.Analyzing {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func countTransient(photos []models.Photo) int {
	n := 0
	for _, p := range photos {
		if p.Transient() {
			n++
		}
	}
	return n
}
