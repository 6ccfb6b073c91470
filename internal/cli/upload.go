// Package cli provides the upload command.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ricordi-app/ricordi-sync/internal/events"
	"github.com/ricordi-app/ricordi-sync/internal/progress"
	"github.com/ricordi-app/ricordi-sync/internal/upload"
)

// newUploadCmd creates the 'upload' command.
func newUploadCmd() *cobra.Command {
	var maxConcurrent int

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload photos to the server",
		Long: `Upload one or more photos. Uploads run concurrently up to the
configured limit; each file succeeds or fails on its own, and the command
reports a summary once the whole batch has settled.

Analysis starts server-side after each upload completes.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := newAPIClient()
			if err != nil {
				return err
			}
			log := GetLogger()

			// Reject missing files up front so the batch only contains
			// real work. Sizes are keyed by base filename for the UI.
			sizes := make(map[string]int64, len(args))
			for _, path := range args {
				info, err := os.Stat(path)
				if err != nil {
					return fmt.Errorf("cannot read %s: %w", path, err)
				}
				if info.IsDir() {
					return fmt.Errorf("%s is a directory", path)
				}
				sizes[filepath.Base(path)] = info.Size()
			}

			if maxConcurrent > 0 {
				cfg.Upload.MaxConcurrent = maxConcurrent
			}

			bus := events.NewEventBus(0)

			// One-shot batch: no retention window, items live until the
			// summary prints.
			coord := upload.NewCoordinator(client, bus, log, cfg.Upload.MaxConcurrent, 0)

			ui := progress.NewUploadUI(len(args))
			log.SetOutput(ui.LogWriter())
			defer log.SetOutput(os.Stdout)

			ch := bus.Subscribe(events.EventUploadChange)
			uiDone := make(chan struct{})
			go func() {
				defer close(uiDone)
				for ev := range ch {
					e, ok := ev.(*events.UploadChangeEvent)
					if !ok {
						continue
					}
					switch upload.Status(e.Status) {
					case upload.StatusUploading:
						ui.AddFileBar(e.ItemID, e.Filename, sizes[e.Filename])
					case upload.StatusSuccess:
						if bar, ok := ui.Bar(e.ItemID); ok {
							bar.Complete(e.PhotoID, "")
						}
					case upload.StatusError:
						if bar, ok := ui.Bar(e.ItemID); ok {
							bar.Complete("", e.Message)
						}
					}
				}
			}()

			summary := coord.Submit(GetContext(), args)

			bus.Close()
			<-uiDone
			ui.Wait()

			fmt.Printf("\nUpload batch settled: %s\n", summary)
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d uploads failed", summary.Failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0,
		"Concurrent upload limit (0 = use config, range: 1-16)")

	return cmd
}
