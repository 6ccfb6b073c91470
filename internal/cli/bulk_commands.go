// Package cli provides bulk operation commands.
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ricordi-app/ricordi-sync/internal/bulk"
	"github.com/ricordi-app/ricordi-sync/internal/events"
	"github.com/ricordi-app/ricordi-sync/internal/poll"
)

// newBulkCoordinator wires a bulk coordinator for one-shot commands. The
// poller is created but not started; the forced poll after analyze and
// stop-all is a no-op kick here and only matters under 'status --watch'.
func newBulkCoordinator() (*bulk.Coordinator, *events.EventBus, error) {
	client, cfg, err := newAPIClient()
	if err != nil {
		return nil, nil, err
	}
	log := GetLogger()

	bus := events.NewEventBus(0)
	poller := poll.NewPoller(client, bus, log,
		time.Duration(cfg.Poll.IntervalSeconds)*time.Second, cfg.Poll.MaxRetries)

	return bulk.NewCoordinator(client, poller, bus, log), bus, nil
}

// selectionFrom builds a selection set from command arguments.
func selectionFrom(ids []string) *bulk.Selection {
	sel := bulk.NewSelection()
	for _, id := range ids {
		sel.Add(id)
	}
	return sel
}

// newAnalyzeCmd creates the 'analyze' command.
func newAnalyzeCmd() *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "analyze <photo-id>...",
		Short: "Queue photos for re-analysis",
		Long: `Queue the given photos for re-analysis in a single batched request.

The server acknowledges immediately with the number of photos queued;
this command never waits for the analysis itself. Watch progress with
'ricordi-sync status --watch'.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coord, bus, err := newBulkCoordinator()
			if err != nil {
				return err
			}
			defer bus.Close()

			result, err := coord.AnalyzeSelected(GetContext(), selectionFrom(args), profile)
			if err != nil {
				return fmt.Errorf("failed to queue analysis: %w", err)
			}

			fmt.Printf("Queued %d photos for analysis", result.Queued)
			if profile != "" {
				fmt.Printf(" (profile: %s)", profile)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().StringVarP(&profile, "profile", "p", "", "Processing profile for the batch")

	return cmd
}

// newDeleteCmd creates the 'delete' command.
func newDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <photo-id>...",
		Short: "Delete photos from the server",
		Long: `Delete the given photos. Each photo gets its own removal request;
a failure on one never stops the others, and the summary reports how
many succeeded.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !confirm(fmt.Sprintf("Delete %d photo(s)?", len(args))) {
				fmt.Println("Aborted.")
				return nil
			}

			coord, bus, err := newBulkCoordinator()
			if err != nil {
				return err
			}
			defer bus.Close()

			result := coord.DeleteSelected(GetContext(), selectionFrom(args))

			fmt.Printf("Deleted %d of %d photos", result.Succeeded, result.Requested)
			if result.Failed > 0 {
				fmt.Printf(" (%d failed)", result.Failed)
			}
			fmt.Println()

			if result.Failed > 0 {
				return fmt.Errorf("%d of %d deletions failed", result.Failed, result.Requested)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompt")

	return cmd
}

// newStopCmd creates the 'stop' command.
func newStopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Clear the server's analysis queue",
		Long: `Clear every queued analysis on the server. The photo currently being
analyzed may still run to completion; everything waiting is dropped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			coord, bus, err := newBulkCoordinator()
			if err != nil {
				return err
			}
			defer bus.Close()

			result, err := coord.StopAll(GetContext())
			if err != nil {
				return fmt.Errorf("failed to clear analysis queue: %w", err)
			}

			fmt.Printf("Cleared %d queued analyses\n", result.Cleared)
			return nil
		},
	}

	return cmd
}

// confirm asks a yes/no question on stdin.
func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(strings.ToLower(input))
	return input == "y" || input == "yes"
}
