// Package cli provides the ask command.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ricordi-app/ricordi-sync/internal/ask"
	"github.com/ricordi-app/ricordi-sync/internal/events"
)

// newAskCmd creates the 'ask' command.
func newAskCmd() *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "ask <question>...",
		Short: "Ask a question about the photo collection",
		Long: `Ask a free-form question answered from the analyzed photo collection.

The query can take minutes; there is no timeout. Press Ctrl+C to
interrupt it, in which case the answer is discarded entirely.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newAPIClient()
			if err != nil {
				return err
			}
			log := GetLogger()
			question := strings.Join(args, " ")

			bus := events.NewEventBus(0)
			defer bus.Close()

			controller := ask.NewController(client, bus, log)
			ch := bus.Subscribe(events.EventAsk)

			ctx := GetContext()
			if _, err := controller.Ask(ctx, question, model); err != nil {
				return err
			}

			fmt.Println("Thinking...")

			// Ctrl+C cancels the root context; translate that into an
			// explicit interrupt so the terminal message is printed.
			go func() {
				<-ctx.Done()
				controller.Cancel()
			}()

			ev, ok := <-ch
			if !ok {
				return nil
			}
			e, ok := ev.(*events.AskEvent)
			if !ok {
				return fmt.Errorf("unexpected event on ask channel")
			}

			switch e.Outcome {
			case events.AskCompleted:
				fmt.Println()
				fmt.Println(e.Answer.Answer)
				fmt.Println()
				fmt.Printf("(model: %s, context: %d photos)\n",
					e.Answer.Model, e.Answer.ContextItems)
				return nil
			case events.AskInterrupted:
				fmt.Println()
				fmt.Println(e.Message)
				return nil
			default:
				return fmt.Errorf("question failed: %w", e.Err)
			}
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Model override for this question")

	return cmd
}
