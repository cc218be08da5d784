package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/leadflow/internal/board"
	"github.com/dyluth/leadflow/internal/printer"
	"github.com/dyluth/leadflow/internal/stream"
)

var (
	watchURL      string
	watchMode     string
	watchQuery    string
	watchSource   string
	watchAssigned string
	watchInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the live board in the terminal",
	Long: `Attach the visualization engine to a running Leadflow backend and stream
board activity to the terminal.

The engine fetches the bootstrap snapshot once, follows the live event
stream, and reports every lead movement with its recomputed board position.

View Modes:
  default          - stable scatter across 8 lanes
  group-by-source  - one lane per acquisition source
  group-by-setter  - one lane per setter, plus unassigned
  group-by-closer  - one lane per closer, plus unassigned

Examples:
  # Watch the local demo backend
  leadflow watch

  # Group by closer, only unassigned leads
  leadflow watch --mode group-by-closer --assigned unassigned`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchURL, "url", "u", "http://localhost:8000", "Backend base URL")
	watchCmd.Flags().StringVarP(&watchMode, "mode", "m", "default", "View mode")
	watchCmd.Flags().StringVarP(&watchQuery, "query", "q", "", "Text filter on lead name or source")
	watchCmd.Flags().StringVar(&watchSource, "source", "all", "Source filter")
	watchCmd.Flags().StringVar(&watchAssigned, "assigned", "all", "Assignee filter (all, unassigned, or a user id)")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "Render interval")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := board.ViewMode(watchMode)
	if err := mode.Validate(); err != nil {
		return printer.Error(
			"invalid view mode",
			fmt.Sprintf("Unknown mode: %s", watchMode),
			[]string{"Valid modes: default, group-by-source, group-by-setter, group-by-closer"},
		)
	}

	// Bootstrap: fetch the snapshot once, then attach the live stream
	store := board.NewStore()
	defer store.Close()

	httpClient := &http.Client{Timeout: 10 * time.Second}
	projectID, err := stream.Load(ctx, httpClient, watchURL, store)
	if err != nil {
		return printer.Error(
			"bootstrap failed",
			fmt.Sprintf("Error: %v", err),
			[]string{fmt.Sprintf("Check the backend:\n  curl %s/api/demo/bootstrap", watchURL)},
		)
	}

	streamClient, err := stream.Attach(ctx, watchURL, projectID, store)
	if err != nil {
		return printer.Error(
			"event stream connection failed",
			fmt.Sprintf("Error: %v", err),
			[]string{fmt.Sprintf("Check the backend:\n  curl %s/healthz", watchURL)},
		)
	}
	defer streamClient.Close()

	go func() {
		for err := range streamClient.Errors() {
			printer.Warning("%v\n", err)
		}
	}()

	// A fixed virtual canvas; the terminal only reports coordinates
	controller := board.NewController(store, stream.NewMutator(httpClient, watchURL, projectID), 1200, 600)
	if err := controller.SetViewMode(mode); err != nil {
		return err
	}
	controller.SetQuery(watchQuery)
	controller.SetSourceFilter(watchSource)
	controller.SetAssignedFilter(watchAssigned)

	go controller.Run(ctx)

	printer.Info("Watching project %s (mode: %s)\n", projectID, mode)
	printFrameSummary(controller.Frame())

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	previous := dotIndex(controller.Frame())

	for {
		select {
		case <-ctx.Done():
			printer.Info("\nStopped.\n")
			return nil

		case <-streamClient.Done():
			printer.Warning("event stream closed by backend\n")
			return nil

		case <-ticker.C:
			frame := controller.Frame()
			current := dotIndex(frame)
			for id, dot := range current {
				prev, seen := previous[id]
				if !seen {
					printer.Event("+ %-22s %s lane %d (%.0f, %.0f)\n",
						dot.Lead.Name, dot.Lead.CurrentStep, dot.Lane, dot.Pos.X, dot.Pos.Y)
					continue
				}
				if prev.Column != dot.Column || prev.Lane != dot.Lane {
					printer.Event("> %-22s %s -> %s lane %d (%.0f, %.0f)\n",
						dot.Lead.Name, prev.Lead.CurrentStep, dot.Lead.CurrentStep,
						dot.Lane, dot.Pos.X, dot.Pos.Y)
				}
			}
			previous = current
		}
	}
}

// printFrameSummary prints per-column lead counts for the initial frame.
func printFrameSummary(frame board.Frame) {
	counts := make([]int, len(frame.Steps))
	for _, dot := range frame.Dots {
		counts[dot.Column]++
	}
	for i, step := range frame.Steps {
		printer.Info("  %-12s %d leads\n", step, counts[i])
	}
}

// dotIndex maps lead id to dot for frame diffing.
func dotIndex(frame board.Frame) map[string]board.Dot {
	index := make(map[string]board.Dot, len(frame.Dots))
	for _, dot := range frame.Dots {
		index[dot.Lead.ID] = dot
	}
	return index
}
