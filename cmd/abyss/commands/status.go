package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/abyss/internal/printer"
	"github.com/dyluth/abyss/pkg/abyss"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the access window state",
	Long: `Show whether the instance's access window is currently open and,
if open, how many seconds remain before it closes.

Examples:
  abyss status
  abyss status --name prod`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	state, err := client.GetWindowState(ctx)
	if abyss.IsNotFound(err) {
		return printer.Error(
			"no window state published",
			"The instance has not written its window state yet.",
			[]string{"Check that abyssd is running for this instance"},
		)
	}
	if err != nil {
		return err
	}

	if state.State == abyss.WindowOpen {
		if state.RemainingSeconds > 0 {
			printer.Success("window open, closes in %ds\n", state.RemainingSeconds)
		} else {
			printer.Success("window open\n")
		}
	} else {
		printer.Info("window closed\n")
	}

	return nil
}
