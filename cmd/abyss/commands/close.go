package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/abyss/internal/printer"
	"github.com/dyluth/abyss/pkg/abyss"
)

var closeViewerID string

var closeCmd = &cobra.Command{
	Use:   "close",
	Short: "Close a viewer session",
	Long: `Publish a close command tearing down the viewer's session.

Examples:
  abyss close --viewer alice`,
	RunE: runClose,
}

func init() {
	closeCmd.Flags().StringVar(&closeViewerID, "viewer", "", "Viewer identifier (required)")
	closeCmd.MarkFlagRequired("viewer")
	rootCmd.AddCommand(closeCmd)
}

func runClose(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = client.PublishViewerCommand(ctx, &abyss.ViewerCommand{
		Kind:        abyss.ViewerCommandClose,
		ViewerID:    closeViewerID,
		TimestampMs: time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}

	printer.Success("close requested for %s\n", closeViewerID)
	return nil
}
