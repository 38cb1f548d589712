package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/abyss/internal/printer"
	"github.com/dyluth/abyss/pkg/abyss"
)

var (
	openViewerID string
	openPage     int
)

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Request a viewer session",
	Long: `Publish an open command for a viewer. The daemon creates the session
if the access window is open; otherwise the viewer receives a refusal notice.

Examples:
  abyss open --viewer alice
  abyss open --viewer alice --page 2`,
	RunE: runOpen,
}

func init() {
	openCmd.Flags().StringVar(&openViewerID, "viewer", "", "Viewer identifier (required)")
	openCmd.Flags().IntVar(&openPage, "page", 0, "Zero-based page to open at")
	openCmd.MarkFlagRequired("viewer")
	rootCmd.AddCommand(openCmd)
}

func runOpen(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = client.PublishViewerCommand(ctx, &abyss.ViewerCommand{
		Kind:        abyss.ViewerCommandOpen,
		ViewerID:    openViewerID,
		Page:        openPage,
		TimestampMs: time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}

	printer.Success("open requested for %s\n", openViewerID)
	return nil
}
