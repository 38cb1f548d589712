package commands

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/abyss/internal/printer"
	"github.com/dyluth/abyss/pkg/abyss"
)

var (
	depositViewerID string
	depositKind     string
	depositQuantity int
	depositMetadata string
)

var depositCmd = &cobra.Command{
	Use:   "deposit",
	Short: "Cast an item into the abyss",
	Long: `Publish a deposit command adding an item record to the store. The
viewer must have a live session.

Examples:
  abyss deposit --viewer alice --kind stone
  abyss deposit --viewer alice --kind gold --quantity 32 --metadata '{"enchanted":true}'`,
	RunE: runDeposit,
}

func init() {
	depositCmd.Flags().StringVar(&depositViewerID, "viewer", "", "Viewer identifier (required)")
	depositCmd.Flags().StringVar(&depositKind, "kind", "", "Item kind (required)")
	depositCmd.Flags().IntVar(&depositQuantity, "quantity", 1, "Stacked quantity")
	depositCmd.Flags().StringVar(&depositMetadata, "metadata", "", "Optional metadata JSON")
	depositCmd.MarkFlagRequired("viewer")
	depositCmd.MarkFlagRequired("kind")
	rootCmd.AddCommand(depositCmd)
}

func runDeposit(cmd *cobra.Command, args []string) error {
	var metadata json.RawMessage
	if depositMetadata != "" {
		if !json.Valid([]byte(depositMetadata)) {
			return printer.Error(
				"invalid metadata",
				"The --metadata value must be valid JSON.",
				[]string{`Example: --metadata '{"enchanted":true}'`},
			)
		}
		metadata = json.RawMessage(depositMetadata)
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	item := abyss.NewItemRecord(depositKind, depositQuantity, metadata)
	err = client.PublishViewerCommand(ctx, &abyss.ViewerCommand{
		Kind:        abyss.ViewerCommandDeposit,
		ViewerID:    depositViewerID,
		Item:        &item,
		TimestampMs: time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}

	printer.Success("deposited %dx %s for %s\n", depositQuantity, depositKind, depositViewerID)
	return nil
}
