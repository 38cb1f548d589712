package commands

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dyluth/abyss/internal/printer"
	"github.com/dyluth/abyss/internal/session"
)

var watchFrames bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live broker events",
	Long: `Stream store mutations and notices from a running instance.

Every committed store mutation and every notice the broker emits is printed
as it happens. With --frames, rendered viewer frames are included.

Examples:
  # Watch the inferred instance
  abyss watch

  # Watch a specific instance, including frame traffic
  abyss watch --name prod --frames`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchFrames, "frames", false, "Include rendered viewer frames")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		return printer.Error(
			"cannot reach Redis",
			err.Error(),
			[]string{"Check that the instance is running and REDIS_URL is correct"},
		)
	}

	storeSub, err := client.SubscribeStoreEvents(ctx)
	if err != nil {
		return err
	}
	defer storeSub.Close()

	noticeSub, err := client.SubscribeNotices(ctx)
	if err != nil {
		return err
	}
	defer noticeSub.Close()

	frameSub, err := client.SubscribeFrames(ctx)
	if err != nil {
		return err
	}
	defer frameSub.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	printer.Info("Watching events (Ctrl+C to stop)...\n")

	for {
		select {
		case <-sigCh:
			printer.Info("\nStopped.\n")
			return nil

		case ev, ok := <-storeSub.Events():
			if !ok {
				return nil
			}
			printer.Event(ev.TimestampMs, "store", "%s delta=%+d count=%d", ev.Kind, ev.Delta, ev.Count)

		case ev, ok := <-noticeSub.Events():
			if !ok {
				return nil
			}
			if ev.ViewerID != "" {
				printer.Event(ev.TimestampMs, "notice", "[%s] %s", ev.ViewerID, ev.Text)
			} else {
				printer.Event(ev.TimestampMs, "notice", "%s", ev.Text)
			}

		case ev, ok := <-frameSub.Events():
			if !ok {
				return nil
			}
			if !watchFrames {
				continue
			}
			if len(ev.Frame) == 0 {
				printer.Event(ev.TimestampMs, "frame", "[%s] dismissed", ev.ViewerID)
				continue
			}
			var payload session.FramePayload
			if err := json.Unmarshal(ev.Frame, &payload); err != nil || payload.Frame == nil {
				printer.Event(ev.TimestampMs, "frame", "[%s] %s", ev.ViewerID, string(ev.Frame))
				continue
			}
			printer.Event(ev.TimestampMs, "frame", "[%s] page %d/%d, %d items",
				ev.ViewerID, payload.Frame.Page+1, payload.Frame.TotalPages, payload.Frame.ItemCount)

		case err := <-storeSub.Errors():
			printer.Warning("store event error: %v\n", err)
		case err := <-noticeSub.Errors():
			printer.Warning("notice error: %v\n", err)
		case err := <-frameSub.Errors():
			printer.Warning("frame error: %v\n", err)
		}
	}
}
