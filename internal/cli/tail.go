package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tessro/cassette/internal/tail"
)

var (
	tailNoEmoji   bool
	tailTimestamp bool
	tailFormat    string
	tailHistory   int
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow playback changes in real-time",
	Long: `Watch for playback state changes and print them as they happen.

Updates come from the local playback engine when one is configured and
from polling the Web API otherwise.

Events tracked:
  - Track changes, completions and skips
  - Pause/Resume/Stop
  - Volume and device changes
  - Shuffle and repeat changes`,
	Args: cobra.NoArgs,
	RunE: runTail,
}

func init() {
	tailCmd.Flags().BoolVar(&tailNoEmoji, "no-emoji", false, "disable emoji output")
	tailCmd.Flags().BoolVarP(&tailTimestamp, "timestamp", "t", false, "show timestamps")
	tailCmd.Flags().StringVarP(&tailFormat, "format", "f", "", "custom format template")
	tailCmd.Flags().IntVar(&tailHistory, "history", 5, "recently played tracks to show on startup")

	rootCmd.AddCommand(tailCmd)
}

func runTail(cmd *cobra.Command, args []string) error {
	if _, err := tail.ParseTemplate(tailFormat); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, appOptions{push: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.requireAuth(); err != nil {
		return err
	}

	emoji := !tailNoEmoji && term.IsTerminal(int(os.Stdout.Fd()))
	formatter := tail.NewFormatter(
		tail.WithEmoji(emoji),
		tail.WithTimestamp(tailTimestamp),
		tail.WithTemplate(tailFormat),
	)

	if !JSONOutput() {
		showHistory(ctx, a, emoji)
	}

	watcher := tail.NewWatcher(a.reconciler)

	errCh := make(chan error, 2)
	go func() { errCh <- a.reconciler.Run(ctx) }()
	go func() { errCh <- watcher.Run(ctx) }()

	for {
		select {
		case event, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			if JSONOutput() {
				if err := PrintJSON(eventJSON(event)); err != nil {
					return err
				}
				continue
			}
			fmt.Println(formatter.Format(event))

		case err := <-errCh:
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

// showHistory prints recently played tracks oldest first.
func showHistory(ctx context.Context, a *app, emoji bool) {
	if tailHistory <= 0 {
		return
	}
	history, err := a.player.GetRecentlyPlayed(ctx, tailHistory)
	if err != nil {
		a.logger.Debug("failed to load history", "err", err)
		return
	}

	for i := len(history) - 1; i >= 0; i-- {
		entry := history[i]
		if entry.Track == nil {
			continue
		}
		prefix := ""
		if tailTimestamp {
			prefix = entry.PlayedAt.Local().Format("15:04:05") + " "
		}
		if emoji {
			prefix += "⏪ "
		}
		fmt.Printf("%s%s - %s\n", prefix, entry.Track.Artist(), entry.Track.Name)
	}
}

func eventJSON(e tail.Event) map[string]any {
	out := map[string]any{
		"type":      e.Type.String(),
		"timestamp": e.Timestamp.Format(time.RFC3339),
	}
	if e.Current != nil {
		out["current"] = snapshotJSON(*e.Current)
	}
	if e.Previous != nil {
		out["previous"] = snapshotJSON(*e.Previous)
	}
	return out
}
