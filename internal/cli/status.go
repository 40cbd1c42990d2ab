package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tessro/cassette/internal/core"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current playback status",
	Long:  `Polls Spotify once and shows what is playing and where.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.requireAuth(); err != nil {
		return err
	}

	snap, err := a.reconciler.PollOnce(ctx)
	if err != nil {
		return fmt.Errorf("failed to get playback state: %w", err)
	}

	if JSONOutput() {
		return PrintJSON(snapshotJSON(snap))
	}
	fmt.Print(formatStatus(snap))
	return nil
}

// formatStatus renders a snapshot for the terminal.
func formatStatus(s core.Snapshot) string {
	if !s.HasTrack() {
		return "No active playback\n"
	}

	var b strings.Builder

	playIcon := "▶"
	if s.IsPaused {
		playIcon = "⏸"
	}
	fmt.Fprintf(&b, "%s %s\n", playIcon, s.Track.Name)
	if s.Track.Album.Name != "" {
		fmt.Fprintf(&b, "  %s - %s\n", s.Track.Artist(), s.Track.Album.Name)
	} else {
		fmt.Fprintf(&b, "  %s\n", s.Track.Artist())
	}

	fmt.Fprintf(&b, "  %s %s / %s\n",
		FormatProgress(int(s.PositionMs), int(s.DurationMs), 30),
		FormatDuration(int(s.PositionMs/1000)),
		FormatDuration(int(s.DurationMs/1000)))

	var modes []string
	if s.Shuffle {
		modes = append(modes, "🔀 shuffle")
	}
	if s.Repeat != core.RepeatOff && s.Repeat != "" {
		modes = append(modes, "🔁 "+string(s.Repeat))
	}
	if s.DeviceID != "" {
		modes = append(modes, "📱 "+s.DeviceID)
	}
	modes = append(modes, fmt.Sprintf("🔊 %d%%", s.Volume))
	fmt.Fprintf(&b, "  %s\n", strings.Join(modes, "  "))

	return b.String()
}
