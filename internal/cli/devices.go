package cli

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tessro/cassette/internal/core"
)

var recentLimit int

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List available playback devices",
	Args:  cobra.NoArgs,
	RunE:  runDevices,
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show recently played tracks",
	Args:  cobra.NoArgs,
	RunE:  runRecent,
}

func init() {
	recentCmd.Flags().IntVarP(&recentLimit, "limit", "n", 10, "number of tracks (max 50)")
	rootCmd.AddCommand(devicesCmd, recentCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.requireAuth(); err != nil {
		return err
	}

	devices, err := a.player.GetDevices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	if JSONOutput() {
		out := make([]map[string]any, 0, len(devices))
		for _, d := range devices {
			out = append(out, map[string]any{
				"id":        d.ID,
				"name":      d.Name,
				"type":      d.Type,
				"is_active": d.IsActive,
				"volume":    d.Volume,
			})
		}
		return PrintJSON(out)
	}

	if len(devices) == 0 {
		fmt.Println("No devices found. Open Spotify on a device to make it available.")
		return nil
	}

	table := NewTable("", "NAME", "TYPE", "VOLUME", "ID")
	for _, d := range devices {
		table.Row(StatusIcon(d.IsActive), deviceIcon(d.Type)+" "+d.Name, d.Type, strconv.Itoa(d.Volume)+"%", d.ID)
	}
	table.Flush()
	return nil
}

func deviceIcon(deviceType string) string {
	switch deviceType {
	case "Computer":
		return "💻"
	case "Smartphone":
		return "📱"
	case "Speaker":
		return "🔊"
	case "TV":
		return "📺"
	default:
		return "🎧"
	}
}

func runRecent(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.requireAuth(); err != nil {
		return err
	}

	entries, err := a.player.GetRecentlyPlayed(ctx, recentLimit)
	if err != nil {
		return fmt.Errorf("failed to get recently played: %w", err)
	}

	if JSONOutput() {
		out := make([]map[string]any, 0, len(entries))
		for _, e := range entries {
			out = append(out, map[string]any{
				"played_at": e.PlayedAt,
				"track":     trackJSON(e.Track),
			})
		}
		return PrintJSON(out)
	}

	table := NewTable("PLAYED", "TRACK", "ARTIST")
	for _, e := range entries {
		if e.Track == nil {
			continue
		}
		table.Row(humanize.Time(e.PlayedAt), TruncateString(e.Track.Name, 40), TruncateString(e.Track.Artist(), 30))
	}
	table.Flush()
	return nil
}

func trackJSON(t *core.TrackRef) map[string]any {
	if t == nil {
		return nil
	}
	return map[string]any{
		"id":      t.ID,
		"uri":     t.URI,
		"name":    t.Name,
		"artists": t.Artists,
		"album":   t.Album.Name,
	}
}
