package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tessro/cassette/internal/core"
	cerrors "github.com/tessro/cassette/internal/errors"
)

var (
	volumeUp     bool
	volumeDown   bool
	transferPlay bool
)

var playCmd = &cobra.Command{
	Use:   "play [uri]",
	Short: "Start or resume playback",
	Long: `Resume playback, or play a Spotify URI.

Examples:
  cassette play
  cassette play spotify:track:4uLU6hMCjMI75M1A2tKUQC
  cassette play spotify:playlist:37i9dQZF1DXcBWIGoYBM5M`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlay,
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause playback",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl(cmd, "pause", func(ctx context.Context, a *app) (map[string]any, string, error) {
			return map[string]any{"status": "paused"}, "⏸ Paused", a.player.Pause(ctx)
		})
	},
}

var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Toggle between play and pause",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl(cmd, "toggle playback", func(ctx context.Context, a *app) (map[string]any, string, error) {
			if a.reconciler.Snapshot().IsPlaying() {
				return map[string]any{"status": "paused"}, "⏸ Paused", a.player.TogglePlay(ctx)
			}
			return map[string]any{"status": "playing"}, "▶ Playing", a.player.TogglePlay(ctx)
		})
	},
}

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Skip to next track",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl(cmd, "skip", func(ctx context.Context, a *app) (map[string]any, string, error) {
			return map[string]any{"status": "skipped"}, "⏭ Next track", a.player.Next(ctx)
		})
	},
}

var prevCmd = &cobra.Command{
	Use:   "prev",
	Short: "Go to previous track",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl(cmd, "go back", func(ctx context.Context, a *app) (map[string]any, string, error) {
			return map[string]any{"status": "previous"}, "⏮ Previous track", a.player.Previous(ctx)
		})
	},
}

var seekCmd = &cobra.Command{
	Use:   "seek <position>",
	Short: "Seek within the current track",
	Long: `Seek to a position given as m:ss or milliseconds.

Examples:
  cassette seek 1:30
  cassette seek 90000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ms, err := parsePosition(args[0])
		if err != nil {
			return err
		}
		return runControl(cmd, "seek", func(ctx context.Context, a *app) (map[string]any, string, error) {
			return map[string]any{"position_ms": ms},
				fmt.Sprintf("⏩ Seeked to %s", FormatDuration(ms/1000)),
				a.player.Seek(ctx, ms)
		})
	},
}

var volumeCmd = &cobra.Command{
	Use:   "volume [level]",
	Short: "Show, set or adjust volume",
	Long: `Show the playback volume, set it (0-100) or adjust it up/down.

Examples:
  cassette volume      # Show current volume
  cassette volume 50   # Set volume to 50%
  cassette volume --up # Increase volume by 10%`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVolume,
}

var shuffleCmd = &cobra.Command{
	Use:   "shuffle [on|off]",
	Short: "Set or toggle shuffle",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl(cmd, "set shuffle", func(ctx context.Context, a *app) (map[string]any, string, error) {
			on := !a.reconciler.Snapshot().Shuffle
			if len(args) == 1 {
				v, err := parseSwitch(args[0])
				if err != nil {
					return nil, "", err
				}
				on = v
			}
			return map[string]any{"shuffle": on}, "🔀 Shuffle: " + onOff(on), a.player.SetShuffle(ctx, on)
		})
	},
}

var repeatCmd = &cobra.Command{
	Use:   "repeat [off|context|track]",
	Short: "Set or cycle the repeat mode",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl(cmd, "set repeat", func(ctx context.Context, a *app) (map[string]any, string, error) {
			mode := a.reconciler.Snapshot().Repeat.Next()
			if len(args) == 1 {
				m, err := parseRepeat(args[0])
				if err != nil {
					return nil, "", err
				}
				mode = m
			}
			return map[string]any{"repeat": mode}, "🔁 Repeat: " + string(mode), a.player.SetRepeat(ctx, mode)
		})
	},
}

var transferCmd = &cobra.Command{
	Use:   "transfer <device-id>",
	Short: "Move playback to another device",
	Long:  `Move playback to another device. Run 'cassette devices' to list device IDs.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl(cmd, "transfer playback", func(ctx context.Context, a *app) (map[string]any, string, error) {
			return map[string]any{"device_id": args[0], "play": transferPlay},
				"📱 Transferred to " + args[0],
				a.player.Transfer(ctx, args[0], transferPlay)
		})
	},
}

var queueCmd = &cobra.Command{
	Use:   "queue <uri>",
	Short: "Add a track to the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl(cmd, "add to queue", func(ctx context.Context, a *app) (map[string]any, string, error) {
			return map[string]any{"queued": args[0]}, "➕ Queued " + args[0], a.player.AddToQueue(ctx, args[0])
		})
	},
}

func init() {
	volumeCmd.Flags().BoolVar(&volumeUp, "up", false, "Increase volume by 10%")
	volumeCmd.Flags().BoolVar(&volumeDown, "down", false, "Decrease volume by 10%")
	transferCmd.Flags().BoolVar(&transferPlay, "play", false, "Start playback on the new device")

	rootCmd.AddCommand(playCmd, pauseCmd, toggleCmd, nextCmd, prevCmd, seekCmd,
		volumeCmd, shuffleCmd, repeatCmd, transferCmd, queueCmd)
}

// controlFunc runs a command and returns its JSON and text results.
type controlFunc func(ctx context.Context, a *app) (map[string]any, string, error)

// runControl builds the app, refreshes the playback snapshot so commands
// target the current device, and reports the result.
func runControl(cmd *cobra.Command, action string, fn controlFunc) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.requireAuth(); err != nil {
		return err
	}
	a.refresh(ctx)

	out, text, err := fn(ctx, a)
	if err := controlResult(action, err, a.manager.Authenticated()); err != nil {
		return err
	}

	if JSONOutput() {
		return PrintJSON(out)
	}
	fmt.Println(text)
	return nil
}

// controlResult maps a command outcome to the error reported to the user.
// A session invalidated while the command ran is not a success.
func controlResult(action string, err error, authenticated bool) error {
	if err != nil {
		return fmt.Errorf("failed to %s: %w", action, err)
	}
	if !authenticated {
		return cerrors.ErrNotAuthenticated
	}
	return nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	return runControl(cmd, "play", func(ctx context.Context, a *app) (map[string]any, string, error) {
		if len(args) == 1 {
			return map[string]any{"status": "playing", "uri": args[0]}, "▶ Playing " + args[0], a.player.PlayURI(ctx, args[0])
		}
		return map[string]any{"status": "playing"}, "▶ Resumed", a.player.Play(ctx)
	})
}

func runVolume(cmd *cobra.Command, args []string) error {
	return runControl(cmd, "set volume", func(ctx context.Context, a *app) (map[string]any, string, error) {
		snap := a.reconciler.Snapshot()
		current := snap.Volume

		target, ok, err := volumeTarget(current, snap.Status == core.StatusActive, args, volumeUp, volumeDown)
		if err != nil {
			return nil, "", err
		}
		if !ok {
			return map[string]any{"volume": current}, fmt.Sprintf("🔊 Volume: %d%%", current), nil
		}

		return map[string]any{"volume": target, "previous": current},
			fmt.Sprintf("🔊 Volume: %d%% (was %d%%)", target, current),
			a.player.SetVolume(ctx, target)
	})
}

// volumeTarget resolves the requested volume. ok is false when the command
// only shows the current volume. Relative changes need an active snapshot,
// since current is meaningless otherwise.
func volumeTarget(current int, active bool, args []string, up, down bool) (int, bool, error) {
	switch {
	case (up || down) && !active:
		return 0, false, fmt.Errorf("%w: current volume unknown", cerrors.ErrNoActiveDevice)
	case up:
		return min(current+10, 100), true, nil
	case down:
		return max(current-10, 0), true, nil
	case len(args) == 1:
		v, err := parseVolume(args[0])
		return v, err == nil, err
	default:
		return current, false, nil
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// snapshotJSON is the JSON form of a playback snapshot.
func snapshotJSON(s core.Snapshot) map[string]any {
	out := map[string]any{
		"status":      s.Status.String(),
		"is_playing":  s.IsPlaying(),
		"position_ms": s.PositionMs,
		"duration_ms": s.DurationMs,
		"shuffle":     s.Shuffle,
		"repeat":      s.Repeat,
		"volume":      s.Volume,
		"device_id":   s.DeviceID,
	}
	if s.Track != nil {
		out["track"] = trackJSON(s.Track)
	}
	return out
}
