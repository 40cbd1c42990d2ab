package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tessro/cassette/internal/core"
	"github.com/tessro/cassette/internal/spotify/library"
)

var (
	libraryLimit    int
	searchPlaylists bool
	searchPlay      bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search Spotify for tracks or playlists",
	Long: `Search Spotify. Tracks are listed by default.

Examples:
  cassette search "bohemian rhapsody"
  cassette search --playlists "deep focus"
  cassette search --play "mr blue sky"   # play the first match`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var likedCmd = &cobra.Command{
	Use:   "liked",
	Short: "List your liked songs",
	Args:  cobra.NoArgs,
	RunE:  runLiked,
}

var playlistsCmd = &cobra.Command{
	Use:   "playlists",
	Short: "List your playlists",
	Args:  cobra.NoArgs,
	RunE:  runPlaylists,
}

func init() {
	for _, c := range []*cobra.Command{searchCmd, likedCmd, playlistsCmd} {
		c.Flags().IntVarP(&libraryLimit, "limit", "n", library.DefaultLimit, "number of results (max 50)")
	}
	searchCmd.Flags().BoolVarP(&searchPlaylists, "playlists", "p", false, "search playlists instead of tracks")
	searchCmd.Flags().BoolVar(&searchPlay, "play", false, "play the first result")
	rootCmd.AddCommand(searchCmd, likedCmd, playlistsCmd)
}

// withLibrary builds the app and runs fn with an authenticated session.
func withLibrary(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.requireAuth(); err != nil {
		return err
	}
	return fn(ctx, a)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	return withLibrary(cmd, func(ctx context.Context, a *app) error {
		if searchPlaylists {
			playlists, err := a.library.SearchPlaylists(ctx, query, libraryLimit)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			if searchPlay && len(playlists) > 0 {
				return playFirst(ctx, a, playlists[0].URI, playlists[0].Name)
			}
			return printPlaylists(playlists)
		}

		tracks, err := a.library.SearchTracks(ctx, query, libraryLimit)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		if searchPlay && len(tracks) > 0 {
			return playFirst(ctx, a, tracks[0].URI, tracks[0].Artist()+" - "+tracks[0].Name)
		}
		return printTracks(tracks)
	})
}

func playFirst(ctx context.Context, a *app, uri, label string) error {
	a.refresh(ctx)
	if err := a.player.PlayURI(ctx, uri); err != nil {
		return fmt.Errorf("failed to play: %w", err)
	}
	if JSONOutput() {
		return PrintJSON(map[string]any{"status": "playing", "uri": uri})
	}
	fmt.Printf("▶ Playing %s\n", label)
	return nil
}

func runLiked(cmd *cobra.Command, args []string) error {
	return withLibrary(cmd, func(ctx context.Context, a *app) error {
		liked, err := a.library.Liked(ctx, libraryLimit)
		if err != nil {
			return fmt.Errorf("failed to get liked songs: %w", err)
		}

		if JSONOutput() {
			out := make([]map[string]any, 0, len(liked))
			for _, l := range liked {
				out = append(out, map[string]any{"added_at": l.AddedAt, "track": trackJSON(l.Track)})
			}
			return PrintJSON(out)
		}

		table := NewTable("ADDED", "TRACK", "ARTIST", "URI")
		for _, l := range liked {
			table.Row(humanize.Time(l.AddedAt), TruncateString(l.Track.Name, 40), TruncateString(l.Track.Artist(), 30), l.Track.URI)
		}
		table.Flush()
		return nil
	})
}

func runPlaylists(cmd *cobra.Command, args []string) error {
	return withLibrary(cmd, func(ctx context.Context, a *app) error {
		playlists, err := a.library.Playlists(ctx, libraryLimit)
		if err != nil {
			return fmt.Errorf("failed to get playlists: %w", err)
		}
		return printPlaylists(playlists)
	})
}

func printTracks(tracks []*core.TrackRef) error {
	if JSONOutput() {
		out := make([]map[string]any, 0, len(tracks))
		for _, t := range tracks {
			out = append(out, trackJSON(t))
		}
		return PrintJSON(out)
	}

	if len(tracks) == 0 {
		fmt.Println("No results")
		return nil
	}
	table := NewTable("TRACK", "ARTIST", "ALBUM", "URI")
	for _, t := range tracks {
		table.Row(TruncateString(t.Name, 40), TruncateString(t.Artist(), 30), TruncateString(t.Album.Name, 30), t.URI)
	}
	table.Flush()
	return nil
}

func printPlaylists(playlists []library.Playlist) error {
	if JSONOutput() {
		out := make([]map[string]any, 0, len(playlists))
		for _, p := range playlists {
			out = append(out, map[string]any{
				"id":     p.ID,
				"name":   p.Name,
				"uri":    p.URI,
				"owner":  p.Owner,
				"tracks": p.Tracks,
			})
		}
		return PrintJSON(out)
	}

	if len(playlists) == 0 {
		fmt.Println("No playlists")
		return nil
	}
	table := NewTable("PLAYLIST", "OWNER", "TRACKS", "URI")
	for _, p := range playlists {
		table.Row(TruncateString(p.Name, 40), p.Owner, strconv.Itoa(p.Tracks), p.URI)
	}
	table.Flush()
	return nil
}
