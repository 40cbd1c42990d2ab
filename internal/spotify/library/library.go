// Package library browses the user's Spotify library: search, liked tracks
// and playlists.
package library

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zmb3/spotify/v2"

	"github.com/tessro/cassette/internal/core"
)

// DefaultLimit is the page size used when a caller passes zero.
const DefaultLimit = 20

// Playlist is a playlist summary.
type Playlist struct {
	ID     string
	Name   string
	URI    string
	Owner  string
	Tracks int
}

// LikedTrack is a saved track and when it was saved.
type LikedTrack struct {
	Track   *core.TrackRef
	AddedAt time.Time
}

// Library wraps the zmb3 Spotify client.
type Library struct {
	api *spotify.Client
}

// New creates a Library over an authenticated HTTP client, typically one
// built with oauth2.NewClient. baseURL may be empty for the public API.
func New(httpClient *http.Client, baseURL string) *Library {
	opts := []spotify.ClientOption{spotify.WithRetry(true)}
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, spotify.WithBaseURL(baseURL))
	}
	return &Library{api: spotify.New(httpClient, opts...)}
}

// SearchTracks returns tracks matching query.
func (l *Library) SearchTracks(ctx context.Context, query string, limit int) ([]*core.TrackRef, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}

	results, err := l.api.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(pageSize(limit)))
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	if results.Tracks == nil {
		return nil, nil
	}

	tracks := make([]*core.TrackRef, 0, len(results.Tracks.Tracks))
	for i := range results.Tracks.Tracks {
		tracks = append(tracks, convertTrack(&results.Tracks.Tracks[i]))
	}
	return tracks, nil
}

// SearchPlaylists returns playlists matching query.
func (l *Library) SearchPlaylists(ctx context.Context, query string, limit int) ([]Playlist, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}

	results, err := l.api.Search(ctx, query, spotify.SearchTypePlaylist, spotify.Limit(pageSize(limit)))
	if err != nil {
		return nil, fmt.Errorf("playlist search failed: %w", err)
	}
	if results.Playlists == nil {
		return nil, nil
	}
	return convertPlaylists(results.Playlists.Playlists), nil
}

// Liked returns the most recently saved tracks.
func (l *Library) Liked(ctx context.Context, limit int) ([]LikedTrack, error) {
	page, err := l.api.CurrentUsersTracks(ctx, spotify.Limit(pageSize(limit)))
	if err != nil {
		return nil, fmt.Errorf("fetching liked songs: %w", err)
	}

	liked := make([]LikedTrack, 0, len(page.Tracks))
	for i := range page.Tracks {
		saved := &page.Tracks[i]
		// Zero value on a malformed timestamp
		addedAt, _ := time.Parse(time.RFC3339, saved.AddedAt)
		liked = append(liked, LikedTrack{
			Track:   convertTrack(&saved.FullTrack),
			AddedAt: addedAt,
		})
	}
	return liked, nil
}

// Playlists returns the current user's playlists.
func (l *Library) Playlists(ctx context.Context, limit int) ([]Playlist, error) {
	page, err := l.api.CurrentUsersPlaylists(ctx, spotify.Limit(pageSize(limit)))
	if err != nil {
		return nil, fmt.Errorf("fetching playlists: %w", err)
	}
	return convertPlaylists(page.Playlists), nil
}

func pageSize(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > 50:
		return 50 // API maximum
	default:
		return limit
	}
}

func convertTrack(t *spotify.FullTrack) *core.TrackRef {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}
	album := core.Album{Name: t.Album.Name}
	if len(t.Album.Images) > 0 {
		album.ArtworkURL = t.Album.Images[0].URL
	}
	return core.NewTrackRef(t.ID.String(), string(t.URI), t.Name, artists, album)
}

func convertPlaylists(in []spotify.SimplePlaylist) []Playlist {
	out := make([]Playlist, len(in))
	for i, p := range in {
		out[i] = Playlist{
			ID:     p.ID.String(),
			Name:   p.Name,
			URI:    string(p.URI),
			Owner:  p.Owner.DisplayName,
			Tracks: int(p.Tracks.Total),
		}
	}
	return out
}
