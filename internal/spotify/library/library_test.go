package library

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const trackJSON = `{
	"id": "t1", "uri": "spotify:track:t1", "name": "Song", "duration_ms": 180000,
	"artists": [{"id": "a1", "name": "First"}, {"id": "a2", "name": "Second"}],
	"album": {"id": "al1", "name": "LP", "images": [{"url": "http://img/640", "height": 640, "width": 640}]}
}`

const playlistJSON = `{
	"id": "p1", "uri": "spotify:playlist:p1", "name": "Mix",
	"owner": {"id": "u1", "display_name": "Tess"},
	"tracks": {"href": "", "total": 42}
}`

func newTestLibrary(t *testing.T, mux *http.ServeMux) *Library {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(srv.Client(), srv.URL)
}

func TestSearchTracks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "song" || q.Get("type") != "track" || q.Get("limit") != "5" {
			t.Errorf("query = %v", q)
		}
		fmt.Fprintf(w, `{"tracks": {"items": [%s], "total": 1, "limit": 5, "offset": 0}}`, trackJSON)
	})
	lib := newTestLibrary(t, mux)

	tracks, err := lib.SearchTracks(context.Background(), "song", 5)
	if err != nil {
		t.Fatalf("SearchTracks() error = %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("len(tracks) = %d, want 1", len(tracks))
	}
	got := tracks[0]
	if got.ID != "t1" || got.URI != "spotify:track:t1" || got.Name != "Song" {
		t.Errorf("track = %+v", got)
	}
	if got.Artist() != "First, Second" {
		t.Errorf("Artist() = %q", got.Artist())
	}
	if got.Album.Name != "LP" || got.Album.ArtworkURL != "http://img/640" {
		t.Errorf("Album = %+v", got.Album)
	}
}

func TestSearchTracksEmptyQuery(t *testing.T) {
	lib := newTestLibrary(t, http.NewServeMux())
	if _, err := lib.SearchTracks(context.Background(), "  ", 0); err == nil {
		t.Error("SearchTracks(\"  \") error = nil, want error")
	}
}

func TestLiked(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/me/tracks", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "20" {
			t.Errorf("limit = %q, want default 20", r.URL.Query().Get("limit"))
		}
		fmt.Fprintf(w, `{"items": [{"added_at": "2024-03-01T10:00:00Z", "track": %s}], "total": 1}`, trackJSON)
	})
	lib := newTestLibrary(t, mux)

	liked, err := lib.Liked(context.Background(), 0)
	if err != nil {
		t.Fatalf("Liked() error = %v", err)
	}
	if len(liked) != 1 || liked[0].Track.Name != "Song" {
		t.Fatalf("Liked() = %+v", liked)
	}
	if liked[0].AddedAt.Year() != 2024 {
		t.Errorf("AddedAt = %v", liked[0].AddedAt)
	}
}

func TestPlaylists(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/me/playlists", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"items": [%s], "total": 1}`, playlistJSON)
	})
	lib := newTestLibrary(t, mux)

	playlists, err := lib.Playlists(context.Background(), 10)
	if err != nil {
		t.Fatalf("Playlists() error = %v", err)
	}
	want := Playlist{ID: "p1", Name: "Mix", URI: "spotify:playlist:p1", Owner: "Tess", Tracks: 42}
	if len(playlists) != 1 || playlists[0] != want {
		t.Errorf("Playlists() = %+v, want [%+v]", playlists, want)
	}
}

func TestPageSize(t *testing.T) {
	tests := []struct{ in, want int }{{0, DefaultLimit}, {-1, DefaultLimit}, {10, 10}, {500, 50}}
	for _, tt := range tests {
		if got := pageSize(tt.in); got != tt.want {
			t.Errorf("pageSize(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
