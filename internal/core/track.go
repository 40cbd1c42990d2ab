package core

import "strings"

// Album is the album a track belongs to.
type Album struct {
	Name       string `json:"name"`
	ArtworkURL string `json:"artwork_url"`
}

// TrackRef identifies a playable track. It is immutable once constructed:
// a new observation replaces the whole value rather than editing it.
type TrackRef struct {
	ID      string   `json:"id"`
	URI     string   `json:"uri"`
	Name    string   `json:"name"`
	Artists []string `json:"artists"`
	Album   Album    `json:"album"`
}

// NewTrackRef builds a TrackRef, copying artists so later changes to the
// caller's slice cannot leak into the reference.
func NewTrackRef(id, uri, name string, artists []string, album Album) *TrackRef {
	if id == "" {
		id = TrackIDFromURI(uri)
	}
	return &TrackRef{
		ID:      id,
		URI:     uri,
		Name:    name,
		Artists: append([]string(nil), artists...),
		Album:   album,
	}
}

// Artist returns the artists joined for display.
func (t *TrackRef) Artist() string {
	if t == nil {
		return ""
	}
	return strings.Join(t.Artists, ", ")
}

// TrackIDFromURI extracts the ID from a "spotify:track:<id>" URI.
func TrackIDFromURI(uri string) string {
	if i := strings.LastIndexByte(uri, ':'); i >= 0 {
		return uri[i+1:]
	}
	return uri
}
