package engine

import (
	"encoding/json"

	"github.com/tessro/cassette/internal/core"
)

// status is the body of GET /status.
type status struct {
	DeviceID       string `json:"device_id"`
	DeviceName     string `json:"device_name"`
	Username       string `json:"username"`
	Stopped        bool   `json:"stopped"`
	Paused         bool   `json:"paused"`
	Buffering      bool   `json:"buffering"`
	Volume         int    `json:"volume"`
	VolumeSteps    int    `json:"volume_steps"`
	RepeatContext  bool   `json:"repeat_context"`
	RepeatTrack    bool   `json:"repeat_track"`
	ShuffleContext bool   `json:"shuffle_context"`
	Track          *track `json:"track"`
}

// track is a track as described by /status.
type track struct {
	URI         string   `json:"uri"`
	Name        string   `json:"name"`
	ArtistNames []string `json:"artist_names"`
	AlbumName   string   `json:"album_name"`
	AlbumCover  string   `json:"album_cover_url"`
	Position    int64    `json:"position"` // ms
	Duration    int64    `json:"duration"` // ms
}

func (t *track) ref() *core.TrackRef {
	return core.NewTrackRef("", t.URI, t.Name, t.ArtistNames, core.Album{Name: t.AlbumName, ArtworkURL: t.AlbumCover})
}

// rawEvent is a WebSocket message on /events.
type rawEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// metadata is the payload of "metadata" events.
type metadata struct {
	URI         string   `json:"uri"`
	Name        string   `json:"name"`
	ArtistNames []string `json:"artist_names"`
	AlbumName   string   `json:"album_name"`
	AlbumCover  string   `json:"album_cover_url"`
	Duration    int64    `json:"duration"` // ms
	Position    int64    `json:"position"` // ms
}

func (m *metadata) ref() *core.TrackRef {
	return core.NewTrackRef("", m.URI, m.Name, m.ArtistNames, core.Album{Name: m.AlbumName, ArtworkURL: m.AlbumCover})
}

// seek is the payload of "seek" events.
type seek struct {
	Position int64 `json:"position"` // ms
	Duration int64 `json:"duration"` // ms
}

// volume is the payload of "volume" events.
type volume struct {
	Value int `json:"value"`
	Max   int `json:"max"`
}

// flag is the payload of shuffle/repeat toggle events.
type flag struct {
	Value bool `json:"value"`
}
