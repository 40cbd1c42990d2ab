package client

import (
	"time"

	"github.com/tessro/cassette/internal/core"
)

// User represents a Spotify user profile.
type User struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Email       string  `json:"email"`
	Country     string  `json:"country"`
	Product     string  `json:"product"`
	URI         string  `json:"uri"`
	Images      []Image `json:"images"`
}

// Image represents an image resource.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// Device represents a Spotify playback device.
type Device struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	IsActive         bool   `json:"is_active"`
	IsRestricted     bool   `json:"is_restricted"`
	IsPrivateSession bool   `json:"is_private_session"`
	VolumePercent    *int   `json:"volume_percent"` // Nullable
	SupportsVolume   bool   `json:"supports_volume"`
}

// ToCore converts the device to the domain type.
func (d Device) ToCore() core.Device {
	dev := core.Device{ID: d.ID, Name: d.Name, Type: d.Type, IsActive: d.IsActive}
	if d.VolumePercent != nil {
		dev.Volume = *d.VolumePercent
	}
	return dev
}

// DevicesResponse is the response from the devices endpoint.
type DevicesResponse struct {
	Devices []Device `json:"devices"`
}

// PlaybackState represents the current playback state.
type PlaybackState struct {
	Device               *Device  `json:"device"`
	ShuffleState         bool     `json:"shuffle_state"`
	RepeatState          string   `json:"repeat_state"` // off, track, context
	Timestamp            int64    `json:"timestamp"`
	ProgressMS           *int64   `json:"progress_ms"` // Nullable
	IsPlaying            bool     `json:"is_playing"`
	Item                 *Track   `json:"item"`
	CurrentlyPlayingType string   `json:"currently_playing_type"` // track, episode, ad, unknown
	Context              *Context `json:"context"`
}

// Track represents a Spotify track.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	URI        string   `json:"uri"`
	DurationMS int64    `json:"duration_ms"`
	Explicit   bool     `json:"explicit"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
}

// ToTrackRef converts the track to the domain type. The first album image
// is used as artwork.
func (t *Track) ToTrackRef() *core.TrackRef {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}
	album := core.Album{Name: t.Album.Name}
	if len(t.Album.Images) > 0 {
		album.ArtworkURL = t.Album.Images[0].URL
	}
	return core.NewTrackRef(t.ID, t.URI, t.Name, artists, album)
}

// Artist represents a Spotify artist.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// Album represents a Spotify album.
type Album struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	URI    string  `json:"uri"`
	Images []Image `json:"images"`
}

// Context represents a playback context (album, artist, playlist).
type Context struct {
	Type string `json:"type"`
	URI  string `json:"uri"`
}

// PlayHistory is one entry of the recently played list.
type PlayHistory struct {
	Track    Track     `json:"track"`
	PlayedAt time.Time `json:"played_at"`
	Context  *Context  `json:"context"`
}

// RecentlyPlayedResponse is the response from the recently played endpoint.
type RecentlyPlayedResponse struct {
	Items []PlayHistory `json:"items"`
	Next  string        `json:"next"`
}
