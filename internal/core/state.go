package core

import "time"

// PlaybackStatus distinguishes "nothing observed yet" from "observed: nothing playing".
type PlaybackStatus int

const (
	StatusUnknown PlaybackStatus = iota
	StatusActive
	StatusIdle
)

func (s PlaybackStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// RepeatMode is the repeat setting of the player.
type RepeatMode string

const (
	RepeatOff     RepeatMode = "off"
	RepeatContext RepeatMode = "context"
	RepeatTrack   RepeatMode = "track"
)

// ParseRepeatMode maps the Web API's repeat_state string to a RepeatMode.
// Unrecognised values map to RepeatOff.
func ParseRepeatMode(s string) RepeatMode {
	switch RepeatMode(s) {
	case RepeatContext:
		return RepeatContext
	case RepeatTrack:
		return RepeatTrack
	default:
		return RepeatOff
	}
}

// Next returns the mode that follows r in the off → context → track cycle.
func (r RepeatMode) Next() RepeatMode {
	switch r {
	case RepeatOff, "":
		return RepeatContext
	case RepeatContext:
		return RepeatTrack
	default:
		return RepeatOff
	}
}

// Source names the producer of an observation.
type Source string

const (
	SourcePush Source = "push"
	SourcePull Source = "pull"
)

// Snapshot is a point-in-time view of playback.
type Snapshot struct {
	Status     PlaybackStatus `json:"status"`
	IsPaused   bool           `json:"is_paused"`
	PositionMs int64          `json:"position_ms"`
	DurationMs int64          `json:"duration_ms"`
	Shuffle    bool           `json:"shuffle"`
	Repeat     RepeatMode     `json:"repeat"`
	Volume     int            `json:"volume"`
	Track      *TrackRef      `json:"track,omitempty"`
	DeviceID   string         `json:"device_id,omitempty"`
	Source     Source         `json:"source,omitempty" hash:"ignore"`
	ObservedAt time.Time      `json:"observed_at" hash:"ignore"`
}

// HasTrack returns true if there is an active track.
func (s Snapshot) HasTrack() bool {
	return s.Status == StatusActive && s.Track != nil
}

// IsPlaying reports whether the snapshot describes audible playback.
func (s Snapshot) IsPlaying() bool {
	return s.Status == StatusActive && !s.IsPaused
}

// Projected returns the snapshot with its position advanced by the time
// elapsed since it was observed, as long as playback is running.
func (s Snapshot) Projected(now time.Time) Snapshot {
	if !s.IsPlaying() || s.ObservedAt.IsZero() || now.Before(s.ObservedAt) {
		return s
	}
	s.PositionMs += now.Sub(s.ObservedAt).Milliseconds()
	if s.DurationMs > 0 && s.PositionMs > s.DurationMs {
		s.PositionMs = s.DurationMs
	}
	s.ObservedAt = now
	return s
}

// ProgressPercent returns playback progress as a percentage (0-100).
func (s Snapshot) ProgressPercent() float64 {
	if s.DurationMs == 0 {
		return 0
	}
	return float64(s.PositionMs) / float64(s.DurationMs) * 100
}

// Update is a single observation from a push or pull source. Nil fields
// are not carried by the observation.
type Update struct {
	Source Source
	At     time.Time

	// Idle marks an explicit "nothing is playing" observation.
	Idle bool

	Paused     *bool
	PositionMs *int64
	DurationMs *int64
	Shuffle    *bool
	Repeat     *RepeatMode
	Volume     *int
	DeviceID   *string
	Track      *TrackRef
}

// Apply merges u over s. Fields u carries replace those of s, everything
// else is inherited. The track is replaced or inherited as a whole.
func (s Snapshot) Apply(u Update) Snapshot {
	if u.Idle {
		return Snapshot{
			Status:     StatusIdle,
			Repeat:     RepeatOff,
			Source:     u.Source,
			ObservedAt: u.At,
		}
	}

	next := s
	next.Status = StatusActive
	next.Source = u.Source
	next.ObservedAt = u.At
	if next.Repeat == "" {
		next.Repeat = RepeatOff
	}

	if u.Paused != nil {
		next.IsPaused = *u.Paused
	}
	if u.PositionMs != nil {
		next.PositionMs = max(*u.PositionMs, 0)
	}
	if u.DurationMs != nil {
		next.DurationMs = max(*u.DurationMs, 0)
	}
	if u.Shuffle != nil {
		next.Shuffle = *u.Shuffle
	}
	if u.Repeat != nil {
		next.Repeat = *u.Repeat
	}
	if u.Volume != nil {
		next.Volume = *u.Volume
	}
	if u.DeviceID != nil {
		next.DeviceID = *u.DeviceID
	}
	if u.Track != nil {
		next.Track = u.Track
	}
	return next
}

// Ptr returns a pointer to v, for building Updates.
func Ptr[T any](v T) *T {
	return &v
}
