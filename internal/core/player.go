package core

import (
	"context"
	"time"
)

// Player defines the playback intents a presentation layer can issue.
type Player interface {
	// Playback control
	TogglePlay(ctx context.Context) error
	Play(ctx context.Context) error
	PlayURI(ctx context.Context, uri string) error
	Pause(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Seek(ctx context.Context, positionMs int) error

	// Volume control
	SetVolume(ctx context.Context, percent int) error

	// Modes
	SetShuffle(ctx context.Context, on bool) error
	ToggleShuffle(ctx context.Context) error
	SetRepeat(ctx context.Context, mode RepeatMode) error
	CycleRepeat(ctx context.Context) error

	// Device targeting
	Transfer(ctx context.Context, deviceID string, play bool) error
}

// HistoryEntry represents a recently played track.
type HistoryEntry struct {
	Track    *TrackRef
	PlayedAt time.Time
}
