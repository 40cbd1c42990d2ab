package player

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/tessro/cassette/internal/core"
	cerrors "github.com/tessro/cassette/internal/errors"
	"github.com/tessro/cassette/internal/logging"
	"github.com/tessro/cassette/internal/spotify/client"
)

// Session reports whether remote calls can be authenticated.
type Session interface {
	Authenticated() bool
}

// State exposes the reconciled playback view commands are based on.
type State interface {
	Snapshot() core.Snapshot
	DeviceID() string
}

// Player implements core.Player for Spotify. Commands go straight to the
// Web API; the local snapshot only changes when the next observation
// arrives.
type Player struct {
	client  *client.Client
	session Session
	state   State
	logger  *log.Logger
}

// New creates a new Spotify player.
func New(c *client.Client, session Session, state State, logger *log.Logger) *Player {
	return &Player{
		client:  c,
		session: session,
		state:   state,
		logger:  logging.Component(logger, "player"),
	}
}

// do runs a command against the reconciled device. Without a session the
// command is skipped.
func (p *Player) do(ctx context.Context, name string, fn func(ctx context.Context, deviceID string) error) error {
	if !p.session.Authenticated() {
		p.logger.Debug("not authenticated, skipping", "command", name)
		return nil
	}

	deviceID := p.state.DeviceID()
	err := fn(ctx, deviceID)
	if errors.Is(err, cerrors.ErrNotAuthenticated) {
		p.logger.Debug("session lost, skipping", "command", name, "err", err)
		return nil
	}
	if err != nil {
		return err
	}
	p.logger.Debug("command sent", "command", name, "device", deviceID)
	return nil
}

// TogglePlay pauses when the latest snapshot shows audible playback and
// plays otherwise, so an Unknown or Idle snapshot issues play. The snapshot
// may lag the remote player by up to one poll interval.
func (p *Player) TogglePlay(ctx context.Context) error {
	if p.state.Snapshot().IsPlaying() {
		return p.Pause(ctx)
	}
	return p.Play(ctx)
}

// Play starts or resumes playback.
func (p *Player) Play(ctx context.Context) error {
	return p.do(ctx, "play", func(ctx context.Context, deviceID string) error {
		return p.client.Play(ctx, deviceID, nil)
	})
}

// PlayURI starts playback of a specific URI. Track URIs play on their own;
// anything else (album, playlist, artist) plays as a context.
func (p *Player) PlayURI(ctx context.Context, uri string) error {
	opts := &client.PlayOptions{ContextURI: uri}
	if strings.HasPrefix(uri, "spotify:track:") {
		opts = &client.PlayOptions{URIs: []string{uri}}
	}
	return p.do(ctx, "play_uri", func(ctx context.Context, deviceID string) error {
		return p.client.Play(ctx, deviceID, opts)
	})
}

// Pause pauses playback.
func (p *Player) Pause(ctx context.Context) error {
	return p.do(ctx, "pause", func(ctx context.Context, deviceID string) error {
		return p.client.Pause(ctx, deviceID)
	})
}

// Next skips to the next track.
func (p *Player) Next(ctx context.Context) error {
	return p.do(ctx, "next", p.client.Next)
}

// Previous skips to the previous track.
func (p *Player) Previous(ctx context.Context) error {
	return p.do(ctx, "previous", p.client.Previous)
}

// Seek seeks to a position in the current track.
func (p *Player) Seek(ctx context.Context, positionMs int) error {
	positionMs = max(positionMs, 0)
	return p.do(ctx, "seek", func(ctx context.Context, deviceID string) error {
		return p.client.Seek(ctx, positionMs, deviceID)
	})
}

// SetVolume sets the playback volume, clamped to 0-100.
func (p *Player) SetVolume(ctx context.Context, percent int) error {
	percent = min(max(percent, 0), 100)
	return p.do(ctx, "volume", func(ctx context.Context, deviceID string) error {
		return p.client.SetVolume(ctx, percent, deviceID)
	})
}

// SetShuffle turns shuffle on or off.
func (p *Player) SetShuffle(ctx context.Context, on bool) error {
	return p.do(ctx, "shuffle", func(ctx context.Context, deviceID string) error {
		return p.client.SetShuffle(ctx, on, deviceID)
	})
}

// ToggleShuffle inverts the shuffle setting of the latest snapshot.
func (p *Player) ToggleShuffle(ctx context.Context) error {
	return p.SetShuffle(ctx, !p.state.Snapshot().Shuffle)
}

// SetRepeat sets the repeat mode.
func (p *Player) SetRepeat(ctx context.Context, mode core.RepeatMode) error {
	return p.do(ctx, "repeat", func(ctx context.Context, deviceID string) error {
		return p.client.SetRepeat(ctx, string(mode), deviceID)
	})
}

// CycleRepeat advances repeat off → context → track → off.
func (p *Player) CycleRepeat(ctx context.Context) error {
	return p.SetRepeat(ctx, p.state.Snapshot().Repeat.Next())
}

// Transfer moves playback to another device.
func (p *Player) Transfer(ctx context.Context, deviceID string, play bool) error {
	return p.do(ctx, "transfer", func(ctx context.Context, _ string) error {
		return p.client.TransferPlayback(ctx, deviceID, play)
	})
}

// AddToQueue appends a track to the queue of the reconciled device.
func (p *Player) AddToQueue(ctx context.Context, uri string) error {
	return p.do(ctx, "queue", func(ctx context.Context, deviceID string) error {
		return p.client.AddToQueue(ctx, uri, deviceID)
	})
}

// GetDevices returns the user's available playback devices.
func (p *Player) GetDevices(ctx context.Context) ([]core.Device, error) {
	devices, err := p.client.GetDevices(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]core.Device, len(devices))
	for i, d := range devices {
		result[i] = d.ToCore()
	}
	return result, nil
}

// GetRecentlyPlayed returns the user's recently played tracks.
func (p *Player) GetRecentlyPlayed(ctx context.Context, limit int) ([]core.HistoryEntry, error) {
	resp, err := p.client.GetRecentlyPlayed(ctx, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]core.HistoryEntry, len(resp.Items))
	for i, item := range resp.Items {
		entries[i] = core.HistoryEntry{
			Track:    item.Track.ToTrackRef(),
			PlayedAt: item.PlayedAt,
		}
	}
	return entries, nil
}

// Ensure Player implements core.Player
var _ core.Player = (*Player)(nil)
