package cli

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tessro/cassette/internal/core"
	cerrors "github.com/tessro/cassette/internal/errors"
	"github.com/tessro/cassette/internal/tail"
)

func TestVolumeTarget(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		inactive bool
		args     []string
		up, down bool
		want     int
		wantSet  bool
		wantErr  bool
	}{
		{name: "show", current: 40, want: 40},
		{name: "set", current: 40, args: []string{"75"}, want: 75, wantSet: true},
		{name: "up", current: 40, up: true, want: 50, wantSet: true},
		{name: "up clamps", current: 95, up: true, want: 100, wantSet: true},
		{name: "down clamps", current: 5, down: true, want: 0, wantSet: true},
		{name: "invalid", current: 40, args: []string{"loud"}, wantErr: true},
		{name: "up without playback", current: 0, inactive: true, up: true, wantErr: true},
		{name: "down without playback", current: 0, inactive: true, down: true, wantErr: true},
		{name: "set without playback", current: 0, inactive: true, args: []string{"30"}, want: 30, wantSet: true},
		{name: "show without playback", current: 0, inactive: true, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := volumeTarget(tt.current, !tt.inactive, tt.args, tt.up, tt.down)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got != tt.want || ok != tt.wantSet {
				t.Errorf("volumeTarget() = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantSet)
			}
		})
	}
}

func TestControlResult(t *testing.T) {
	if err := controlResult("pause", nil, true); err != nil {
		t.Errorf("success: err = %v", err)
	}

	err := controlResult("pause", nil, false)
	if !errors.Is(err, cerrors.ErrNotAuthenticated) {
		t.Fatalf("session lost: err = %v, want ErrNotAuthenticated", err)
	}
	if !strings.Contains(cerrors.Format(err), "auth login") {
		t.Errorf("session lost: FormatError = %q, want login suggestion", cerrors.Format(err))
	}

	err = controlResult("pause", cerrors.ErrNoActiveDevice, false)
	if !errors.Is(err, cerrors.ErrNoActiveDevice) || !strings.Contains(err.Error(), "failed to pause") {
		t.Errorf("command error: err = %v", err)
	}
}

func TestParseConfigValue(t *testing.T) {
	tests := []struct {
		key, value string
		want       any
		wantErr    bool
	}{
		{"spotify.client_id", "abc", "abc", false},
		{"poll.interval", "500", 500, false},
		{"poll.interval", "fast", nil, true},
		{"spotify.requests_per_second", "2.5", 2.5, false},
		{"engine.enabled", "on", true, false},
		{"engine.enabled", "maybe", nil, true},
		{"defaults.device", "x", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			got, err := parseConfigValue(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseConfigValue() = %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestFormatStatus(t *testing.T) {
	if got := formatStatus(core.Snapshot{Status: core.StatusIdle}); got != "No active playback\n" {
		t.Errorf("idle = %q", got)
	}

	snap := core.Snapshot{
		Status:     core.StatusActive,
		Track:      core.NewTrackRef("t1", "spotify:track:t1", "Song", []string{"Band"}, core.Album{Name: "Record"}),
		PositionMs: 65000,
		DurationMs: 200000,
		Shuffle:    true,
		Repeat:     core.RepeatContext,
		Volume:     40,
		DeviceID:   "phone",
	}
	got := formatStatus(snap)
	for _, want := range []string{"▶ Song", "Band - Record", "1:05 / 3:20", "shuffle", "context", "phone", "40%"} {
		if !strings.Contains(got, want) {
			t.Errorf("status missing %q:\n%s", want, got)
		}
	}

	snap.IsPaused = true
	if got := formatStatus(snap); !strings.HasPrefix(got, "⏸ Song") {
		t.Errorf("paused status = %q", got)
	}
}

func TestEventJSON(t *testing.T) {
	curr := core.Snapshot{Status: core.StatusActive, Volume: 30}
	e := tail.Event{
		Type:      tail.EventVolumeChange,
		Timestamp: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Current:   &curr,
	}

	out := eventJSON(e)
	if out["type"] != e.Type.String() {
		t.Errorf("type = %v", out["type"])
	}
	if out["timestamp"] != "2024-05-01T10:00:00Z" {
		t.Errorf("timestamp = %v", out["timestamp"])
	}
	if _, ok := out["previous"]; ok {
		t.Error("previous should be omitted")
	}
	if cur, ok := out["current"].(map[string]any); !ok || cur["volume"] != 30 {
		t.Errorf("current = %v", out["current"])
	}
}
