package core

import (
	"reflect"
	"testing"
	"time"
)

func TestSnapshotApplyInheritsTrackWhole(t *testing.T) {
	track := NewTrackRef("t1", "spotify:track:t1", "Song", []string{"A", "B"}, Album{Name: "LP", ArtworkURL: "http://img"})
	prev := Snapshot{Status: StatusActive, Track: track, DurationMs: 200000, DeviceID: "dev"}

	next := prev.Apply(Update{Source: SourcePush, Paused: Ptr(true), PositionMs: Ptr(int64(1000))})

	if next.Track != track {
		t.Fatalf("Track = %p, want the previous reference %p", next.Track, track)
	}
	if !reflect.DeepEqual(*next.Track, *track) {
		t.Errorf("Track = %+v, want %+v", *next.Track, *track)
	}
	if next.DurationMs != 200000 {
		t.Errorf("DurationMs = %d, want inherited 200000", next.DurationMs)
	}
	if next.DeviceID != "dev" {
		t.Errorf("DeviceID = %q, want inherited %q", next.DeviceID, "dev")
	}
	if !next.IsPaused || next.PositionMs != 1000 {
		t.Errorf("IsPaused/PositionMs = %v/%d, want true/1000", next.IsPaused, next.PositionMs)
	}
	if next.Source != SourcePush {
		t.Errorf("Source = %q, want %q", next.Source, SourcePush)
	}
}

func TestSnapshotApplyReplacesTrack(t *testing.T) {
	old := NewTrackRef("t1", "", "Old", []string{"A"}, Album{})
	replacement := NewTrackRef("t2", "", "New", nil, Album{})

	next := Snapshot{Status: StatusActive, Track: old}.Apply(Update{Track: replacement})

	if next.Track != replacement {
		t.Errorf("Track = %+v, want %+v", next.Track, replacement)
	}
	if old.Name != "Old" {
		t.Errorf("previous track mutated: %+v", old)
	}
}

func TestSnapshotApplyIdle(t *testing.T) {
	at := time.Now()
	prev := Snapshot{Status: StatusActive, Track: NewTrackRef("t1", "", "x", nil, Album{}), Shuffle: true}

	next := prev.Apply(Update{Source: SourcePull, At: at, Idle: true})

	if next.Status != StatusIdle {
		t.Errorf("Status = %v, want %v", next.Status, StatusIdle)
	}
	if next.Track != nil || next.Shuffle {
		t.Errorf("idle snapshot carries state: %+v", next)
	}
	if next.Status == (Snapshot{}).Status {
		t.Error("idle snapshot must differ from the unknown snapshot")
	}
}

func TestNewTrackRefCopiesArtists(t *testing.T) {
	artists := []string{"A", "B"}
	ref := NewTrackRef("", "spotify:track:abc", "x", artists, Album{})
	artists[0] = "changed"

	if ref.Artists[0] != "A" {
		t.Errorf("Artists[0] = %q, want %q", ref.Artists[0], "A")
	}
	if ref.ID != "abc" {
		t.Errorf("ID = %q, want %q", ref.ID, "abc")
	}
	if ref.Artist() != "A, B" {
		t.Errorf("Artist() = %q, want %q", ref.Artist(), "A, B")
	}
}

func TestSnapshotProjected(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		snap Snapshot
		now  time.Time
		want int64
	}{
		{
			name: "playing advances",
			snap: Snapshot{Status: StatusActive, PositionMs: 5000, DurationMs: 200000, ObservedAt: at},
			now:  at.Add(1500 * time.Millisecond),
			want: 6500,
		},
		{
			name: "paused holds",
			snap: Snapshot{Status: StatusActive, IsPaused: true, PositionMs: 5000, DurationMs: 200000, ObservedAt: at},
			now:  at.Add(time.Minute),
			want: 5000,
		},
		{
			name: "capped at duration",
			snap: Snapshot{Status: StatusActive, PositionMs: 199000, DurationMs: 200000, ObservedAt: at},
			now:  at.Add(10 * time.Second),
			want: 200000,
		},
		{
			name: "unknown holds",
			snap: Snapshot{PositionMs: 10, ObservedAt: at},
			now:  at.Add(time.Second),
			want: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.snap.Projected(tt.now).PositionMs; got != tt.want {
				t.Errorf("Projected().PositionMs = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRepeatMode(t *testing.T) {
	tests := []struct {
		in   string
		want RepeatMode
		next RepeatMode
	}{
		{"off", RepeatOff, RepeatContext},
		{"context", RepeatContext, RepeatTrack},
		{"track", RepeatTrack, RepeatOff},
		{"bogus", RepeatOff, RepeatContext},
	}

	for _, tt := range tests {
		got := ParseRepeatMode(tt.in)
		if got != tt.want {
			t.Errorf("ParseRepeatMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if got.Next() != tt.next {
			t.Errorf("%q.Next() = %q, want %q", got, got.Next(), tt.next)
		}
	}
}

func TestTokenPairExpiredAt(t *testing.T) {
	now := time.Now()
	pair := NewTokenPair("a", "r", now, time.Hour)

	if pair.ExpiresAt != now.Add(time.Hour) {
		t.Errorf("ExpiresAt = %v, want %v", pair.ExpiresAt, now.Add(time.Hour))
	}
	if pair.ExpiredAt(now, time.Minute) {
		t.Error("ExpiredAt(now) = true, want false")
	}
	if !pair.ExpiredAt(now.Add(59*time.Minute+30*time.Second), time.Minute) {
		t.Error("ExpiredAt within leeway = false, want true")
	}
	if !pair.ExpiredAt(now.Add(time.Hour), 0) {
		t.Error("ExpiredAt(expiresAt) = false, want true")
	}
}
