package tail

import (
	"context"
	"time"

	"github.com/tessro/cassette/internal/core"
)

// EventType represents the type of playback event.
type EventType int

const (
	EventTrackChange EventType = iota
	EventTrackComplete
	EventTrackSkip
	EventPause
	EventResume
	EventStop
	EventVolumeChange
	EventDeviceChange
	EventShuffleChange
	EventRepeatChange
)

// Event represents a playback state change.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Previous  *core.Snapshot
	Current   *core.Snapshot
}

// Feed publishes playback snapshots as they change.
type Feed interface {
	Subscribe() (<-chan core.Snapshot, func())
}

// Watcher turns a snapshot feed into playback events.
type Watcher struct {
	feed   Feed
	now    func() time.Time
	events chan Event
}

// NewWatcher creates a new state watcher.
func NewWatcher(feed Feed) *Watcher {
	return &Watcher{
		feed:   feed,
		now:    time.Now,
		events: make(chan Event, 16),
	}
}

// Events returns the channel of playback events. It is closed when Run
// returns.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Run diffs snapshots until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)

	snaps, cancel := w.feed.Subscribe()
	defer cancel()

	var prev *core.Snapshot
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap := <-snaps:
			if snap.Status == core.StatusUnknown {
				// Nothing observed yet, or the session ended.
				prev = nil
				continue
			}
			curr := snap
			for _, e := range diffSnapshots(prev, &curr, w.now()) {
				select {
				case w.events <- e:
				default:
					// Drop event if channel is full
				}
			}
			prev = &curr
		}
	}
}

// diffSnapshots compares two snapshots and returns detected events.
func diffSnapshots(prev, curr *core.Snapshot, now time.Time) []Event {
	if curr == nil {
		return nil
	}

	event := func(t EventType) Event {
		return Event{Type: t, Timestamp: now, Previous: prev, Current: curr}
	}

	// First observation
	if prev == nil {
		if curr.HasTrack() {
			return []Event{event(EventTrackChange)}
		}
		return nil
	}

	var events []Event

	if prev.Status == core.StatusActive && curr.Status == core.StatusIdle {
		return []Event{event(EventStop)}
	}

	if trackChanged(prev, curr) {
		eventType := EventTrackChange
		if prev.HasTrack() {
			if wasCompleted(prev.Projected(now)) {
				eventType = EventTrackComplete
			} else {
				eventType = EventTrackSkip
			}
		}
		events = append(events, event(eventType))
	}

	if prev.IsPlaying() && !curr.IsPlaying() {
		events = append(events, event(EventPause))
	} else if !prev.IsPlaying() && curr.IsPlaying() && !trackChanged(prev, curr) {
		events = append(events, event(EventResume))
	}

	if prev.Volume != curr.Volume {
		events = append(events, event(EventVolumeChange))
	}

	if prev.DeviceID != curr.DeviceID && curr.DeviceID != "" {
		events = append(events, event(EventDeviceChange))
	}

	if prev.Shuffle != curr.Shuffle {
		events = append(events, event(EventShuffleChange))
	}

	if prev.Repeat != curr.Repeat {
		events = append(events, event(EventRepeatChange))
	}

	return events
}

// trackChanged returns true if the track changed.
func trackChanged(prev, curr *core.Snapshot) bool {
	if prev.Track == nil && curr.Track == nil {
		return false
	}
	if prev.Track == nil || curr.Track == nil {
		return true
	}
	return prev.Track.URI != curr.Track.URI || prev.Track.ID != curr.Track.ID
}

// wasCompleted returns true if the track likely completed naturally.
func wasCompleted(s core.Snapshot) bool {
	if s.DurationMs == 0 {
		return false
	}
	// Consider completed if progress is >= 95% of duration
	return s.ProgressPercent() >= 95
}
