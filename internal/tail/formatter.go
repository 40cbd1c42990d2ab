package tail

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/tessro/cassette/internal/core"
)

// Formatter formats events for output.
type Formatter struct {
	showEmoji     bool
	showTimestamp bool
	template      *template.Template
}

// FormatterOption configures a Formatter.
type FormatterOption func(*Formatter)

// WithEmoji enables emoji output.
func WithEmoji(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showEmoji = enabled
	}
}

// WithTimestamp enables timestamp output.
func WithTimestamp(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showTimestamp = enabled
	}
}

// WithTemplate sets a custom format template. A template that does not
// parse is ignored; check it first with ParseTemplate.
func WithTemplate(tmpl string) FormatterOption {
	return func(f *Formatter) {
		if t, err := ParseTemplate(tmpl); err == nil {
			f.template = t
		}
	}
}

// ParseTemplate parses a custom format template. An empty string yields nil.
func ParseTemplate(tmpl string) (*template.Template, error) {
	if tmpl == "" {
		return nil, nil
	}
	t, err := template.New("format").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("invalid format template: %w", err)
	}
	return t, nil
}

// NewFormatter creates a new formatter with the given options.
func NewFormatter(opts ...FormatterOption) *Formatter {
	f := &Formatter{showEmoji: true}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format formats an event as a string.
func (f *Formatter) Format(e Event) string {
	if f.template != nil {
		return f.formatTemplate(e)
	}
	return f.formatLine(e)
}

// formatLine formats an event as a simple line.
func (f *Formatter) formatLine(e Event) string {
	var parts []string
	if f.showTimestamp {
		parts = append(parts, e.Timestamp.Format("15:04:05"))
	}
	if f.showEmoji {
		parts = append(parts, eventEmoji(e.Type))
	}
	parts = append(parts, f.eventDescription(e))

	return strings.Join(parts, " ")
}

// formatTemplate formats an event using a custom template.
func (f *Formatter) formatTemplate(e Event) string {
	data := newTemplateData(e)

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		return f.formatLine(e)
	}
	return buf.String()
}

type templateData struct {
	Type      string
	Emoji     string
	Timestamp time.Time
	Time      string
	Title     string
	Artist    string
	Album     string
	Device    string
	Volume    int
	Shuffle   bool
	Repeat    string
}

func newTemplateData(e Event) templateData {
	data := templateData{
		Type:      e.Type.String(),
		Emoji:     eventEmoji(e.Type),
		Timestamp: e.Timestamp,
		Time:      e.Timestamp.Format("15:04:05"),
	}
	if e.Current == nil {
		return data
	}

	if e.Current.Track != nil {
		data.Title = e.Current.Track.Name
		data.Artist = e.Current.Track.Artist()
		data.Album = e.Current.Track.Album.Name
	}
	data.Device = e.Current.DeviceID
	data.Volume = e.Current.Volume
	data.Shuffle = e.Current.Shuffle
	data.Repeat = string(e.Current.Repeat)
	return data
}

func trackLine(t *core.TrackRef) string {
	return fmt.Sprintf("%s - %s", t.Artist(), t.Name)
}

// eventDescription returns a human-readable description of the event.
func (f *Formatter) eventDescription(e Event) string {
	switch e.Type {
	case EventTrackChange:
		if e.Current != nil && e.Current.Track != nil {
			return "Now playing: " + trackLine(e.Current.Track)
		}
		return "Track changed"

	case EventTrackComplete:
		if e.Previous != nil && e.Previous.Track != nil {
			return "Finished: " + trackLine(e.Previous.Track)
		}
		return "Track completed"

	case EventTrackSkip:
		if e.Previous != nil && e.Previous.Track != nil {
			return "Skipped: " + trackLine(e.Previous.Track)
		}
		return "Track skipped"

	case EventPause:
		return "Paused"

	case EventResume:
		return "Resumed"

	case EventStop:
		return "Stopped"

	case EventVolumeChange:
		if e.Current != nil {
			return fmt.Sprintf("Volume: %d%%", e.Current.Volume)
		}
		return "Volume changed"

	case EventDeviceChange:
		if e.Current != nil && e.Current.DeviceID != "" {
			return fmt.Sprintf("Device: %s", e.Current.DeviceID)
		}
		return "Device changed"

	case EventShuffleChange:
		if e.Current != nil && e.Current.Shuffle {
			return "Shuffle: on"
		}
		return "Shuffle: off"

	case EventRepeatChange:
		if e.Current != nil {
			return fmt.Sprintf("Repeat: %s", e.Current.Repeat)
		}
		return "Repeat changed"

	default:
		return "Unknown event"
	}
}

var eventKinds = map[EventType]struct{ name, emoji string }{
	EventTrackChange:   {"track_change", "🎵"},
	EventTrackComplete: {"track_complete", "✅"},
	EventTrackSkip:     {"track_skip", "⏭️"},
	EventPause:         {"pause", "⏸️"},
	EventResume:        {"resume", "▶️"},
	EventStop:          {"stop", "⏹️"},
	EventVolumeChange:  {"volume_change", "🔊"},
	EventDeviceChange:  {"device_change", "📱"},
	EventShuffleChange: {"shuffle_change", "🔀"},
	EventRepeatChange:  {"repeat_change", "🔁"},
}

func eventEmoji(t EventType) string {
	if k, ok := eventKinds[t]; ok {
		return k.emoji
	}
	return "❓"
}

func (t EventType) String() string {
	if k, ok := eventKinds[t]; ok {
		return k.name
	}
	return "unknown"
}
