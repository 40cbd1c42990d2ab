package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/tessro/cassette/internal/core"
	"github.com/tessro/cassette/internal/logging"
)

// Librespot is a Source backed by a go-librespot daemon: its REST /status
// seeds the state and its /events WebSocket streams changes.
type Librespot struct {
	baseURL string
	http    *http.Client
	dialer  *websocket.Dialer
	logger  *log.Logger
	now     func() time.Time

	mu       sync.Mutex
	status   Status
	deviceID string
	conn     *websocket.Conn
	started  bool
	gen      uint64 // bumped by Start and Close; stale runs stop reporting

	// repeat is reported as two booleans
	repeatContext bool
	repeatTrack   bool
	volumeSteps   int
}

// LibrespotOption configures a Librespot source.
type LibrespotOption func(*Librespot)

// WithHTTPClient sets the client used for /status.
func WithHTTPClient(c *http.Client) LibrespotOption {
	return func(l *Librespot) { l.http = c }
}

// WithLogger sets the logger.
func WithLogger(lg *log.Logger) LibrespotOption {
	return func(l *Librespot) { l.logger = logging.Component(lg, "engine") }
}

// WithClock sets the time source used to stamp updates.
func WithClock(now func() time.Time) LibrespotOption {
	return func(l *Librespot) { l.now = now }
}

// NewLibrespot creates a source for the daemon at baseURL, for example
// "http://127.0.0.1:3678".
func NewLibrespot(baseURL string, opts ...LibrespotOption) *Librespot {
	l := &Librespot{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
		dialer:  &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		logger:  logging.Discard(),
		now:     time.Now,
		status:  StatusPending,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Librespot) Available() bool { return true }

func (l *Librespot) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

func (l *Librespot) DeviceID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deviceID
}

// Start may be called again only after Close.
func (l *Librespot) Start(ctx context.Context) (<-chan Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return nil, errors.New("playback engine already started")
	}
	l.started = true
	l.status = StatusPending
	l.gen++

	events := make(chan Event, 32)
	go l.run(ctx, l.gen, events)
	return events, nil
}

// Close drops the event stream.
func (l *Librespot) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status = StatusUnavailable
	l.started = false
	l.gen++
	if l.conn != nil {
		err := l.conn.Close()
		l.conn = nil
		return err
	}
	return nil
}

// setStatus records s if the run identified by gen is still current.
func (l *Librespot) setStatus(gen uint64, s Status) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != gen {
		return false
	}
	l.status = s
	return true
}

func (l *Librespot) run(ctx context.Context, gen uint64, events chan<- Event) {
	defer close(events)

	send := func(ev Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(kind EventKind, err error) {
		l.logger.Warn("playback engine unusable", "kind", kind, "err", err)
		if l.setStatus(gen, StatusUnavailable) {
			send(Event{Kind: kind, Err: err})
		}
	}

	st, kind, err := l.fetchStatus(ctx)
	if err != nil {
		fail(kind, err)
		return
	}
	if st.DeviceID == "" {
		fail(EventInitializationError, errors.New("engine reported no device id"))
		return
	}

	conn, err := l.dial(ctx)
	if err != nil {
		fail(EventInitializationError, err)
		return
	}

	l.mu.Lock()
	if l.gen != gen {
		// Closed while connecting
		l.mu.Unlock()
		conn.Close()
		return
	}
	l.conn = conn
	l.deviceID = st.DeviceID
	l.status = StatusReady
	l.repeatContext = st.RepeatContext
	l.repeatTrack = st.RepeatTrack
	l.volumeSteps = st.VolumeSteps
	l.mu.Unlock()

	// Unblock the reader when ctx ends
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	l.logger.Info("playback engine ready", "device_id", st.DeviceID)
	if !send(Event{Kind: EventReady, DeviceID: st.DeviceID}) {
		return
	}
	if u, ok := l.seed(st); ok {
		if !send(Event{Kind: EventStateChanged, Update: u}) {
			return
		}
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && l.setStatus(gen, StatusUnavailable) {
				l.logger.Warn("playback engine stream closed", "err", err)
				send(Event{Kind: EventNotReady, Err: err})
			}
			return
		}
		l.setStatus(gen, StatusStreaming)

		var raw rawEvent
		if err := json.Unmarshal(msg, &raw); err != nil {
			l.logger.Debug("ignoring malformed event", "err", err)
			continue
		}
		ev, ok := l.translate(raw)
		if !ok {
			continue
		}
		if !send(ev) {
			return
		}
	}
}

func (l *Librespot) fetchStatus(ctx context.Context) (*status, EventKind, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/status", nil)
	if err != nil {
		return nil, EventInitializationError, err
	}
	resp, err := l.http.Do(req)
	if err != nil {
		return nil, EventInitializationError, fmt.Errorf("engine unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, EventAuthenticationError, fmt.Errorf("engine rejected credentials: %s", resp.Status)
	case resp.StatusCode == http.StatusForbidden:
		return nil, EventAccountError, fmt.Errorf("account cannot use the engine: %s", resp.Status)
	case resp.StatusCode == http.StatusNoContent:
		return nil, EventInitializationError, errors.New("engine has no session")
	case resp.StatusCode != http.StatusOK:
		return nil, EventInitializationError, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}

	var st status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, EventInitializationError, fmt.Errorf("decoding status: %w", err)
	}
	return &st, 0, nil
}

func (l *Librespot) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(l.baseURL + "/events")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	conn, _, err := l.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to events WebSocket: %w", err)
	}
	return conn, nil
}

// seed converts /status into an update. A stopped engine with no track
// carries nothing worth merging.
func (l *Librespot) seed(st *status) (core.Update, bool) {
	if st.Stopped && st.Track == nil {
		return core.Update{}, false
	}
	u := l.update()
	u.Paused = core.Ptr(st.Paused || st.Stopped)
	u.Shuffle = core.Ptr(st.ShuffleContext)
	u.Repeat = core.Ptr(repeatMode(st.RepeatContext, st.RepeatTrack))
	u.Volume = core.Ptr(volumePercent(st.Volume, st.VolumeSteps))
	u.DeviceID = core.Ptr(st.DeviceID)
	if st.Track != nil {
		u.Track = st.Track.ref()
		u.DurationMs = core.Ptr(st.Track.Duration)
		u.PositionMs = core.Ptr(st.Track.Position)
	}
	return u, true
}

func (l *Librespot) update() core.Update {
	return core.Update{Source: core.SourcePush, At: l.now()}
}

// translate maps a WebSocket event to a source event.
func (l *Librespot) translate(raw rawEvent) (Event, bool) {
	changed := func(u core.Update) (Event, bool) {
		return Event{Kind: EventStateChanged, Update: u}, true
	}

	switch raw.Type {
	case "active":
		return Event{Kind: EventReady, DeviceID: l.DeviceID()}, true
	case "inactive":
		return Event{Kind: EventNotReady}, true

	case "metadata":
		var m metadata
		if err := json.Unmarshal(raw.Data, &m); err != nil {
			return Event{}, false
		}
		u := l.update()
		u.Track = m.ref()
		u.DurationMs = core.Ptr(m.Duration)
		u.PositionMs = core.Ptr(m.Position)
		return changed(u)

	case "playing":
		u := l.update()
		u.Paused = core.Ptr(false)
		return changed(u)
	case "paused", "not_playing":
		u := l.update()
		u.Paused = core.Ptr(true)
		return changed(u)
	case "stopped":
		u := l.update()
		u.Idle = true
		return changed(u)

	case "seek":
		var s seek
		if err := json.Unmarshal(raw.Data, &s); err != nil {
			return Event{}, false
		}
		u := l.update()
		u.PositionMs = core.Ptr(s.Position)
		if s.Duration > 0 {
			u.DurationMs = core.Ptr(s.Duration)
		}
		return changed(u)

	case "volume":
		var v volume
		if err := json.Unmarshal(raw.Data, &v); err != nil {
			return Event{}, false
		}
		u := l.update()
		u.Volume = core.Ptr(volumePercent(v.Value, v.Max))
		return changed(u)

	case "shuffle_context":
		var b flag
		if err := json.Unmarshal(raw.Data, &b); err != nil {
			return Event{}, false
		}
		u := l.update()
		u.Shuffle = core.Ptr(b.Value)
		return changed(u)

	case "repeat_context", "repeat_track":
		var b flag
		if err := json.Unmarshal(raw.Data, &b); err != nil {
			return Event{}, false
		}
		l.mu.Lock()
		if raw.Type == "repeat_context" {
			l.repeatContext = b.Value
		} else {
			l.repeatTrack = b.Value
		}
		mode := repeatMode(l.repeatContext, l.repeatTrack)
		l.mu.Unlock()
		u := l.update()
		u.Repeat = core.Ptr(mode)
		return changed(u)
	}

	return Event{}, false
}

func repeatMode(repeatContext, repeatTrack bool) core.RepeatMode {
	switch {
	case repeatTrack:
		return core.RepeatTrack
	case repeatContext:
		return core.RepeatContext
	default:
		return core.RepeatOff
	}
}

// volumePercent scales an engine volume to 0..100. Zero steps means the
// value is already a percentage.
func volumePercent(value, steps int) int {
	if steps > 0 {
		value = value * 100 / steps
	}
	return min(100, value)
}
