// Package reconcile merges playback observations from a push source and a
// periodic poll into one playback snapshot.
package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/hashstructure/v2"

	"github.com/tessro/cassette/internal/core"
	"github.com/tessro/cassette/internal/engine"
	"github.com/tessro/cassette/internal/logging"
	"github.com/tessro/cassette/internal/spotify/auth"
	"github.com/tessro/cassette/internal/spotify/client"
)

// DefaultInterval is the poll period.
const DefaultInterval = time.Second

// Readiness describes which source is driving playback observation.
type Readiness int

const (
	NotReady Readiness = iota
	ReadyViaPush
	ReadyViaPull
)

func (r Readiness) String() string {
	switch r {
	case ReadyViaPush:
		return "push"
	case ReadyViaPull:
		return "pull"
	default:
		return "not_ready"
	}
}

// API is the subset of the Web API client the reconciler needs.
type API interface {
	GetPlaybackState(ctx context.Context) (*client.PlaybackState, error)
	TransferPlayback(ctx context.Context, deviceID string, play bool) error
}

// AuthWatcher reports authentication state transitions.
type AuthWatcher interface {
	Watch() (<-chan auth.State, func())
}

type observation struct {
	session uint64
	update  core.Update
}

// session is the lifetime of one authenticated period.
type session struct {
	id          uint64
	ctx         context.Context
	cancel      context.CancelFunc
	events      <-chan engine.Event
	polling     bool
	transferred bool
}

type subscriber struct {
	ch   chan core.Snapshot
	last uint64
}

// Reconciler owns the current playback snapshot. Run is its only writer
// apart from PollOnce.
type Reconciler struct {
	api      API
	authw    AuthWatcher
	push     engine.Source
	interval time.Duration
	logger   *log.Logger
	now      func() time.Time

	observations chan observation

	mu         sync.RWMutex
	snap       core.Snapshot
	readiness  Readiness
	pushDevice string
	sessions   uint64
	subs       map[int]*subscriber
	nextSub    int
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithInterval sets the poll period.
func WithInterval(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Reconciler) { r.logger = logging.Component(l, "reconcile") }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// New creates a Reconciler. push may be nil when no engine is configured.
func New(api API, authw AuthWatcher, push engine.Source, opts ...Option) *Reconciler {
	if push == nil {
		push = engine.Unavailable{}
	}
	r := &Reconciler{
		api:          api,
		authw:        authw,
		push:         push,
		interval:     DefaultInterval,
		logger:       logging.Discard(),
		now:          time.Now,
		observations: make(chan observation, 8),
		subs:         make(map[int]*subscriber),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drives the reconciler until ctx is done. It starts a session when
// authentication is gained and tears it down when authentication is lost.
func (r *Reconciler) Run(ctx context.Context) error {
	states, stop := r.authw.Watch()
	defer stop()

	var sess *session
	defer func() {
		if sess != nil {
			r.endSession(sess)
		}
	}()

	for {
		var events <-chan engine.Event
		if sess != nil {
			events = sess.events
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case st := <-states:
			switch {
			case st.Authenticated() && sess == nil:
				sess = r.startSession(ctx)
			case !st.Authenticated() && sess != nil:
				r.logger.Info("authentication lost, stopping playback observation", "state", st)
				r.endSession(sess)
				sess = nil
				r.reset()
			}

		case obs := <-r.observations:
			if sess == nil || obs.session != sess.id {
				continue
			}
			r.apply(obs.update)

		case ev, ok := <-events:
			if !ok {
				r.logger.Debug("push stream ended")
				r.releasePush(sess)
				r.setReadiness(ReadyViaPull, "")
				r.startPolling(sess)
				continue
			}
			r.handleEvent(sess, ev)
		}
	}
}

func (r *Reconciler) startSession(parent context.Context) *session {
	ctx, cancel := context.WithCancel(parent)

	r.mu.Lock()
	r.sessions++
	sess := &session{id: r.sessions, ctx: ctx, cancel: cancel}
	r.mu.Unlock()

	if !r.push.Available() {
		r.logger.Debug("no push source, polling", "session", sess.id)
		r.setReadiness(ReadyViaPull, "")
		r.startPolling(sess)
		return sess
	}

	events, err := r.push.Start(ctx)
	if err != nil {
		r.logger.Warn("push source failed to start, polling", "err", err)
		_ = r.push.Close()
		r.setReadiness(ReadyViaPull, "")
		r.startPolling(sess)
		return sess
	}
	sess.events = events
	r.logger.Debug("waiting for push source", "session", sess.id)
	return sess
}

func (r *Reconciler) endSession(sess *session) {
	sess.cancel()
	if sess.events != nil {
		r.releasePush(sess)
	}
}

func (r *Reconciler) releasePush(sess *session) {
	sess.events = nil
	if err := r.push.Close(); err != nil {
		r.logger.Debug("closing push source", "err", err)
	}
}

func (r *Reconciler) handleEvent(sess *session, ev engine.Event) {
	switch {
	case ev.Kind == engine.EventReady:
		r.logger.Info("push source ready", "device", ev.DeviceID)
		r.setReadiness(ReadyViaPush, ev.DeviceID)
		r.startPolling(sess)
		if !sess.transferred && ev.DeviceID != "" {
			sess.transferred = true
			go r.transfer(sess.ctx, ev.DeviceID)
		}

	case ev.Kind == engine.EventNotReady:
		r.logger.Info("push source not ready, polling")
		r.setReadiness(ReadyViaPull, "")
		r.startPolling(sess)

	case ev.Kind == engine.EventStateChanged:
		r.apply(ev.Update)

	case ev.Kind.IsFailure():
		r.logger.Warn("push source failed, polling", "kind", ev.Kind, "err", ev.Err)
		r.releasePush(sess)
		r.setReadiness(ReadyViaPull, "")
		r.startPolling(sess)
	}
}

func (r *Reconciler) transfer(ctx context.Context, deviceID string) {
	if err := r.api.TransferPlayback(ctx, deviceID, false); err != nil && ctx.Err() == nil {
		r.logger.Warn("transfer to push device failed", "device", deviceID, "err", err)
	}
}

func (r *Reconciler) startPolling(sess *session) {
	if sess.polling {
		return
	}
	sess.polling = true
	go r.pollLoop(sess.ctx, sess.id)
}

// pollLoop polls immediately and then at a fixed rate.
func (r *Reconciler) pollLoop(ctx context.Context, id uint64) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if u, ok := r.fetch(ctx); ok {
			select {
			case r.observations <- observation{session: id, update: u}:
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Reconciler) fetch(ctx context.Context) (core.Update, bool) {
	state, err := r.api.GetPlaybackState(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn("poll failed", "err", err)
		}
		return core.Update{}, false
	}
	return FromPlayback(state, r.now()), true
}

// PollOnce performs a single poll outside of Run and returns the merged
// snapshot. A failed poll leaves the snapshot unchanged.
func (r *Reconciler) PollOnce(ctx context.Context) (core.Snapshot, error) {
	state, err := r.api.GetPlaybackState(ctx)
	if err != nil {
		return r.Snapshot(), err
	}
	return r.apply(FromPlayback(state, r.now())), nil
}

func (r *Reconciler) apply(u core.Update) core.Snapshot {
	if u.At.IsZero() {
		u.At = r.now()
	}

	r.mu.Lock()
	r.snap = r.snap.Apply(u)
	snap := r.snap
	r.publishLocked(snap)
	r.mu.Unlock()
	return snap
}

func (r *Reconciler) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap = core.Snapshot{}
	r.readiness = NotReady
	r.pushDevice = ""
	r.publishLocked(r.snap)
}

func (r *Reconciler) setReadiness(rd Readiness, device string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readiness != rd {
		r.logger.Debug("readiness changed", "from", r.readiness, "to", rd)
	}
	r.readiness = rd
	r.pushDevice = device
}

// Snapshot returns the latest merged snapshot.
func (r *Reconciler) Snapshot() core.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// Readiness returns the current readiness.
func (r *Reconciler) Readiness() Readiness {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.readiness
}

// DeviceID returns the device remote commands should target: the push
// device while ready via push, otherwise the last observed device.
func (r *Reconciler) DeviceID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.readiness == ReadyViaPush && r.pushDevice != "" {
		return r.pushDevice
	}
	return r.snap.DeviceID
}

// Subscribe returns a channel that receives the snapshot whenever its
// content changes. Only the latest snapshot is buffered.
func (r *Reconciler) Subscribe() (<-chan core.Snapshot, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextSub
	r.nextSub++
	last, _ := hashSnapshot(r.snap)
	sub := &subscriber{ch: make(chan core.Snapshot, 1), last: last}
	sub.ch <- r.snap
	r.subs[id] = sub

	return sub.ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}

func (r *Reconciler) publishLocked(snap core.Snapshot) {
	h, ok := hashSnapshot(snap)
	for _, sub := range r.subs {
		if ok && sub.last == h {
			continue
		}
		sub.last = h
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- snap
	}
}

// hashSnapshot hashes the content of s. Snapshots that cannot be hashed
// are always published.
func hashSnapshot(s core.Snapshot) (uint64, bool) {
	h, err := hashstructure.Hash(s, hashstructure.FormatV2, nil)
	return h, err == nil
}

// FromPlayback translates a Web API playback state into an update. A nil
// state is an explicit idle observation.
func FromPlayback(state *client.PlaybackState, at time.Time) core.Update {
	u := core.Update{Source: core.SourcePull, At: at}
	if state == nil {
		u.Idle = true
		return u
	}

	u.Paused = core.Ptr(!state.IsPlaying)
	if state.ProgressMS != nil {
		u.PositionMs = core.Ptr(*state.ProgressMS)
	}
	u.Shuffle = core.Ptr(state.ShuffleState)
	u.Repeat = core.Ptr(core.ParseRepeatMode(state.RepeatState))

	if state.Item != nil {
		u.Track = state.Item.ToTrackRef()
		u.DurationMs = core.Ptr(state.Item.DurationMS)
	}
	if state.Device != nil {
		u.DeviceID = core.Ptr(state.Device.ID)
		if state.Device.VolumePercent != nil {
			u.Volume = core.Ptr(*state.Device.VolumePercent)
		}
	}
	return u
}
