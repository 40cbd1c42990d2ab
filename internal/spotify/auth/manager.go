package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/tessro/cassette/internal/core"
	cerrors "github.com/tessro/cassette/internal/errors"
	"github.com/tessro/cassette/internal/logging"
)

// State is the lifecycle state of the token pair.
type State int

const (
	StateAbsent State = iota
	StateValid
	StateExpired
	StateRefreshing
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateExpired:
		return "expired"
	case StateRefreshing:
		return "refreshing"
	case StateInvalid:
		return "invalid"
	default:
		return "absent"
	}
}

// Authenticated reports whether a usable or renewable pair is held.
func (s State) Authenticated() bool {
	return s == StateValid || s == StateExpired || s == StateRefreshing
}

// DefaultExpiryLeeway is how early an access token is treated as expired.
const DefaultExpiryLeeway = 60 * time.Second

const refreshTimeout = 30 * time.Second

// Refresher performs a refresh-token grant.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (core.TokenPair, error)
}

// Manager owns the in-memory token pair.
//
// Expiry is computed from the wall clock whenever the pair is read. A stale
// token is refreshed on demand, and concurrent callers share one refresh.
type Manager struct {
	tokens    *TokenStore
	refresher Refresher
	leeway    time.Duration
	now       func() time.Time
	logger    *log.Logger

	group singleflight.Group

	mu         sync.Mutex
	pair       core.TokenPair
	has        bool
	invalid    bool
	refreshing bool
	generation uint64
	watchers   map[int]chan State
	nextWatch  int
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLeeway sets how early an access token is treated as expired.
func WithLeeway(d time.Duration) ManagerOption {
	return func(m *Manager) { m.leeway = d }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logging.Component(l, "tokens") }
}

// NewManager creates a Manager in the Absent state. Call Load to pick up a
// persisted pair.
func NewManager(tokens *TokenStore, refresher Refresher, opts ...ManagerOption) *Manager {
	m := &Manager{
		tokens:    tokens,
		refresher: refresher,
		leeway:    DefaultExpiryLeeway,
		now:       time.Now,
		logger:    logging.Discard(),
		watchers:  make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load adopts the persisted pair, if any. An expired pair that cannot be
// refreshed is discarded.
func (m *Manager) Load(ctx context.Context) error {
	pair, ok, err := m.tokens.LoadPair(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tokens: %w", err)
	}
	if !ok {
		return nil
	}
	if pair.ExpiredAt(m.now(), m.leeway) && !pair.CanRefresh() {
		m.logger.Debug("discarding expired token without refresh token")
		return m.tokens.ClearPair(ctx)
	}
	m.Adopt(pair)
	return nil
}

// Adopt installs a freshly acquired pair. The pair is assumed to be persisted
// already.
func (m *Manager) Adopt(pair core.TokenPair) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = pair
	m.has = true
	m.invalid = false
	m.generation++
	m.notifyLocked()
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// Authenticated reports whether commands can be issued.
func (m *Manager) Authenticated() bool {
	return m.State().Authenticated()
}

// Pair returns a copy of the held pair.
func (m *Manager) Pair() (core.TokenPair, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pair, m.has
}

func (m *Manager) stateLocked() State {
	switch {
	case m.refreshing:
		return StateRefreshing
	case m.invalid:
		return StateInvalid
	case !m.has:
		return StateAbsent
	case m.pair.ExpiredAt(m.now(), m.leeway):
		return StateExpired
	default:
		return StateValid
	}
}

// AccessToken returns a valid access token, refreshing it first if needed.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	if !m.has || m.invalid {
		m.mu.Unlock()
		return "", cerrors.ErrNotAuthenticated
	}
	if !m.pair.ExpiredAt(m.now(), m.leeway) {
		token := m.pair.AccessToken
		m.mu.Unlock()
		return token, nil
	}
	m.mu.Unlock()

	ch := m.group.DoChan("refresh", func() (any, error) {
		// Detached so one caller giving up does not fail the others.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return m.refresh(rctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	if !m.has || m.invalid {
		m.mu.Unlock()
		return "", cerrors.ErrNotAuthenticated
	}
	// Another caller may have refreshed while we waited
	if !m.pair.ExpiredAt(m.now(), m.leeway) {
		token := m.pair.AccessToken
		m.mu.Unlock()
		return token, nil
	}
	// Another process sharing the store may have refreshed already
	if stored, ok := m.storedLocked(ctx); ok && m.supersedes(stored) {
		m.logger.Debug("adopting tokens refreshed elsewhere")
		m.pair = stored
		if !stored.ExpiredAt(m.now(), m.leeway) {
			m.notifyLocked()
			m.mu.Unlock()
			return stored.AccessToken, nil
		}
	}
	if !m.pair.CanRefresh() {
		m.logger.Warn("access token expired and no refresh token is held")
		m.invalidateLocked(ctx)
		m.mu.Unlock()
		return "", cerrors.ErrNotAuthenticated
	}

	previous := m.pair.RefreshToken
	generation := m.generation
	m.refreshing = true
	m.notifyLocked()
	m.mu.Unlock()

	m.logger.Debug("refreshing access token")
	pair, err := m.refresher.Refresh(ctx, previous)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshing = false

	if generation != m.generation {
		// Logged out or re-authenticated meanwhile; the result is stale
		m.notifyLocked()
		if !m.has || m.invalid {
			return "", cerrors.ErrNotAuthenticated
		}
		return m.pair.AccessToken, nil
	}

	if err != nil {
		var rErr *cerrors.TokenRefreshError
		if errors.As(err, &rErr) {
			// A rotation by another process makes our refresh token stale
			// without invalidating the session.
			if stored, ok := m.storedLocked(ctx); ok && stored.RefreshToken != previous {
				m.logger.Debug("refresh token rotated elsewhere, adopting stored tokens")
				m.pair = stored
				m.notifyLocked()
				if !stored.ExpiredAt(m.now(), m.leeway) {
					return stored.AccessToken, nil
				}
				return "", err
			}
			m.logger.Warn("refresh rejected, signing out", "status", rErr.Status, "code", rErr.Code)
			m.invalidateLocked(ctx)
			return "", fmt.Errorf("%w: %w", cerrors.ErrNotAuthenticated, err)
		}
		m.logger.Warn("refresh failed", "err", err)
		m.notifyLocked()
		return "", err
	}

	if pair.RefreshToken == "" {
		pair.RefreshToken = previous
	}
	m.pair = pair
	if err := m.tokens.SavePair(ctx, pair); err != nil {
		m.logger.Warn("failed to persist refreshed tokens", "err", err)
	}
	m.notifyLocked()
	m.logger.Debug("access token refreshed", "expires_at", pair.ExpiresAt)
	return pair.AccessToken, nil
}

// storedLocked reads the persisted pair. Read failures are treated as
// nothing stored.
func (m *Manager) storedLocked(ctx context.Context) (core.TokenPair, bool) {
	pair, ok, err := m.tokens.LoadPair(ctx)
	if err != nil {
		m.logger.Debug("token store read failed", "err", err)
		return core.TokenPair{}, false
	}
	return pair, ok
}

// supersedes reports whether a stored pair is newer than the held one.
func (m *Manager) supersedes(stored core.TokenPair) bool {
	return !stored.ExpiredAt(m.now(), m.leeway) || stored.RefreshToken != m.pair.RefreshToken
}

// invalidateLocked discards all token state after an irrecoverable failure.
func (m *Manager) invalidateLocked(ctx context.Context) {
	if err := m.tokens.Clear(ctx); err != nil {
		m.logger.Warn("failed to clear tokens", "err", err)
	}
	m.pair = core.TokenPair{}
	m.has = false
	m.invalid = true
	m.generation++
	m.notifyLocked()
}

// Logout discards the pair and clears storage. It is safe to call in any state.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = core.TokenPair{}
	m.has = false
	m.invalid = false
	m.generation++
	err := m.tokens.Clear(ctx)
	m.notifyLocked()
	return err
}

// WaitForLogin polls the token store until a pair written by the callback
// server becomes visible, then adopts it.
func (m *Manager) WaitForLogin(ctx context.Context, grace time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		pair, ok, err := m.tokens.LoadPair(ctx)
		if err != nil {
			m.logger.Debug("token store read failed", "err", err)
		}
		if ok {
			m.Adopt(pair)
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("tokens not visible after %s: %w", grace, cerrors.ErrNotAuthenticated)
		case <-ticker.C:
		}
	}
}

// Watch returns a channel that receives the state after every transition.
// Only the latest state is buffered. Call cancel to stop watching.
func (m *Manager) Watch() (<-chan State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextWatch
	m.nextWatch++
	ch := make(chan State, 1)
	ch <- m.stateLocked()
	m.watchers[id] = ch

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.watchers, id)
	}
}

func (m *Manager) notifyLocked() {
	s := m.stateLocked()
	for _, ch := range m.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

// TokenSource adapts the Manager to oauth2.TokenSource.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &managerTokenSource{ctx: ctx, m: m}
}

type managerTokenSource struct {
	ctx context.Context
	m   *Manager
}

func (s *managerTokenSource) Token() (*oauth2.Token, error) {
	access, err := s.m.AccessToken(s.ctx)
	if err != nil {
		return nil, err
	}
	pair, _ := s.m.Pair()
	return &oauth2.Token{
		AccessToken: access,
		TokenType:   "Bearer",
		Expiry:      pair.ExpiresAt.Add(-s.m.leeway),
	}, nil
}
