package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/tessro/cassette/internal/core"
	"github.com/tessro/cassette/internal/store"
)

// Keys under which token and session state is persisted.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyExpiresAt    = "expiresAt"
	KeyCodeVerifier = "codeVerifier"
	KeyCodeOrigin   = "codeOrigin"
	KeyAuthState    = "authState"
)

var (
	pairKeys    = []string{KeyAccessToken, KeyRefreshToken, KeyExpiresAt}
	sessionKeys = []string{KeyCodeVerifier, KeyCodeOrigin, KeyAuthState}
)

// Session is an authorization attempt awaiting its callback.
type Session struct {
	CodeVerifier string
	Origin       string
	State        string
}

// TokenStore persists the token pair and the PKCE session.
type TokenStore struct {
	kv store.Store
}

// NewTokenStore wraps a key-value store.
func NewTokenStore(kv store.Store) *TokenStore {
	return &TokenStore{kv: kv}
}

// LoadPair returns the persisted token pair. ok is false if no access token
// is stored.
func (s *TokenStore) LoadPair(ctx context.Context) (core.TokenPair, bool, error) {
	access, ok, err := s.kv.Get(ctx, KeyAccessToken)
	if err != nil || !ok || access == "" {
		return core.TokenPair{}, false, err
	}

	refresh, _, err := s.kv.Get(ctx, KeyRefreshToken)
	if err != nil {
		return core.TokenPair{}, false, err
	}

	pair := core.TokenPair{AccessToken: access, RefreshToken: refresh}

	raw, ok, err := s.kv.Get(ctx, KeyExpiresAt)
	if err != nil {
		return core.TokenPair{}, false, err
	}
	if ok {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return core.TokenPair{}, false, fmt.Errorf("invalid %s %q: %w", KeyExpiresAt, raw, err)
		}
		pair.ExpiresAt = time.UnixMilli(ms)
	}

	return pair, true, nil
}

// SavePair persists a token pair in a single write. A pair without a
// refresh token stores an empty one.
func (s *TokenStore) SavePair(ctx context.Context, pair core.TokenPair) error {
	return s.kv.SetMany(ctx, map[string]string{
		KeyAccessToken:  pair.AccessToken,
		KeyRefreshToken: pair.RefreshToken,
		KeyExpiresAt:    strconv.FormatInt(pair.ExpiresAt.UnixMilli(), 10),
	})
}

// ClearPair removes the persisted token pair.
func (s *TokenStore) ClearPair(ctx context.Context) error {
	return s.kv.Delete(ctx, pairKeys...)
}

// LoadSession returns the pending authorization session, if any.
func (s *TokenStore) LoadSession(ctx context.Context) (Session, bool, error) {
	verifier, ok, err := s.kv.Get(ctx, KeyCodeVerifier)
	if err != nil || !ok {
		return Session{}, false, err
	}
	origin, _, err := s.kv.Get(ctx, KeyCodeOrigin)
	if err != nil {
		return Session{}, false, err
	}
	state, _, err := s.kv.Get(ctx, KeyAuthState)
	if err != nil {
		return Session{}, false, err
	}
	return Session{CodeVerifier: verifier, Origin: origin, State: state}, true, nil
}

// SaveSession persists an authorization session in a single write,
// replacing any previous one.
func (s *TokenStore) SaveSession(ctx context.Context, sess Session) error {
	return s.kv.SetMany(ctx, map[string]string{
		KeyCodeVerifier: sess.CodeVerifier,
		KeyCodeOrigin:   sess.Origin,
		KeyAuthState:    sess.State,
	})
}

// ClearSession removes the authorization session.
func (s *TokenStore) ClearSession(ctx context.Context) error {
	return s.kv.Delete(ctx, sessionKeys...)
}

// Clear removes all token and session state.
func (s *TokenStore) Clear(ctx context.Context) error {
	return s.kv.Delete(ctx, append(append([]string{}, pairKeys...), sessionKeys...)...)
}
