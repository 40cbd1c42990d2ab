// Package auth implements the Spotify OAuth PKCE flow and the lifecycle of
// the resulting token pair.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/tessro/cassette/internal/core"
	cerrors "github.com/tessro/cassette/internal/errors"
	"github.com/tessro/cassette/internal/logging"
)

const (
	// SpotifyAuthURL is the Spotify authorization endpoint.
	SpotifyAuthURL = "https://accounts.spotify.com/authorize"

	// SpotifyTokenURL is the Spotify token endpoint.
	SpotifyTokenURL = "https://accounts.spotify.com/api/token"

	// CallbackPath is appended to the origin to form the redirect URI.
	CallbackPath = "/callback"
)

// Navigator sends the user agent to a URL.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// AuthorizerConfig holds the OAuth client settings.
type AuthorizerConfig struct {
	ClientID string
	Scopes   []string
	AuthURL  string // defaults to SpotifyAuthURL
	TokenURL string // defaults to SpotifyTokenURL

	HTTPClient *http.Client
	Logger     *log.Logger
	Now        func() time.Time
}

// Authorizer runs the authorization-code flow with PKCE.
type Authorizer struct {
	cfg    AuthorizerConfig
	tokens *TokenStore
	nav    Navigator
	logger *log.Logger
	now    func() time.Time
}

// NewAuthorizer creates an Authorizer that persists sessions and tokens in tokens.
func NewAuthorizer(cfg AuthorizerConfig, tokens *TokenStore, nav Navigator) *Authorizer {
	if cfg.AuthURL == "" {
		cfg.AuthURL = SpotifyAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = SpotifyTokenURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Authorizer{
		cfg:    cfg,
		tokens: tokens,
		nav:    nav,
		logger: logging.Component(cfg.Logger, "auth"),
		now:    now,
	}
}

// RedirectURI returns the callback URI for an origin such as
// "http://127.0.0.1:8888".
func RedirectURI(origin string) string {
	return strings.TrimRight(origin, "/") + CallbackPath
}

func (a *Authorizer) oauthConfig(origin string) *oauth2.Config {
	c := &oauth2.Config{
		ClientID: a.cfg.ClientID,
		Scopes:   a.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   a.cfg.AuthURL,
			TokenURL:  a.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	if origin != "" {
		c.RedirectURL = RedirectURI(origin)
	}
	return c
}

func (a *Authorizer) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.cfg.HTTPClient)
}

// AuthCodeURL builds the authorize URL for a session.
func (a *Authorizer) AuthCodeURL(sess Session) string {
	return a.oauthConfig(sess.Origin).AuthCodeURL(sess.State, oauth2.S256ChallengeOption(sess.CodeVerifier))
}

// BeginAuthorization starts a new session for origin and navigates to the
// authorize endpoint. Any previous session is replaced.
func (a *Authorizer) BeginAuthorization(ctx context.Context, origin string) error {
	verifier, err := NewVerifier()
	if err != nil {
		return fmt.Errorf("failed to generate code verifier: %w", err)
	}

	sess := Session{
		CodeVerifier: verifier,
		Origin:       origin,
		State:        uuid.NewString(),
	}
	if err := a.tokens.SaveSession(ctx, sess); err != nil {
		return fmt.Errorf("failed to save authorization session: %w", err)
	}

	a.logger.Debug("starting authorization", "redirect_uri", RedirectURI(origin))
	return a.nav.Navigate(ctx, a.AuthCodeURL(sess))
}

// CheckState verifies the state parameter returned to the callback.
func (a *Authorizer) CheckState(ctx context.Context, state string) error {
	sess, ok, err := a.tokens.LoadSession(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return cerrors.ErrMissingSession
	}
	if sess.State != state {
		return cerrors.ErrStateMismatch
	}
	return nil
}

// CompleteAuthorization exchanges an authorization code for a token pair.
//
// The session must have been started on the same origin. On success the
// session is consumed and the pair is persisted; on an exchange failure the
// session is destroyed.
func (a *Authorizer) CompleteAuthorization(ctx context.Context, origin, code string) (core.TokenPair, error) {
	sess, ok, err := a.tokens.LoadSession(ctx)
	if err != nil {
		return core.TokenPair{}, err
	}
	if !ok || sess.Origin != origin {
		a.logger.Warn("no authorization session for origin", "origin", origin)
		return core.TokenPair{}, cerrors.ErrMissingSession
	}

	issued := a.now()
	tok, err := a.oauthConfig(origin).Exchange(a.clientContext(ctx), code, oauth2.VerifierOption(sess.CodeVerifier))
	if err != nil {
		if clearErr := a.tokens.ClearSession(ctx); clearErr != nil {
			a.logger.Warn("failed to clear authorization session", "err", clearErr)
		}
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) {
			return core.TokenPair{}, &cerrors.TokenExchangeError{
				Status:      statusOf(rErr),
				Code:        rErr.ErrorCode,
				Description: rErr.ErrorDescription,
			}
		}
		return core.TokenPair{}, fmt.Errorf("token exchange failed: %w", err)
	}

	pair := pairFromToken(tok, issued, "")
	if err := a.tokens.SavePair(ctx, pair); err != nil {
		return core.TokenPair{}, fmt.Errorf("failed to save tokens: %w", err)
	}
	if err := a.tokens.ClearSession(ctx); err != nil {
		a.logger.Warn("failed to clear authorization session", "err", err)
	}

	a.logger.Info("authorization complete", "expires_at", pair.ExpiresAt)
	return pair, nil
}

// Refresh performs a refresh-token grant. If the response carries no new
// refresh token the given one is retained.
func (a *Authorizer) Refresh(ctx context.Context, refreshToken string) (core.TokenPair, error) {
	issued := a.now()
	src := a.oauthConfig("").TokenSource(a.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) {
			return core.TokenPair{}, &cerrors.TokenRefreshError{
				Status:      statusOf(rErr),
				Code:        rErr.ErrorCode,
				Description: rErr.ErrorDescription,
			}
		}
		return core.TokenPair{}, fmt.Errorf("token refresh failed: %w", err)
	}
	return pairFromToken(tok, issued, refreshToken), nil
}

func statusOf(rErr *oauth2.RetrieveError) int {
	if rErr.Response == nil {
		return 0
	}
	return rErr.Response.StatusCode
}

// pairFromToken converts an oauth2 token. The expiry is measured from the
// time the request was issued.
func pairFromToken(tok *oauth2.Token, issued time.Time, previousRefresh string) core.TokenPair {
	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = previousRefresh
	}
	if tok.ExpiresIn > 0 {
		return core.NewTokenPair(tok.AccessToken, refresh, issued, time.Duration(tok.ExpiresIn)*time.Second)
	}
	return core.TokenPair{AccessToken: tok.AccessToken, RefreshToken: refresh, ExpiresAt: tok.Expiry}
}
