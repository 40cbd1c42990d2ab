package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/tessro/cassette/internal/browser"
	"github.com/tessro/cassette/internal/config"
	"github.com/tessro/cassette/internal/engine"
	cerrors "github.com/tessro/cassette/internal/errors"
	"github.com/tessro/cassette/internal/logging"
	"github.com/tessro/cassette/internal/reconcile"
	"github.com/tessro/cassette/internal/spotify/auth"
	"github.com/tessro/cassette/internal/spotify/client"
	"github.com/tessro/cassette/internal/spotify/library"
	"github.com/tessro/cassette/internal/spotify/player"
	"github.com/tessro/cassette/internal/store"
)

// app holds the components a command works with.
type app struct {
	cfg    *config.Config
	logger *log.Logger

	store      store.Store
	tokens     *auth.TokenStore
	authorizer *auth.Authorizer
	manager    *auth.Manager
	client     *client.Client
	library    *library.Library
	reconciler *reconcile.Reconciler
	player     *player.Player

	closers []io.Closer
}

// appOptions selects optional components.
type appOptions struct {
	// push enables the local playback engine when configured.
	push bool
}

func newLogger(c *config.Config) (*log.Logger, io.Closer, error) {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	if Verbose() {
		level = log.DebugLevel
	}

	if c.Log.File == "" {
		return logging.New(os.Stderr, level), nil, nil
	}
	f, err := logging.OpenFile(c.Log.File)
	if err != nil {
		return nil, nil, err
	}
	return logging.New(f, level), f, nil
}

// newApp builds the component graph from the loaded configuration.
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	if cfg.Spotify.ClientID == "" {
		return nil, fmt.Errorf("%w: spotify.client_id is not set", cerrors.ErrInvalidConfig)
	}

	a := &app{cfg: cfg}

	logger, logFile, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	a.logger = logger
	if logFile != nil {
		a.closers = append(a.closers, logFile)
	}

	dir, err := config.Dir()
	if err != nil {
		return nil, fmt.Errorf("failed to locate config directory: %w", err)
	}
	a.store, err = store.Open(cfg.Store.Backend, cfg.Store.Path, dir)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.store)
	a.tokens = auth.NewTokenStore(a.store)

	a.authorizer = auth.NewAuthorizer(auth.AuthorizerConfig{
		ClientID: cfg.Spotify.ClientID,
		Scopes:   cfg.Spotify.Scopes,
		AuthURL:  cfg.Spotify.AuthURL,
		TokenURL: cfg.Spotify.TokenURL,
		Logger:   logger,
	}, a.tokens, browser.NewNavigator(os.Stderr))

	a.manager = auth.NewManager(a.tokens, a.authorizer,
		auth.WithLeeway(cfg.ExpiryLeeway()),
		auth.WithLogger(logger),
	)
	if err := a.manager.Load(ctx); err != nil {
		return nil, err
	}

	a.client = client.New(a.manager,
		client.WithBaseURL(cfg.Spotify.APIURL),
		client.WithRateLimit(cfg.Spotify.RequestsPerSecond),
		client.WithLogger(logger),
	)
	a.library = library.New(oauth2.NewClient(ctx, a.manager.TokenSource(ctx)), cfg.Spotify.APIURL)

	var push engine.Source = engine.Unavailable{}
	if opts.push {
		push = engine.Detect(engine.Options{Enabled: cfg.Engine.Enabled, URL: cfg.Engine.URL},
			engine.WithLogger(logger))
	}
	a.reconciler = reconcile.New(a.client, a.manager, push,
		reconcile.WithInterval(cfg.PollInterval()),
		reconcile.WithLogger(logger),
	)
	a.player = player.New(a.client, a.manager, a.reconciler, logger)

	return a, nil
}

// requireAuth fails unless a usable or renewable token pair is held.
func (a *app) requireAuth() error {
	if !a.manager.Authenticated() {
		return cerrors.ErrNotAuthenticated
	}
	return nil
}

// refresh polls playback once so commands see the current device and
// modes. Failures leave the snapshot empty.
func (a *app) refresh(ctx context.Context) {
	if _, err := a.reconciler.PollOnce(ctx); err != nil {
		a.logger.Debug("playback poll failed", "err", err)
	}
}

// login runs the authorization code flow through the local callback server.
func (a *app) login(ctx context.Context) error {
	srv, err := auth.NewCallbackServer(a.cfg.Spotify.Listen, a.authorizer, a.logger)
	if err != nil {
		return fmt.Errorf("failed to start callback server: %w", err)
	}
	srv.Start()
	defer func() { _ = srv.Shutdown(context.Background()) }()

	ctx, cancel := context.WithTimeout(ctx, a.cfg.LoginTimeout())
	defer cancel()

	if err := a.authorizer.BeginAuthorization(ctx, srv.Origin()); err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, "Waiting for authentication...")
	result, err := srv.Wait(ctx)
	if err != nil {
		return fmt.Errorf("%w: no callback received: %w", cerrors.ErrTimeout, err)
	}
	if result.Err != nil {
		return result.Err
	}

	// The callback persisted the pair; pick it up from the store.
	return a.manager.WaitForLogin(ctx, a.cfg.LoginGrace())
}

func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
