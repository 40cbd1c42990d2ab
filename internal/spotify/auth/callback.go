package auth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tessro/cassette/internal/core"
	"github.com/tessro/cassette/internal/logging"
)

// RedirectDelay is how long the failure page waits before returning the
// browser to the entry page.
const RedirectDelay = 3 * time.Second

// CallbackResult is the outcome of one callback request.
type CallbackResult struct {
	Pair core.TokenPair
	Err  error
}

// CallbackServer receives the authorization redirect on the loopback
// interface and completes the flow, writing tokens to the store.
type CallbackServer struct {
	auth     *Authorizer
	logger   *log.Logger
	router   chi.Router
	server   *http.Server
	listener net.Listener
	result   chan CallbackResult
}

// NewCallbackServer listens on addr (for example "127.0.0.1:8888"; port 0
// picks a free port).
func NewCallbackServer(addr string, auth *Authorizer, logger *log.Logger) (*CallbackServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	cs := &CallbackServer{
		auth:     auth,
		logger:   logging.Component(logger, "callback"),
		router:   chi.NewRouter(),
		listener: listener,
		result:   make(chan CallbackResult, 1),
	}

	cs.router.Use(middleware.RequestID)
	cs.router.Use(middleware.Recoverer)
	cs.router.Use(cs.logRequests)

	cs.router.Get("/", cs.handleEntry)
	cs.router.Get(CallbackPath, cs.handleCallback)

	cs.server = &http.Server{
		Handler:      cs.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return cs, nil
}

// Handler returns the router, for serving under httptest.
func (cs *CallbackServer) Handler() http.Handler {
	return cs.router
}

// Start begins serving HTTP requests in the background.
func (cs *CallbackServer) Start() {
	go func() {
		if err := cs.server.Serve(cs.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cs.logger.Error("callback server stopped", "err", err)
		}
	}()
}

// Wait blocks until a callback completes or ctx is done.
func (cs *CallbackServer) Wait(ctx context.Context) (CallbackResult, error) {
	select {
	case result := <-cs.result:
		return result, nil
	case <-ctx.Done():
		return CallbackResult{}, ctx.Err()
	}
}

// Shutdown gracefully shuts down the server.
func (cs *CallbackServer) Shutdown(ctx context.Context) error {
	return cs.server.Shutdown(ctx)
}

// Port returns the port the server is listening on.
func (cs *CallbackServer) Port() int {
	return cs.listener.Addr().(*net.TCPAddr).Port
}

// Origin returns the origin the server is reachable at.
func (cs *CallbackServer) Origin() string {
	return "http://" + cs.listener.Addr().String()
}

func (cs *CallbackServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		cs.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (cs *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	origin := "http://" + r.Host

	if e := query.Get("error"); e != "" {
		cs.fail(w, r, fmt.Errorf("authorization denied: %s", e))
		return
	}

	if err := cs.auth.CheckState(r.Context(), query.Get("state")); err != nil {
		cs.fail(w, r, err)
		return
	}

	code := query.Get("code")
	if code == "" {
		cs.fail(w, r, errors.New("callback is missing the authorization code"))
		return
	}

	pair, err := cs.auth.CompleteAuthorization(r.Context(), origin, code)
	if err != nil {
		cs.fail(w, r, err)
		return
	}

	cs.deliver(CallbackResult{Pair: pair})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Authentication Successful</title></head>
<body>
<h1>Authentication Successful</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>`)
}

// fail reports err and sends the browser back to the entry page with the
// message after RedirectDelay.
func (cs *CallbackServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	cs.logger.Warn("authorization failed", "err", err, "request_id", middleware.GetReqID(r.Context()))
	cs.deliver(CallbackResult{Err: err})

	target := "/?status=" + url.QueryEscape(err.Error())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
<title>Authentication Failed</title>
<meta http-equiv="refresh" content="%d;url=%s">
</head>
<body>
<h1>Authentication Failed</h1>
<p>Error: %s</p>
<p>Returning in %d seconds.</p>
</body>
</html>`, int(RedirectDelay/time.Second), html.EscapeString(target), html.EscapeString(err.Error()), int(RedirectDelay/time.Second))
}

func (cs *CallbackServer) handleEntry(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = "Waiting for authorization."
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>cassette</title></head>
<body>
<h1>cassette</h1>
<p id="status">%s</p>
</body>
</html>`, html.EscapeString(status))
}

// deliver sends a result without blocking in case of duplicate callbacks.
func (cs *CallbackServer) deliver(result CallbackResult) {
	select {
	case cs.result <- result:
	default:
	}
}
