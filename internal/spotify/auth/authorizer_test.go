package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/tessro/cassette/internal/core"
	cerrors "github.com/tessro/cassette/internal/errors"
	"github.com/tessro/cassette/internal/store"
)

const testOrigin = "http://127.0.0.1:8888"

// recordingNavigator captures the URLs it is asked to open.
type recordingNavigator struct {
	mu   sync.Mutex
	urls []string
}

func (n *recordingNavigator) Navigate(_ context.Context, u string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.urls = append(n.urls, u)
	return nil
}

func (n *recordingNavigator) last(t *testing.T) *url.URL {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.urls) == 0 {
		t.Fatal("Navigate() was not called")
	}
	u, err := url.Parse(n.urls[len(n.urls)-1])
	if err != nil {
		t.Fatalf("invalid authorize URL: %v", err)
	}
	return u
}

// tokenServer fakes the token endpoint. handler receives the parsed form.
func tokenServer(t *testing.T, handler func(w http.ResponseWriter, form url.Values)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("token request method = %s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		handler(w, r.PostForm)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeToken(w http.ResponseWriter, access, refresh string, expiresIn int) {
	w.Header().Set("Content-Type", "application/json")
	body := fmt.Sprintf(`{"access_token":%q,"token_type":"Bearer","expires_in":%d`, access, expiresIn)
	if refresh != "" {
		body += fmt.Sprintf(`,"refresh_token":%q`, refresh)
	}
	fmt.Fprint(w, body+"}")
}

func newTestAuthorizer(t *testing.T, tokenURL string) (*Authorizer, *TokenStore, *recordingNavigator) {
	t.Helper()
	tokens := NewTokenStore(store.NewMemory())
	nav := &recordingNavigator{}
	a := NewAuthorizer(AuthorizerConfig{
		ClientID: "client-123",
		Scopes:   []string{"user-read-private", "user-read-email"},
		AuthURL:  "https://accounts.example.com/authorize",
		TokenURL: tokenURL,
	}, tokens, nav)
	return a, tokens, nav
}

func TestBeginAuthorization(t *testing.T) {
	a, tokens, nav := newTestAuthorizer(t, "http://unused")
	ctx := context.Background()

	if err := a.BeginAuthorization(ctx, testOrigin); err != nil {
		t.Fatalf("BeginAuthorization() error = %v", err)
	}

	sess, ok, err := tokens.LoadSession(ctx)
	if err != nil || !ok {
		t.Fatalf("LoadSession() = ok %v, err %v", ok, err)
	}
	if len(sess.CodeVerifier) != CodeVerifierLength {
		t.Errorf("verifier length = %d, want %d", len(sess.CodeVerifier), CodeVerifierLength)
	}
	if sess.Origin != testOrigin {
		t.Errorf("session origin = %q, want %q", sess.Origin, testOrigin)
	}

	u := nav.last(t)
	if u.Host != "accounts.example.com" || u.Path != "/authorize" {
		t.Errorf("authorize URL = %s", u)
	}

	q := u.Query()
	tests := []struct {
		param string
		want  string
	}{
		{"client_id", "client-123"},
		{"response_type", "code"},
		{"redirect_uri", testOrigin + "/callback"},
		{"code_challenge_method", "S256"},
		{"code_challenge", Challenge(sess.CodeVerifier)},
		{"state", sess.State},
		{"scope", "user-read-private user-read-email"},
	}
	for _, tt := range tests {
		if got := q.Get(tt.param); got != tt.want {
			t.Errorf("param %s = %q, want %q", tt.param, got, tt.want)
		}
	}
}

func TestCompleteAuthorization(t *testing.T) {
	var verifier string
	srv := tokenServer(t, func(w http.ResponseWriter, form url.Values) {
		checks := map[string]string{
			"grant_type":    "authorization_code",
			"code":          "the-code",
			"redirect_uri":  testOrigin + "/callback",
			"client_id":     "client-123",
			"code_verifier": verifier,
		}
		for k, want := range checks {
			if got := form.Get(k); got != want {
				t.Errorf("form %s = %q, want %q", k, got, want)
			}
		}
		writeToken(w, "A1", "R1", 3600)
	})

	a, tokens, _ := newTestAuthorizer(t, srv.URL)
	ctx := context.Background()

	if err := a.BeginAuthorization(ctx, testOrigin); err != nil {
		t.Fatal(err)
	}
	sess, _, _ := tokens.LoadSession(ctx)
	verifier = sess.CodeVerifier

	before := time.Now()
	pair, err := a.CompleteAuthorization(ctx, testOrigin, "the-code")
	if err != nil {
		t.Fatalf("CompleteAuthorization() error = %v", err)
	}

	if pair.AccessToken != "A1" || pair.RefreshToken != "R1" {
		t.Errorf("pair = %+v", pair)
	}
	if pair.ExpiresAt.Before(before.Add(3599*time.Second)) || pair.ExpiresAt.After(time.Now().Add(3601*time.Second)) {
		t.Errorf("ExpiresAt = %v, want about one hour from now", pair.ExpiresAt)
	}

	stored, ok, _ := tokens.LoadPair(ctx)
	if !ok || stored.AccessToken != "A1" || stored.RefreshToken != "R1" {
		t.Errorf("stored pair = %+v, ok %v", stored, ok)
	}
	if _, ok, _ := tokens.LoadSession(ctx); ok {
		t.Error("session should be consumed")
	}
}

func TestCompleteAuthorizationMissingSession(t *testing.T) {
	requests := 0
	srv := tokenServer(t, func(w http.ResponseWriter, _ url.Values) {
		requests++
		writeToken(w, "A1", "R1", 3600)
	})
	a, tokens, _ := newTestAuthorizer(t, srv.URL)
	ctx := context.Background()

	_, err := a.CompleteAuthorization(ctx, testOrigin, "code")
	if !errors.Is(err, cerrors.ErrMissingSession) {
		t.Fatalf("CompleteAuthorization() error = %v, want ErrMissingSession", err)
	}

	// A session begun on another origin is left intact
	if err := a.BeginAuthorization(ctx, "http://localhost:8888"); err != nil {
		t.Fatal(err)
	}
	_, err = a.CompleteAuthorization(ctx, testOrigin, "code")
	if !errors.Is(err, cerrors.ErrMissingSession) {
		t.Fatalf("CompleteAuthorization() from other origin error = %v, want ErrMissingSession", err)
	}
	if _, ok, _ := tokens.LoadSession(ctx); !ok {
		t.Error("session for the other origin was destroyed")
	}
	if requests != 0 {
		t.Errorf("token endpoint called %d times, want 0", requests)
	}
}

func TestCompleteAuthorizationRejected(t *testing.T) {
	srv := tokenServer(t, func(w http.ResponseWriter, _ url.Values) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant","error_description":"Invalid authorization code"}`)
	})
	a, tokens, _ := newTestAuthorizer(t, srv.URL)
	ctx := context.Background()

	if err := a.BeginAuthorization(ctx, testOrigin); err != nil {
		t.Fatal(err)
	}

	_, err := a.CompleteAuthorization(ctx, testOrigin, "bad")
	var exErr *cerrors.TokenExchangeError
	if !errors.As(err, &exErr) {
		t.Fatalf("CompleteAuthorization() error = %v, want TokenExchangeError", err)
	}
	if exErr.Status != http.StatusBadRequest || exErr.Code != "invalid_grant" {
		t.Errorf("TokenExchangeError = %+v", exErr)
	}
	if _, ok, _ := tokens.LoadSession(ctx); ok {
		t.Error("session should be destroyed after a failed exchange")
	}
	if _, ok, _ := tokens.LoadPair(ctx); ok {
		t.Error("no tokens should be stored after a failed exchange")
	}
}

func TestCheckState(t *testing.T) {
	a, tokens, _ := newTestAuthorizer(t, "http://unused")
	ctx := context.Background()

	if err := a.CheckState(ctx, "x"); !errors.Is(err, cerrors.ErrMissingSession) {
		t.Errorf("CheckState() without session = %v, want ErrMissingSession", err)
	}

	if err := a.BeginAuthorization(ctx, testOrigin); err != nil {
		t.Fatal(err)
	}
	sess, _, _ := tokens.LoadSession(ctx)

	if err := a.CheckState(ctx, sess.State); err != nil {
		t.Errorf("CheckState(valid) = %v", err)
	}
	if err := a.CheckState(ctx, "forged"); !errors.Is(err, cerrors.ErrStateMismatch) {
		t.Errorf("CheckState(forged) = %v, want ErrStateMismatch", err)
	}
}

func TestRefresh(t *testing.T) {
	tests := []struct {
		name        string
		respRefresh string
		wantRefresh string
	}{
		{"rotated", "R2", "R2"},
		{"retained", "", "R1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := tokenServer(t, func(w http.ResponseWriter, form url.Values) {
				if form.Get("grant_type") != "refresh_token" || form.Get("refresh_token") != "R1" {
					t.Errorf("refresh form = %v", form)
				}
				if form.Get("client_id") != "client-123" {
					t.Errorf("client_id = %q", form.Get("client_id"))
				}
				writeToken(w, "A2", tt.respRefresh, 3600)
			})
			a, _, _ := newTestAuthorizer(t, srv.URL)

			pair, err := a.Refresh(context.Background(), "R1")
			if err != nil {
				t.Fatalf("Refresh() error = %v", err)
			}
			want := core.TokenPair{AccessToken: "A2", RefreshToken: tt.wantRefresh}
			if pair.AccessToken != want.AccessToken || pair.RefreshToken != want.RefreshToken {
				t.Errorf("Refresh() = %+v, want %+v", pair, want)
			}
		})
	}
}

func TestRefreshRejected(t *testing.T) {
	srv := tokenServer(t, func(w http.ResponseWriter, _ url.Values) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant","error_description":"Refresh token revoked"}`)
	})
	a, _, _ := newTestAuthorizer(t, srv.URL)

	_, err := a.Refresh(context.Background(), "R1")
	var rErr *cerrors.TokenRefreshError
	if !errors.As(err, &rErr) || rErr.Status != http.StatusBadRequest {
		t.Fatalf("Refresh() error = %v, want TokenRefreshError{400}", err)
	}
}

func TestRedirectURI(t *testing.T) {
	tests := []struct {
		origin string
		want   string
	}{
		{"http://127.0.0.1:8888", "http://127.0.0.1:8888/callback"},
		{"http://localhost:9000/", "http://localhost:9000/callback"},
	}
	for _, tt := range tests {
		if got := RedirectURI(tt.origin); got != tt.want {
			t.Errorf("RedirectURI(%q) = %q, want %q", tt.origin, got, tt.want)
		}
	}
}
