package auth

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tessro/cassette/internal/core"
	"github.com/tessro/cassette/internal/store"
)

func TestTokenStorePair(t *testing.T) {
	ctx := context.Background()
	kv := store.NewFile(filepath.Join(t.TempDir(), "session.json"))
	ts := NewTokenStore(kv)

	if _, ok, err := ts.LoadPair(ctx); err != nil || ok {
		t.Fatalf("LoadPair() on empty store = ok %v, err %v", ok, err)
	}

	expires := time.UnixMilli(time.Now().Add(time.Hour).UnixMilli())
	pair := core.TokenPair{AccessToken: "access_123", RefreshToken: "refresh_456", ExpiresAt: expires}
	if err := ts.SavePair(ctx, pair); err != nil {
		t.Fatalf("SavePair() error = %v", err)
	}

	raw, _, _ := kv.Get(ctx, KeyExpiresAt)
	if raw == "" || raw[0] < '0' || raw[0] > '9' {
		t.Errorf("expiresAt = %q, want epoch milliseconds", raw)
	}

	loaded, ok, err := ts.LoadPair(ctx)
	if err != nil || !ok {
		t.Fatalf("LoadPair() = ok %v, err %v", ok, err)
	}
	if loaded.AccessToken != pair.AccessToken || loaded.RefreshToken != pair.RefreshToken {
		t.Errorf("LoadPair() = %+v, want %+v", loaded, pair)
	}
	if !loaded.ExpiresAt.Equal(expires) {
		t.Errorf("ExpiresAt = %v, want %v", loaded.ExpiresAt, expires)
	}

	// A pair without a refresh token replaces the stale one
	if err := ts.SavePair(ctx, core.TokenPair{AccessToken: "a2", ExpiresAt: expires}); err != nil {
		t.Fatalf("SavePair() error = %v", err)
	}
	if loaded, _, _ := ts.LoadPair(ctx); loaded.RefreshToken != "" || loaded.CanRefresh() {
		t.Errorf("RefreshToken = %q, want empty", loaded.RefreshToken)
	}

	if err := ts.ClearPair(ctx); err != nil {
		t.Fatalf("ClearPair() error = %v", err)
	}
	if _, ok, _ := ts.LoadPair(ctx); ok {
		t.Error("LoadPair() after ClearPair() ok = true")
	}
}

func TestTokenStoreSession(t *testing.T) {
	ctx := context.Background()
	ts := NewTokenStore(store.NewMemory())

	sess := Session{CodeVerifier: "v", Origin: "http://127.0.0.1:8888", State: "s"}
	if err := ts.SaveSession(ctx, sess); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}
	if err := ts.SavePair(ctx, core.TokenPair{AccessToken: "a"}); err != nil {
		t.Fatal(err)
	}

	got, ok, err := ts.LoadSession(ctx)
	if err != nil || !ok || got != sess {
		t.Errorf("LoadSession() = %+v, %v, %v; want %+v", got, ok, err, sess)
	}

	if err := ts.ClearSession(ctx); err != nil {
		t.Fatalf("ClearSession() error = %v", err)
	}
	if _, ok, _ := ts.LoadSession(ctx); ok {
		t.Error("LoadSession() after ClearSession() ok = true")
	}
	if _, ok, _ := ts.LoadPair(ctx); !ok {
		t.Error("ClearSession() must not remove the token pair")
	}

	if err := ts.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := ts.LoadPair(ctx); ok {
		t.Error("LoadPair() after Clear() ok = true")
	}
}

// countingStore counts write calls made to the wrapped store.
type countingStore struct {
	store.Store
	writes atomic.Int32
}

func (c *countingStore) Set(ctx context.Context, key, value string) error {
	c.writes.Add(1)
	return c.Store.Set(ctx, key, value)
}

func (c *countingStore) SetMany(ctx context.Context, values map[string]string) error {
	c.writes.Add(1)
	return c.Store.SetMany(ctx, values)
}

func (c *countingStore) Delete(ctx context.Context, keys ...string) error {
	c.writes.Add(1)
	return c.Store.Delete(ctx, keys...)
}

func TestTokenStoreWritesAtomically(t *testing.T) {
	ctx := context.Background()
	kv := &countingStore{Store: store.NewMemory()}
	ts := NewTokenStore(kv)

	if err := ts.SavePair(ctx, core.TokenPair{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if n := kv.writes.Load(); n != 1 {
		t.Errorf("SavePair() made %d writes, want 1", n)
	}

	kv.writes.Store(0)
	if err := ts.SaveSession(ctx, Session{CodeVerifier: "v", Origin: "o", State: "s"}); err != nil {
		t.Fatal(err)
	}
	if n := kv.writes.Load(); n != 1 {
		t.Errorf("SaveSession() made %d writes, want 1", n)
	}
}
