package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestGetSuggestion(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"missing session", fmt.Errorf("complete: %w", ErrMissingSession), "Reconnect"},
		{"state mismatch", ErrStateMismatch, "Reconnect"},
		{"exchange rejected", &TokenExchangeError{Status: 400, Code: "invalid_grant"}, "rejected"},
		{"refresh rejected", fmt.Errorf("wrap: %w", &TokenRefreshError{Status: 400}), "rejected"},
		{"not authenticated", ErrNotAuthenticated, "auth login"},
		{"no device", ErrNoActiveDevice, "transfer"},
		{"rate limited", errors.New("status 429"), "Too many requests"},
		{"custom", WithSuggestion(errors.New("boom"), "do the thing"), "do the thing"},
		{"unknown", errors.New("something odd"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetSuggestion(tt.err)
			if tt.want == "" && got != "" {
				t.Errorf("GetSuggestion() = %q, want empty", got)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("GetSuggestion() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestTokenErrorMessages(t *testing.T) {
	err := &TokenExchangeError{Status: 400, Code: "invalid_grant", Description: "Invalid authorization code"}
	want := "token exchange failed: 400 Bad Request: invalid_grant - Invalid authorization code"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	refresh := &TokenRefreshError{Status: 401}
	if got := refresh.Error(); got != "token refresh failed: 401 Unauthorized" {
		t.Errorf("Error() = %q", got)
	}
}

func TestIsAuthFailure(t *testing.T) {
	if !IsAuthFailure(fmt.Errorf("x: %w", ErrNotAuthenticated)) {
		t.Error("IsAuthFailure(ErrNotAuthenticated) = false")
	}
	if !IsAuthFailure(&TokenRefreshError{Status: 400}) {
		t.Error("IsAuthFailure(TokenRefreshError) = false")
	}
	if IsAuthFailure(ErrNoActiveDevice) {
		t.Error("IsAuthFailure(ErrNoActiveDevice) = true")
	}
}

func TestFormat(t *testing.T) {
	got := Format(ErrMissingSession)
	if !strings.HasPrefix(got, "Error: no authorization session in progress") {
		t.Errorf("Format() = %q", got)
	}
	if !strings.Contains(got, "Suggestion: Reconnect") {
		t.Errorf("Format() = %q, missing suggestion", got)
	}
	if Format(nil) != "" {
		t.Error("Format(nil) should be empty")
	}
}
