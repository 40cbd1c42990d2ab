package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error types for common failure scenarios.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrMissingSession   = errors.New("no authorization session in progress")
	ErrStateMismatch    = errors.New("authorization state mismatch")
	ErrNoActiveDevice   = errors.New("no active device")
	ErrRateLimited      = errors.New("rate limited")
	ErrNetworkError     = errors.New("network error")
	ErrTimeout          = errors.New("request timeout")
	ErrConfigNotFound   = errors.New("config file not found")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// TokenExchangeError is returned when the token endpoint rejects an
// authorization code.
type TokenExchangeError struct {
	Status      int
	Code        string
	Description string
}

func (e *TokenExchangeError) Error() string {
	return tokenError("token exchange failed", e.Status, e.Code, e.Description)
}

// TokenRefreshError is returned when the token endpoint rejects a refresh token.
type TokenRefreshError struct {
	Status      int
	Code        string
	Description string
}

func (e *TokenRefreshError) Error() string {
	return tokenError("token refresh failed", e.Status, e.Code, e.Description)
}

func tokenError(prefix string, status int, code, desc string) string {
	msg := fmt.Sprintf("%s: %d %s", prefix, status, http.StatusText(status))
	if code != "" {
		msg += ": " + code
	}
	if desc != "" {
		msg += " - " + desc
	}
	return msg
}

// CassetteError wraps an error with a user-friendly suggestion.
type CassetteError struct {
	Err        error
	Suggestion string
}

func (e *CassetteError) Error() string {
	return e.Err.Error()
}

func (e *CassetteError) Unwrap() error {
	return e.Err
}

// WithSuggestion wraps an error with a helpful suggestion.
func WithSuggestion(err error, suggestion string) error {
	return &CassetteError{
		Err:        err,
		Suggestion: suggestion,
	}
}

// GetSuggestion returns a suggestion for the given error.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	var cassetteErr *CassetteError
	if errors.As(err, &cassetteErr) && cassetteErr.Suggestion != "" {
		return cassetteErr.Suggestion
	}

	errStr := strings.ToLower(err.Error())

	// Authorization flow
	if errors.Is(err, ErrMissingSession) || errors.Is(err, ErrStateMismatch) {
		return "Reconnect: run 'cassette auth login' again from the same address"
	}

	var exchangeErr *TokenExchangeError
	var refreshErr *TokenRefreshError
	if errors.As(err, &exchangeErr) || errors.As(err, &refreshErr) {
		return "Spotify rejected the credentials. Run 'cassette auth login' to re-authenticate"
	}

	if errors.Is(err, ErrNotAuthenticated) || strings.Contains(errStr, "invalid access token") ||
		strings.Contains(errStr, "token expired") {
		return "Run 'cassette auth login' to authenticate with Spotify"
	}

	// Device errors
	if errors.Is(err, ErrNoActiveDevice) || strings.Contains(errStr, "no active device") {
		return "Open Spotify on a device and start playing, or run 'cassette transfer <device-id>'"
	}

	if strings.Contains(errStr, "premium required") || strings.Contains(errStr, "restricted device") {
		return "This feature requires Spotify Premium"
	}

	// Rate limiting
	if errors.Is(err, ErrRateLimited) || strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") {
		return "Too many requests. Wait a moment and try again"
	}

	// Network errors
	if errors.Is(err, ErrNetworkError) || errors.Is(err, ErrTimeout) ||
		strings.Contains(errStr, "network") || strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") {
		return "Check your internet connection and try again"
	}

	if errors.Is(err, ErrConfigNotFound) || errors.Is(err, ErrInvalidConfig) {
		return "Set spotify.client_id in ~/.cassetterc or CASSETTE_SPOTIFY_CLIENT_ID"
	}

	if strings.Contains(errStr, "500") || strings.Contains(errStr, "server error") {
		return "Spotify is having issues. Try again in a moment"
	}

	return ""
}

// Format returns a formatted error message with suggestion if available.
func Format(err error) string {
	if err == nil {
		return ""
	}

	suggestion := GetSuggestion(err)
	if suggestion != "" {
		return fmt.Sprintf("Error: %s\n\nSuggestion: %s", err.Error(), suggestion)
	}

	return fmt.Sprintf("Error: %s", err.Error())
}

// IsAuthFailure reports whether err means the user must authenticate again.
func IsAuthFailure(err error) bool {
	var exchangeErr *TokenExchangeError
	var refreshErr *TokenRefreshError
	return errors.Is(err, ErrNotAuthenticated) || errors.Is(err, ErrMissingSession) ||
		errors.As(err, &exchangeErr) || errors.As(err, &refreshErr)
}
