// Package client is a small Spotify Web API client covering the player
// endpoints cassette drives.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	cerrors "github.com/tessro/cassette/internal/errors"
	"github.com/tessro/cassette/internal/logging"
)

const (
	// BaseURL is the Spotify Web API base URL.
	BaseURL = "https://api.spotify.com/v1"

	// Retry configuration for transient errors
	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
	maxRetryAfter = 10 * time.Second
)

// TokenProvider supplies a valid access token for each request.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// Client is a Spotify API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenProvider
	limiter    *rate.Limiter
	logger     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = logging.Component(l, "spotify") }
}

// WithRateLimit caps outgoing requests per second. Zero disables limiting.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
	}
}

// New creates a new Spotify client.
func New(tokens TokenProvider, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    BaseURL,
		tokens:     tokens,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs a GET request to the Spotify API.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	_, err := c.request(ctx, http.MethodGet, path, nil, result)
	return err
}

// Post performs a POST request to the Spotify API.
func (c *Client) Post(ctx context.Context, path string, body any, result any) error {
	_, err := c.request(ctx, http.MethodPost, path, body, result)
	return err
}

// Put performs a PUT request to the Spotify API.
func (c *Client) Put(ctx context.Context, path string, body any, result any) error {
	_, err := c.request(ctx, http.MethodPut, path, body, result)
	return err
}

// request performs an authenticated call and returns the final status code.
func (c *Client) request(ctx context.Context, method, path string, body any, result any) (int, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return 0, err
	}

	var jsonBody []byte
	if body != nil {
		jsonBody, err = json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	fullURL := c.baseURL + path
	c.logger.Debug("request", "method", method, "url", fullURL, "body", string(jsonBody))

	var lastErr error
	var wait time.Duration
	for attempt := 0; attempt <= maxRetries; attempt++ {
		// Wait before retry (skip on first attempt)
		if attempt > 0 {
			if wait == 0 {
				wait = baseRetryWait * time.Duration(1<<(attempt-1)) // exponential backoff
			}
			c.logger.Debug("retrying", "attempt", attempt, "max", maxRetries, "wait", wait, "err", lastErr)
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(wait):
			}
			wait = 0
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return 0, err
			}
		}

		var bodyReader io.Reader
		if jsonBody != nil {
			bodyReader = bytes.NewReader(jsonBody)
		}

		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return 0, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			lastErr = fmt.Errorf("%w: %w", cerrors.ErrNetworkError, err)
			continue // Retry on network error
		}

		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		c.logger.Debug("response", "status", resp.StatusCode, "url", fullURL)

		switch {
		case resp.StatusCode == http.StatusNoContent:
			return resp.StatusCode, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("%w: %w", cerrors.ErrRateLimited, parseAPIError(resp.StatusCode, respBody))
			wait = retryAfter(resp.Header.Get("Retry-After"))
			continue

		case resp.StatusCode >= 500:
			// Retry on 5xx server errors
			lastErr = parseAPIError(resp.StatusCode, respBody)
			c.logger.Debug("server error, will retry", "err", lastErr)
			continue

		case resp.StatusCode >= 400:
			// Don't retry 4xx errors
			c.logger.Debug("request rejected", "status", resp.StatusCode, "body", string(respBody))
			return resp.StatusCode, parseAPIError(resp.StatusCode, respBody)
		}

		if result != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, result); err != nil {
				return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
			}
		}

		return resp.StatusCode, nil
	}

	return 0, fmt.Errorf("request failed after %d retries: %w", maxRetries, lastErr)
}

func retryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(header)
	if err != nil || secs <= 0 {
		return 0
	}
	return min(time.Duration(secs)*time.Second, maxRetryAfter)
}

func parseAPIError(status int, body []byte) error {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.ErrorInfo.Message != "" {
		if apiErr.ErrorInfo.Status == 0 {
			apiErr.ErrorInfo.Status = status
		}
		return &apiErr
	}
	apiErr.ErrorInfo.Status = status
	apiErr.ErrorInfo.Message = http.StatusText(status)
	return &apiErr
}

// APIError represents a Spotify API error response.
type APIError struct {
	ErrorInfo struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
		Reason  string `json:"reason,omitempty"`
	} `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Spotify API error %d: %s", e.ErrorInfo.Status, e.ErrorInfo.Message)
}

// Is lets errors.Is match the no-active-device sentinel.
func (e *APIError) Is(target error) bool {
	return target == cerrors.ErrNoActiveDevice && e.IsNoActiveDevice()
}

// IsNoActiveDevice returns true if the error indicates no active device.
func (e *APIError) IsNoActiveDevice() bool {
	return e.ErrorInfo.Status == http.StatusNotFound || e.ErrorInfo.Reason == "NO_ACTIVE_DEVICE"
}

// IsNoActiveDeviceError checks if an error is a "no active device" error.
func IsNoActiveDeviceError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsNoActiveDevice()
}

// IsAlreadyPlayingError checks if an error is a 403 "restriction violated" error,
// which occurs when trying to resume playback that is already active.
func IsAlreadyPlayingError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.ErrorInfo.Status == http.StatusForbidden
}

// BuildURL builds a URL with query parameters.
func BuildURL(path string, params map[string]string) string {
	if len(params) == 0 {
		return path
	}

	u, _ := url.Parse(path)
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
