package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Spotify.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("spotify: %w", err))
	}
	if err := c.Store.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if err := c.Engine.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("engine: %w", err))
	}
	if err := c.Poll.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("poll: %w", err))
	}
	if err := c.Auth.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("auth: %w", err))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}

	return errors.Join(errs...)
}

// Validate checks SpotifyConfig for errors.
func (c *SpotifyConfig) Validate() error {
	var errs []error
	if c.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Listen); err != nil {
			errs = append(errs, fmt.Errorf("invalid listen address: %w", err))
		}
	}
	for name, raw := range map[string]string{"auth_url": c.AuthURL, "token_url": c.TokenURL, "api_url": c.APIURL} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid %s: %q", name, raw))
		}
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("requests_per_second must be non-negative"))
	}
	return errors.Join(errs...)
}

// Validate checks StoreConfig for errors.
func (c *StoreConfig) Validate() error {
	switch c.Backend {
	case "", "file", "sqlite", "memory":
		// valid
	default:
		return fmt.Errorf("invalid backend: %s (must be file, sqlite, or memory)", c.Backend)
	}
	return nil
}

// Validate checks EngineConfig for errors.
func (c *EngineConfig) Validate() error {
	if c.Enabled && c.URL == "" {
		return errors.New("url is required when the engine is enabled")
	}
	if c.URL != "" {
		if u, err := url.Parse(c.URL); err != nil || u.Host == "" {
			return fmt.Errorf("invalid url: %q", c.URL)
		}
	}
	return nil
}

// Validate checks PollConfig for errors.
func (c *PollConfig) Validate() error {
	if c.Interval < 0 {
		return errors.New("interval must be non-negative")
	}
	return nil
}

// Validate checks AuthConfig for errors.
func (c *AuthConfig) Validate() error {
	if c.LoginTimeout < 0 || c.Grace < 0 || c.ExpiryLeeway < 0 {
		return errors.New("login_timeout, grace and expiry_leeway must be non-negative")
	}
	return nil
}

// Validate checks LogConfig for errors.
func (c *LogConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Level)
	}
	return nil
}
