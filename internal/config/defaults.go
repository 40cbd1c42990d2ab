package config

import "time"

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Spotify: SpotifyConfig{
			Listen: "127.0.0.1:8888",
			Scopes: []string{
				"user-read-playback-state",
				"user-modify-playback-state",
				"user-read-currently-playing",
				"user-read-recently-played",
				"user-library-read",
				"playlist-read-private",
				"user-read-private",
				"user-read-email",
				"streaming",
			},
			AuthURL:           "https://accounts.spotify.com/authorize",
			TokenURL:          "https://accounts.spotify.com/api/token",
			APIURL:            "https://api.spotify.com/v1",
			RequestsPerSecond: 10,
		},
		Store: StoreConfig{
			Backend: "file",
		},
		Engine: EngineConfig{
			Enabled: false,
			URL:     "http://127.0.0.1:3678",
		},
		Poll: PollConfig{
			Interval: 1000,
		},
		Auth: AuthConfig{
			LoginTimeout: 300,
			Grace:        10,
			ExpiryLeeway: 60,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	d := Default()

	// Spotify
	if c.Spotify.Listen == "" {
		c.Spotify.Listen = d.Spotify.Listen
	}
	if len(c.Spotify.Scopes) == 0 {
		c.Spotify.Scopes = d.Spotify.Scopes
	}
	if c.Spotify.AuthURL == "" {
		c.Spotify.AuthURL = d.Spotify.AuthURL
	}
	if c.Spotify.TokenURL == "" {
		c.Spotify.TokenURL = d.Spotify.TokenURL
	}
	if c.Spotify.APIURL == "" {
		c.Spotify.APIURL = d.Spotify.APIURL
	}
	if c.Spotify.RequestsPerSecond == 0 {
		c.Spotify.RequestsPerSecond = d.Spotify.RequestsPerSecond
	}

	// Store
	if c.Store.Backend == "" {
		c.Store.Backend = d.Store.Backend
	}

	// Engine
	if c.Engine.URL == "" {
		c.Engine.URL = d.Engine.URL
	}

	// Poll
	if c.Poll.Interval == 0 {
		c.Poll.Interval = d.Poll.Interval
	}

	// Auth
	if c.Auth.LoginTimeout == 0 {
		c.Auth.LoginTimeout = d.Auth.LoginTimeout
	}
	if c.Auth.Grace == 0 {
		c.Auth.Grace = d.Auth.Grace
	}
	if c.Auth.ExpiryLeeway == 0 {
		c.Auth.ExpiryLeeway = d.Auth.ExpiryLeeway
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

// PollInterval returns the poll period as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.Interval) * time.Millisecond
}

// LoginTimeout returns how long login waits for the browser callback.
func (c *Config) LoginTimeout() time.Duration {
	return time.Duration(c.Auth.LoginTimeout) * time.Second
}

// LoginGrace returns how long to wait for tokens written by the callback to become visible.
func (c *Config) LoginGrace() time.Duration {
	return time.Duration(c.Auth.Grace) * time.Second
}

// ExpiryLeeway returns how early an access token is treated as expired.
func (c *Config) ExpiryLeeway() time.Duration {
	return time.Duration(c.Auth.ExpiryLeeway) * time.Second
}
