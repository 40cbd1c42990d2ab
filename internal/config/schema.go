package config

// Config is the root configuration structure.
type Config struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Store   StoreConfig   `toml:"store"`
	Engine  EngineConfig  `toml:"engine"`
	Poll    PollConfig    `toml:"poll"`
	Auth    AuthConfig    `toml:"auth"`
	Log     LogConfig     `toml:"log"`
}

// SpotifyConfig holds Spotify API settings.
type SpotifyConfig struct {
	ClientID string   `toml:"client_id"`
	Listen   string   `toml:"listen"` // callback server address; the redirect URI is derived from it
	Scopes   []string `toml:"scopes"`
	AuthURL  string   `toml:"auth_url"`
	TokenURL string   `toml:"token_url"`
	APIURL   string   `toml:"api_url"`

	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// StoreConfig selects where tokens and the PKCE session are persisted.
type StoreConfig struct {
	Backend string `toml:"backend"` // file, sqlite or memory
	Path    string `toml:"path"`
}

// EngineConfig configures the optional local playback engine (go-librespot).
type EngineConfig struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
}

// PollConfig holds settings for the playback poll.
type PollConfig struct {
	Interval int `toml:"interval"` // milliseconds
}

// AuthConfig holds token lifecycle settings, in seconds.
type AuthConfig struct {
	LoginTimeout int `toml:"login_timeout"`
	Grace        int `toml:"grace"`
	ExpiryLeeway int `toml:"expiry_leeway"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}
