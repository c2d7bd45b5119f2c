package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent spool configuration stored as config.toml
// in the .spool/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version int           `toml:"version"`
	Server  ServerConfig  `toml:"server"`
	Stream  StreamConfig  `toml:"stream"`
	Storage StorageConfig `toml:"storage"`
	Cache   CacheConfig   `toml:"cache"`
	Stub    StubConfig    `toml:"stub"`
}

// ServerConfig holds settings for the remote session server.
type ServerConfig struct {
	// URL is the session server root (scheme + host + port).
	URL string `toml:"url,omitempty"`

	// Token is sent as a bearer token on every request when non-empty.
	Token string `toml:"token,omitempty"`
}

// StreamConfig holds event-stream transport settings.
type StreamConfig struct {
	// RetryDelayMS is the base delay before a reconnect attempt.
	RetryDelayMS uint `toml:"retry_delay_ms,omitempty"`

	// MaxRetries bounds reconnect attempts per stream instance.
	MaxRetries uint `toml:"max_retries,omitempty"`
}

// StorageConfig holds local message history settings.
type StorageConfig struct {
	SQLitePath string `toml:"sqlite_path,omitempty"`
}

// CacheConfig holds TTL cache settings.
type CacheConfig struct {
	// Path is the cache snapshot file. Empty disables persistence.
	Path string `toml:"path,omitempty"`
}

// StubConfig holds settings for the local stub session server.
type StubConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"server.url": {
		get: func(c *Config) string { return c.Server.URL },
		set: func(c *Config, v string) error { c.Server.URL = v; return nil },
	},
	"server.token": {
		get: func(c *Config) string { return c.Server.Token },
		set: func(c *Config, v string) error { c.Server.Token = v; return nil },
	},
	"stream.retry_delay_ms": {
		get: func(c *Config) string {
			if c.Stream.RetryDelayMS == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Stream.RetryDelayMS), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for stream.retry_delay_ms: %w", err)
			}
			c.Stream.RetryDelayMS = uint(n)
			return nil
		},
	},
	"stream.max_retries": {
		get: func(c *Config) string {
			if c.Stream.MaxRetries == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Stream.MaxRetries), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for stream.max_retries: %w", err)
			}
			c.Stream.MaxRetries = uint(n)
			return nil
		},
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"cache.path": {
		get: func(c *Config) string { return c.Cache.Path },
		set: func(c *Config, v string) error { c.Cache.Path = v; return nil },
	},
	"stub.listen": {
		get: func(c *Config) string { return c.Stub.Listen },
		set: func(c *Config, v string) error { c.Stub.Listen = v; return nil },
	},
}
