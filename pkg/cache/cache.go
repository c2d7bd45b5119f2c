// Package cache provides the TTL cache that bounds how often the
// non-streaming read path may treat locally held data as fresh. Entries
// carry their own TTL; staleness is age-based, never eviction-based.
// Stale data stays readable for offline fallback, it just stops counting
// as current.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Type-specific default TTLs. Message lists churn while an assistant is
// typing, so they expire fastest.
const (
	TTLMessages = 30 * time.Second
	TTLSessions = time.Minute
	TTLProjects = 5 * time.Minute
)

// Entry is one cached record. Data is the JSON encoding of the cached
// value; Timestamp is when the data was produced; LastSyncAt is when the
// entry last round-tripped with the server.
type Entry struct {
	Data       json.RawMessage `json:"data"`
	Timestamp  time.Time       `json:"timestamp"`
	TTL        time.Duration   `json:"ttl"`
	LastSyncAt time.Time       `json:"lastSyncAt"`
}

// Stale reports whether the entry's age exceeds its TTL at the given time.
func (e Entry) Stale(now time.Time) bool {
	return now.Sub(e.Timestamp) > e.TTL
}

// Option configures a Cache created with New.
type Option func(*Cache)

// WithPath enables JSON snapshot persistence at the given file path.
// The snapshot is loaded at construction and rewritten on every mutation.
func WithPath(path string) Option {
	return func(c *Cache) {
		c.path = path
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithLogger sets the zap logger for persistence diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// Cache is a mutex-guarded TTL cache with optional file persistence.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	path    string
	now     func() time.Time
	logger  *zap.Logger
}

// New creates a Cache, loading the persisted snapshot if a path is
// configured and the file exists.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]Entry),
		now:     time.Now,
		logger:  zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.path != "" {
		if err := c.load(); err != nil {
			// A corrupt or missing snapshot is not fatal; start empty.
			c.logger.Warn("could not load cache snapshot",
				zap.String("path", c.path),
				zap.Error(err),
			)
		}
	}

	return c
}

// Set stores a value under key with the given TTL, marking it synced now.
func (c *Cache) Set(key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding cache value: %w", err)
	}

	c.mu.Lock()
	now := c.now()
	c.entries[key] = Entry{
		Data:       data,
		Timestamp:  now,
		TTL:        ttl,
		LastSyncAt: now,
	}
	c.persistLocked()
	c.mu.Unlock()

	return nil
}

// Get returns the entry for key regardless of staleness.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	return entry, ok
}

// Fresh decodes the entry for key into out only when the entry exists and
// is not stale. Returns false otherwise.
func (c *Cache) Fresh(key string, out any) bool {
	c.mu.RLock()
	entry, ok := c.entries[key]
	now := c.now()
	c.mu.RUnlock()

	if !ok || entry.Stale(now) {
		return false
	}

	if err := json.Unmarshal(entry.Data, out); err != nil {
		c.logger.Warn("could not decode cache entry",
			zap.String("key", key),
			zap.Error(err),
		)
		return false
	}

	return true
}

// Touch updates LastSyncAt and Timestamp for key without changing its
// data, marking the entry current again after a server round trip
// confirmed it.
func (c *Cache) Touch(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return
	}

	now := c.now()
	entry.Timestamp = now
	entry.LastSyncAt = now
	c.entries[key] = entry
	c.persistLocked()
}

// Drop removes the entry for key.
func (c *Cache) Drop(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	c.persistLocked()
}

// MessagesKey is the cache key for a session's message list.
func MessagesKey(sessionID string) string {
	return "messages:" + sessionID
}

// SessionsKey is the cache key for the session list.
func SessionsKey() string {
	return "sessions"
}

// ProjectsKey is the cache key for the project list.
func ProjectsKey() string {
	return "projects"
}

// persistLocked writes the JSON snapshot. Best effort: failures are
// logged, not returned. Callers hold c.mu.
func (c *Cache) persistLocked() {
	if c.path == "" {
		return
	}

	data, err := json.Marshal(c.entries)
	if err != nil {
		c.logger.Warn("could not encode cache snapshot", zap.Error(err))
		return
	}

	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		c.logger.Warn("could not write cache snapshot",
			zap.String("path", c.path),
			zap.Error(err),
		)
	}
}

func (c *Cache) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return json.Unmarshal(data, &c.entries)
}
