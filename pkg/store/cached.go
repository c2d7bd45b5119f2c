package store

import (
	"context"
	"time"

	"github.com/papercomputeco/spool/pkg/cache"
	"github.com/papercomputeco/spool/pkg/chat"
)

// Cached layers the TTL cache over a Store. Writes go through the cache
// (an append refreshes the session's cached message list) and reads are
// served from cache while the entry is fresh, bounding how often the read
// path hits the underlying driver.
type Cached struct {
	inner Store
	cache *cache.Cache
	ttl   time.Duration
}

// NewCached wraps inner with the given cache. Message lists use the
// messages default TTL.
func NewCached(inner Store, c *cache.Cache) *Cached {
	return &Cached{
		inner: inner,
		cache: c,
		ttl:   cache.TTLMessages,
	}
}

// AppendMessage appends to the underlying store, then writes the updated
// session message list through the cache.
func (s *Cached) AppendMessage(ctx context.Context, msg *chat.Message) error {
	if err := s.inner.AppendMessage(ctx, msg); err != nil {
		return err
	}

	messages, err := s.inner.ListMessages(ctx, msg.SessionID)
	if err != nil {
		return err
	}

	return s.cache.Set(cache.MessagesKey(msg.SessionID), messages, s.ttl)
}

// ListMessages serves from the cache while fresh, falling back to the
// underlying store and repopulating the entry.
func (s *Cached) ListMessages(ctx context.Context, sessionID string) ([]*chat.Message, error) {
	var cached []*chat.Message
	if s.cache.Fresh(cache.MessagesKey(sessionID), &cached) {
		return cached, nil
	}

	messages, err := s.inner.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(cache.MessagesKey(sessionID), messages, s.ttl); err != nil {
		return nil, err
	}

	return messages, nil
}

// GetMessage always reads through to the underlying store.
func (s *Cached) GetMessage(ctx context.Context, id string) (*chat.Message, error) {
	return s.inner.GetMessage(ctx, id)
}

// Close closes the underlying store.
func (s *Cached) Close() error {
	return s.inner.Close()
}
