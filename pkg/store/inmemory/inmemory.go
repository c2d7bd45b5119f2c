// Package inmemory provides an in-memory message store for tests and
// ephemeral sessions.
package inmemory

import (
	"context"
	"sync"

	"github.com/papercomputeco/spool/pkg/chat"
	"github.com/papercomputeco/spool/pkg/store"
)

// Driver implements store.Store with a mutex-guarded map.
type Driver struct {
	mu      sync.RWMutex
	byID    map[string]*chat.Message
	ordered map[string][]string
}

// NewDriver creates an empty in-memory store.
func NewDriver() *Driver {
	return &Driver{
		byID:    make(map[string]*chat.Message),
		ordered: make(map[string][]string),
	}
}

// AppendMessage stores a message. Duplicate IDs are no-ops.
func (d *Driver) AppendMessage(_ context.Context, msg *chat.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.byID[msg.ID]; exists {
		return nil
	}

	d.byID[msg.ID] = msg.Clone()
	d.ordered[msg.SessionID] = append(d.ordered[msg.SessionID], msg.ID)
	return nil
}

// ListMessages returns the session's messages in append order.
func (d *Driver) ListMessages(_ context.Context, sessionID string) ([]*chat.Message, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := d.ordered[sessionID]
	messages := make([]*chat.Message, 0, len(ids))
	for _, id := range ids {
		messages = append(messages, d.byID[id].Clone())
	}
	return messages, nil
}

// GetMessage retrieves one message by ID.
func (d *Driver) GetMessage(_ context.Context, id string) (*chat.Message, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	msg, ok := d.byID[id]
	if !ok {
		return nil, store.ErrNotFound{ID: id}
	}
	return msg.Clone(), nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
