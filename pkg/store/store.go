// Package store defines the durable per-session message store consumed by
// the chat assembler and the CLI read paths. Drivers implement Store;
// Cached layers TTL-cache semantics over any driver.
package store

import (
	"context"

	"github.com/papercomputeco/spool/pkg/chat"
)

// Store persists committed chat messages keyed by session. Appends are
// atomic: a message is either fully visible or absent, never partial.
type Store interface {
	// AppendMessage stores a committed message. Appending an ID that
	// already exists is a no-op, which keeps commits idempotent.
	AppendMessage(ctx context.Context, msg *chat.Message) error

	// ListMessages returns all messages for a session in append order.
	ListMessages(ctx context.Context, sessionID string) ([]*chat.Message, error)

	// GetMessage retrieves one message by ID.
	GetMessage(ctx context.Context, id string) (*chat.Message, error)

	// Close releases driver resources.
	Close() error
}
