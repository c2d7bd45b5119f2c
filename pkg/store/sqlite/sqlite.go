// Package sqlite provides a SQLite-backed message store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/spool/pkg/chat"
	"github.com/papercomputeco/spool/pkg/store"
)

// Driver implements store.Store using SQLite.
type Driver struct {
	db *sql.DB
}

// NewDriver creates a new SQLite-backed store.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(dbPath string) (*Driver, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	d := &Driver{db: db}

	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return d, nil
}

// migrate creates the necessary tables if they don't exist.
func (d *Driver) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		parts TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_session_id ON messages(session_id);
	`

	_, err := d.db.Exec(schema)
	return err
}

// AppendMessage stores a committed message. INSERT OR IGNORE keeps the
// append idempotent on duplicate IDs.
func (d *Driver) AppendMessage(ctx context.Context, msg *chat.Message) error {
	if msg == nil {
		return errors.New("cannot store nil message")
	}

	partsJSON, err := json.Marshal(msg.Parts)
	if err != nil {
		return fmt.Errorf("failed to marshal parts: %w", err)
	}

	query := `INSERT OR IGNORE INTO messages (id, session_id, role, parts, created_at) VALUES (?, ?, ?, ?, ?)`

	_, err = d.db.ExecContext(ctx, query, msg.ID, msg.SessionID, msg.Role, string(partsJSON), msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return nil
}

// ListMessages returns the session's messages in append order.
func (d *Driver) ListMessages(ctx context.Context, sessionID string) ([]*chat.Message, error) {
	query := `SELECT id, session_id, role, parts, created_at FROM messages WHERE session_id = ? ORDER BY rowid`

	rows, err := d.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []*chat.Message
	for rows.Next() {
		msg, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// GetMessage retrieves one message by ID.
func (d *Driver) GetMessage(ctx context.Context, id string) (*chat.Message, error) {
	query := `SELECT id, session_id, role, parts, created_at FROM messages WHERE id = ?`

	row := d.db.QueryRowContext(ctx, query, id)

	msg, err := scanMessage(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound{ID: id}
	}
	if err != nil {
		return nil, err
	}

	return msg, nil
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.db.Close()
}

func scanMessage(scan func(dest ...any) error) (*chat.Message, error) {
	var msg chat.Message
	var partsJSON string

	if err := scan(&msg.ID, &msg.SessionID, &msg.Role, &partsJSON, &msg.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}

	if err := json.Unmarshal([]byte(partsJSON), &msg.Parts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal parts: %w", err)
	}

	return &msg, nil
}
