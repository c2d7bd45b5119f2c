// Package api provides the typed HTTP client for the non-streaming half
// of the session server: session CRUD, message history, and the prompt
// call that starts a generation. Streaming delivery lives in pkg/stream
// and pkg/chat; this client never blocks on generation progress.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/spool/pkg/chat"
)

// Config holds configuration for the API client.
type Config struct {
	// URL is the session server root (e.g., "http://localhost:4096").
	URL string

	// Headers are added to every request, typically auth.
	Headers map[string]string

	// Client overrides the HTTP client. Defaults to a 30s-timeout client.
	Client *http.Client

	// Logger is used for request diagnostics. Defaults to a nop logger.
	Logger *zap.Logger
}

// Client is the session server API client.
type Client struct {
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an API client for the given server.
func NewClient(c Config) (*Client, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("server URL is required")
	}

	httpClient := c.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    c.URL,
		headers:    c.Headers,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Session is one remote coding session.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ProjectID string    `json:"projectID,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ListSessions returns all sessions, most recently updated first.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	if err := c.do(ctx, http.MethodGet, "/session", nil, &sessions); err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return sessions, nil
}

// CreateSession creates a session with the given title.
func (c *Client) CreateSession(ctx context.Context, title string) (*Session, error) {
	body := map[string]string{"title": title}
	var session Session
	if err := c.do(ctx, http.MethodPost, "/session", body, &session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return &session, nil
}

// DeleteSession removes the session and its history.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	if err := c.do(ctx, http.MethodDelete, "/session/"+sessionID, nil, nil); err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}
	return nil
}

// ListMessages returns the session's committed messages in append order.
func (c *Client) ListMessages(ctx context.Context, sessionID string) ([]*chat.Message, error) {
	var messages []*chat.Message
	if err := c.do(ctx, http.MethodGet, "/session/"+sessionID+"/message", nil, &messages); err != nil {
		return nil, fmt.Errorf("listing messages for session %s: %w", sessionID, err)
	}
	return messages, nil
}

// Prompt asks the server to start generating a reply to content in the
// session. It returns once the server has accepted the request; progress
// arrives on the session's event stream, not here.
func (c *Client) Prompt(ctx context.Context, sessionID, content string) error {
	body := map[string]any{
		"parts": []map[string]string{
			{"type": string(chat.PartTypeText), "text": content},
		},
	}
	if err := c.do(ctx, http.MethodPost, "/session/"+sessionID+"/message", body, nil); err != nil {
		return fmt.Errorf("prompting session %s: %w", sessionID, err)
	}
	return nil
}

// do runs one request: JSON in, JSON out, non-2xx mapped to StatusError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{
			Code:   resp.StatusCode,
			Body:   string(data),
			Method: method,
			Path:   path,
		}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}

	return nil
}
