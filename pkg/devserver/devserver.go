// Package devserver provides a local stub session server for developing and
// testing spool without a real backend. It speaks the same HTTP and SSE
// surface the client expects: session CRUD, message history, prompt
// submission, and a per-session domain-event feed. Replies are scripted,
// streamed as incremental part.updated deltas.
package devserver

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/spool/pkg/api"
	"github.com/papercomputeco/spool/pkg/chat"
	"github.com/papercomputeco/spool/pkg/sse"
)

// Config holds configuration for the stub server.
type Config struct {
	// ListenAddr is the address to serve on (e.g. ":4096").
	ListenAddr string

	// ReplyDelay is the pause between streamed deltas. Zero streams the
	// whole reply as fast as the client reads it.
	ReplyDelay time.Duration

	// Reply generates the assistant reply for a prompt. Defaults to an
	// echo of the prompt content.
	Reply func(content string) string
}

// Server is the stub session server.
type Server struct {
	config Config
	logger *zap.Logger
	app    *fiber.App

	mu       sync.Mutex
	sessions map[string]*session
}

// session is one in-memory session: its metadata, committed history, and
// live event-feed subscribers.
type session struct {
	info     api.Session
	messages []*chat.Message
	subs     map[int]chan sse.Event
	nextSub  int
}

// NewServer creates a stub server.
func NewServer(config Config, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	if config.Reply == nil {
		config.Reply = func(content string) string {
			return "You said: " + content
		}
	}

	s := &Server{
		config:   config,
		logger:   logger,
		app:      app,
		sessions: make(map[string]*session),
	}

	app.Get("/ping", s.handlePing)
	app.Get("/session", s.handleListSessions)
	app.Post("/session", s.handleCreateSession)
	app.Delete("/session/:id", s.handleDeleteSession)
	app.Get("/session/:id/message", s.handleListMessages)
	app.Post("/session/:id/message", s.handlePrompt)
	app.Get("/session/:id/events", s.handleEvents)

	return s
}

// Run starts the server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting stub session server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// ServeListener starts the server on an existing listener. Used by tests
// to serve on an ephemeral port.
func (s *Server) ServeListener(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown gracefully shuts down the server and ends all event feeds. The
// feeds must be released first: fiber's Shutdown waits for in-flight
// requests, and an open event feed is an in-flight request that only ends
// when its subscriber channel closes.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	for _, sess := range s.sessions {
		for id, ch := range sess.subs {
			close(ch)
			delete(sess.subs, id)
		}
	}
	s.mu.Unlock()

	return s.app.Shutdown()
}

func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

func (s *Server) handleListSessions(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make([]api.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess.info)
	}

	return c.JSON(sessions)
}

func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	var body struct {
		Title string `json:"title"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}

	now := time.Now().UTC()
	sess := &session{
		info: api.Session{
			ID:        uuid.NewString(),
			Title:     body.Title,
			CreatedAt: now,
			UpdatedAt: now,
		},
		subs: make(map[int]chan sse.Event),
	}

	s.mu.Lock()
	s.sessions[sess.info.ID] = sess
	s.mu.Unlock()

	s.logger.Info("session created",
		zap.String("session_id", sess.info.ID),
		zap.String("title", sess.info.Title),
	)

	return c.Status(fiber.StatusCreated).JSON(sess.info)
}

func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	id := c.Params("id")

	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		for subID, ch := range sess.subs {
			close(ch)
			delete(sess.subs, subID)
		}
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "session not found"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleListMessages(c *fiber.Ctx) error {
	s.mu.Lock()
	sess, ok := s.sessions[c.Params("id")]
	var messages []*chat.Message
	if ok {
		messages = append(messages, sess.messages...)
	}
	s.mu.Unlock()

	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "session not found"})
	}

	if messages == nil {
		messages = []*chat.Message{}
	}

	return c.JSON(messages)
}

func (s *Server) handlePrompt(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	var body struct {
		Parts []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"parts"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}

	var content strings.Builder
	for _, part := range body.Parts {
		if part.Type == string(chat.PartTypeText) {
			content.WriteString(part.Text)
		}
	}

	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if ok {
		sess.messages = append(sess.messages, chat.NewUserMessage(uuid.NewString(), sessionID, content.String()))
		sess.info.UpdatedAt = time.Now().UTC()
	}
	s.mu.Unlock()

	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "session not found"})
	}

	go s.replay(sessionID, content.String())

	return c.SendStatus(fiber.StatusAccepted)
}

// handleEvents serves the per-session SSE domain-event feed. The stream
// stays open until the client disconnects or the session is deleted.
func (s *Server) handleEvents(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	var ch chan sse.Event
	var subID int
	if ok {
		ch = make(chan sse.Event, 256)
		subID = sess.nextSub
		sess.nextSub++
		sess.subs[subID] = ch
	}
	s.mu.Unlock()

	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "session not found"})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer s.unsubscribe(sessionID, subID)

		for ev := range ch {
			if err := writeFrame(w, ev); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				// Client went away.
				return
			}
		}
	})

	return nil
}

func (s *Server) unsubscribe(sessionID string, subID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[sessionID]; ok {
		if ch, ok := sess.subs[subID]; ok {
			close(ch)
			delete(sess.subs, subID)
		}
	}
}

// replay streams a scripted assistant reply to all of the session's
// subscribers, then commits the assembled message to the history.
func (s *Server) replay(sessionID, content string) {
	reply := s.config.Reply(content)
	messageID := uuid.NewString()
	partID := uuid.NewString()

	events := []chat.Event{
		&chat.MessageCreated{MessageID: messageID, SessionID: sessionID, Role: "assistant"},
		&chat.PartCreated{PartID: partID, MessageID: messageID, SessionID: sessionID, PartType: string(chat.PartTypeText)},
	}
	for _, word := range splitDeltas(reply) {
		events = append(events, &chat.PartUpdated{
			PartID:    partID,
			MessageID: messageID,
			SessionID: sessionID,
			Delta:     chat.Delta{Text: word},
		})
	}
	events = append(events, &chat.MessageCompleted{MessageID: messageID, SessionID: sessionID})

	for _, ev := range events {
		s.broadcast(sessionID, ev)
		if s.config.ReplyDelay > 0 {
			time.Sleep(s.config.ReplyDelay)
		}
	}

	msg := &chat.Message{
		ID:        messageID,
		SessionID: sessionID,
		Role:      "assistant",
		Parts: []chat.Part{
			{ID: partID, Type: chat.PartTypeText, Text: reply},
		},
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.messages = append(sess.messages, msg)
		sess.info.UpdatedAt = msg.CreatedAt
	}
	s.mu.Unlock()
}

// broadcast fans an event out to the session's subscribers. Slow consumers
// whose buffers are full lose the event rather than stalling the replay.
func (s *Server) broadcast(sessionID string, ev chat.Event) {
	frame, err := chat.EncodeEvent(ev)
	if err != nil {
		s.logger.Warn("could not encode event", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return
	}

	for subID, ch := range sess.subs {
		select {
		case ch <- frame:
		default:
			s.logger.Warn("dropping event for slow subscriber",
				zap.String("session_id", sessionID),
				zap.Int("subscriber", subID),
			)
		}
	}
}

// splitDeltas breaks a reply into word-sized fragments, preserving the
// separating spaces so concatenation reproduces the original text.
func splitDeltas(text string) []string {
	words := strings.SplitAfter(text, " ")
	deltas := make([]string, 0, len(words))
	for _, w := range words {
		if w != "" {
			deltas = append(deltas, w)
		}
	}
	return deltas
}

// writeFrame writes one SSE frame: the event name, the data payload, and
// the blank-line terminator.
func writeFrame(w *bufio.Writer, ev sse.Event) error {
	if ev.Type != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", ev.Type); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", ev.Data); err != nil {
		return err
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}
