// Package stream provides the client-side SSE transport for the spool
// system. A Stream owns at most one live connection to the session server's
// event feed, decodes frames as bytes arrive, and retries transparently on
// transport failure up to a configured ceiling.
//
// Callbacks are invoked sequentially from the connection's reader goroutine,
// in frame arrival order. After Close returns, no further callback fires,
// including from reconnect timers already scheduled.
package stream

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/spool/pkg/sse"
)

const (
	// DefaultRetryDelay is the pause before a reconnect attempt.
	DefaultRetryDelay = time.Second

	// DefaultMaxRetries bounds automatic reconnect attempts per Stream.
	DefaultMaxRetries = 3

	// readBufferSize is the chunk size for incremental body reads.
	readBufferSize = 16 * 1024

	// maxReasonBytes caps how much of an error response body is read for
	// the StatusError reason text.
	maxReasonBytes = 4 * 1024
)

// Config holds the Stream configuration surface.
type Config struct {
	// URL is the event feed endpoint.
	URL string

	// Headers are caller-supplied headers added to every connection
	// attempt, after the protocol-required Accept and Cache-Control.
	Headers map[string]string

	// RetryDelay is the pause before a reconnect attempt.
	// Defaults to DefaultRetryDelay.
	RetryDelay time.Duration

	// MaxRetries bounds automatic reconnect attempts. The counter is
	// per-Stream and resets only at construction. Defaults to
	// DefaultMaxRetries.
	MaxRetries int

	// Client is the HTTP client used for connections. Defaults to a
	// client with no overall timeout since event feeds are long-lived.
	Client *http.Client

	// Logger is the zap logger for transport diagnostics.
	Logger *zap.Logger
}

// Stream is a single-use SSE transport. Construct with New, attach
// callbacks, then Open. After Close the Stream cannot be reopened.
type Stream struct {
	config Config
	logger *zap.Logger

	// OnEvent receives each decoded frame in arrival order.
	OnEvent func(sse.Event)

	// OnError receives transport failures, including the terminal one
	// after the retry ceiling is reached.
	OnError func(error)

	// OnClose fires when the server ends the feed with a success status.
	OnClose func()

	mu          sync.Mutex
	closed      bool
	connected   bool
	retries     int
	gen         uint64
	cancel      context.CancelFunc
	retryTimer  *time.Timer
	lastEventID string
	ready       chan struct{}
	readyErr    error
}

// New creates a Stream from the given config, applying defaults for any
// zero-value field.
func New(config Config) *Stream {
	if config.RetryDelay == 0 {
		config.RetryDelay = DefaultRetryDelay
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.Client == nil {
		config.Client = &http.Client{}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Stream{
		config: config,
		logger: config.Logger,
		ready:  make(chan struct{}),
	}
}

// Open establishes a connection to the event feed and starts delivering
// frames to OnEvent. It returns once the connection attempt is dispatched;
// connection failures surface through OnError, not through the return value.
// Callers that must not act until frames can be received follow Open with
// WaitConnected.
//
// Opening while a previous connection is live aborts that connection first:
// the newest Open wins. Returns ErrClosed after Close.
func (s *Stream) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	// Abort any in-flight connection and invalidate its callbacks.
	s.teardownLocked()

	s.ready = make(chan struct{})
	s.readyErr = nil

	s.gen++
	gen := s.gen

	connCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.connect(ctx, connCtx, gen)

	return nil
}

// Close aborts the in-flight connection, cancels any pending reconnect,
// and permanently closes the Stream. Idempotent. After Close returns, no
// error, event, or close callback fires as a result of previously
// scheduled work.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	s.teardownLocked()
}

// WaitConnected blocks until the connection opened by the most recent Open
// enters the receiving phase. It returns nil once response headers have
// been accepted, so frames arriving afterward cannot be missed by a caller
// that acts only after WaitConnected returns.
//
// Retryable failures do not end the wait; the reconnect loop keeps running
// until it either connects or exhausts the retry ceiling. A terminal
// failure returns that failure, Close returns ErrClosed, and context
// cancellation returns ctx.Err().
func (s *Stream) WaitConnected(ctx context.Context) error {
	s.mu.Lock()
	ch := s.ready
	if ch == nil {
		err := s.readyErr
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	select {
	case <-ch:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.readyErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connected reports whether a connection exists and is in the receiving
// phase (headers accepted, body not yet finished).
func (s *Stream) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Retries returns the number of reconnect attempts made by this Stream.
// The counter never resets; it is exposed for inspection.
func (s *Stream) Retries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retries
}

// LastEventID returns the most recent frame ID seen on any connection.
// Reconnects do not resume from it; the field exists as the extension
// point for servers that support a resume cursor.
func (s *Stream) LastEventID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEventID
}

// teardownLocked aborts the live connection and pending reconnect timer.
// Callers must hold s.mu.
func (s *Stream) teardownLocked() {
	s.connected = false
	s.gen++

	s.signalReadyLocked(ErrClosed)

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
}

// signalReadyLocked releases WaitConnected waiters with the given outcome.
// The first signal per Open wins. Callers must hold s.mu.
func (s *Stream) signalReadyLocked(err error) {
	if s.ready == nil {
		return
	}
	s.readyErr = err
	close(s.ready)
	s.ready = nil
}

// connect performs one connection attempt and reads the feed to completion.
// parentCtx outlives individual attempts and seeds reconnect contexts;
// connCtx aborts this attempt only.
func (s *Stream) connect(parentCtx, connCtx context.Context, gen uint64) {
	req, err := http.NewRequestWithContext(connCtx, http.MethodGet, s.config.URL, nil)
	if err != nil {
		s.fail(parentCtx, gen, err)
		return
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	for k, v := range s.config.Headers {
		req.Header.Set(k, v)
	}

	s.logger.Debug("opening event stream",
		zap.String("url", s.config.URL),
		zap.Uint64("gen", gen),
	)

	resp, err := s.config.Client.Do(req)
	if err != nil {
		// No response at all: hard transport error.
		s.fail(parentCtx, gen, ErrConnectionFailed)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason, _ := io.ReadAll(io.LimitReader(resp.Body, maxReasonBytes))
		s.fail(parentCtx, gen, &StatusError{
			Code:   resp.StatusCode,
			Reason: strings.TrimSpace(string(reason)),
		})
		return
	}

	if !s.markConnected(gen) {
		return
	}

	parser := sse.NewParser()
	buf := make([]byte, readBufferSize)

	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			// Only newly arrived bytes are fed; the parser carries any
			// partial frame across reads.
			for _, ev := range parser.Feed(buf[:n]) {
				if !s.deliver(gen, ev) {
					return
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				if ev, ok := parser.Flush(); ok {
					if !s.deliver(gen, ev) {
						return
					}
				}
				s.finish(gen)
				return
			}
			s.fail(parentCtx, gen, err)
			return
		}
	}
}

// markConnected flips the stream into the receiving phase. Returns false
// when the attempt has been superseded or the stream closed.
func (s *Stream) markConnected(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.gen {
		return false
	}

	s.connected = true
	s.signalReadyLocked(nil)
	return true
}

// deliver invokes OnEvent for a decoded frame. Returns false when the
// frame must be dropped because the attempt is stale.
func (s *Stream) deliver(gen uint64, ev sse.Event) bool {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return false
	}
	if ev.ID != "" {
		s.lastEventID = ev.ID
	}
	cb := s.OnEvent
	s.mu.Unlock()

	if cb != nil {
		cb(ev)
	}
	return true
}

// finish handles a clean end-of-feed from the server.
func (s *Stream) finish(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.connected = false
	cb := s.OnClose
	s.mu.Unlock()

	s.logger.Debug("event stream finished", zap.Uint64("gen", gen))

	if cb != nil {
		cb()
	}
}

// fail drives the error path: surface the error, then schedule one
// reconnect unless the stream is closed or the retry ceiling is reached.
func (s *Stream) fail(parentCtx context.Context, gen uint64, err error) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.connected = false
	cb := s.OnError
	s.mu.Unlock()

	s.logger.Debug("event stream error",
		zap.Error(err),
		zap.Uint64("gen", gen),
	)

	if cb != nil {
		cb(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.gen {
		return
	}

	if s.retries >= s.config.MaxRetries {
		// Ceiling reached: leave the stream idle. No further automatic
		// attempts, no additional callbacks.
		s.logger.Debug("retry ceiling reached, stream idle",
			zap.Int("retries", s.retries),
		)
		s.signalReadyLocked(err)
		return
	}

	s.retries++
	retryGen := s.gen

	s.logger.Debug("scheduling reconnect",
		zap.Int("attempt", s.retries),
		zap.Duration("delay", s.config.RetryDelay),
	)

	s.retryTimer = time.AfterFunc(s.config.RetryDelay, func() {
		s.mu.Lock()
		if s.closed || retryGen != s.gen {
			s.mu.Unlock()
			return
		}

		s.gen++
		nextGen := s.gen

		connCtx, cancel := context.WithCancel(parentCtx)
		s.cancel = cancel
		s.retryTimer = nil
		s.mu.Unlock()

		s.connect(parentCtx, connCtx, nextGen)
	})
}
