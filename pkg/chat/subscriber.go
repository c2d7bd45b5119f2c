package chat

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/spool/pkg/sse"
	"github.com/papercomputeco/spool/pkg/stream"
)

// StreamSubscriber opens per-send domain-event subscriptions over the SSE
// transport. Transport failures are retried inside the stream up to its
// ceiling; only the terminal failure is surfaced to the assembler, as a
// StreamError event.
type StreamSubscriber struct {
	// BaseURL is the session server root, e.g. "http://localhost:4096".
	BaseURL string

	// Headers are added to every connection attempt.
	Headers map[string]string

	// Client, RetryDelay, and MaxRetries configure the underlying stream.
	// Zero values take the stream defaults.
	Client     *http.Client
	RetryDelay time.Duration
	MaxRetries int

	// Logger is used for protocol-error and retry diagnostics.
	Logger *zap.Logger
}

// streamSubscription adapts a live stream to the Subscription interface.
type streamSubscription struct {
	stream *stream.Stream
}

func (s *streamSubscription) Stop() {
	s.stream.Close()
}

// Subscribe connects to the session's event feed and delivers decoded
// domain events to fn in arrival order. It returns only once the feed is
// live and receiving, so a prompt issued immediately afterward cannot race
// ahead of the subscription. Malformed frames are logged and dropped; the
// stream continues.
func (s *StreamSubscriber) Subscribe(ctx context.Context, sessionID string, fn func(Event)) (Subscription, error) {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	maxRetries := s.MaxRetries
	if maxRetries == 0 {
		maxRetries = stream.DefaultMaxRetries
	}

	st := stream.New(stream.Config{
		URL:        s.BaseURL + "/session/" + sessionID + "/events",
		Headers:    s.Headers,
		Client:     s.Client,
		RetryDelay: s.RetryDelay,
		MaxRetries: maxRetries,
		Logger:     logger,
	})

	st.OnEvent = func(frame sse.Event) {
		ev, err := DecodeEvent(frame)
		if err != nil {
			// Malformed frame: drop it and keep the stream alive.
			logger.Warn("dropping malformed frame",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
			return
		}
		fn(ev)
	}

	st.OnError = func(err error) {
		if st.Retries() < maxRetries {
			logger.Debug("transport error, stream will retry",
				zap.String("session_id", sessionID),
				zap.Int("retries", st.Retries()),
				zap.Error(err),
			)
			return
		}

		// Retry ceiling reached: terminal for this send.
		fn(&StreamError{Err: err.Error()})
	}

	st.OnClose = func() {
		// The feed should outlive a send; a clean end before
		// message.completed means the server went away.
		fn(&StreamError{Err: "event stream ended before completion"})
	}

	if err := st.Open(ctx); err != nil {
		return nil, err
	}

	// The feed must be receiving before Subscribe returns. The assembler
	// dispatches the prompt as soon as the subscription is established, and
	// events emitted before the connection is live would be lost.
	if err := st.WaitConnected(ctx); err != nil {
		st.Close()
		return nil, err
	}

	return &streamSubscription{stream: st}, nil
}
