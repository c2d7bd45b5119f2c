package stream

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Open after Close has been called. Streams are
// single-use: construct a new Stream to connect again.
var ErrClosed = errors.New("stream closed")

// ErrConnectionFailed indicates the request produced no response at all
// (DNS failure, refused connection, aborted dial). It is retryable up to
// the configured ceiling.
var ErrConnectionFailed = errors.New("stream connection failed")

// StatusError indicates the server responded with a non-success status.
// It carries the status code and the reason text read from the body.
type StatusError struct {
	Code   int
	Reason string
}

func (e *StatusError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("stream: upstream returned status %d", e.Code)
	}
	return fmt.Sprintf("stream: upstream returned status %d: %s", e.Code, e.Reason)
}
