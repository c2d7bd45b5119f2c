package chat

import (
	"errors"
	"fmt"
)

// ErrSendInFlight is recorded when SendMessage preempts a previous send
// that was still streaming. The prior subscription is torn down and its
// partial accumulator discarded. Last writer wins.
var ErrSendInFlight = errors.New("chat: previous send preempted")

// DomainError is an explicit error event from the remote side. Terminal
// for the current send; never retried automatically.
type DomainError struct {
	Message string
	Code    string
}

func (e *DomainError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("chat: remote error: %s", e.Message)
	}
	return fmt.Sprintf("chat: remote error [%s]: %s", e.Code, e.Message)
}

// SubmissionError indicates the initiating prompt request itself failed,
// as opposed to the event stream failing. Treated identically to a
// DomainError for state-machine purposes.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("chat: prompt submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}
