package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the assembler lifecycle phase for the current send.
type State string

const (
	StateIdle      State = "idle"
	StateSending   State = "sending"
	StateStreaming State = "streaming"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// MessageStore is the durable per-session message store the assembler
// commits into. Commits are single atomic appends: no partial-message
// visibility to other consumers of the store.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg *Message) error
}

// Prompter issues the remote "start generation" request. It returns
// independently of the event stream.
type Prompter interface {
	Prompt(ctx context.Context, sessionID, content string) error
}

// Subscription is a live domain-event feed for one send. Stop halts
// delivery; no event callback fires after Stop returns.
type Subscription interface {
	Stop()
}

// Subscriber opens domain-event subscriptions. The production
// implementation is StreamSubscriber; tests substitute fakes.
type Subscriber interface {
	Subscribe(ctx context.Context, sessionID string, fn func(Event)) (Subscription, error)
}

// Config wires the assembler's collaborators.
type Config struct {
	Store      MessageStore
	Subscriber Subscriber
	Prompter   Prompter
	Logger     *zap.Logger
}

// Assembler folds a live domain-event subscription into one evolving
// assistant message, republishing a read-only snapshot after every fold
// and committing the finished message exactly once.
//
// At most one accumulator is open per Assembler. A new SendMessage while a
// prior send is in flight tears the prior one down first: last writer
// wins, partial content discarded.
type Assembler struct {
	store      MessageStore
	subscriber Subscriber
	prompter   Prompter
	logger     *zap.Logger

	// OnUpdate receives a deep-copied snapshot of the in-progress message
	// after every fold that changes it. Set before the first SendMessage.
	OnUpdate func(*Message)

	mu      sync.Mutex
	state   State
	acc     *Message
	lastErr error
	sub     Subscription
	gen     uint64
}

// NewAssembler creates an idle Assembler.
func NewAssembler(config Config) *Assembler {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Assembler{
		store:      config.Store,
		subscriber: config.Subscriber,
		prompter:   config.Prompter,
		logger:     logger,
		state:      StateIdle,
	}
}

// State returns the current lifecycle phase.
func (a *Assembler) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// LastError returns the terminal error of the most recent send, if any.
func (a *Assembler) LastError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

// Snapshot returns a deep copy of the in-progress message, or nil when no
// accumulator is open.
func (a *Assembler) Snapshot() *Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acc.Clone()
}

// SendMessage records the user's message as an already-committed entry
// (optimistic, never rolled back), opens the event subscription, and
// dispatches the prompt request. It returns once the subscription is
// established and the prompt is dispatched; generation progress is
// observed via OnUpdate and State, not by blocking.
//
// The subscription is opened before the prompt is issued so the
// message.created event cannot be lost.
func (a *Assembler) SendMessage(ctx context.Context, sessionID, content string) error {
	a.mu.Lock()
	if a.state == StateSending || a.state == StateStreaming {
		// Last writer wins: discard the prior send's partial accumulator.
		a.logger.Warn("preempting in-flight send",
			zap.String("session_id", sessionID),
		)
		a.teardownLocked()
	}

	a.gen++
	gen := a.gen
	a.state = StateSending
	a.lastErr = nil
	a.acc = nil
	a.mu.Unlock()

	userMsg := NewUserMessage(uuid.NewString(), sessionID, content)
	if err := a.store.AppendMessage(ctx, userMsg); err != nil {
		a.failSend(gen, fmt.Errorf("recording user message: %w", err))
		return fmt.Errorf("recording user message: %w", err)
	}

	sub, err := a.subscriber.Subscribe(ctx, sessionID, func(ev Event) {
		a.apply(gen, ev)
	})
	if err != nil {
		a.failSend(gen, fmt.Errorf("opening subscription: %w", err))
		return fmt.Errorf("opening subscription: %w", err)
	}

	a.mu.Lock()
	if gen != a.gen {
		// Preempted while subscribing.
		a.mu.Unlock()
		sub.Stop()
		return ErrSendInFlight
	}
	a.sub = sub
	a.mu.Unlock()

	go func() {
		if err := a.prompter.Prompt(ctx, sessionID, content); err != nil {
			// Submission failures converge on the same terminal cleanup
			// as domain errors.
			a.failSend(gen, &SubmissionError{Err: err})
		}
	}()

	return nil
}

// CancelStream tears down the subscription immediately and discards any
// in-flight accumulator without committing it. Safe to call from any
// state, including Idle (no-op). Idempotent.
func (a *Assembler) CancelStream() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateSending && a.state != StateStreaming {
		return
	}

	a.teardownLocked()
	a.state = StateCancelled
}

// Reset is CancelStream plus clearing the last error, always returning
// to Idle.
func (a *Assembler) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.teardownLocked()
	a.state = StateIdle
	a.lastErr = nil
}

// teardownLocked stops the subscription, discards the accumulator, and
// invalidates pending callbacks from the current send. Callers hold a.mu.
func (a *Assembler) teardownLocked() {
	a.gen++

	if a.sub != nil {
		a.sub.Stop()
		a.sub = nil
	}
	a.acc = nil
}

// failSend drives the Failed transition for submission and setup errors.
func (a *Assembler) failSend(gen uint64, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.gen {
		return
	}

	a.teardownLocked()
	a.state = StateFailed
	a.lastErr = err
}

// apply folds one domain event into the accumulator. Events are processed
// strictly in delivery order; gen guards against callbacks from a
// preempted send.
func (a *Assembler) apply(gen uint64, ev Event) {
	a.mu.Lock()

	if gen != a.gen {
		a.mu.Unlock()
		return
	}

	var (
		snapshot *Message
		commit   *Message
	)

	switch ev := ev.(type) {
	case *MessageCreated:
		if a.state != StateSending && a.state != StateStreaming {
			break
		}
		// A second message.created without intervening completion replaces
		// the accumulator: only the most recent one is retained.
		a.acc = &Message{
			ID:        ev.MessageID,
			SessionID: ev.SessionID,
			Role:      ev.Role,
			CreatedAt: time.Now().UTC(),
		}
		a.state = StateStreaming
		snapshot = a.acc.Clone()

	case *PartCreated:
		if a.state != StateStreaming || a.acc == nil {
			// No open accumulator: drop.
			break
		}
		a.acc.Parts = append(a.acc.Parts, Part{
			ID:   ev.PartID,
			Type: PartType(ev.PartType),
		})
		snapshot = a.acc.Clone()

	case *PartUpdated:
		if a.state != StateStreaming || a.acc == nil {
			break
		}
		part := a.acc.part(ev.PartID)
		if part == nil || part.Type != PartTypeText {
			// Unknown partID or non-text kind: no-op, protects against
			// out-of-order or duplicate delivery.
			break
		}
		part.Text += ev.Delta.Text
		snapshot = a.acc.Clone()

	case *MessageCompleted:
		if a.state != StateStreaming || a.acc == nil {
			break
		}
		commit = a.acc
		a.acc = nil
		a.state = StateCompleted
		a.teardownSubLocked()
		snapshot = commit.Clone()

	case *StreamError:
		if a.state != StateSending && a.state != StateStreaming {
			break
		}
		a.lastErr = &DomainError{Message: ev.Err, Code: ev.Code}
		a.teardownLocked()
		a.state = StateFailed
	}

	cb := a.OnUpdate
	a.mu.Unlock()

	if commit != nil {
		if err := a.store.AppendMessage(context.Background(), commit); err != nil {
			a.logger.Error("committing assistant message",
				zap.String("message_id", commit.ID),
				zap.String("session_id", commit.SessionID),
				zap.Error(err),
			)
			a.mu.Lock()
			if gen == a.gen {
				a.state = StateFailed
				a.lastErr = fmt.Errorf("committing assistant message: %w", err)
			}
			a.mu.Unlock()
			return
		}

		a.logger.Debug("assistant message committed",
			zap.String("message_id", commit.ID),
			zap.String("session_id", commit.SessionID),
			zap.Int("parts", len(commit.Parts)),
		)
	}

	if snapshot != nil && cb != nil {
		cb(snapshot)
	}
}

// teardownSubLocked stops the subscription without bumping gen, used on
// the Completed path where the commit must still observe the current gen.
func (a *Assembler) teardownSubLocked() {
	if a.sub != nil {
		a.sub.Stop()
		a.sub = nil
	}
}
