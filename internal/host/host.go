// Package host models the companion runtime: it delivers lifecycle events
// ("ready" once at startup, "appmessage" per inbound device message) to the
// registered handlers.
package host

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Event names a host lifecycle event.
type Event string

const (
	EventReady      Event = "ready"
	EventAppMessage Event = "appmessage"
)

// Envelope is what a handler receives for one emitted event.
type Envelope struct {
	ID         string
	Event      Event
	Payload    map[string]any
	ReceivedAt time.Time
}

// Handler reacts to one event. The returned error only resolves the emit's
// future; the host never retries.
type Handler func(ctx context.Context, env Envelope) error

// ErrClosed is what an emit's future yields once the host has shut down.
var ErrClosed = errors.New("host closed")

type Host struct {
	mu       sync.RWMutex
	handlers map[Event][]Handler
	closed   bool

	wg     sync.WaitGroup
	clock  clockwork.Clock
	logger zerolog.Logger
}

// New creates a Host. A nil clock uses the real clock.
func New(logger zerolog.Logger, clock clockwork.Clock) *Host {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Host{
		handlers: make(map[Event][]Handler),
		clock:    clock,
		logger:   logger,
	}
}

// On registers fn for ev. Handlers run in registration order within one dispatch.
func (h *Host) On(ev Event, fn Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[ev] = append(h.handlers[ev], fn)
}

// Emit dispatches ev in a new goroutine and returns a future that yields the
// joined handler errors once, then closes. Emits never wait on each other.
func (h *Host) Emit(ctx context.Context, ev Event, payload map[string]any) <-chan error {
	done := make(chan error, 1)

	// wg.Add happens under the lock so Close cannot start waiting between
	// the closed check and the Add.
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		h.logger.Debug().Str("event", string(ev)).Msg("event dropped: host closed")
		done <- ErrClosed
		close(done)
		return done
	}
	handlers := append([]Handler(nil), h.handlers[ev]...)
	h.wg.Add(1)
	h.mu.RUnlock()

	env := Envelope{
		ID:         uuid.NewString(),
		Event:      ev,
		Payload:    payload,
		ReceivedAt: h.clock.Now().UTC(),
	}
	logger := h.logger.With().Str("event", string(ev)).Str("event_id", env.ID).Logger()
	if len(handlers) == 0 {
		logger.Debug().Msg("no handlers registered")
	}

	go func() {
		defer h.wg.Done()
		defer close(done)

		var errs []error
		for _, fn := range handlers {
			if err := fn(ctx, env); err != nil {
				errs = append(errs, err)
			}
		}
		err := errors.Join(errs...)
		if err != nil {
			logger.Debug().Err(err).Msg("event handling failed")
		}
		done <- err
	}()
	return done
}

// Ready emits EventReady.
func (h *Host) Ready(ctx context.Context) <-chan error {
	h.logger.Info().Msg("companion ready")
	return h.Emit(ctx, EventReady, nil)
}

// MessageReceived emits EventAppMessage for an inbound device message.
func (h *Host) MessageReceived(ctx context.Context, payload map[string]any) <-chan error {
	h.logger.Info().Msg("app message received")
	return h.Emit(ctx, EventAppMessage, payload)
}

// Wait blocks until every dispatched event has been handled.
func (h *Host) Wait() {
	h.wg.Wait()
}

// Close stops accepting events and waits for the dispatched ones. Emits after
// Close resolve to ErrClosed without running handlers.
func (h *Host) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.wg.Wait()
}
