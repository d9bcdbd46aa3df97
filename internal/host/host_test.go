package host

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHost() *Host {
	return New(zerolog.Nop(), clockwork.NewFakeClockAt(time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)))
}

func TestHost_ReadyRunsHandlers(t *testing.T) {
	h := newTestHost()

	var got Envelope
	h.On(EventReady, func(_ context.Context, env Envelope) error {
		got = env
		return nil
	})

	require.NoError(t, <-h.Ready(context.Background()))
	assert.Equal(t, EventReady, got.Event)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC), got.ReceivedAt)
}

func TestHost_MessageReceivedPassesPayload(t *testing.T) {
	h := newTestHost()

	var got map[string]any
	h.On(EventAppMessage, func(_ context.Context, env Envelope) error {
		got = env.Payload
		return nil
	})
	h.On(EventReady, func(context.Context, Envelope) error {
		t.Error("ready handler must not run for appmessage")
		return nil
	})

	require.NoError(t, <-h.MessageReceived(context.Background(), map[string]any{"0": 0}))
	assert.Equal(t, map[string]any{"0": 0}, got)
}

func TestHost_FutureJoinsErrors(t *testing.T) {
	h := newTestHost()
	errA := errors.New("a")
	errB := errors.New("b")
	h.On(EventAppMessage, func(context.Context, Envelope) error { return errA })
	h.On(EventAppMessage, func(context.Context, Envelope) error { return nil })
	h.On(EventAppMessage, func(context.Context, Envelope) error { return errB })

	future := h.MessageReceived(context.Background(), nil)
	err := <-future
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)

	_, open := <-future
	assert.False(t, open, "future closes after resolving")
}

func TestHost_NoHandlers(t *testing.T) {
	h := newTestHost()
	assert.NoError(t, <-h.Emit(context.Background(), EventReady, nil))
}

func TestHost_EmitsRunConcurrently(t *testing.T) {
	h := newTestHost()

	var started sync.WaitGroup
	started.Add(2)
	var calls atomic.Int32
	h.On(EventAppMessage, func(context.Context, Envelope) error {
		calls.Add(1)
		started.Done()
		started.Wait() // deadlocks if dispatches were serialized
		return nil
	})

	f1 := h.MessageReceived(context.Background(), nil)
	f2 := h.MessageReceived(context.Background(), nil)

	select {
	case <-waitAll(f1, f2):
	case <-time.After(5 * time.Second):
		t.Fatal("dispatches did not run concurrently")
	}
	h.Wait()
	assert.Equal(t, int32(2), calls.Load())
}

func waitAll(futures ...<-chan error) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		for _, f := range futures {
			<-f
		}
		close(done)
	}()
	return done
}

func TestHost_CloseWaitsThenRejects(t *testing.T) {
	h := newTestHost()

	release := make(chan struct{})
	var runs atomic.Int32
	h.On(EventAppMessage, func(_ context.Context, _ Envelope) error {
		runs.Add(1)
		<-release
		return nil
	})

	first := h.MessageReceived(context.Background(), nil)

	closed := make(chan struct{})
	go func() {
		h.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a handler was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-first)
	<-closed

	err := <-h.MessageReceived(context.Background(), map[string]any{"0": 0})
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, int32(1), runs.Load())
}

func TestHost_EmitRacingClose(t *testing.T) {
	h := newTestHost()
	h.On(EventAppMessage, func(_ context.Context, _ Envelope) error { return nil })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := <-h.MessageReceived(context.Background(), nil)
			if err != nil {
				assert.ErrorIs(t, err, ErrClosed)
			}
		}()
	}
	h.Close()
	wg.Wait()
}
