package payment

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	ch  chan Snapshot
	err error
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan Snapshot)}
}

func (f *fakeSource) Watch(ctx context.Context, _ string) (<-chan Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(chan Snapshot)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-f.ch:
				select {
				case out <- s:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (f *fakeSource) push(t *testing.T, s Snapshot) {
	t.Helper()
	select {
	case f.ch <- s:
	case <-time.After(time.Second):
		t.Fatal("watcher did not accept snapshot")
	}
}

func state(s PaymentState) Snapshot {
	return Snapshot{Session: &Session{OrderID: "ORD1", State: s}}
}

func nextEvent(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("expected an event")
		return Event{}
	}
}

func noEvent(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if ok {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(30 * time.Millisecond):
	}
}

func TestWatcher_CompletedOnce(t *testing.T) {
	src := newFakeSource()
	sub, err := NewWatcher(src, nil).Open(context.Background(), "ORD1")
	require.NoError(t, err)
	defer sub.Close()

	assert.Equal(t, PhaseLoading, sub.Status().Phase)

	src.push(t, state(StateRequested))
	ev := nextEvent(t, sub)
	assert.Equal(t, EventStatus, ev.Kind)
	assert.Equal(t, Status{Phase: PhaseActive, State: StateRequested}, ev.Status)

	src.push(t, state(StatePaid))
	assert.Equal(t, EventStatus, nextEvent(t, sub).Kind)
	assert.Equal(t, EventCompleted, nextEvent(t, sub).Kind)

	// Resync of the same terminal state
	src.push(t, state(StatePaid))
	assert.Equal(t, EventStatus, nextEvent(t, sub).Kind)

	src.push(t, state(StateFeeDone))
	ev = nextEvent(t, sub)
	assert.Equal(t, EventStatus, ev.Kind)
	assert.Equal(t, StateFeeDone, ev.Status.State)

	// Stale PAID after FEE_DONE is dropped entirely
	src.push(t, state(StatePaid))
	noEvent(t, sub)
	assert.Equal(t, StateFeeDone, sub.Status().State)
}

func TestWatcher_NotFound(t *testing.T) {
	src := newFakeSource()
	sub, err := NewWatcher(src, nil).Open(context.Background(), "ORD1")
	require.NoError(t, err)
	defer sub.Close()

	src.push(t, Snapshot{})
	ev := nextEvent(t, sub)
	assert.Equal(t, Status{Phase: PhaseError, State: StateUnknown, Message: "not found"}, ev.Status)

	// The document may appear later.
	src.push(t, state(StateRequested))
	assert.Equal(t, PhaseActive, nextEvent(t, sub).Status.Phase)
}

func TestWatcher_CanceledOnlyWhileInProgress(t *testing.T) {
	t.Run("In progress", func(t *testing.T) {
		src := newFakeSource()
		sub, err := NewWatcher(src, func(id string) bool { return id == "ORD1" }).Open(context.Background(), "ORD1")
		require.NoError(t, err)
		defer sub.Close()

		src.push(t, state(StateRequested))
		nextEvent(t, sub)

		src.push(t, state(StateCanceled))
		assert.Equal(t, EventStatus, nextEvent(t, sub).Kind)
		assert.Equal(t, EventCanceled, nextEvent(t, sub).Kind)

		src.push(t, state(StateCanceled))
		assert.Equal(t, EventStatus, nextEvent(t, sub).Kind)
		noEvent(t, sub)
	})

	t.Run("Not in progress", func(t *testing.T) {
		src := newFakeSource()
		sub, err := NewWatcher(src, func(string) bool { return false }).Open(context.Background(), "ORD1")
		require.NoError(t, err)
		defer sub.Close()

		src.push(t, state(StateCanceled))
		assert.Equal(t, EventStatus, nextEvent(t, sub).Kind)
		noEvent(t, sub)
	})
}

func TestWatcher_UnknownIsNotARegression(t *testing.T) {
	src := newFakeSource()
	sub, err := NewWatcher(src, nil).Open(context.Background(), "ORD1")
	require.NoError(t, err)
	defer sub.Close()

	src.push(t, Snapshot{Session: &Session{OrderID: "ORD1", State: StateUnknown}})
	ev := nextEvent(t, sub)
	assert.Equal(t, StateUnknown, ev.Status.State)
	assert.False(t, ev.Status.State.Actionable())

	src.push(t, state(StatePaid))
	nextEvent(t, sub)
	assert.Equal(t, EventCompleted, nextEvent(t, sub).Kind)

	// A garbled status after PAID is ignored
	src.push(t, Snapshot{Session: &Session{OrderID: "ORD1", State: StateUnknown}})
	noEvent(t, sub)
}

func TestWatcher_TransportErrorEndsSubscription(t *testing.T) {
	src := newFakeSource()
	sub, err := NewWatcher(src, nil).Open(context.Background(), "ORD1")
	require.NoError(t, err)

	src.push(t, Snapshot{Err: errors.New("status store: connection lost")})
	ev := nextEvent(t, sub)
	assert.Equal(t, PhaseError, ev.Status.Phase)
	assert.Equal(t, "status store: connection lost", ev.Status.Message)

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription should stop after a transport error")
	}
	_, ok := <-sub.Events()
	assert.False(t, ok)
	sub.Close()
}

func TestWatcher_CloseIsSafe(t *testing.T) {
	src := newFakeSource()
	var asked atomic.Int32
	sub, err := NewWatcher(src, func(string) bool { asked.Add(1); return true }).Open(context.Background(), "ORD1")
	require.NoError(t, err)

	src.push(t, state(StateRequested))
	// Leave the event undelivered and close while the watcher is blocked on it.
	time.Sleep(10 * time.Millisecond)

	sub.Close()
	sub.Close()

	for range sub.Events() {
		t.Fatal("no event may be delivered after Close")
	}

	done := make(chan struct{})
	go func() {
		sub.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked")
	}
}

func TestWatcher_OpenError(t *testing.T) {
	src := &fakeSource{err: ErrInvalidOrderID}
	_, err := NewWatcher(src, nil).Open(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidOrderID)
}
