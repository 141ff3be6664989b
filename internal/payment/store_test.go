package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetByOrderID(ctx context.Context, orderID string) (*Session, error) {
	args := m.Called(ctx, orderID)
	if s := args.Get(0); s != nil {
		return s.(*Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) TransitionState(ctx context.Context, orderID string, from, to PaymentState) (bool, error) {
	args := m.Called(ctx, orderID, from, to)
	return args.Bool(0), args.Error(1)
}

// fakeFeed hands out one channel per subscription and records unsubscribes.
type fakeFeed struct {
	ch           chan error
	unsubscribed chan struct{}
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{ch: make(chan error, 1), unsubscribed: make(chan struct{})}
}

func (f *fakeFeed) Subscribe(string) (<-chan error, func()) {
	return f.ch, func() { close(f.unsubscribed) }
}

func nextSnapshot(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s, ok := <-ch:
		require.True(t, ok, "snapshot channel closed")
		return s
	case <-time.After(time.Second):
		t.Fatal("expected a snapshot")
		return Snapshot{}
	}
}

func TestStore_Watch(t *testing.T) {
	repo := new(MockRepository)
	feed := newFakeFeed()
	store := NewStore(repo, feed)

	repo.On("GetByOrderID", mock.Anything, "ORD1").Return(&Session{OrderID: "ORD1", State: StateRequested}, nil).Once()
	repo.On("GetByOrderID", mock.Anything, "ORD1").Return(&Session{OrderID: "ORD1", State: StatePaid}, nil).Once()
	repo.On("GetByOrderID", mock.Anything, "ORD1").Return(nil, ErrSessionNotFound).Once()

	ctx, cancel := context.WithCancel(context.Background())
	snaps, err := store.Watch(ctx, "ORD1")
	require.NoError(t, err)

	assert.Equal(t, StateRequested, nextSnapshot(t, snaps).Session.State)

	feed.ch <- nil
	assert.Equal(t, StatePaid, nextSnapshot(t, snaps).Session.State)

	feed.ch <- nil
	missing := nextSnapshot(t, snaps)
	assert.Nil(t, missing.Session)
	assert.NoError(t, missing.Err)

	feed.ch <- errors.New("connection lost")
	assert.EqualError(t, nextSnapshot(t, snaps).Err, "connection lost")

	cancel()
	<-feed.unsubscribed
	for range snaps {
	}
	repo.AssertExpectations(t)
}

func TestStore_ReadError(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetByOrderID", mock.Anything, "ORD1").Return(nil, errors.New("db down"))

	snaps, err := NewStore(repo, newFakeFeed()).Watch(context.Background(), "ORD1")
	require.NoError(t, err)
	assert.EqualError(t, nextSnapshot(t, snaps).Err, "db down")
}

func TestStore_EmptyOrderID(t *testing.T) {
	store := NewStore(new(MockRepository), newFakeFeed())

	_, err := store.Watch(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidOrderID)

	_, err = store.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidOrderID)
}
