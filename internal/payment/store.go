package payment

import (
	"context"
	"errors"
)

// Snapshot is one delivery of Payment/{orderId}. Session is nil when the
// document does not exist; Err is set on transport failures.
type Snapshot struct {
	Session *Session
	Err     error
}

// SnapshotSource delivers snapshots for one order in store order. The
// channel is closed when ctx is done.
type SnapshotSource interface {
	Watch(ctx context.Context, orderID string) (<-chan Snapshot, error)
}

type changeFeed interface {
	Subscribe(orderID string) (<-chan error, func())
}

// Store is the status store: point reads from the repository plus pushed
// change signals from the notifier.
type Store struct {
	repo Repository
	feed changeFeed
}

func NewStore(repo Repository, feed changeFeed) *Store {
	return &Store{repo: repo, feed: feed}
}

func (s *Store) Get(ctx context.Context, orderID string) (*Session, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	return s.repo.GetByOrderID(ctx, orderID)
}

func (s *Store) Watch(ctx context.Context, orderID string) (<-chan Snapshot, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}

	// Subscribe before the first read so a change between the two is not missed.
	signals, unsubscribe := s.feed.Subscribe(orderID)
	out := make(chan Snapshot)

	go func() {
		defer close(out)
		defer unsubscribe()

		send := func(snap Snapshot) bool {
			select {
			case out <- snap:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(s.read(ctx, orderID)) {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case err := <-signals:
				snap := Snapshot{Err: err}
				if err == nil {
					snap = s.read(ctx, orderID)
				}
				if !send(snap) {
					return
				}
			}
		}
	}()

	return out, nil
}

func (s *Store) read(ctx context.Context, orderID string) Snapshot {
	session, err := s.repo.GetByOrderID(ctx, orderID)
	if errors.Is(err, ErrSessionNotFound) {
		return Snapshot{}
	}
	if err != nil {
		return Snapshot{Err: err}
	}
	return Snapshot{Session: session}
}
