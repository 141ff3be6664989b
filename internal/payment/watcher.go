package payment

import (
	"context"
	"sync"

	"paysession-be/internal/logger"

	"go.uber.org/zap"
)

type Phase string

const (
	PhaseLoading Phase = "LOADING"
	PhaseActive  Phase = "ACTIVE"
	PhaseError   Phase = "ERROR"
)

// Status is the watcher's view of one order: LOADING, ACTIVE(state) or
// ERROR(message).
type Status struct {
	Phase   Phase        `json:"phase"`
	State   PaymentState `json:"state"`
	Message string       `json:"message,omitempty"`
}

type EventKind string

const (
	EventStatus    EventKind = "status"
	EventCompleted EventKind = "completed"
	EventCanceled  EventKind = "canceled"
)

type Event struct {
	Kind   EventKind `json:"kind"`
	Status Status    `json:"status"`
}

// InProgressFunc reports whether a checkout is currently open for the order.
type InProgressFunc func(orderID string) bool

type Watcher struct {
	source     SnapshotSource
	inProgress InProgressFunc
}

func NewWatcher(source SnapshotSource, inProgress InProgressFunc) *Watcher {
	if inProgress == nil {
		inProgress = func(string) bool { return false }
	}
	return &Watcher{source: source, inProgress: inProgress}
}

// Open starts watching Payment/{orderId}. Events arrive in snapshot order on
// Subscription.Events until Close is called, a transport error is reported,
// or the source ends.
func (w *Watcher) Open(ctx context.Context, orderID string) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	snapshots, err := w.source.Watch(ctx, orderID)
	if err != nil {
		cancel()
		return nil, err
	}

	sub := &Subscription{
		orderID:    orderID,
		inProgress: w.inProgress,
		events:     make(chan Event),
		cancel:     cancel,
		done:       make(chan struct{}),
		status:     Status{Phase: PhaseLoading, State: StateUnknown},
		log: logger.FromCtx(ctx).With(
			zap.String("layer", "watcher"),
			zap.String("order_id", orderID),
		),
	}
	go sub.run(ctx, snapshots)
	return sub, nil
}

type Subscription struct {
	orderID    string
	inProgress InProgressFunc
	events     chan Event
	cancel     context.CancelFunc
	done       chan struct{}
	closeOnce  sync.Once
	log        *zap.Logger

	mu        sync.RWMutex
	status    Status
	last      PaymentState
	seen      bool
	completed bool
	canceled  bool
}

func (s *Subscription) Events() <-chan Event {
	return s.events
}

func (s *Subscription) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Done is closed once the subscription has stopped delivering.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close stops the subscription. It is safe to call more than once and from
// any goroutine; once it returns no further event is delivered.
func (s *Subscription) Close() {
	s.closeOnce.Do(s.cancel)
	<-s.done
}

func (s *Subscription) run(ctx context.Context, snapshots <-chan Snapshot) {
	defer close(s.done)
	defer close(s.events)
	defer s.cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			for _, ev := range s.apply(snap) {
				select {
				case s.events <- ev:
				case <-ctx.Done():
					return
				}
			}
			if snap.Err != nil {
				// The caller decides whether to re-open.
				return
			}
		}
	}
}

func (s *Subscription) apply(snap Snapshot) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case snap.Err != nil:
		s.log.Warn("status store error", zap.Error(snap.Err))
		s.status = Status{Phase: PhaseError, State: StateUnknown, Message: snap.Err.Error()}
		return []Event{{Kind: EventStatus, Status: s.status}}
	case snap.Session == nil:
		s.status = Status{Phase: PhaseError, State: StateUnknown, Message: "not found"}
		return []Event{{Kind: EventStatus, Status: s.status}}
	}

	next := snap.Session.State
	if s.isStale(next) {
		s.log.Debug("ignoring stale snapshot",
			zap.Stringer("current", s.last),
			zap.Stringer("delivered", next),
		)
		return nil
	}

	s.seen = true
	s.last = next
	s.status = Status{Phase: PhaseActive, State: next}
	events := []Event{{Kind: EventStatus, Status: s.status}}

	if next.IsCompleted() && !s.completed {
		s.completed = true
		events = append(events, Event{Kind: EventCompleted, Status: s.status})
	}

	if next == StateCanceled && !s.canceled && s.inProgress(s.orderID) {
		s.canceled = true
		events = append(events, Event{Kind: EventCanceled, Status: s.status})
	}

	return events
}

// isStale reports whether next would move the last seen state backwards,
// e.g. a resync delivering PAID after FEE_DONE was seen.
func (s *Subscription) isStale(next PaymentState) bool {
	if !s.seen || s.last == StateUnknown || next == s.last {
		return false
	}
	return !CanTransition(s.last, next)
}
