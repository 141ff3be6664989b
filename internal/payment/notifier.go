package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"paysession-be/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// StatusChannel is the Postgres NOTIFY channel the payments trigger writes
// the order id to.
const StatusChannel = "payment_status"

var ErrNotifierClosed = errors.New("status notifier closed")

type listenerConn interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Close() error
}

// PGNotifier fans Postgres notifications out to per-order subscribers.
// A nil signal means "the document may have changed"; a non-nil signal is a
// transport error. Signals coalesce: a subscriber that has not consumed the
// previous one simply re-reads once.
type PGNotifier struct {
	conn listenerConn

	mu     sync.Mutex
	subs   map[string]map[chan error]struct{}
	closed bool
}

// NewPGListener opens a pq.Listener whose connection events are forwarded
// to the notifier once it exists.
func NewPGListener(dsn string) (*pq.Listener, *PGNotifier) {
	n := &PGNotifier{subs: make(map[string]map[chan error]struct{})}
	l := pq.NewListener(dsn, 2*time.Second, time.Minute, n.handleEvent)
	n.conn = l
	return l, n
}

func NewPGNotifier(conn listenerConn) *PGNotifier {
	return &PGNotifier{
		conn: conn,
		subs: make(map[string]map[chan error]struct{}),
	}
}

// Run listens on StatusChannel and dispatches until ctx is done.
func (n *PGNotifier) Run(ctx context.Context) error {
	log := logger.FromCtx(ctx).With(zap.String("layer", "notifier"), zap.String("channel", StatusChannel))

	if err := n.conn.Listen(StatusChannel); err != nil {
		return fmt.Errorf("listen %s: %w", StatusChannel, err)
	}
	log.Info("listening for payment status changes")

	notifications := n.conn.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			n.shutdown()
			return n.conn.Close()
		case msg, ok := <-notifications:
			if !ok {
				n.shutdown()
				return ErrNotifierClosed
			}
			if msg == nil {
				// Reconnected: anything may have changed while we were away.
				log.Info("listener reconnected, resyncing subscribers")
				n.broadcast(nil)
				continue
			}
			n.signal(msg.Extra, nil)
		}
	}
}

// Subscribe registers interest in one order id. The returned function
// unregisters and must be called exactly once.
func (n *PGNotifier) Subscribe(orderID string) (<-chan error, func()) {
	ch := make(chan error, 1)

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		ch <- ErrNotifierClosed
		return ch, func() {}
	}
	if n.subs[orderID] == nil {
		n.subs[orderID] = make(map[chan error]struct{})
	}
	n.subs[orderID][ch] = struct{}{}
	n.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs[orderID], ch)
			if len(n.subs[orderID]) == 0 {
				delete(n.subs, orderID)
			}
		})
	}
}

func (n *PGNotifier) handleEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventDisconnected, pq.ListenerEventConnectionAttemptFailed:
		if err == nil {
			err = errors.New("status store connection lost")
		}
		logger.L().Warn("payment status listener disconnected", zap.Error(err))
		n.broadcast(fmt.Errorf("status store: %w", err))
	}
}

func (n *PGNotifier) signal(orderID string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs[orderID] {
		offer(ch, err)
	}
}

func (n *PGNotifier) broadcast(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, set := range n.subs {
		for ch := range set {
			offer(ch, err)
		}
	}
}

func (n *PGNotifier) shutdown() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	n.broadcast(ErrNotifierClosed)
}

// offer never blocks. A pending signal already forces a re-read, so a
// dropped one is not lost.
func offer(ch chan error, err error) {
	select {
	case ch <- err:
	default:
	}
}
