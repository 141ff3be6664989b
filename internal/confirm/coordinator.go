package confirm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"paysession-be/internal/logger"
	"paysession-be/internal/metrics"
	"paysession-be/internal/notification"
	"paysession-be/internal/payment"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	publishTimeout = 5 * time.Second

	// resultTTL bounds how long a completed confirmation is replayed to
	// repeat callers in this process.
	resultTTL = time.Hour
)

// SessionReader supplies the trusted amount from the system of record.
type SessionReader interface {
	Get(ctx context.Context, orderID string) (*payment.Session, error)
}

// Coordinator confirms a gateway approval with the backend at most once per
// (gatewayRef, orderID). Callers in this process share one in-flight attempt;
// callers in other processes are turned away by the marker.
type Coordinator struct {
	marker    Marker
	sessions  SessionReader
	backend   Backend
	publisher notification.Publisher
	stats     metrics.ConfirmStats
	now       func() time.Time

	group singleflight.Group

	mu      sync.Mutex
	results map[string]completed
}

type completed struct {
	result    Result
	expiresAt time.Time
}

func NewCoordinator(
	marker Marker,
	sessions SessionReader,
	backend Backend,
	publisher notification.Publisher,
) *Coordinator {
	if publisher == nil {
		publisher = notification.NopPublisher{}
	}
	return &Coordinator{
		marker:    marker,
		sessions:  sessions,
		backend:   backend,
		publisher: publisher,
		now:       time.Now,
		results:   make(map[string]completed),
	}
}

// Confirm never forwards amount to the backend; it is compared against the
// session of record for logging only. If ctx ends first the attempt keeps
// running and the caller gets CodeProcessing.
func (c *Coordinator) Confirm(ctx context.Context, gatewayRef, orderID string, amount int64) (*Result, error) {
	gatewayRef = strings.TrimSpace(gatewayRef)
	orderID = strings.TrimSpace(orderID)
	if gatewayRef == "" || orderID == "" {
		return nil, &Error{Code: CodeInvalidInput, Message: "gateway reference and order id are required"}
	}

	key := DedupKey(gatewayRef, orderID)
	detached := context.WithoutCancel(ctx)

	ch := c.group.DoChan(key, func() (interface{}, error) {
		return c.confirmOnce(detached, key, gatewayRef, orderID, amount)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		out := *res.Val.(*Result)
		return &out, nil
	case <-ctx.Done():
		return nil, &Error{Code: CodeProcessing, Message: "confirmation is still processing", Err: ctx.Err()}
	}
}

func (c *Coordinator) confirmOnce(
	ctx context.Context,
	key, gatewayRef, orderID string,
	amount int64,
) (*Result, error) {

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "coordinator"),
		zap.String("method", "Confirm"),
		zap.String("order_id", orderID),
		zap.String("gateway_ref", gatewayRef),
	)

	c.stats.Attempts.Inc()

	if res, ok := c.recall(key); ok {
		c.stats.Duplicates.Inc()
		log.Info("confirmation already completed in this process")
		return res, nil
	}

	// 1. Claim the marker
	token, ok, err := c.marker.TrySet(ctx, key)
	if err != nil {
		c.stats.Failed.Inc()
		log.Error("confirmation marker unavailable", zap.Error(err))
		return nil, &Error{Code: CodeMarkerUnavailable, Message: "could not record confirmation attempt", Err: err}
	}
	if !ok {
		c.stats.Duplicates.Inc()
		log.Info("confirmation already in flight elsewhere, skipping backend call")
		return &Result{
			Payment:   ConfirmedPayment{OrderID: orderID, GatewayRef: gatewayRef},
			Duplicate: true,
		}, nil
	}

	fail := func(code Code, msg string, cause error) (*Result, error) {
		c.stats.Failed.Inc()
		if cerr := c.marker.Clear(ctx, key, token); cerr != nil {
			log.Error("failed to clear confirmation marker", zap.Error(cerr))
		}
		return nil, &Error{Code: code, Message: msg, Err: cause}
	}

	// 2. Trusted amount
	session, err := c.sessions.Get(ctx, orderID)
	if err != nil {
		log.Error("failed to load payment session", zap.Error(err))
		return fail(CodeConfirmFailed, "could not load payment session", err)
	}

	trusted := session.Amount
	if amount != trusted {
		log.Warn("caller amount differs from session amount",
			zap.Int64("caller_amount", amount),
			zap.Int64("trusted_amount", trusted),
		)
	}
	if trusted <= 0 {
		log.Warn("session amount is not positive", zap.Int64("trusted_amount", trusted))
		return fail(CodeInvalidAmount, "payment amount is invalid", nil)
	}

	// 3. Backend
	timer := metrics.StartTimer()
	data, err := c.backend.Confirm(ctx, BackendRequest{
		GatewayRef: gatewayRef,
		OrderID:    orderID,
		Amount:     trusted,
	})
	log = log.With(zap.Duration("backend_duration", timer.Duration()))
	if err != nil {
		var be *BackendError
		if errors.As(err, &be) && be.Code == CodeAlreadyProcessed {
			c.stats.Confirmed.Inc()
			log.Info("backend reports payment already processed")
			return c.remember(key, Result{Payment: ConfirmedPayment{
				OrderID:    orderID,
				GatewayRef: gatewayRef,
				Method:     session.Method,
				Amount:     trusted,
			}}), nil
		}

		msg := "payment confirmation failed"
		if be != nil && be.Message != "" {
			msg = be.Message
		}
		log.Error("backend confirmation failed", zap.Error(err))
		return fail(CodeConfirmFailed, msg, err)
	}

	confirmed := ConfirmedPayment{
		OrderID:    orderID,
		GatewayRef: gatewayRef,
		Method:     resolveMethod(data.Method, session.Method),
		Amount:     trusted,
		ReceiptRef: data.ReceiptRef,
	}

	c.stats.Confirmed.Inc()
	log.Info("payment confirmed", zap.Int64("amount", trusted), zap.String("receipt_ref", confirmed.ReceiptRef))
	go c.publish(ctx, confirmed)

	return c.remember(key, Result{Payment: confirmed}), nil
}

func (c *Coordinator) remember(key string, res Result) *Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.results {
		if !now.Before(e.expiresAt) {
			delete(c.results, k)
		}
	}
	c.results[key] = completed{result: res, expiresAt: now.Add(resultTTL)}
	return &res
}

func (c *Coordinator) recall(key string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.results[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false
	}
	res := e.result
	return &res, true
}

// Stats reports confirmation attempts made by this coordinator.
func (c *Coordinator) Stats() metrics.ConfirmSnapshot {
	return c.stats.Snapshot()
}

func (c *Coordinator) publish(ctx context.Context, p ConfirmedPayment) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := c.publisher.PublishPaymentConfirmed(ctx, notification.PaymentConfirmed{
		OrderID:    p.OrderID,
		GatewayRef: p.GatewayRef,
		Method:     string(p.Method),
		Amount:     p.Amount,
		ReceiptRef: p.ReceiptRef,
	})
	if err != nil {
		logger.FromCtx(ctx).Warn("payment confirmed notification dropped",
			zap.String("order_id", p.OrderID),
			zap.Error(err),
		)
	}
}

func resolveMethod(raw string, fallback payment.Method) payment.Method {
	if m, ok := payment.ParseMethod(raw); ok {
		return m
	}
	if raw = strings.TrimSpace(raw); raw != "" {
		return payment.Method(strings.ToUpper(raw))
	}
	return fallback
}
