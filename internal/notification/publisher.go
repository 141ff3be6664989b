package notification

import (
	"context"
)

// PaymentConfirmed is emitted once per real backend confirmation. Receipts
// and SMS are sent by downstream consumers.
type PaymentConfirmed struct {
	OrderID    string
	GatewayRef string
	Method     string
	Amount     int64
	ReceiptRef string
}

type Publisher interface {
	PublishPaymentConfirmed(ctx context.Context, event PaymentConfirmed) error
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishPaymentConfirmed(context.Context, PaymentConfirmed) error {
	return nil
}
