package gateway

import (
	"context"
	"errors"
)

var (
	ErrSDKLoadFailed   = errors.New("SDK_LOAD_FAILED")
	ErrSDKNotReady     = errors.New("gateway SDK not ready")
	ErrInvalidToken    = errors.New("invalid callback token")
	ErrInvalidReserved = errors.New("invalid reserved data")
)

// CheckoutRequest is the body of the hosted checkout call.
type CheckoutRequest struct {
	ClientID     string `json:"clientId"`
	Method       string `json:"method"`
	OrderID      string `json:"orderId"`
	Amount       int64  `json:"amount"`
	GoodsName    string `json:"goodsName"`
	BuyerName    string `json:"buyerName"`
	BuyerTel     string `json:"buyerTel"`
	BuyerEmail   string `json:"buyerEmail"`
	ReturnURL    string `json:"returnUrl"`
	MallReserved string `json:"mallReserved"`
	UseCheckout  bool   `json:"useCheckout"`
}

// Approval is what the gateway reports when the buyer completes checkout.
type Approval struct {
	GatewayRef string
	Method     string
	Amount     int64
}

// Callbacks mirror the three ways a hosted checkout can end. At most one is
// invoked per checkout.
type Callbacks struct {
	OnSuccess func(Approval)
	OnError   func(code, message string)
	OnClose   func()
}

// SDK is the checkout capability. Checkout returns once the hosted UI has
// been opened; the outcome arrives later through cb.
type SDK interface {
	Ready() bool
	Checkout(ctx context.Context, req CheckoutRequest, cb Callbacks) error
}

// Host manages the loaded SDK handle.
type Host interface {
	RemoveStale()
	Reset()
	Inject(ctx context.Context) error
}
