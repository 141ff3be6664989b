package checkout

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"paysession-be/internal/confirm"
	"paysession-be/internal/gateway"
	"paysession-be/internal/logger"
	"paysession-be/internal/payment"

	"go.uber.org/zap"
)

const (
	SuccessResultCode = "0000"

	DefaultProcessingBudget = 5 * time.Second

	CodeMissingField     = "MISSING_FIELD"
	CodeReservedMismatch = "RESERVED_MISMATCH"
	CodeProcessing       = "PROCESSING"
)

// ReturnParams are the query parameters the gateway appends to returnUrl.
type ReturnParams struct {
	AuthResultCode string
	AuthResultMsg  string
	TID            string
	OrderID        string
	Amount         string
	PayMethod      string
	CardName       string
	CardNum        string
	MallReserved   string
}

func ParseReturn(q url.Values) ReturnParams {
	get := func(key string) string { return strings.TrimSpace(q.Get(key)) }
	return ReturnParams{
		AuthResultCode: get("authResultCode"),
		AuthResultMsg:  get("authResultMsg"),
		TID:            get("tid"),
		OrderID:        get("orderId"),
		Amount:         get("amount"),
		PayMethod:      get("payMethod"),
		CardName:       get("cardName"),
		CardNum:        get("cardNum"),
		MallReserved:   get("mallReserved"),
	}
}

// ValidationError names the field or gateway code that made a return unusable.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (p ReturnParams) Validate() error {
	if p.AuthResultCode == "" {
		return &ValidationError{Code: CodeMissingField, Message: "missing authResultCode"}
	}
	if p.AuthResultCode != SuccessResultCode {
		msg := p.AuthResultMsg
		if msg == "" {
			msg = "payment failed (" + p.AuthResultCode + ")"
		}
		return &ValidationError{Code: p.AuthResultCode, Message: msg}
	}

	required := []struct{ name, value string }{
		{"tid", p.TID},
		{"orderId", p.OrderID},
		{"amount", p.Amount},
	}
	for _, f := range required {
		if f.value == "" {
			return &ValidationError{Code: CodeMissingField, Message: "missing " + f.name}
		}
	}
	return nil
}

type View string

const (
	ViewSuccess  View = "success"
	ViewFailure  View = "failure"
	ViewCheckout View = "checkout"
)

// Navigation is where the buyer ends up after a return.
type Navigation struct {
	View      View
	OrderID   string
	Code      string
	Message   string
	Payment   *confirm.ConfirmedPayment
	Duplicate bool
}

// Views maps navigation targets to page URLs.
type Views struct {
	Success  string
	Failure  string
	Checkout string
}

// URL renders n as a redirect target carrying its display fields.
func (v Views) URL(n Navigation) string {
	base := v.Failure
	switch n.View {
	case ViewSuccess:
		base = v.Success
	case ViewCheckout:
		base = v.Checkout
	}

	q := url.Values{}
	if n.OrderID != "" {
		q.Set("orderId", n.OrderID)
	}
	if n.Code != "" {
		q.Set("code", n.Code)
	}
	if n.Message != "" {
		q.Set("message", n.Message)
	}
	if n.Payment != nil {
		if n.Payment.Amount > 0 {
			q.Set("amount", strconv.FormatInt(n.Payment.Amount, 10))
		}
		if n.Payment.Method != "" {
			q.Set("method", string(n.Payment.Method))
		}
		if n.Payment.ReceiptRef != "" {
			q.Set("receiptRef", n.Payment.ReceiptRef)
		}
	}
	if n.Duplicate {
		q.Set("processing", "1")
	}

	if len(q) == 0 {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q.Encode()
}

type ReservedDecoder interface {
	Decode(token string) (*gateway.Reserved, error)
}

type RedirectHandler struct {
	confirmer Confirmer
	reserved  ReservedDecoder
	budget    time.Duration
}

func NewRedirectHandler(confirmer Confirmer, reserved ReservedDecoder, budget time.Duration) *RedirectHandler {
	if budget <= 0 {
		budget = DefaultProcessingBudget
	}
	return &RedirectHandler{confirmer: confirmer, reserved: reserved, budget: budget}
}

// Handle always resolves to a navigation within the processing budget. If
// the budget runs out the confirmation keeps going and the buyer is sent
// back to the checkout view, where the status stream picks up the result.
func (h *RedirectHandler) Handle(ctx context.Context, q url.Values) Navigation {
	p := ParseReturn(q)
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "redirect"),
		zap.String("order_id", p.OrderID),
		zap.String("gateway_ref", p.TID),
		zap.String("result_code", p.AuthResultCode),
	)

	if err := p.Validate(); err != nil {
		var ve *ValidationError
		errors.As(err, &ve)
		log.Warn("gateway return rejected", zap.String("reason", ve.Message))
		return Navigation{View: ViewFailure, OrderID: p.OrderID, Code: ve.Code, Message: ve.Message}
	}

	if p.MallReserved != "" && h.reserved != nil {
		r, err := h.reserved.Decode(p.MallReserved)
		if err != nil || r.OrderID != p.OrderID {
			log.Warn("reserved data does not match return", zap.Error(err))
			return Navigation{View: ViewFailure, OrderID: p.OrderID, Code: CodeReservedMismatch, Message: "reserved data mismatch"}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, h.budget)
	defer cancel()

	res, err := h.confirmer.Confirm(ctx, p.TID, p.OrderID, payment.NormalizeAmount(p.Amount))
	if err != nil {
		var ce *confirm.Error
		if errors.As(err, &ce) && ce.Code == confirm.CodeProcessing {
			log.Info("confirmation exceeded processing budget")
			return Navigation{View: ViewCheckout, OrderID: p.OrderID, Code: CodeProcessing, Message: "payment is still being confirmed"}
		}

		nav := Navigation{View: ViewFailure, OrderID: p.OrderID, Code: string(confirm.CodeConfirmFailed), Message: "payment confirmation failed"}
		if ce != nil {
			nav.Code = string(ce.Code)
			nav.Message = ce.Message
		}
		log.Warn("confirmation failed", zap.Error(err))
		return nav
	}

	paid := res.Payment
	return Navigation{
		View:      ViewSuccess,
		OrderID:   p.OrderID,
		Payment:   &paid,
		Duplicate: res.Duplicate,
	}
}
