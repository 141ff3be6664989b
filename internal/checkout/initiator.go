package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"paysession-be/internal/confirm"
	"paysession-be/internal/gateway"
	"paysession-be/internal/logger"
	"paysession-be/internal/payment"

	"go.uber.org/zap"
)

const (
	DefaultTimeout = 30 * time.Second

	CodeUserCancel     = "USER_CANCEL"
	CodeCheckoutFailed = "CHECKOUT_FAILED"
	CodeCanceled       = "CANCELED"
)

type Kind string

const (
	OutcomeSuccess  Kind = "SUCCESS"
	OutcomeError    Kind = "ERROR"
	OutcomeClosed   Kind = "CLOSED"
	OutcomeTimeout  Kind = "TIMEOUT"
	OutcomeTransfer Kind = "TRANSFER"
	OutcomeRejected Kind = "REJECTED"
)

type Buyer struct {
	Name  string
	Tel   string
	Email string
}

type StartInput struct {
	Session *payment.Session
	Method  payment.Method
	Buyer   Buyer
}

// Outcome is the single terminal result of Start. Silent outcomes reset the
// UI without showing anything.
type Outcome struct {
	Kind         Kind
	OrderID      string
	GatewayRef   string
	Code         string
	Message      string
	Reason       Reason
	Silent       bool
	Retryable    bool
	Instructions []string
	Confirmation *confirm.Result
	ConfirmErr   *confirm.Error
}

type Confirmer interface {
	Confirm(ctx context.Context, gatewayRef, orderID string, amount int64) (*confirm.Result, error)
}

type Loader interface {
	EnsureLoaded(ctx context.Context) error
}

type ReservedEncoder interface {
	Encode(r gateway.Reserved) (string, error)
}

type TransferAccount struct {
	Bank    string
	Account string
	Holder  string
}

type Config struct {
	ClientID       string
	HasCredentials bool
	ReturnURL      string
	Origin         string
	GoodsName      string
	Timeout        time.Duration
	Transfer       TransferAccount
}

type Initiator struct {
	cfg       Config
	sdk       gateway.SDK
	loader    Loader
	reserved  ReservedEncoder
	confirmer Confirmer

	mu         sync.Mutex
	inProgress map[string]struct{}
}

func NewInitiator(
	cfg Config,
	sdk gateway.SDK,
	loader Loader,
	reserved ReservedEncoder,
	confirmer Confirmer,
) *Initiator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Initiator{
		cfg:        cfg,
		sdk:        sdk,
		loader:     loader,
		reserved:   reserved,
		confirmer:  confirmer,
		inProgress: make(map[string]struct{}),
	}
}

// InProgress reports whether a hosted checkout is open for the order.
func (i *Initiator) InProgress(orderID string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.inProgress[orderID]
	return ok
}

// Check runs the synchronous preconditions in order: credentials, state,
// amount, then method. The SDK check needs I/O and only happens in Start.
func (i *Initiator) Check(in StartInput) error {
	if in.Session == nil {
		return &PreconditionError{Reason: ReasonState, Message: "payment session not loaded"}
	}
	if in.Method != payment.MethodBankTransfer && !i.cfg.HasCredentials {
		return &PreconditionError{Reason: ReasonCredentials, Message: "payment gateway is not configured"}
	}
	if in.Session.State != payment.StateRequested {
		return &PreconditionError{Reason: ReasonState, Message: "payment is not awaiting checkout (" + in.Session.State.String() + ")"}
	}
	if in.Session.Amount <= 0 {
		return &PreconditionError{Reason: ReasonAmount, Message: "payment amount must be greater than zero"}
	}
	if _, ok := payment.ParseMethod(string(in.Method)); !ok {
		return &PreconditionError{Reason: ReasonMethod, Message: "unsupported payment method"}
	}
	return nil
}

// Start drives one checkout to exactly one terminal outcome.
func (i *Initiator) Start(ctx context.Context, in StartInput) Outcome {
	if m, ok := payment.ParseMethod(string(in.Method)); ok {
		in.Method = m
	}

	orderID := ""
	if in.Session != nil {
		orderID = in.Session.OrderID
	}
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "checkout"),
		zap.String("method", "Start"),
		zap.String("order_id", orderID),
		zap.String("pay_method", string(in.Method)),
	)

	if err := i.Check(in); err != nil {
		log.Info("checkout rejected", zap.Error(err))
		return rejected(orderID, err)
	}

	if in.Method == payment.MethodBankTransfer {
		return Outcome{
			Kind:         OutcomeTransfer,
			OrderID:      orderID,
			Instructions: i.transferInstructions(in.Session),
		}
	}

	if !i.begin(orderID) {
		return rejected(orderID, &PreconditionError{Reason: ReasonInProgress, Message: "a checkout is already open for this order"})
	}

	out := i.open(ctx, in, log)
	i.end(orderID)

	if out.Kind != OutcomeSuccess {
		log.Info("checkout finished", zap.String("outcome", string(out.Kind)), zap.String("code", out.Code))
		return out
	}

	log.Info("checkout approved, confirming", zap.String("gateway_ref", out.GatewayRef))
	res, err := i.confirmer.Confirm(ctx, out.GatewayRef, orderID, in.Session.Amount)
	if err != nil {
		var ce *confirm.Error
		if !errors.As(err, &ce) {
			ce = &confirm.Error{Code: confirm.CodeConfirmFailed, Message: "payment confirmation failed", Err: err}
		}
		out.ConfirmErr = ce
		out.Code = string(ce.Code)
		out.Message = ce.Message
		out.Retryable = ce.Retryable()
		return out
	}
	out.Confirmation = res
	return out
}

func (i *Initiator) open(ctx context.Context, in StartInput, log *zap.Logger) Outcome {
	orderID := in.Session.OrderID

	if err := i.loader.EnsureLoaded(ctx); err != nil {
		log.Warn("gateway sdk unavailable", zap.Error(err))
		return rejected(orderID, &PreconditionError{Reason: ReasonSDK, Message: "payment module could not be loaded", Err: err})
	}

	reserved, err := i.reserved.Encode(gateway.Reserved{
		Origin:  i.cfg.Origin,
		OrderID: orderID,
		Method:  string(in.Method),
	})
	if err != nil {
		log.Error("failed to encode reserved data", zap.Error(err))
		return Outcome{Kind: OutcomeError, OrderID: orderID, Code: CodeCheckoutFailed, Message: "could not prepare checkout", Retryable: true}
	}

	goodsName := in.Session.GoodsName
	if goodsName == "" {
		goodsName = i.cfg.GoodsName
	}
	req := gateway.CheckoutRequest{
		ClientID:     i.cfg.ClientID,
		Method:       string(in.Method),
		OrderID:      orderID,
		Amount:       in.Session.Amount,
		GoodsName:    goodsName,
		BuyerName:    firstNonEmpty(in.Buyer.Name, in.Session.BuyerName),
		BuyerTel:     firstNonEmpty(in.Buyer.Tel, in.Session.BuyerTel),
		BuyerEmail:   firstNonEmpty(in.Buyer.Email, in.Session.BuyerEmail),
		ReturnURL:    i.cfg.ReturnURL,
		MallReserved: reserved,
		UseCheckout:  true,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan Outcome, 1)
	var once sync.Once
	resolve := func(o Outcome) {
		once.Do(func() { done <- o })
	}

	timer := time.AfterFunc(i.cfg.Timeout, func() {
		resolve(Outcome{Kind: OutcomeTimeout, OrderID: orderID, Message: "payment window timed out", Retryable: true})
	})
	defer timer.Stop()

	cb := gateway.Callbacks{
		OnSuccess: func(a gateway.Approval) {
			resolve(Outcome{Kind: OutcomeSuccess, OrderID: orderID, GatewayRef: a.GatewayRef})
		},
		OnError: func(code, message string) {
			resolve(errorOutcome(orderID, code, message))
		},
		OnClose: func() {
			resolve(Outcome{Kind: OutcomeClosed, OrderID: orderID, Silent: true})
		},
	}

	if err := i.sdk.Checkout(ctx, req, cb); err != nil {
		log.Error("failed to open hosted checkout", zap.Error(err))
		resolve(Outcome{Kind: OutcomeError, OrderID: orderID, Code: CodeCheckoutFailed, Message: err.Error(), Retryable: true})
	}

	select {
	case out := <-done:
		return out
	case <-ctx.Done():
		resolve(Outcome{Kind: OutcomeError, OrderID: orderID, Code: CodeCanceled, Message: "checkout abandoned", Silent: true})
		return <-done
	}
}

func (i *Initiator) transferInstructions(s *payment.Session) []string {
	return InjectVariables(GetInstructions(payment.MethodBankTransfer), InstructionVars{
		"amount":   FormatAmount(s.Amount),
		"order_id": s.OrderID,
		"bank":     i.cfg.Transfer.Bank,
		"account":  i.cfg.Transfer.Account,
		"holder":   i.cfg.Transfer.Holder,
	})
}

func (i *Initiator) begin(orderID string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, busy := i.inProgress[orderID]; busy {
		return false
	}
	i.inProgress[orderID] = struct{}{}
	return true
}

func (i *Initiator) end(orderID string) {
	i.mu.Lock()
	delete(i.inProgress, orderID)
	i.mu.Unlock()
}

func rejected(orderID string, err error) Outcome {
	out := Outcome{Kind: OutcomeRejected, OrderID: orderID, Message: err.Error()}
	var pe *PreconditionError
	if errors.As(err, &pe) {
		out.Reason = pe.Reason
		out.Message = pe.Message
		out.Retryable = pe.Reason == ReasonSDK || pe.Reason == ReasonInProgress
	}
	return out
}

func errorOutcome(orderID, code, message string) Outcome {
	out := Outcome{Kind: OutcomeError, OrderID: orderID, Code: code, Message: message}
	if IsUserCancel(code, message) {
		out.Silent = true
		return out
	}
	out.Retryable = true
	return out
}

// IsUserCancel detects the gateway's cancel reports, which arrive as errors.
func IsUserCancel(code, message string) bool {
	if strings.EqualFold(code, CodeUserCancel) {
		return true
	}
	msg := strings.ToLower(message)
	return strings.Contains(msg, "cancel") || strings.Contains(msg, "취소")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
