// Package httptransport exposes payment sessions, hosted checkout and the
// gateway return/callback endpoints over HTTP.
package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"paysession-be/internal/checkout"
	"paysession-be/internal/confirm"
	"paysession-be/internal/gateway"
	"paysession-be/internal/logger"
	"paysession-be/internal/metrics"
	"paysession-be/internal/payment"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

type Sessions interface {
	GetSession(ctx context.Context, orderID string) (*payment.Session, error)
	Cancel(ctx context.Context, orderID string) (*payment.Session, error)
}

type Checkout interface {
	Start(ctx context.Context, in checkout.StartInput) checkout.Outcome
	InProgress(orderID string) bool
}

type Redirects interface {
	Handle(ctx context.Context, q url.Values) checkout.Navigation
}

type StatusWatcher interface {
	Open(ctx context.Context, orderID string) (*payment.Subscription, error)
}

type CallbackVerifier interface {
	VerifyCallback(r *http.Request) error
}

type Dispatcher interface {
	Dispatch(ev gateway.CallbackEvent) bool
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type StatsReporter interface {
	Stats() metrics.ConfirmSnapshot
}

// Deps are the collaborators the handler needs. DB and Stats are optional.
type Deps struct {
	Sessions  Sessions
	Checkout  Checkout
	Redirects Redirects
	Watcher   StatusWatcher
	Verifier  CallbackVerifier
	Callbacks Dispatcher
	Views     checkout.Views
	DB        Pinger
	Stats     StatsReporter
}

// Handler wires HTTP requests to the payment session services.
type Handler struct {
	deps Deps
}

func New(deps Deps) *Handler {
	return &Handler{deps: deps}
}

// SessionView is the read model served to the checkout page.
type SessionView struct {
	OrderID    string               `json:"orderId"`
	Amount     int64                `json:"amount"`
	State      payment.PaymentState `json:"state"`
	Actionable bool                 `json:"actionable"`
	Method     payment.Method       `json:"method,omitempty"`
	InProgress bool                 `json:"inProgress"`
}

type HealthResponse struct {
	Status        string                   `json:"status"`
	Confirmations *metrics.ConfirmSnapshot `json:"confirmations,omitempty"`
}

type CheckoutRequest struct {
	Method     string `json:"method"`
	BuyerName  string `json:"buyerName"`
	BuyerTel   string `json:"buyerTel"`
	BuyerEmail string `json:"buyerEmail"`
}

type OutcomeResponse struct {
	Kind         checkout.Kind             `json:"kind"`
	OrderID      string                    `json:"orderId"`
	GatewayRef   string                    `json:"gatewayRef,omitempty"`
	Code         string                    `json:"code,omitempty"`
	Message      string                    `json:"message,omitempty"`
	Reason       checkout.Reason           `json:"reason,omitempty"`
	Silent       bool                      `json:"silent"`
	Retryable    bool                      `json:"retryable"`
	Instructions []string                  `json:"instructions,omitempty"`
	Payment      *confirm.ConfirmedPayment `json:"payment,omitempty"`
	Duplicate    bool                      `json:"duplicate,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.deps.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := h.deps.DB.PingContext(ctx); err != nil {
			logger.FromCtx(r.Context()).Error("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
			return
		}
	}

	resp := HealthResponse{Status: "ok"}
	if h.deps.Stats != nil {
		stats := h.deps.Stats.Stats()
		resp.Confirmations = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	session, err := h.deps.Sessions.GetSession(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(session))
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	session, err := h.deps.Sessions.Cancel(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(session))
}

// StartCheckout blocks until the hosted checkout reaches its outcome.
func (h *Handler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	ctx := logger.WithOrderID(r.Context(), orderID)

	var req CheckoutRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorPayload{Error: "invalid JSON", Code: "bad_request"})
		return
	}

	session, err := h.deps.Sessions.GetSession(ctx, orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := h.deps.Checkout.Start(ctx, checkout.StartInput{
		Session: session,
		Method:  payment.Method(strings.TrimSpace(req.Method)),
		Buyer: checkout.Buyer{
			Name:  req.BuyerName,
			Tel:   req.BuyerTel,
			Email: req.BuyerEmail,
		},
	})

	resp := OutcomeResponse{
		Kind:         out.Kind,
		OrderID:      out.OrderID,
		GatewayRef:   out.GatewayRef,
		Code:         out.Code,
		Message:      out.Message,
		Reason:       out.Reason,
		Silent:       out.Silent,
		Retryable:    out.Retryable,
		Instructions: out.Instructions,
	}
	if out.Confirmation != nil {
		p := out.Confirmation.Payment
		resp.Payment = &p
		resp.Duplicate = out.Confirmation.Duplicate
	}
	writeJSON(w, outcomeStatus(out), resp)
}

// Return is the gateway's browser redirect target.
func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if r.Method == http.MethodPost {
		// Some gateways post the return parameters as a form.
		if err := r.ParseForm(); err == nil {
			q = r.Form
		}
	}

	nav := h.deps.Redirects.Handle(r.Context(), q)
	http.Redirect(w, r, h.deps.Views.URL(nav), http.StatusSeeOther)
}

// Callback receives server-to-server checkout results from the gateway.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	log := logger.FromCtx(r.Context()).With(zap.String("layer", "callback"))

	if err := h.deps.Verifier.VerifyCallback(r); err != nil {
		log.Warn("callback rejected", zap.Error(err))
		writeError(w, r, err)
		return
	}

	ev, err := gateway.ParseCallback(r.Body)
	if err != nil {
		log.Warn("invalid callback body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, ErrorPayload{Error: err.Error(), Code: "bad_request"})
		return
	}

	if !h.deps.Callbacks.Dispatch(ev) {
		log.Info("callback for order without open checkout",
			zap.String("order_id", ev.OrderID),
			zap.String("result", ev.Result),
		)
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) view(s *payment.Session) SessionView {
	return SessionView{
		OrderID:    s.OrderID,
		Amount:     s.Amount,
		State:      s.State,
		Actionable: s.State.Actionable(),
		Method:     s.Method,
		InProgress: h.deps.Checkout.InProgress(s.OrderID),
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.FromCtx(r.Context()).Error("request failed", zap.Error(err))
	}

	msg := err.Error()
	var pe *checkout.PreconditionError
	var ce *confirm.Error
	switch {
	case errors.As(err, &ce):
		msg = ce.Message
	case errors.As(err, &pe):
		msg = pe.Message
	case status == http.StatusInternalServerError:
		msg = "internal error"
	}
	writeJSON(w, status, ErrorPayload{Error: msg, Code: Kind(err)})
}

// writeJSON writes the response to the HTTP writer
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
