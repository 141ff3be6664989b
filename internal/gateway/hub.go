package gateway

import (
	"sync"
)

const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultClosed  = "closed"
)

// CallbackEvent is one gateway notification about an open checkout.
type CallbackEvent struct {
	OrderID    string `json:"orderId"`
	Result     string `json:"result"`
	GatewayRef string `json:"tid"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Method     string `json:"method"`
	Amount     int64  `json:"amount"`
}

type registration struct {
	cb Callbacks
}

// Hub routes gateway callbacks to the checkout waiting for that order.
type Hub struct {
	mu      sync.Mutex
	pending map[string]*registration
}

func NewHub() *Hub {
	return &Hub{pending: make(map[string]*registration)}
}

// Register replaces any earlier registration for orderID. The returned
// function removes this registration only.
func (h *Hub) Register(orderID string, cb Callbacks) func() {
	reg := &registration{cb: cb}

	h.mu.Lock()
	h.pending[orderID] = reg
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.pending[orderID] == reg {
			delete(h.pending, orderID)
		}
	}
}

// Dispatch delivers ev to the registered checkout and forgets it. It reports
// false when nothing is waiting for the order.
func (h *Hub) Dispatch(ev CallbackEvent) bool {
	h.mu.Lock()
	reg, ok := h.pending[ev.OrderID]
	if ok {
		delete(h.pending, ev.OrderID)
	}
	h.mu.Unlock()

	if !ok {
		return false
	}

	switch ev.Result {
	case ResultSuccess:
		if reg.cb.OnSuccess != nil {
			reg.cb.OnSuccess(Approval{GatewayRef: ev.GatewayRef, Method: ev.Method, Amount: ev.Amount})
		}
	case ResultClosed:
		if reg.cb.OnClose != nil {
			reg.cb.OnClose()
		}
	default:
		if reg.cb.OnError != nil {
			reg.cb.OnError(ev.Code, ev.Message)
		}
	}
	return true
}

func (h *Hub) Pending(orderID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.pending[orderID]
	return ok
}
