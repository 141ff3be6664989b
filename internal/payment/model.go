package payment

import (
	"strings"
	"time"
)

// PaymentState mirrors the numeric status codes stored on Payment/{orderId}.
type PaymentState int

const (
	StateUnknown    PaymentState = -1
	StateCanceled   PaymentState = 0
	StateRequested  PaymentState = 1
	StatePaid       PaymentState = 2
	StateFeePending PaymentState = 3
	StateFeeDone    PaymentState = 4
)

var stateNames = map[PaymentState]string{
	StateUnknown:    "UNKNOWN",
	StateCanceled:   "CANCELED",
	StateRequested:  "REQUESTED",
	StatePaid:       "PAID",
	StateFeePending: "FEE_PENDING",
	StateFeeDone:    "FEE_DONE",
}

func (s PaymentState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return stateNames[StateUnknown]
}

func (s PaymentState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts a state name; unknown names decode to StateUnknown.
func (s *PaymentState) UnmarshalText(text []byte) error {
	name := strings.ToUpper(strings.TrimSpace(string(text)))
	for state, n := range stateNames {
		if n == name {
			*s = state
			return nil
		}
	}
	*s = StateUnknown
	return nil
}

// IsCompleted reports whether the payment has been accepted by the gateway.
func (s PaymentState) IsCompleted() bool {
	return s == StatePaid || s == StateFeePending || s == StateFeeDone
}

// Actionable is false for states the UI must not offer payment controls for.
func (s PaymentState) Actionable() bool {
	return s != StateUnknown
}

// CanTransition encodes the forward-only lifecycle. CANCELED is reachable
// from REQUESTED only and nothing leaves it.
func CanTransition(from, to PaymentState) bool {
	if from == StateUnknown || to == StateUnknown || from == StateCanceled {
		return false
	}
	if to == StateCanceled {
		return from == StateRequested
	}
	return to > from
}

type Method string

const (
	MethodCard           Method = "CARD"
	MethodBankTransfer   Method = "BANK_TRANSFER"
	MethodVirtualAccount Method = "VIRTUAL_ACCOUNT"
	MethodEasyPay        Method = "EASY_PAY"
)

var methodAliases = map[string]Method{
	"card":            MethodCard,
	"bank":            MethodBankTransfer,
	"bank_transfer":   MethodBankTransfer,
	"banktransfer":    MethodBankTransfer,
	"virtual_account": MethodVirtualAccount,
	"vbank":           MethodVirtualAccount,
	"easy_pay":        MethodEasyPay,
	"easypay":         MethodEasyPay,
}

// ParseMethod accepts the loose spellings the checkout form sends.
func ParseMethod(raw string) (Method, bool) {
	m, ok := methodAliases[strings.ToLower(strings.TrimSpace(raw))]
	return m, ok
}

// Session is the normalized view of one Payment/{orderId} document.
type Session struct {
	OrderID    string
	Amount     int64
	State      PaymentState
	GatewayRef string
	Method     Method
	GoodsName  string
	BuyerName  string
	BuyerTel   string
	BuyerEmail string
	UpdatedAt  time.Time
}

// Document is the raw record as stored. Status and amount are loosely typed
// because several writers populate them.
type Document struct {
	OrderID    string
	Status     any
	Amount     any
	GatewayRef string
	Method     string
	GoodsName  string
	BuyerName  string
	BuyerTel   string
	BuyerEmail string
	UpdatedAt  time.Time
}

// Session normalizes the raw document.
func (d Document) Session() *Session {
	method, _ := ParseMethod(d.Method)
	return &Session{
		OrderID:    d.OrderID,
		Amount:     NormalizeAmount(d.Amount),
		State:      NormalizeState(d.Status),
		GatewayRef: d.GatewayRef,
		Method:     method,
		GoodsName:  d.GoodsName,
		BuyerName:  d.BuyerName,
		BuyerTel:   d.BuyerTel,
		BuyerEmail: d.BuyerEmail,
		UpdatedAt:  d.UpdatedAt,
	}
}
