package confirm

import (
	"crypto/sha256"
	"encoding/hex"

	"paysession-be/internal/payment"
)

// ConfirmedPayment is the backend's answer for one order. ReceiptRef is
// empty when the backend reported the payment as already processed.
type ConfirmedPayment struct {
	OrderID    string         `json:"orderId"`
	GatewayRef string         `json:"gatewayRef"`
	Method     payment.Method `json:"method,omitempty"`
	Amount     int64          `json:"amount"`
	ReceiptRef string         `json:"receiptRef,omitempty"`
}

// Result of a Confirm call. Duplicate is set when another process already
// owns the confirmation; Payment then only carries the identifiers and the
// authoritative outcome arrives through the status store.
type Result struct {
	Payment   ConfirmedPayment `json:"payment"`
	Duplicate bool             `json:"duplicate"`
}

// DedupKey is deterministic in (gatewayRef, orderID).
func DedupKey(gatewayRef, orderID string) string {
	sum := sha256.Sum256([]byte(orderID + "|" + gatewayRef))
	return "confirm:" + hex.EncodeToString(sum[:])
}
