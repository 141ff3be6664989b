package payment

import "errors"

var (
	ErrSessionNotFound   = errors.New("payment session not found")
	ErrInvalidTransition = errors.New("invalid payment state transition")
	ErrInvalidOrderID    = errors.New("order id is required")
)
