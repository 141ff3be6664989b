package httptransport

import (
	"context"
	"errors"
	"net/http"

	"paysession-be/internal/checkout"
	"paysession-be/internal/confirm"
	"paysession-be/internal/gateway"
	"paysession-be/internal/payment"
)

// ErrorPayload is the body of every non-2xx JSON response.
type ErrorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Kind names err for clients.
func Kind(err error) string {
	var pe *checkout.PreconditionError
	var ce *confirm.Error

	switch {
	case err == nil:
		return ""

	case errors.As(err, &ce):
		return string(ce.Code)

	case errors.As(err, &pe):
		return "precondition_" + string(pe.Reason)

	case errors.Is(err, payment.ErrSessionNotFound):
		return "not_found"

	case errors.Is(err, payment.ErrInvalidTransition):
		return "invalid_transition"

	case errors.Is(err, payment.ErrInvalidOrderID):
		return "bad_request"

	case errors.Is(err, gateway.ErrInvalidToken):
		return "unauthorized"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, context.Canceled):
		return "canceled"

	default:
		return "internal"
	}
}

func HTTPStatus(err error) int {
	var pe *checkout.PreconditionError
	var ce *confirm.Error

	switch {
	case err == nil:
		return http.StatusOK

	case errors.As(err, &ce):
		return confirmStatus(ce.Code)

	case errors.As(err, &pe):
		return preconditionStatus(pe.Reason)

	case errors.Is(err, payment.ErrSessionNotFound):
		return http.StatusNotFound

	case errors.Is(err, payment.ErrInvalidTransition):
		return http.StatusConflict

	case errors.Is(err, payment.ErrInvalidOrderID):
		return http.StatusBadRequest

	case errors.Is(err, gateway.ErrInvalidToken):
		return http.StatusUnauthorized

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, context.Canceled):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

func confirmStatus(code confirm.Code) int {
	switch code {
	case confirm.CodeInvalidInput:
		return http.StatusBadRequest
	case confirm.CodeInvalidAmount:
		return http.StatusUnprocessableEntity
	case confirm.CodeMarkerUnavailable:
		return http.StatusServiceUnavailable
	case confirm.CodeProcessing:
		return http.StatusAccepted
	default:
		return http.StatusBadGateway
	}
}

func preconditionStatus(reason checkout.Reason) int {
	switch reason {
	case checkout.ReasonState, checkout.ReasonInProgress:
		return http.StatusConflict
	case checkout.ReasonMethod, checkout.ReasonAmount:
		return http.StatusUnprocessableEntity
	default:
		// credentials, sdk
		return http.StatusServiceUnavailable
	}
}

// outcomeStatus maps a checkout outcome. Outcomes the buyer caused (closing
// the window, timing out) are still 200: the request itself succeeded.
func outcomeStatus(o checkout.Outcome) int {
	switch o.Kind {
	case checkout.OutcomeRejected:
		return preconditionStatus(o.Reason)
	case checkout.OutcomeError:
		if o.ConfirmErr != nil {
			return confirmStatus(o.ConfirmErr.Code)
		}
		if o.Silent {
			return http.StatusOK
		}
		return http.StatusBadGateway
	default:
		return http.StatusOK
	}
}
