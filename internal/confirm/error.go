package confirm

import "fmt"

type Code string

const (
	CodeInvalidInput      Code = "INVALID_INPUT"
	CodeInvalidAmount     Code = "INVALID_AMOUNT"
	CodeConfirmFailed     Code = "CONFIRM_FAILED"
	CodeMarkerUnavailable Code = "MARKER_UNAVAILABLE"
	// CodeProcessing is returned to a caller that stopped waiting while the
	// confirmation keeps running in the background.
	CodeProcessing Code = "PROCESSING"
)

// Error is the only error type Confirm returns. Message is safe to show;
// control flow should key on Code.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether a user-initiated retry may succeed.
func (e *Error) Retryable() bool {
	return e.Code != CodeInvalidInput
}
