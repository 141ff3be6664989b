package checkout

import "fmt"

type Reason string

const (
	ReasonMethod      Reason = "method"
	ReasonCredentials Reason = "credentials"
	ReasonState       Reason = "state"
	ReasonAmount      Reason = "amount"
	ReasonSDK         Reason = "sdk"
	ReasonInProgress  Reason = "in_progress"
)

// PreconditionError explains why checkout cannot start.
type PreconditionError struct {
	Reason  Reason
	Message string
	Err     error
}

func (e *PreconditionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("checkout %s: %s: %v", e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("checkout %s: %s", e.Reason, e.Message)
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}
