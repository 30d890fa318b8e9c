package ops

import "fmt"

// ValidationError reports an unknown command kind or malformed params. It is
// downgraded to a failed Action inside dispatch, never surfaced to callers.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// NotFoundError reports a missing referenced record, or an unknown pending
// action id passed to Approve or Reject.
type NotFoundError struct {
	What string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.What, e.ID)
}

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
