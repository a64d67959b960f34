package timesheet

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned when an operation is not allowed in the
	// manager's current state.
	ErrNotReady = errors.New("timesheet is not ready")

	// ErrClosed is returned once the manager has been closed. Results that
	// arrive after Close are discarded.
	ErrClosed = errors.New("timesheet session closed")
)

// ValidationError is a local rejection that never reached the backend. Its
// message is meant for the user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
