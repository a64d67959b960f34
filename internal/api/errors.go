package api

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthenticationRequired is returned when the backend rejects the
	// session token. The token has already been cleared when it is seen.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrInvalidCredentials is returned by Login when the backend refuses
	// the username/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnexpectedStatus is returned when a 2xx response carries a
	// non-success envelope status.
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// HTTPError is returned for any non-2xx response other than 401.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP error! status: %d: %s", e.StatusCode, e.Body)
}

// StatusCode extracts the HTTP status from err, or 0 when err is not an
// HTTPError.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
