package client

import (
	"errors"
	"fmt"
	"net/http"
)

// RequestError is a typed failure from the desktop host. It carries the
// HTTP status so callers can distinguish auth failures from everything else.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
}

// IsAuthError reports whether this failure should trigger the auth-failure
// path. True precisely when the status is 401; no other status qualifies.
func (e *RequestError) IsAuthError() bool {
	return e.Status == http.StatusUnauthorized
}

// IsAuthError reports whether err wraps a 401 RequestError.
func IsAuthError(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.IsAuthError()
}
