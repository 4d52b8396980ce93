package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// StatusError is returned when the backend answers with a non-200 application status
// (or an HTTP status >= 400).
type StatusError struct {
	Op      string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
}

// TransportError is returned when the request itself failed: network error, timeout,
// cancelled context, or a response that could not be decoded.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsStatus reports whether err is a StatusError with the given status.
func IsStatus(err error, status int) bool {
	var sErr *StatusError
	if errors.As(err, &sErr) {
		return sErr.Status == status
	}
	return false
}

// IsUnauthorized reports whether the backend rejected the token.
func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized)
}

// IsCanceled reports whether the call was abandoned because its context ended.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// Message is a user facing description of err.
func Message(err error) string {
	var sErr *StatusError
	if errors.As(err, &sErr) && sErr.Message != "" {
		return sErr.Message
	}
	var tErr *TransportError
	if errors.As(err, &tErr) {
		return "the server could not be reached, please try again later"
	}
	return "something went wrong, please try again later"
}
