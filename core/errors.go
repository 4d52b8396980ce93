package core

import "github.com/pkg/errors"

// FieldError is a problem with one form field, keyed by the field's json name.
type FieldError struct {
	Field string
	Error string
}

// ValidationError reports form problems that validator tags cannot express.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error { return err.Err }

// ShutdownError means a dependency is gone for good and the process should stop.
type ShutdownError struct {
	Reason string
	Err    error
}

func NewShutdownError(reason string, err error) error {
	return &ShutdownError{Reason: reason, Err: err}
}

func (s ShutdownError) Error() string {
	if s.Err == nil {
		return s.Reason
	}
	return s.Reason + ": " + s.Err.Error()
}

func (s ShutdownError) Unwrap() error { return s.Err }

func IsShutdown(err error) bool {
	var sErr *ShutdownError
	return errors.As(err, &sErr)
}
