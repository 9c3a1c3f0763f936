package v1

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated is returned by every protected operation when no
// session token is available. No request is sent in that case.
var ErrNotAuthenticated = errors.New("not authenticated")

// ValidationError reports a client-side precondition failure. It is raised
// before any network traffic.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// RequestFailedError is a non-2xx response from the backend. Error returns
// the server supplied message, or the fixed fallback for the operation.
// The HTTP status is logged by the client, not carried here.
type RequestFailedError struct {
	Op      string
	Message string
}

// NewRequestFailedError builds a RequestFailedError for op.
func NewRequestFailedError(op, message string) *RequestFailedError {
	return &RequestFailedError{Op: op, Message: message}
}

func (e *RequestFailedError) Error() string {
	return e.Message
}

// TransportError is a network failure before any response was received.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AuthenticationError is returned when login or registration is rejected.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	return e.Message
}

// IsNotAuthenticated reports whether err is or wraps ErrNotAuthenticated.
func IsNotAuthenticated(err error) bool {
	return errors.Is(err, ErrNotAuthenticated)
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsRequestFailed reports whether err is or wraps a *RequestFailedError.
func IsRequestFailed(err error) bool {
	var target *RequestFailedError
	return errors.As(err, &target)
}

// IsTransport reports whether err is or wraps a *TransportError.
func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

// IsAuthentication reports whether err is or wraps an *AuthenticationError.
func IsAuthentication(err error) bool {
	var target *AuthenticationError
	return errors.As(err, &target)
}
