// Package errors defines the errors reported by the stream services.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected indicates that the transport connection is down
	ErrNotConnected = errors.New("not connected")

	// ErrInvalidSubject indicates that a subject or topic is missing or malformed
	ErrInvalidSubject = errors.New("invalid subject")

	// ErrInvalidMessage indicates that a message could not be transformed
	ErrInvalidMessage = errors.New("invalid message")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrSubscriptionFailed indicates that a subscription could not be created
	ErrSubscriptionFailed = errors.New("subscription failed")

	// ErrPublishFailed indicates that a message could not be published
	ErrPublishFailed = errors.New("publish failed")
)

// Error codes carried by Error.
const (
	CodeConfig       = "CONFIG"
	CodeInvalidInput = "INVALID_INPUT"
	CodePublish      = "PUBLISH"
	CodeSubscribe    = "SUBSCRIBE"
	CodeConnection   = "CONNECTION"
)

// Error is a coded error from a stream service
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error, if any
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new coded error
func NewError(code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsNotConnected checks if an error is a not connected error
func IsNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected)
}
