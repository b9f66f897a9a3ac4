package keygen

import (
	"errors"
	"fmt"
)

// ErrNotObject is the cause of an InputParseError for valid JSON that is not
// an object.
var ErrNotObject = errors.New("record is not a JSON object")

// ConfigError represents an invalid transform specification. A transform is
// never built from a configuration that produced one.
type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	msg := "keygen config error"
	if e.Field != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Field)
	}
	msg = fmt.Sprintf("%s: %s", msg, e.Message)
	if e.Cause != nil && e.Cause.Error() != e.Message {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// InputParseError represents a record that could not be transformed. It only
// concerns that record.
type InputParseError struct {
	Message string
	Cause   error
}

func (e *InputParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("keygen input error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("keygen input error: %s", e.Message)
}

func (e *InputParseError) Unwrap() error {
	return e.Cause
}

// IsConfigError reports whether err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsInputError reports whether err is or wraps an InputParseError.
func IsInputError(err error) bool {
	var ie *InputParseError
	return errors.As(err, &ie)
}
