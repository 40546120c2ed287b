package config

import (
	"errors"
	"fmt"
)

// ErrConfig matches every *Error via errors.Is.
var ErrConfig = errors.New("configuration error")

// Error reports a missing or malformed configuration value and how to fix it.
type Error struct {
	Key    string
	Reason string
	Hint   string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("config: %s %s", e.Key, e.Reason)
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

func (e *Error) Is(target error) bool {
	return target == ErrConfig
}

// Missing builds the error for a required value that is not set.
func Missing(key, hint string) *Error {
	return &Error{Key: key, Reason: "is not configured", Hint: hint}
}

// Invalid builds the error for a value that is set but unusable.
func Invalid(key, value string) *Error {
	return &Error{Key: key, Reason: fmt.Sprintf("has invalid value %q", value)}
}
