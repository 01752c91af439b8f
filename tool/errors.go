package tool

import (
	"errors"
	"fmt"
)

// ErrValidation marks bad tool arguments. Non-retryable; surfaced before any
// network call.
var ErrValidation = errors.New("invalid tool arguments")

// ErrInvocation marks a failed call to a city-data service. Retried with
// bounded backoff, then the tool is dropped from the merge.
var ErrInvocation = errors.New("tool invocation failed")

// ValidationError reports which argument failed schema validation.
type ValidationError struct {
	Tool   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("tool %s: %s", e.Tool, e.Reason)
	}
	return fmt.Sprintf("tool %s: argument %q: %s", e.Tool, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InvocationError wraps a network, HTTP-status or decoding failure.
type InvocationError struct {
	Tool string
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *InvocationError) Unwrap() error { return ErrInvocation }
