package agent

import (
	"errors"
	"fmt"
)

// ErrRoutingAmbiguity marks a classification that produced no usable route.
// Not a hard failure: the turn defaults to the hybrid path.
var ErrRoutingAmbiguity = errors.New("routing ambiguity")

// RoutingAmbiguityError carries the classifier output that could not be
// mapped to a route.
type RoutingAmbiguityError struct {
	Raw string
}

func (e *RoutingAmbiguityError) Error() string {
	return fmt.Sprintf("routing ambiguity: unusable classification %q", e.Raw)
}

func (e *RoutingAmbiguityError) Unwrap() error { return ErrRoutingAmbiguity }
