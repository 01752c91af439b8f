package graph

import (
	"context"
	"errors"
	"time"
)

// END is a special constant used to represent the terminal node in the graph.
const END = "END"

var (
	// ErrEntryPointNotSet is returned when the entry point of the graph is not set.
	ErrEntryPointNotSet = errors.New("entry point not set")

	// ErrNodeNotFound is returned when an edge or entry point references an unknown node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoOutgoingEdge is returned when a node has no way to reach the next step.
	ErrNoOutgoingEdge = errors.New("no outgoing edge found for node")

	// ErrEmptyCondition is returned when a conditional edge yields an empty target.
	ErrEmptyCondition = errors.New("conditional edge returned empty next node")

	// ErrUndeclaredTarget is returned when a conditional edge yields a target that
	// was not declared when the edge was added.
	ErrUndeclaredTarget = errors.New("conditional edge returned undeclared target")
)

// Node represents a named step in the graph. The function receives the current
// state and returns the updated state.
type Node[S any] struct {
	// Name is the unique identifier for the node.
	Name string

	// Description describes the functionality of the node.
	Description string

	// Function is the function associated with the node.
	Function func(ctx context.Context, state S) (S, error)
}

// Edge represents a static transition between two nodes.
type Edge struct {
	From string
	To   string
}

// conditionalEdge is a runtime-decided transition. Targets enumerates every
// node the condition may return, so the transition table stays checkable at
// compile time.
type conditionalEdge[S any] struct {
	from      string
	targets   []string
	condition func(ctx context.Context, state S) string
}

// Schema defines the state structure and update logic. When set, results from
// parallel branches are folded into the running state one by one.
type Schema[S any] interface {
	// Init returns the initial state.
	Init() S

	// Update merges the new state into the current state.
	Update(current, new S) (S, error)
}

// BackoffStrategy defines different backoff strategies for node retries.
type BackoffStrategy int

const (
	FixedBackoff BackoffStrategy = iota
	ExponentialBackoff
	LinearBackoff
)

// RetryPolicy defines how to handle node failures.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first failure.
	MaxRetries int

	// BackoffStrategy selects how the delay between attempts grows.
	BackoffStrategy BackoffStrategy

	// BaseDelay is the initial delay between attempts. Zero means no delay.
	BaseDelay time.Duration

	// RetryableErrors restricts retries to errors whose message contains one
	// of these substrings. Empty means every error is retryable.
	RetryableErrors []string
}
