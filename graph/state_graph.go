package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// StateGraph represents a state-based graph with compile-time checked
// transitions. The type parameter S is the state type carried between nodes.
type StateGraph[S any] struct {
	nodes            map[string]Node[S]
	edges            []Edge
	conditionalEdges map[string]conditionalEdge[S]
	entryPoint       string
	retryPolicy      *RetryPolicy
	schema           Schema[S]
}

// NewStateGraph creates a new instance of StateGraph.
func NewStateGraph[S any]() *StateGraph[S] {
	return &StateGraph[S]{
		nodes:            make(map[string]Node[S]),
		conditionalEdges: make(map[string]conditionalEdge[S]),
	}
}

// AddNode adds a new node to the state graph with the given name, description
// and function.
func (g *StateGraph[S]) AddNode(name, description string, fn func(ctx context.Context, state S) (S, error)) {
	g.nodes[name] = Node[S]{
		Name:        name,
		Description: description,
		Function:    fn,
	}
}

// AddEdge adds a static edge between the "from" and "to" nodes. Multiple
// edges from the same node fan out into parallel branches.
func (g *StateGraph[S]) AddEdge(from, to string) {
	g.edges = append(g.edges, Edge{From: from, To: to})
}

// AddConditionalEdge adds an edge whose target is determined at runtime.
// targets must enumerate every node the condition can return; Compile rejects
// the graph otherwise, and a condition returning anything outside targets
// fails the run.
func (g *StateGraph[S]) AddConditionalEdge(from string, targets []string, condition func(ctx context.Context, state S) string) {
	g.conditionalEdges[from] = conditionalEdge[S]{
		from:      from,
		targets:   targets,
		condition: condition,
	}
}

// SetEntryPoint sets the entry point node name for the state graph.
func (g *StateGraph[S]) SetEntryPoint(name string) {
	g.entryPoint = name
}

// SetRetryPolicy sets the retry policy applied to every node.
func (g *StateGraph[S]) SetRetryPolicy(policy *RetryPolicy) {
	g.retryPolicy = policy
}

// SetSchema sets the state schema used to merge branch results.
func (g *StateGraph[S]) SetSchema(schema Schema[S]) {
	g.schema = schema
}

// Runnable represents a compiled state graph that can be invoked.
type Runnable[S any] struct {
	graph *StateGraph[S]
}

// Compile validates the whole transition table and returns a Runnable.
// Every edge endpoint must name a registered node (or END), every node must
// be able to reach a next step, and conditional targets must be declared.
func (g *StateGraph[S]) Compile() (*Runnable[S], error) {
	if g.entryPoint == "" {
		return nil, ErrEntryPointNotSet
	}
	if _, ok := g.nodes[g.entryPoint]; !ok {
		return nil, fmt.Errorf("%w: entry point %s", ErrNodeNotFound, g.entryPoint)
	}

	for _, edge := range g.edges {
		if _, ok := g.nodes[edge.From]; !ok {
			return nil, fmt.Errorf("%w: edge source %s", ErrNodeNotFound, edge.From)
		}
		if edge.To != END {
			if _, ok := g.nodes[edge.To]; !ok {
				return nil, fmt.Errorf("%w: edge target %s", ErrNodeNotFound, edge.To)
			}
		}
	}

	for from, ce := range g.conditionalEdges {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("%w: conditional edge source %s", ErrNodeNotFound, from)
		}
		if len(ce.targets) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoOutgoingEdge, from)
		}
		for _, target := range ce.targets {
			if target != END {
				if _, ok := g.nodes[target]; !ok {
					return nil, fmt.Errorf("%w: conditional target %s from %s", ErrNodeNotFound, target, from)
				}
			}
		}
	}

	for name := range g.nodes {
		if !g.hasOutgoing(name) {
			return nil, fmt.Errorf("%w: %s", ErrNoOutgoingEdge, name)
		}
	}

	return &Runnable[S]{graph: g}, nil
}

func (g *StateGraph[S]) hasOutgoing(name string) bool {
	if _, ok := g.conditionalEdges[name]; ok {
		return true
	}
	for _, edge := range g.edges {
		if edge.From == name {
			return true
		}
	}
	return false
}

// Invoke executes the compiled state graph with the given input state and
// returns the final state.
func (r *Runnable[S]) Invoke(ctx context.Context, initialState S) (S, error) {
	state := initialState

	if r.graph.schema != nil {
		var err error
		state, err = r.graph.schema.Update(r.graph.schema.Init(), initialState)
		if err != nil {
			var zero S
			return zero, fmt.Errorf("failed to initialize state with schema: %w", err)
		}
	}

	currentNodes := []string{r.graph.entryPoint}

	for len(currentNodes) > 0 {
		active := currentNodes[:0]
		for _, node := range currentNodes {
			if node != END {
				active = append(active, node)
			}
		}
		currentNodes = active
		if len(currentNodes) == 0 {
			break
		}

		if err := ctx.Err(); err != nil {
			var zero S
			return zero, err
		}

		results, errs := r.executeNodesParallel(ctx, currentNodes, state)
		for _, err := range errs {
			if err != nil {
				var zero S
				return zero, err
			}
		}

		var err error
		state, err = r.mergeState(state, results)
		if err != nil {
			var zero S
			return zero, err
		}

		currentNodes, err = r.determineNextNodes(ctx, currentNodes, state)
		if err != nil {
			var zero S
			return zero, err
		}
	}

	return state, nil
}

// executeNodesParallel runs all nodes of the current step concurrently and
// joins their results before the next step.
func (r *Runnable[S]) executeNodesParallel(ctx context.Context, nodes []string, state S) ([]S, []error) {
	var wg sync.WaitGroup
	results := make([]S, len(nodes))
	errs := make([]error, len(nodes))

	for i, name := range nodes {
		node, ok := r.graph.nodes[name]
		if !ok {
			errs[i] = fmt.Errorf("%w: %s", ErrNodeNotFound, name)
			continue
		}

		wg.Add(1)
		go func(idx int, n Node[S]) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					errs[idx] = fmt.Errorf("panic in node %s: %v", n.Name, p)
				}
			}()

			res, err := r.executeNodeWithRetry(ctx, n, state)
			if err != nil {
				errs[idx] = fmt.Errorf("error in node %s: %w", n.Name, err)
				return
			}
			results[idx] = res
		}(i, node)
	}
	wg.Wait()
	return results, errs
}

// executeNodeWithRetry executes a node applying the graph retry policy.
func (r *Runnable[S]) executeNodeWithRetry(ctx context.Context, node Node[S], state S) (S, error) {
	var lastErr error
	var zero S

	attempts := 1
	if r.graph.retryPolicy != nil {
		attempts = r.graph.retryPolicy.MaxRetries + 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := node.Function(ctx, state)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt < attempts-1 && r.isRetryable(err) {
			delay := r.backoffDelay(attempt)
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return zero, ctx.Err()
				}
			}
			continue
		}
		break
	}

	return zero, lastErr
}

func (r *Runnable[S]) isRetryable(err error) bool {
	policy := r.graph.retryPolicy
	if policy == nil {
		return false
	}
	if len(policy.RetryableErrors) == 0 {
		return true
	}
	msg := err.Error()
	for _, pattern := range policy.RetryableErrors {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func (r *Runnable[S]) backoffDelay(attempt int) time.Duration {
	policy := r.graph.retryPolicy
	if policy == nil || policy.BaseDelay <= 0 {
		return 0
	}
	switch policy.BackoffStrategy {
	case ExponentialBackoff:
		return policy.BaseDelay * time.Duration(1<<attempt)
	case LinearBackoff:
		return policy.BaseDelay * time.Duration(attempt+1)
	default:
		return policy.BaseDelay
	}
}

// mergeState folds the step results into the running state.
func (r *Runnable[S]) mergeState(current S, results []S) (S, error) {
	state := current
	if r.graph.schema != nil {
		for _, res := range results {
			var err error
			state, err = r.graph.schema.Update(state, res)
			if err != nil {
				var zero S
				return zero, fmt.Errorf("schema update failed: %w", err)
			}
		}
		return state, nil
	}
	if len(results) > 0 {
		state = results[len(results)-1]
	}
	return state, nil
}

// determineNextNodes resolves the next step from static and conditional edges.
func (r *Runnable[S]) determineNextNodes(ctx context.Context, currentNodes []string, state S) ([]string, error) {
	nextSet := make(map[string]bool)

	for _, name := range currentNodes {
		if ce, ok := r.graph.conditionalEdges[name]; ok {
			target := ce.condition(ctx, state)
			if target == "" {
				return nil, fmt.Errorf("%w: from %s", ErrEmptyCondition, name)
			}
			declared := false
			for _, t := range ce.targets {
				if t == target {
					declared = true
					break
				}
			}
			if !declared {
				return nil, fmt.Errorf("%w: %s from %s", ErrUndeclaredTarget, target, name)
			}
			nextSet[target] = true
			continue
		}

		found := false
		for _, edge := range r.graph.edges {
			if edge.From == name {
				nextSet[edge.To] = true
				found = true
				// no break: multiple edges from one node fan out
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrNoOutgoingEdge, name)
		}
	}

	next := make([]string, 0, len(nextSet))
	for node := range nextSet {
		next = append(next, node)
	}
	sort.Strings(next)
	return next, nil
}
