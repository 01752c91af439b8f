// Package graph provides a typed finite-state graph executor for
// orchestrating multi-step LLM workflows.
//
// A graph is built from named nodes and a transition table of static and
// conditional edges. Compile validates the whole table up front: unknown node
// references, a missing entry point, or a node with no outgoing edge are
// construction errors, not runtime surprises. Conditional edges declare every
// target they may return, so the set of reachable transitions is enumerable
// before the first turn runs.
//
// Multiple static edges from one node fan out into parallel branches; their
// results are joined and folded into the running state through the graph
// Schema before the next step starts. A per-graph RetryPolicy retries failed
// nodes with fixed, linear or exponential backoff.
package graph
