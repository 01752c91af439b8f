package graph

// StructSchema implements Schema for struct state types using caller-supplied
// init and merge functions.
type StructSchema[S any] struct {
	initial S
	merge   func(current, new S) (S, error)
}

// NewStructSchema creates a schema from an initial state value and a merge
// function applied to every branch result.
func NewStructSchema[S any](initial S, merge func(current, new S) (S, error)) *StructSchema[S] {
	return &StructSchema[S]{
		initial: initial,
		merge:   merge,
	}
}

// Init returns the initial state.
func (s *StructSchema[S]) Init() S {
	return s.initial
}

// Update merges the new state into the current state.
func (s *StructSchema[S]) Update(current, new S) (S, error) {
	return s.merge(current, new)
}
