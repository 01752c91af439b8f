// Package llm wraps the language-model and embedding capabilities consumed by
// the orchestration graphs: given text, return a completion; given text,
// return a vector.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

// ErrGeneration marks a completion failure after the retry budget is spent.
// The turn owner decides whether that is fatal (see the supervisor apology
// path).
var ErrGeneration = errors.New("generation failed")

// GenerationError wraps the underlying completion failure.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return ErrGeneration }

// Generate runs one completion call with a single retry on failure, using the
// identical prompt. Both attempts failing yields a GenerationError.
func Generate(ctx context.Context, model llms.Model, prompt string, opts ...llms.CallOption) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, model, prompt, opts...)
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return "", &GenerationError{Err: err}
	}

	out, retryErr := llms.GenerateFromSinglePrompt(ctx, model, prompt, opts...)
	if retryErr == nil {
		return out, nil
	}
	return "", &GenerationError{Err: errors.Join(err, retryErr)}
}
