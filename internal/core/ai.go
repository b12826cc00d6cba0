package core

import "context"

// EmbeddingProvider turns one text into one vector.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}

// LLMProvider generates answers. Stream hands each text fragment to emit as it
// arrives; a non-nil error from emit stops the stream.
type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
	Stream(ctx context.Context, systemPrompt string, userPrompt string, emit func(fragment string) error) error
}
