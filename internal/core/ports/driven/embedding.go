// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// Embedder converts text into vectors.
// The model behind it is opaque; only its contract matters: deterministic,
// L2-normalised, fixed-dimension output.
//
// Implementations include:
//   - subword: built-in offline feature-hashing embedder over the tokenizer
//   - ollama: local Ollama server (nomic-embed-text, all-minilm)
//   - openai: any OpenAI-compatible embeddings endpoint
type Embedder interface {
	// Available reports whether the model is loaded and usable.
	// The first call may trigger loading; failures are cached.
	Available(ctx context.Context) bool

	// Dimension returns the vector length produced by the current model.
	Dimension() int

	// ModelID identifies the current model; it is recorded on every chunk.
	ModelID() string

	// EmbedOne embeds a single text.
	EmbedOne(ctx context.Context, text string) ([]float32, error)

	// Embed embeds a batch. It may return fewer vectors than texts when
	// individual items fail; callers decide whether that is acceptable.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Close releases resources.
	Close() error
}

// Reloadable is implemented by embedders that cache a failed model load.
// Retry clears the cached failure so the next call loads again; it reports
// whether there was a failure to clear.
type Reloadable interface {
	Retry() bool
}
