package driven

import (
	"context"

	"github.com/custodia-labs/kcache/internal/core/domain"
)

// TextProcessor transforms document text before it is hashed and chunked.
// Processors are chained in a pipeline (structuring, duplicate collapsing).
type TextProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process returns the transformed text.
	Process(ctx context.Context, text string) (string, error)
}

// TextPipeline chains multiple TextProcessors.
type TextPipeline interface {
	// Process runs text through all processors in order.
	Process(ctx context.Context, text string) (string, error)
}

// Chunker splits normalised text into overlapping segments.
type Chunker interface {
	// Chunk returns ordered segments and whether maxChunks cut the output
	// short. maxChunks <= 0 means no cap.
	Chunk(text string, maxChunks int) (segments []domain.Segment, truncated bool)
}

// Structurer rewrites raw text into a structured form that chunks well.
// It is best-effort: callers fall back to the original text on any error.
type Structurer interface {
	Structure(ctx context.Context, raw string) (string, error)
}
