package driven

import (
	"context"

	"github.com/custodia-labs/kcache/internal/core/domain"
)

// Normaliser extracts readable text from a local file.
// Each normaliser handles specific MIME types (e.g., HTML, Markdown).
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific normalisers should return 50-89.
	// Fallback normalisers should return 1-9.
	Priority() int

	// Normalise extracts a raw document from the file.
	Normalise(ctx context.Context, file *domain.SourceFile) (*NormaliseResult, error)
}

// NormaliseResult contains the output of normalisation.
// Note: Normalisation only produces text. Structuring, hashing and chunking
// are handled by ingestion.
type NormaliseResult struct {
	// Document is the extracted title, body and origin.
	Document domain.RawDocument

	// Format names the source format ("html", "markdown", "text").
	Format string
}

// Extractor reads a local file, selects a normaliser for it and runs it.
type Extractor interface {
	// Extract returns the raw document for the file at path.
	// Binary or unsupported files return domain.ErrUnsupportedType.
	Extract(ctx context.Context, path string) (*domain.RawDocument, error)
}
