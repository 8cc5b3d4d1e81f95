package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoContent indicates chunking produced zero usable segments.
	// Surfaced to users as a hint to paste the text instead.
	ErrNoContent = errors.New("no content to index")

	// ErrEmbeddingUnavailable indicates the embedder is not ready.
	// Surfaced to users as a setup instruction.
	ErrEmbeddingUnavailable = errors.New("embedding model unavailable")

	// ErrEmbeddingFailed indicates a batch embedding returned an error or a
	// vector count different from the chunk count. Partial batches are
	// never stored.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrTokenizerUnavailable indicates the vocabulary failed to load.
	ErrTokenizerUnavailable = errors.New("tokenizer unavailable")

	// ErrDimensionMismatch indicates a vector does not have the expected length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrUnsupportedType indicates an unknown embedder, store or file type.
	ErrUnsupportedType = errors.New("unsupported type")
)
