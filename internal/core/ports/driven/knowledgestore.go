package driven

import (
	"context"

	"github.com/custodia-labs/kcache/internal/core/domain"
)

// KnowledgeStore persists knowledge items and their chunks.
// Implementations own write serialisation; callers never hold a store
// transaction across an embedding call.
type KnowledgeStore interface {
	// FindByContentHash returns the item with the given hash, or
	// domain.ErrNotFound.
	FindByContentHash(ctx context.Context, hash string) (*domain.KnowledgeItem, error)

	// Insert writes an item and all its chunks in a single logical write.
	// Chunk indices follow the order of chunks.
	Insert(ctx context.Context, item *domain.KnowledgeItem, chunks []domain.ChunkVector, modelID string, dim int) error

	// FetchAllChunks returns every stored chunk row.
	FetchAllChunks(ctx context.Context) ([]domain.ChunkRow, error)

	// FetchItem returns an item by ID, or domain.ErrNotFound.
	FetchItem(ctx context.Context, id string) (*domain.KnowledgeItem, error)

	// ListItems returns all items, newest first.
	ListItems(ctx context.Context) ([]domain.KnowledgeItem, error)

	// DeleteItem removes an item and cascades to its chunks.
	DeleteItem(ctx context.Context, id string) error

	// ReplaceEmbeddings swaps the embedding of the given chunks and records
	// the new model and dimension, in a single write.
	ReplaceEmbeddings(ctx context.Context, updates []domain.ChunkEmbedding, modelID string, dim int) error

	// Close releases resources.
	Close() error
}

// LexicalSearcher is an optional full-text engine running beside the
// retriever. Stores that maintain a text index implement it.
type LexicalSearcher interface {
	// SearchLexical returns up to limit chunk hits for query.
	SearchLexical(ctx context.Context, query string, limit int) ([]LexicalHit, error)
}

// LexicalHit is a full-text match.
type LexicalHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Rank is a relevance statistic where lower is better (SQLite bm25()
	// values are negative; the best hit has the smallest value).
	Rank float64
}
