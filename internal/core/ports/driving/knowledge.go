package driving

import (
	"context"

	"github.com/custodia-labs/kcache/internal/core/domain"
)

// KnowledgeService manages stored knowledge items.
type KnowledgeService interface {
	// List returns all items, newest first.
	List(ctx context.Context) ([]domain.KnowledgeItem, error)

	// Get retrieves an item by ID.
	Get(ctx context.Context, id string) (*domain.KnowledgeItem, error)

	// Chunks returns an item's chunks in index order.
	Chunks(ctx context.Context, id string) ([]domain.ChunkRow, error)

	// Delete removes an item and its chunks.
	Delete(ctx context.Context, id string) error
}

// ReindexService re-embeds stored chunks with the live embedder.
type ReindexService interface {
	// Reindex replaces every chunk embedding. It embeds everything before
	// writing anything.
	Reindex(ctx context.Context) (domain.ReindexReport, error)
}
