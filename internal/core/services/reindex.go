package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/kcache/internal/core/domain"
	"github.com/custodia-labs/kcache/internal/core/ports/driven"
	"github.com/custodia-labs/kcache/internal/core/ports/driving"
	"github.com/custodia-labs/kcache/internal/logger"
)

// Ensure ReindexService implements the interface.
var _ driving.ReindexService = (*ReindexService)(nil)

// DefaultReindexBatchSize bounds one embedding request during reindex.
const DefaultReindexBatchSize = 32

// ReindexService re-embeds every stored chunk with the live embedder.
type ReindexService struct {
	store     driven.KnowledgeStore
	embedder  driven.Embedder
	batchSize int
}

// NewReindexService creates a new reindex service.
func NewReindexService(store driven.KnowledgeStore, embedder driven.Embedder, batchSize int) *ReindexService {
	if batchSize <= 0 {
		batchSize = DefaultReindexBatchSize
	}
	return &ReindexService{store: store, embedder: embedder, batchSize: batchSize}
}

// Reindex embeds all chunk texts in batches, then replaces every embedding
// in one write. Nothing is written unless every chunk was embedded.
func (s *ReindexService) Reindex(ctx context.Context) (domain.ReindexReport, error) {
	logger.Section("Reindex")

	if r, ok := s.embedder.(driven.Reloadable); ok && r.Retry() {
		logger.Debug("Cleared a cached embedder failure, loading again")
	}
	if s.embedder == nil || !s.embedder.Available(ctx) {
		return domain.ReindexReport{}, domain.ErrEmbeddingUnavailable
	}
	modelID, dim := s.embedder.ModelID(), s.embedder.Dimension()

	rows, err := s.store.FetchAllChunks(ctx)
	if err != nil {
		return domain.ReindexReport{}, fmt.Errorf("fetch chunks: %w", err)
	}
	logger.Debug("Re-embedding %d chunks with %s (%d dims)", len(rows), modelID, dim)

	updates := make([]domain.ChunkEmbedding, 0, len(rows))
	for start := 0; start < len(rows); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return domain.ReindexReport{}, err
		}
		batch := rows[start:min(start+s.batchSize, len(rows))]
		texts := make([]string, len(batch))
		for i, row := range batch {
			texts[i] = row.Text
		}

		vectors, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return domain.ReindexReport{}, fmt.Errorf("%w: %v", domain.ErrEmbeddingFailed, err)
		}
		if len(vectors) != len(batch) {
			return domain.ReindexReport{}, fmt.Errorf("%w: got %d vectors for %d chunks",
				domain.ErrEmbeddingFailed, len(vectors), len(batch))
		}
		for i, v := range vectors {
			if len(v) != dim {
				return domain.ReindexReport{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingFailed, domain.ErrDimensionMismatch)
			}
			updates = append(updates, domain.ChunkEmbedding{ChunkID: batch[i].ID, Embedding: v})
		}
		logger.Debug("Embedded %d/%d", len(updates), len(rows))
	}

	if len(updates) > 0 {
		if err := s.store.ReplaceEmbeddings(ctx, updates, modelID, dim); err != nil {
			return domain.ReindexReport{}, fmt.Errorf("replace embeddings: %w", err)
		}
	}

	logger.Event("reindexed", "chunks", len(updates), "model", modelID, "dim", dim)
	return domain.ReindexReport{Chunks: len(updates), ModelID: modelID, Dimension: dim}, nil
}
