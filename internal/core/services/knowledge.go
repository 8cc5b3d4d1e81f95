package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/kcache/internal/core/domain"
	"github.com/custodia-labs/kcache/internal/core/ports/driven"
	"github.com/custodia-labs/kcache/internal/core/ports/driving"
)

// Ensure KnowledgeService implements the interface.
var _ driving.KnowledgeService = (*KnowledgeService)(nil)

// KnowledgeService manages stored knowledge items.
type KnowledgeService struct {
	store driven.KnowledgeStore
}

// NewKnowledgeService creates a new knowledge service.
func NewKnowledgeService(store driven.KnowledgeStore) *KnowledgeService {
	return &KnowledgeService{store: store}
}

// List returns all items, newest first.
func (s *KnowledgeService) List(ctx context.Context) ([]domain.KnowledgeItem, error) {
	return s.store.ListItems(ctx)
}

// Get retrieves an item by ID.
func (s *KnowledgeService) Get(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: item id required", domain.ErrInvalidInput)
	}
	return s.store.FetchItem(ctx, id)
}

// Chunks returns an item's chunks in index order.
func (s *KnowledgeService) Chunks(ctx context.Context, id string) ([]domain.ChunkRow, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.store.FetchAllChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chunks: %w", err)
	}
	var chunks []domain.ChunkRow
	for _, row := range rows {
		if row.KnowledgeItemID == id {
			chunks = append(chunks, row)
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return chunks, nil
}

// Delete removes an item and its chunks.
func (s *KnowledgeService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: item id required", domain.ErrInvalidInput)
	}
	return s.store.DeleteItem(ctx, id)
}
