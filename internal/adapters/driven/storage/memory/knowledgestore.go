// Package memory provides in-memory implementations of the storage ports.
// They back the "memory" storage backend and serve as test doubles.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/kcache/internal/core/domain"
	"github.com/custodia-labs/kcache/internal/core/ports/driven"
	"github.com/custodia-labs/kcache/internal/vector"
)

// Ensure KnowledgeStore implements the interface.
var _ driven.KnowledgeStore = (*KnowledgeStore)(nil)

// KnowledgeStore is an in-memory implementation of driven.KnowledgeStore.
// Embeddings are held in their wire format, like the persistent stores.
type KnowledgeStore struct {
	mu     sync.RWMutex
	items  map[string]domain.KnowledgeItem
	order  []string
	chunks []domain.ChunkRow
	writes int
}

// NewKnowledgeStore creates a new in-memory knowledge store.
func NewKnowledgeStore() *KnowledgeStore {
	return &KnowledgeStore{
		items: make(map[string]domain.KnowledgeItem),
	}
}

// FindByContentHash returns the item with the given hash.
func (s *KnowledgeStore) FindByContentHash(_ context.Context, hash string) (*domain.KnowledgeItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if item := s.items[id]; item.ContentHash == hash {
			return &item, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Insert stores an item and its chunks.
func (s *KnowledgeStore) Insert(
	_ context.Context, item *domain.KnowledgeItem, chunks []domain.ChunkVector, modelID string, dim int,
) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("%w: item id required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[item.ID]; exists {
		return fmt.Errorf("%w: item %s already exists", domain.ErrInvalidInput, item.ID)
	}
	for _, id := range s.order {
		if s.items[id].ContentHash == item.ContentHash {
			return fmt.Errorf("%w: content hash already stored", domain.ErrInvalidInput)
		}
	}

	rows := make([]domain.ChunkRow, 0, len(chunks))
	for i, c := range chunks {
		rows = append(rows, domain.ChunkRow{
			ID:               uuid.New().String(),
			KnowledgeItemID:  item.ID,
			Index:            i,
			Text:             c.Text,
			EmbeddingBlob:    vector.Encode(c.Embedding),
			EmbeddingDim:     dim,
			EmbeddingModelID: modelID,
		})
	}

	s.items[item.ID] = *item
	s.order = append(s.order, item.ID)
	s.chunks = append(s.chunks, rows...)
	s.writes++
	return nil
}

// FetchAllChunks returns copies of all chunk rows in insertion order.
func (s *KnowledgeStore) FetchAllChunks(_ context.Context) ([]domain.ChunkRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]domain.ChunkRow, len(s.chunks))
	copy(rows, s.chunks)
	return rows, nil
}

// FetchItem retrieves an item by ID.
func (s *KnowledgeStore) FetchItem(_ context.Context, id string) (*domain.KnowledgeItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &item, nil
}

// ListItems returns all items, newest first.
func (s *KnowledgeStore) ListItems(_ context.Context) ([]domain.KnowledgeItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]domain.KnowledgeItem, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		items = append(items, s.items[s.order[i]])
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

// DeleteItem removes an item and its chunks.
func (s *KnowledgeStore) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.items, id)
	for i, itemID := range s.order {
		if itemID == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	kept := s.chunks[:0]
	for _, row := range s.chunks {
		if row.KnowledgeItemID != id {
			kept = append(kept, row)
		}
	}
	s.chunks = kept
	s.writes++
	return nil
}

// ReplaceEmbeddings swaps chunk embeddings. Unknown chunk IDs fail the
// whole call before anything changes.
func (s *KnowledgeStore) ReplaceEmbeddings(
	_ context.Context, updates []domain.ChunkEmbedding, modelID string, dim int,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := make(map[string]int, len(s.chunks))
	for i, row := range s.chunks {
		index[row.ID] = i
	}
	for _, u := range updates {
		if _, ok := index[u.ChunkID]; !ok {
			return fmt.Errorf("chunk %s: %w", u.ChunkID, domain.ErrNotFound)
		}
		if len(u.Embedding) != dim {
			return fmt.Errorf("chunk %s: %w", u.ChunkID, domain.ErrDimensionMismatch)
		}
	}
	for _, u := range updates {
		row := &s.chunks[index[u.ChunkID]]
		row.EmbeddingBlob = vector.Encode(u.Embedding)
		row.EmbeddingDim = dim
		row.EmbeddingModelID = modelID
	}
	s.writes++
	return nil
}

// Writes returns how many write operations have been applied.
func (s *KnowledgeStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Close is a no-op.
func (s *KnowledgeStore) Close() error {
	return nil
}
