package services

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/custodia-labs/kcache/internal/core/domain"
	"github.com/custodia-labs/kcache/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbedder implements driven.Embedder with fixed vectors per text.
// Texts without a fixed vector get the fallback vector.
type mockEmbedder struct {
	mu          sync.Mutex
	dim         int
	modelID     string
	vectors     map[string][]float32
	fallback    []float32
	unavailable bool
	embedErr    error
	dropLast    bool
	embedCalls  int
}

func newMockEmbedder(dim int) *mockEmbedder {
	fallback := make([]float32, dim)
	fallback[dim-1] = 1
	return &mockEmbedder{
		dim:      dim,
		modelID:  "mock-embed",
		vectors:  make(map[string][]float32),
		fallback: fallback,
	}
}

func (m *mockEmbedder) Available(_ context.Context) bool { return !m.unavailable }
func (m *mockEmbedder) Dimension() int                   { return m.dim }
func (m *mockEmbedder) ModelID() string                  { return m.modelID }
func (m *mockEmbedder) Close() error                     { return nil }

func (m *mockEmbedder) vector(text string) []float32 {
	if v, ok := m.vectors[text]; ok {
		return v
	}
	return m.fallback
}

func (m *mockEmbedder) EmbedOne(_ context.Context, text string) ([]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.vector(text), nil
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.embedCalls++
	m.mu.Unlock()
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, m.vector(t))
	}
	if m.dropLast && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

// unitVec returns a 4-dimensional unit vector whose dot product with
// queryVec() is sim.
func unitVec(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim)), 0, 0}
}

func queryVec() []float32 {
	return []float32{1, 0, 0, 0}
}

// mockLexical implements driven.LexicalSearcher.
type mockLexical struct {
	hits   []driven.LexicalHit
	err    error
	called bool
}

func (m *mockLexical) SearchLexical(_ context.Context, _ string, _ int) ([]driven.LexicalHit, error) {
	m.called = true
	return m.hits, m.err
}

// mockExtractor implements driven.Extractor.
type mockExtractor struct {
	doc *domain.RawDocument
	err error
}

func (m *mockExtractor) Extract(_ context.Context, _ string) (*domain.RawDocument, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.doc, nil
}

// failingStore wraps a store and fails selected calls.
type failingStore struct {
	driven.KnowledgeStore
	fetchErr  error
	insertErr error
}

func (f *failingStore) FetchAllChunks(ctx context.Context) ([]domain.ChunkRow, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.KnowledgeStore.FetchAllChunks(ctx)
}

func (f *failingStore) Insert(
	ctx context.Context, item *domain.KnowledgeItem, chunks []domain.ChunkVector, modelID string, dim int,
) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.KnowledgeStore.Insert(ctx, item, chunks, modelID, dim)
}

var errBoom = errors.New("boom")
