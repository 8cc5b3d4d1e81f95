package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kcache/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/kcache/internal/core/domain"
	"github.com/custodia-labs/kcache/internal/postprocessors"
	"github.com/custodia-labs/kcache/internal/postprocessors/chunker"
	"github.com/custodia-labs/kcache/internal/postprocessors/dedupe"
)

func newTestIngest(store *memory.KnowledgeStore, embedder *mockEmbedder) *IngestService {
	svc := NewIngestService(
		store,
		embedder,
		chunker.New(chunker.WithChunkSize(200), chunker.WithOverlap(20)),
		postprocessors.NewPipeline(dedupe.New()),
		domain.IngestSettings{MaxExtractedChars: 5000, MaxChunks: 10},
	)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestContentHash(t *testing.T) {
	a := ContentHash("  hello\n\tworld  ")
	b := ContentHash("hello world")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, ContentHash("hello  worlds"))
}

func TestIngest_CreatesItem(t *testing.T) {
	store := memory.NewKnowledgeStore()
	svc := newTestIngest(store, newMockEmbedder(4))

	result, err := svc.Ingest(context.Background(), domain.RawDocument{
		Title:        "Resume",
		Body:         "Software Engineer with 2+ years of experience",
		SourceOrigin: "https://www.example.com/cv",
	})
	require.NoError(t, err)

	assert.True(t, result.Created)
	assert.Equal(t, 1, result.ChunkCount)
	assert.NotEmpty(t, result.Item.ID)
	assert.Equal(t, "Resume", result.Item.Title)
	assert.Equal(t, "https://www.example.com/cv", result.Item.SourceURL)
	assert.Equal(t, ContentHash("Software Engineer with 2+ years of experience"), result.Item.ContentHash)
	assert.False(t, result.Item.WasTruncated)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), result.Item.CreatedAt)

	rows, err := store.FetchAllChunks(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "mock-embed", rows[0].EmbeddingModelID)
	assert.Equal(t, 4, rows[0].EmbeddingDim)
}

func TestIngest_Idempotent(t *testing.T) {
	store := memory.NewKnowledgeStore()
	embedder := newMockEmbedder(4)
	svc := newTestIngest(store, embedder)
	ctx := context.Background()
	raw := domain.RawDocument{Body: "A pasted note about retrieval.\nSecond line."}

	first, err := svc.Ingest(ctx, raw)
	require.NoError(t, err)
	second, err := svc.Ingest(ctx, raw)
	require.NoError(t, err)

	assert.True(t, first.Created)
	assert.False(t, second.Created)
	assert.Equal(t, first.Item.ID, second.Item.ID)
	assert.Zero(t, second.ChunkCount)
	assert.Equal(t, 1, store.Writes(), "duplicate ingestion must not write")
	assert.Equal(t, 1, embedder.embedCalls, "duplicate ingestion must not embed")

	items, err := store.ListItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	rows, err := store.FetchAllChunks(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, first.ChunkCount)
}

func TestIngest_WhitespaceInsensitiveDuplicate(t *testing.T) {
	store := memory.NewKnowledgeStore()
	svc := newTestIngest(store, newMockEmbedder(4))
	ctx := context.Background()

	first, err := svc.Ingest(ctx, domain.RawDocument{Body: "one two   three"})
	require.NoError(t, err)
	second, err := svc.Ingest(ctx, domain.RawDocument{Body: "  one two three \n"})
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.Item.ID, second.Item.ID)
}

func TestIngest_CollapsesDuplicateBlocks(t *testing.T) {
	store := memory.NewKnowledgeStore()
	svc := newTestIngest(store, newMockEmbedder(4))

	result, err := svc.Ingest(context.Background(), domain.RawDocument{
		Body: "Home\nBlog\nHome\nBlog\nActual article text",
	})
	require.NoError(t, err)
	assert.Equal(t, "Home\n\nBlog\n\nActual article text", result.Item.RawContent)
}

func TestIngest_TruncatesExtractedChars(t *testing.T) {
	store := memory.NewKnowledgeStore()
	svc := newTestIngest(store, newMockEmbedder(4))
	svc.settings.MaxExtractedChars = 50

	result, err := svc.Ingest(context.Background(), domain.RawDocument{Body: strings.Repeat("abcde ", 30)})
	require.NoError(t, err)
	assert.True(t, result.Item.WasTruncated)
	assert.LessOrEqual(t, len([]rune(result.Item.RawContent)), 50)
}

func TestIngest_FlagsChunkCap(t *testing.T) {
	store := memory.NewKnowledgeStore()
	svc := newTestIngest(store, newMockEmbedder(4))
	svc.settings.MaxChunks = 2

	result, err := svc.Ingest(context.Background(), domain.RawDocument{Body: strings.Repeat("lorem ipsum ", 200)})
	require.NoError(t, err)
	assert.True(t, result.Item.WasTruncated)
	assert.Equal(t, 2, result.ChunkCount)
}

func TestIngest_NoContent(t *testing.T) {
	store := memory.NewKnowledgeStore()
	svc := newTestIngest(store, newMockEmbedder(4))

	_, err := svc.Ingest(context.Background(), domain.RawDocument{Body: " \n\t "})
	assert.ErrorIs(t, err, domain.ErrNoContent)
	assert.Zero(t, store.Writes())
}

func TestIngest_EmbeddingUnavailable(t *testing.T) {
	store := memory.NewKnowledgeStore()
	embedder := newMockEmbedder(4)
	embedder.unavailable = true
	svc := newTestIngest(store, embedder)

	_, err := svc.Ingest(context.Background(), domain.RawDocument{Body: "text"})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Zero(t, store.Writes())
}

func TestIngest_EmbeddingFailed(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*mockEmbedder)
		wantText string
	}{
		{name: "batch error", setup: func(m *mockEmbedder) { m.embedErr = errBoom }, wantText: "boom"},
		{name: "count mismatch", setup: func(m *mockEmbedder) { m.dropLast = true }, wantText: "0 vectors for 1 chunks"},
		{name: "wrong dimension", setup: func(m *mockEmbedder) { m.fallback = []float32{1} }, wantText: "has 1 values"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewKnowledgeStore()
			embedder := newMockEmbedder(4)
			tt.setup(embedder)
			svc := newTestIngest(store, embedder)

			_, err := svc.Ingest(context.Background(), domain.RawDocument{Body: "text"})
			assert.ErrorIs(t, err, domain.ErrEmbeddingFailed)
			assert.Contains(t, err.Error(), tt.wantText)
			assert.Zero(t, store.Writes(), "partial batches are never stored")
		})
	}
}

func TestIngest_InsertErrorPropagates(t *testing.T) {
	store := &failingStore{KnowledgeStore: memory.NewKnowledgeStore(), insertErr: errBoom}
	svc := NewIngestService(store, newMockEmbedder(4), chunker.New(), nil, domain.IngestSettings{MaxChunks: 5})

	_, err := svc.Ingest(context.Background(), domain.RawDocument{Body: "text"})
	assert.ErrorIs(t, err, errBoom)
}

func TestIngest_DerivesTitle(t *testing.T) {
	store := memory.NewKnowledgeStore()
	svc := newTestIngest(store, newMockEmbedder(4))

	result, err := svc.Ingest(context.Background(), domain.RawDocument{Body: "First line here\nbody"})
	require.NoError(t, err)
	assert.Equal(t, "First line here", result.Item.Title)
	assert.Equal(t, domain.PastedNoteDisplay, result.Item.SourceDisplay())
}

func TestDeriveTitle(t *testing.T) {
	assert.Equal(t, "Given", deriveTitle("  Given ", "text"))
	assert.Equal(t, "Untitled", deriveTitle("", ""))
	long := deriveTitle("", strings.Repeat("x", 100))
	assert.Len(t, []rune(long), maxDerivedTitle+1)
}

func TestIngestFile(t *testing.T) {
	store := memory.NewKnowledgeStore()
	svc := newTestIngest(store, newMockEmbedder(4))

	_, err := svc.IngestFile(context.Background(), "/notes/a.md")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	svc.SetExtractor(&mockExtractor{doc: &domain.RawDocument{
		Title: "Notes", Body: "Markdown body", SourceOrigin: "/notes/a.md",
	}})
	result, err := svc.IngestFile(context.Background(), "/notes/a.md")
	require.NoError(t, err)
	assert.Equal(t, "Notes", result.Item.Title)
	assert.Equal(t, "a.md", result.Item.SourceDisplay())

	svc.SetExtractor(&mockExtractor{err: domain.ErrUnsupportedType})
	_, err = svc.IngestFile(context.Background(), "/bin/ls")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}
