package mcp

import (
	"context"

	"github.com/custodia-labs/kcache/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	outcome domain.SearchOutcome
	err     error
	query   string
	opts    domain.SearchOptions
}

func (m *mockSearchService) Search(
	_ context.Context,
	query string,
	opts domain.SearchOptions,
) (domain.SearchOutcome, error) {
	m.query = query
	m.opts = opts
	return m.outcome, m.err
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	result domain.IngestResult
	err    error
	raw    domain.RawDocument
}

func (m *mockIngestService) Ingest(_ context.Context, raw domain.RawDocument) (domain.IngestResult, error) {
	m.raw = raw
	return m.result, m.err
}

func (m *mockIngestService) IngestFile(_ context.Context, _ string) (domain.IngestResult, error) {
	return m.result, m.err
}

// mockKnowledgeService is a mock implementation of driving.KnowledgeService.
type mockKnowledgeService struct {
	items  []domain.KnowledgeItem
	item   *domain.KnowledgeItem
	chunks []domain.ChunkRow
	err    error
}

func (m *mockKnowledgeService) List(_ context.Context) ([]domain.KnowledgeItem, error) {
	return m.items, m.err
}

func (m *mockKnowledgeService) Get(_ context.Context, _ string) (*domain.KnowledgeItem, error) {
	return m.item, m.err
}

func (m *mockKnowledgeService) Chunks(_ context.Context, _ string) ([]domain.ChunkRow, error) {
	return m.chunks, m.err
}

func (m *mockKnowledgeService) Delete(_ context.Context, _ string) error {
	return m.err
}
