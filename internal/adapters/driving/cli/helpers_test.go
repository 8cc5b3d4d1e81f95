package cli

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/kcache/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/kcache/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	outcome domain.SearchOutcome
	err     error
	opts    domain.SearchOptions
}

func (m *mockSearchService) Search(_ context.Context, _ string, opts domain.SearchOptions) (domain.SearchOutcome, error) {
	m.opts = opts
	return m.outcome, m.err
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	raws  []domain.RawDocument
	files []string
	err   error
	dup   bool
}

func (m *mockIngestService) Ingest(_ context.Context, raw domain.RawDocument) (domain.IngestResult, error) {
	m.raws = append(m.raws, raw)
	if m.err != nil {
		return domain.IngestResult{}, m.err
	}
	title := raw.Title
	if title == "" {
		title = "Untitled"
	}
	return domain.IngestResult{
		Item:       domain.KnowledgeItem{ID: "item-1", Title: title, SourceURL: raw.SourceOrigin},
		Created:    !m.dup,
		ChunkCount: 2,
	}, nil
}

func (m *mockIngestService) IngestFile(_ context.Context, path string) (domain.IngestResult, error) {
	m.files = append(m.files, path)
	if m.err != nil || strings.HasSuffix(path, ".bin") {
		err := m.err
		if err == nil {
			err = domain.ErrUnsupportedType
		}
		return domain.IngestResult{}, err
	}
	return domain.IngestResult{
		Item:       domain.KnowledgeItem{ID: "file-1", Title: path, SourceURL: path},
		Created:    true,
		ChunkCount: 1,
	}, nil
}

// mockKnowledgeService is a mock implementation of driving.KnowledgeService.
type mockKnowledgeService struct {
	items   []domain.KnowledgeItem
	chunks  []domain.ChunkRow
	deleted []string
	err     error
}

func (m *mockKnowledgeService) List(_ context.Context) ([]domain.KnowledgeItem, error) {
	return m.items, m.err
}

func (m *mockKnowledgeService) Get(_ context.Context, id string) (*domain.KnowledgeItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.items {
		if m.items[i].ID == id {
			return &m.items[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockKnowledgeService) Chunks(_ context.Context, _ string) ([]domain.ChunkRow, error) {
	return m.chunks, m.err
}

func (m *mockKnowledgeService) Delete(_ context.Context, id string) error {
	if m.err != nil {
		return m.err
	}
	for _, it := range m.items {
		if it.ID == id {
			m.deleted = append(m.deleted, id)
			return nil
		}
	}
	return domain.ErrNotFound
}

// mockReindexService is a mock implementation of driving.ReindexService.
type mockReindexService struct {
	report domain.ReindexReport
	err    error
}

func (m *mockReindexService) Reindex(_ context.Context) (domain.ReindexReport, error) {
	return m.report, m.err
}

// testServices are the mocks installed by setupTestServices.
type testServices struct {
	search    *mockSearchService
	ingest    *mockIngestService
	knowledge *mockKnowledgeService
	reindex   *mockReindexService
	config    *memory.ConfigStore
}

func newTestServices() *testServices {
	return &testServices{
		search: &mockSearchService{
			outcome: domain.SearchOutcome{
				Results: []domain.RetrievalResult{{
					ChunkID:         "chunk-1",
					ChunkText:       "Deploys run from the release branch.",
					Score:           0.87,
					KnowledgeItemID: "item-1",
					Title:           "Deploy guide",
					SourceURL:       "https://wiki.example.com/deploy",
					SourceDisplay:   "wiki.example.com",
				}},
			},
		},
		ingest: &mockIngestService{},
		knowledge: &mockKnowledgeService{
			items: []domain.KnowledgeItem{{
				ID:          "item-1",
				Title:       "Deploy guide",
				SourceURL:   "https://wiki.example.com/deploy",
				RawContent:  "Deploys run from the release branch.",
				ContentHash: "abc123",
				CreatedAt:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
			}},
			chunks: []domain.ChunkRow{{
				ID: "chunk-1", Index: 0, Text: "Deploys run from the release branch.",
				EmbeddingDim: 384, EmbeddingModelID: "subword-hash-384",
			}},
		},
		reindex: &mockReindexService{
			report: domain.ReindexReport{Chunks: 4, ModelID: "subword-hash-384", Dimension: 384},
		},
		config: memory.NewConfigStore(nil),
	}
}

// setupTestServices installs mocks and returns a cleanup function.
func setupTestServices() func() {
	_, cleanup := installTestServices()
	return cleanup
}

func installTestServices() (*testServices, func()) {
	ts := newTestServices()

	oldSearch, oldIngest, oldKnowledge, oldReindex := searchService, ingestService, knowledgeService, reindexService
	oldConfig, oldInjected, oldSupported := configStore, injected, fileSupported

	searchService = ts.search
	ingestService = ts.ingest
	knowledgeService = ts.knowledge
	reindexService = ts.reindex
	configStore = ts.config
	fileSupported = nil
	injected = true

	return ts, func() {
		searchService, ingestService, knowledgeService, reindexService = oldSearch, oldIngest, oldKnowledge, oldReindex
		configStore, injected, fileSupported = oldConfig, oldInjected, oldSupported
	}
}

// execute runs rootCmd with args and returns combined output.
func execute(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		resetFlags()
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag to its default between runs.
func resetFlags() {
	var walk func(cmd *cobra.Command)
	walk = func(cmd *cobra.Command) {
		for _, fs := range []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags()} {
			fs.VisitAll(func(f *pflag.Flag) {
				_ = f.Value.Set(f.DefValue)
				f.Changed = false
			})
		}
		for _, sub := range cmd.Commands() {
			walk(sub)
		}
	}
	walk(rootCmd)
}
