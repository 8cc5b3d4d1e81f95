package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/kcache/internal/adapters/driven/config"
	"github.com/custodia-labs/kcache/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/kcache/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/kcache/internal/adapters/driven/embedding/subword"
	"github.com/custodia-labs/kcache/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/kcache/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/kcache/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/kcache/internal/adapters/driven/structurer/command"
	"github.com/custodia-labs/kcache/internal/core/domain"
	"github.com/custodia-labs/kcache/internal/core/ports/driven"
	"github.com/custodia-labs/kcache/internal/core/services"
	"github.com/custodia-labs/kcache/internal/logger"
	"github.com/custodia-labs/kcache/internal/normalisers"
	"github.com/custodia-labs/kcache/internal/postprocessors"
	"github.com/custodia-labs/kcache/internal/postprocessors/chunker"
)

// VocabFile is the default vocabulary file name inside the config directory.
const VocabFile = "vocab.txt"

// keyDedupeBlockSizes optionally overrides the duplicate-block sizes.
const keyDedupeBlockSizes = "ingest.dedupe_block_sizes"

// App holds the wired engine for one CLI invocation.
type App struct {
	Settings  domain.Settings
	Store     driven.KnowledgeStore
	Embedder  driven.Embedder
	Extractor *normalisers.FileExtractor

	Search    *services.SearchService
	Ingest    *services.IngestService
	Knowledge *services.KnowledgeService
	Reindex   *services.ReindexService
}

// NewApp wires stores, embedder and services from settings.
func NewApp(ctx context.Context, store driven.ConfigStore, settings domain.Settings) (*App, error) {
	kstore, err := openStore(ctx, settings.Storage)
	if err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(store, settings.Embedding)
	if err != nil {
		kstore.Close() //nolint:errcheck
		return nil, err
	}

	pipeline, err := newPipeline(store, settings)
	if err != nil {
		kstore.Close()   //nolint:errcheck
		embedder.Close() //nolint:errcheck
		return nil, err
	}

	chunk := chunker.New(
		chunker.WithChunkSize(settings.Chunk.MaxChars),
		chunker.WithOverlap(settings.Chunk.OverlapChars),
	)
	extractor := normalisers.NewFileExtractor(nil)

	app := &App{
		Settings:  settings,
		Store:     kstore,
		Embedder:  embedder,
		Extractor: extractor,
		Search:    services.NewSearchService(kstore, embedder, settings.Search),
		Ingest:    services.NewIngestService(kstore, embedder, chunk, pipeline, settings.Ingest),
		Knowledge: services.NewKnowledgeService(kstore),
		Reindex:   services.NewReindexService(kstore, embedder, settings.Embedding.BatchSize),
	}
	app.Ingest.SetExtractor(extractor)
	if lexical, ok := kstore.(driven.LexicalSearcher); ok {
		app.Search.SetLexicalSearcher(lexical)
	}

	logger.Debug("Engine ready: storage=%s embedder=%s mode=%s",
		settings.Storage.Backend, settings.Embedding.Provider, settings.Search.Mode)
	return app, nil
}

// Close releases the embedder and the store.
func (a *App) Close() error {
	return errors.Join(a.Embedder.Close(), a.Store.Close())
}

func openStore(ctx context.Context, cfg domain.StorageSettings) (driven.KnowledgeStore, error) {
	switch cfg.Backend {
	case domain.StorageSQLite, "":
		store, err := sqlite.NewStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return store, nil
	case domain.StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		return store, nil
	case domain.StorageMemory:
		logger.Warn("Using the in-memory store: nothing will be persisted")
		return memory.NewKnowledgeStore(), nil
	default:
		return nil, fmt.Errorf("%w: storage backend %q", domain.ErrUnsupportedType, cfg.Backend)
	}
}

func newEmbedder(store driven.ConfigStore, cfg domain.EmbeddingSettings) (driven.Embedder, error) {
	switch cfg.Provider {
	case domain.EmbeddingProviderSubword, "":
		vocab := cfg.VocabPath
		if vocab == "" {
			vocab = defaultVocabPath(store)
		}
		return subword.NewEmbedder(subword.Config{
			VocabPath:  vocab,
			Dimensions: cfg.Dimensions,
		}), nil
	case domain.EmbeddingProviderOllama:
		return ollama.NewEmbedder(ollama.Config{
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			Dimensions:        cfg.Dimensions,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}), nil
	case domain.EmbeddingProviderOpenAI:
		return openai.NewEmbedder(openai.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			MaxRetries: 2,
		}), nil
	default:
		return nil, fmt.Errorf("%w: embedding provider %q", domain.ErrUnsupportedType, cfg.Provider)
	}
}

// defaultVocabPath places the vocabulary next to the config file.
func defaultVocabPath(store driven.ConfigStore) string {
	if store != nil && store.Path() != "" {
		return filepath.Join(filepath.Dir(store.Path()), VocabFile)
	}
	return VocabFile
}

func newPipeline(store driven.ConfigStore, settings domain.Settings) (*postprocessors.Pipeline, error) {
	var structurer driven.Structurer
	if len(settings.Structurer.Command) > 0 {
		s, err := command.New(settings.Structurer.Command, settings.Structurer.Timeout)
		if err != nil {
			return nil, err
		}
		structurer = s
	}

	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry, structurer)

	cfg := map[string]any{}
	if store != nil {
		if sizes, ok := store.Get(keyDedupeBlockSizes); ok {
			cfg["dedupe_block_sizes"] = sizes
		}
	}

	pipeline, err := registry.BuildPipeline(settings.Ingest.Processors, cfg)
	if err != nil {
		return nil, fmt.Errorf("building text pipeline: %w", err)
	}
	return pipeline, nil
}

// knownKey reports whether key is read anywhere.
func knownKey(key string) bool {
	if key == keyDedupeBlockSizes {
		return true
	}
	for _, k := range config.KnownKeys() {
		if k == key {
			return true
		}
	}
	return false
}
