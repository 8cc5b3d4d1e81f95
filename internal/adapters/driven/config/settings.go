package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/kcache/internal/core/domain"
	"github.com/custodia-labs/kcache/internal/core/ports/driven"
)

// EnvPrefix prefixes environment overrides: "search.top_k" is read from
// KCACHE_SEARCH_TOP_K.
const EnvPrefix = "KCACHE_"

// Keys understood by LoadSettings.
const (
	KeyIngestMaxChars   = "ingest.max_extracted_chars"
	KeyIngestMaxChunks  = "ingest.max_chunks"
	KeyIngestProcessors = "ingest.processors"

	KeyChunkMaxChars = "chunk.max_chars"
	KeyChunkOverlap  = "chunk.overlap_chars"

	KeySearchMode              = "search.mode"
	KeySearchTopK              = "search.top_k"
	KeySearchPerSourceCap      = "search.per_source_cap"
	KeySearchLexicalCandidates = "search.lexical_candidates"
	KeyWeightPrefix            = "search.weights."

	KeyEmbeddingProvider   = "embedding.provider"
	KeyEmbeddingModel      = "embedding.model"
	KeyEmbeddingBaseURL    = "embedding.base_url"
	KeyEmbeddingAPIKey     = "embedding.api_key"
	KeyEmbeddingVocabPath  = "embedding.vocab_path"
	KeyEmbeddingDimensions = "embedding.dimensions"
	KeyEmbeddingRPS        = "embedding.requests_per_second"
	KeyEmbeddingBatchSize  = "embedding.batch_size"

	KeyStorageBackend     = "storage.backend"
	KeyStorageDataDir     = "storage.data_dir"
	KeyStoragePostgresDSN = "storage.postgres_dsn"

	KeyStructurerCommand = "structurer.command"
	KeyStructurerTimeout = "structurer.timeout"

	KeyWatchIgnoreFile = "watch.ignore_file"
	KeyWatchDebounce   = "watch.debounce"
)

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

// LoadEnvFiles loads KEY=VALUE pairs from .env files into the process
// environment. Missing files are skipped; variables already set win.
func LoadEnvFiles(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

// DefaultEnvFiles returns the .env files consulted at startup: one in the
// working directory and one next to the config file.
func DefaultEnvFiles(store driven.ConfigStore) []string {
	files := []string{".env"}
	if store != nil && store.Path() != "" {
		files = append(files, filepath.Join(filepath.Dir(store.Path()), ".env"))
	}
	return files
}

// reader resolves a key from the environment first, then the store, and
// collects conversion errors.
type reader struct {
	store  driven.ConfigStore
	lookup func(string) (string, bool)
	errs   []error
}

func (r *reader) raw(key string) (any, bool) {
	if r.lookup != nil {
		if v, ok := r.lookup(EnvName(key)); ok && v != "" {
			return ParseValue(v), true
		}
	}
	if r.store == nil {
		return nil, false
	}
	return r.store.Get(key)
}

func (r *reader) fail(key string, val any, want string) {
	r.errs = append(r.errs, fmt.Errorf("%w: %s: %v is not %s", domain.ErrInvalidInput, key, val, want))
}

func (r *reader) intVal(key string, dst *int) {
	if val, ok := r.raw(key); ok {
		if n, ok := AsInt(val); ok {
			*dst = n
		} else {
			r.fail(key, val, "an integer")
		}
	}
}

func (r *reader) floatVal(key string, dst *float64) {
	if val, ok := r.raw(key); ok {
		if f, ok := AsFloat(val); ok {
			*dst = f
		} else {
			r.fail(key, val, "a number")
		}
	}
}

func (r *reader) stringVal(key string, dst *string) {
	if val, ok := r.raw(key); ok {
		switch v := val.(type) {
		case string:
			*dst = v
		default:
			// Environment values such as API keys may parse as numbers.
			*dst = fmt.Sprint(v)
		}
	}
}

func (r *reader) stringsVal(key string, dst *[]string) {
	if val, ok := r.raw(key); ok {
		if s, ok := AsStringSlice(val); ok {
			*dst = s
		} else if str, ok := val.(string); ok {
			*dst = strings.Fields(str)
		} else {
			r.fail(key, val, "a list of strings")
		}
	}
}

func (r *reader) durationVal(key string, dst *time.Duration) {
	val, ok := r.raw(key)
	if !ok {
		return
	}
	switch v := val.(type) {
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			r.fail(key, val, "a duration")
			return
		}
		*dst = d
	default:
		// Bare numbers are seconds.
		if f, ok := AsFloat(v); ok {
			*dst = time.Duration(f * float64(time.Second))
			return
		}
		r.fail(key, val, "a duration")
	}
}

// LoadSettings builds settings from defaults, the store and the process
// environment.
func LoadSettings(store driven.ConfigStore) (domain.Settings, error) {
	return loadSettings(store, os.LookupEnv)
}

func loadSettings(store driven.ConfigStore, lookup func(string) (string, bool)) (domain.Settings, error) {
	s := domain.DefaultSettings()
	r := &reader{store: store, lookup: lookup}

	r.intVal(KeyIngestMaxChars, &s.Ingest.MaxExtractedChars)
	r.intVal(KeyIngestMaxChunks, &s.Ingest.MaxChunks)
	r.stringsVal(KeyIngestProcessors, &s.Ingest.Processors)

	r.intVal(KeyChunkMaxChars, &s.Chunk.MaxChars)
	r.intVal(KeyChunkOverlap, &s.Chunk.OverlapChars)

	var mode string
	r.stringVal(KeySearchMode, &mode)
	if mode != "" {
		s.Search.Mode = domain.RankingMode(mode)
	}
	r.intVal(KeySearchTopK, &s.Search.TopK)
	r.intVal(KeySearchPerSourceCap, &s.Search.PerSourceCap)
	r.intVal(KeySearchLexicalCandidates, &s.Search.LexicalCandidates)
	for name, dst := range weightFields(&s.Search.Weights) {
		r.floatVal(KeyWeightPrefix+name, dst)
	}

	var provider string
	r.stringVal(KeyEmbeddingProvider, &provider)
	if provider != "" {
		s.Embedding.Provider = domain.EmbeddingProvider(provider)
	}
	r.stringVal(KeyEmbeddingModel, &s.Embedding.Model)
	r.stringVal(KeyEmbeddingBaseURL, &s.Embedding.BaseURL)
	r.stringVal(KeyEmbeddingAPIKey, &s.Embedding.APIKey)
	r.stringVal(KeyEmbeddingVocabPath, &s.Embedding.VocabPath)
	r.intVal(KeyEmbeddingDimensions, &s.Embedding.Dimensions)
	r.floatVal(KeyEmbeddingRPS, &s.Embedding.RequestsPerSecond)
	r.intVal(KeyEmbeddingBatchSize, &s.Embedding.BatchSize)

	var backend string
	r.stringVal(KeyStorageBackend, &backend)
	if backend != "" {
		s.Storage.Backend = domain.StorageBackend(backend)
	}
	r.stringVal(KeyStorageDataDir, &s.Storage.DataDir)
	r.stringVal(KeyStoragePostgresDSN, &s.Storage.PostgresDSN)

	r.stringsVal(KeyStructurerCommand, &s.Structurer.Command)
	r.durationVal(KeyStructurerTimeout, &s.Structurer.Timeout)

	r.stringVal(KeyWatchIgnoreFile, &s.Watch.IgnoreFile)
	r.durationVal(KeyWatchDebounce, &s.Watch.Debounce)

	if err := errors.Join(r.errs...); err != nil {
		return s, err
	}
	return s, Validate(s)
}

// weightFields maps weight key suffixes to their fields.
func weightFields(w *domain.ScoringWeights) map[string]*float64 {
	return map[string]*float64{
		"semantic":        &w.Semantic,
		"lexical":         &w.Lexical,
		"token_overlap":   &w.TokenOverlap,
		"trigram":         &w.Trigram,
		"phrase":          &w.Phrase,
		"intent":          &w.Intent,
		"metadata":        &w.Metadata,
		"title_contains":  &w.TitleContains,
		"source_contains": &w.SourceContains,
		"metadata_intent": &w.MetadataIntent,
	}
}

// Validate reports settings the engine cannot run with.
func Validate(s domain.Settings) error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{domain.ErrInvalidInput}, args...)...))
		}
	}

	check(s.Ingest.MaxExtractedChars > 0, "%s must be positive", KeyIngestMaxChars)
	check(s.Ingest.MaxChunks > 0, "%s must be positive", KeyIngestMaxChunks)
	check(s.Chunk.MaxChars > 0, "%s must be positive", KeyChunkMaxChars)
	check(s.Chunk.OverlapChars >= 0 && s.Chunk.OverlapChars < s.Chunk.MaxChars,
		"%s must be between 0 and %s", KeyChunkOverlap, KeyChunkMaxChars)
	check(s.Search.Mode.IsValid(), "unknown %s %q", KeySearchMode, s.Search.Mode)
	check(s.Search.TopK > 0, "%s must be positive", KeySearchTopK)
	check(s.Search.PerSourceCap > 0, "%s must be positive", KeySearchPerSourceCap)
	check(s.Embedding.Provider.IsValid(), "unknown %s %q", KeyEmbeddingProvider, s.Embedding.Provider)
	check(s.Embedding.Dimensions >= 0, "%s must not be negative", KeyEmbeddingDimensions)
	check(s.Embedding.BatchSize > 0, "%s must be positive", KeyEmbeddingBatchSize)
	check(s.Storage.Backend.IsValid(), "unknown %s %q", KeyStorageBackend, s.Storage.Backend)
	check(s.Storage.Backend != domain.StoragePostgres || s.Storage.PostgresDSN != "",
		"%s is required for the postgres backend", KeyStoragePostgresDSN)

	return errors.Join(errs...)
}

// KnownKeys returns every key LoadSettings reads.
func KnownKeys() []string {
	keys := []string{
		KeyIngestMaxChars, KeyIngestMaxChunks, KeyIngestProcessors,
		KeyChunkMaxChars, KeyChunkOverlap,
		KeySearchMode, KeySearchTopK, KeySearchPerSourceCap, KeySearchLexicalCandidates,
		KeyEmbeddingProvider, KeyEmbeddingModel, KeyEmbeddingBaseURL, KeyEmbeddingAPIKey,
		KeyEmbeddingVocabPath, KeyEmbeddingDimensions, KeyEmbeddingRPS, KeyEmbeddingBatchSize,
		KeyStorageBackend, KeyStorageDataDir, KeyStoragePostgresDSN,
		KeyStructurerCommand, KeyStructurerTimeout,
		KeyWatchIgnoreFile, KeyWatchDebounce,
	}
	var w domain.ScoringWeights
	for name := range weightFields(&w) {
		keys = append(keys, KeyWeightPrefix+name)
	}
	sort.Strings(keys)
	return keys
}
