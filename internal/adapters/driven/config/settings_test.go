package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kcache/internal/core/domain"
)

// mapStore is a minimal driven.ConfigStore over a map.
type mapStore map[string]any

func (m mapStore) Get(key string) (any, bool) { v, ok := m[key]; return v, ok }
func (m mapStore) GetString(key string) string  { s, _ := AsString(m[key]); return s }
func (m mapStore) GetInt(key string) int        { n, _ := AsInt(m[key]); return n }
func (m mapStore) GetFloat(key string) float64  { f, _ := AsFloat(m[key]); return f }
func (m mapStore) GetBool(key string) bool      { b, _ := AsBool(m[key]); return b }
func (m mapStore) GetStringSlice(key string) []string {
	s, _ := AsStringSlice(m[key])
	return s
}
func (m mapStore) Set(key string, value any) error { m[key] = value; return nil }
func (m mapStore) Keys() []string                  { return nil }
func (m mapStore) Save() error                     { return nil }
func (m mapStore) Load() error                     { return nil }
func (m mapStore) Path() string                    { return "" }

func noEnv(string) (string, bool) { return "", false }

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := loadSettings(mapStore{}, noEnv)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), s)
}

func TestLoadSettings_FromStore(t *testing.T) {
	store := mapStore{
		KeySearchMode:               "simple",
		KeySearchTopK:               int64(5),
		KeyWeightPrefix + "semantic": 0.8,
		KeyEmbeddingProvider:        "ollama",
		KeyEmbeddingModel:           "nomic-embed-text",
		KeyStructurerCommand:        []any{"python3", "scripts/extract_structured.py"},
		KeyStructurerTimeout:        "15s",
		KeyWatchDebounce:            int64(2),
		KeyIngestProcessors:         []any{"dedupe"},
	}

	s, err := loadSettings(store, noEnv)
	require.NoError(t, err)
	assert.Equal(t, domain.RankingSimple, s.Search.Mode)
	assert.Equal(t, 5, s.Search.TopK)
	assert.InDelta(t, 0.8, s.Search.Weights.Semantic, 1e-9)
	assert.Equal(t, domain.EmbeddingProviderOllama, s.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", s.Embedding.Model)
	assert.Equal(t, []string{"python3", "scripts/extract_structured.py"}, s.Structurer.Command)
	assert.Equal(t, 15*time.Second, s.Structurer.Timeout)
	assert.Equal(t, 2*time.Second, s.Watch.Debounce)
	assert.Equal(t, []string{"dedupe"}, s.Ingest.Processors)
}

func TestLoadSettings_EnvOverridesStore(t *testing.T) {
	env := map[string]string{
		"KCACHE_SEARCH_TOP_K":       "7",
		"KCACHE_EMBEDDING_API_KEY":  "12345",
		"KCACHE_STRUCTURER_COMMAND": "python3 extract.py",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	s, err := loadSettings(mapStore{KeySearchTopK: int64(3)}, lookup)
	require.NoError(t, err)
	assert.Equal(t, 7, s.Search.TopK)
	assert.Equal(t, "12345", s.Embedding.APIKey)
	assert.Equal(t, []string{"python3", "extract.py"}, s.Structurer.Command)
}

func TestLoadSettings_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		store mapStore
	}{
		{name: "wrong type", store: mapStore{KeySearchTopK: "many"}},
		{name: "unknown mode", store: mapStore{KeySearchMode: "bm25"}},
		{name: "unknown provider", store: mapStore{KeyEmbeddingProvider: "anthropic"}},
		{name: "overlap too large", store: mapStore{KeyChunkOverlap: int64(900)}},
		{name: "postgres without dsn", store: mapStore{KeyStorageBackend: "postgres"}},
		{name: "bad duration", store: mapStore{KeyStructurerTimeout: "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadSettings(tt.store, noEnv)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "KCACHE_SEARCH_WEIGHTS_SEMANTIC", EnvName("search.weights.semantic"))
	assert.Equal(t, "KCACHE_EMBEDDING_BASE_URL", EnvName("embedding.base_url"))
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("KCACHE_TEST_LOADED=yes\n"), 0600))
	t.Cleanup(func() { _ = os.Unsetenv("KCACHE_TEST_LOADED") })

	require.NoError(t, LoadEnvFiles(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "yes", os.Getenv("KCACHE_TEST_LOADED"))
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, ParseValue("true"))
	assert.Equal(t, int64(42), ParseValue("42"))
	assert.Equal(t, 0.5, ParseValue("0.5"))
	assert.Equal(t, "hybrid", ParseValue("hybrid"))
	assert.Equal(t, []string{"a", "b"}, ParseValue(`["a", "b"]`))
	assert.Equal(t, []string{}, ParseValue("[]"))
}

func TestKnownKeys(t *testing.T) {
	keys := KnownKeys()
	assert.Contains(t, keys, KeySearchTopK)
	assert.Contains(t, keys, "search.weights.semantic")
	assert.IsIncreasing(t, keys)
}
