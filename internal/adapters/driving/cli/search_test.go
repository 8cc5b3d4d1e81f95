package cli

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kcache/internal/core/domain"
)

func TestSearchCmd_Use(t *testing.T) {
	assert.Equal(t, "search [query]", searchCmd.Use)
}

func TestSearchCmd_Short(t *testing.T) {
	assert.Equal(t, "Search saved knowledge", searchCmd.Short)
}

func TestSearchCmd_Long(t *testing.T) {
	assert.Contains(t, searchCmd.Long, "hybrid search")
	assert.Contains(t, searchCmd.Long, "semantic")
	assert.Contains(t, searchCmd.Long, "keyword")
}

func TestSearchCmd_RequiresExactlyOneArg(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("search")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestSearchCmd_HasLimitFlag(t *testing.T) {
	flag := searchCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "limit flag should exist")
	assert.Equal(t, "n", flag.Shorthand)
	assert.Equal(t, "10", flag.DefValue)
}

func TestSearchCmd_ExecutesWithQuery(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("search", "how do deploys work")

	require.NoError(t, err)
	assert.Contains(t, out, "Results:")
	assert.Contains(t, out, "[1] Deploy guide (0.87)")
	assert.Contains(t, out, "Source: wiki.example.com")
	assert.Contains(t, out, "Deploys run from the release branch.")
}

func TestSearchCmd_ExecutesWithLimitFlag(t *testing.T) {
	ts, cleanup := installTestServices()
	defer cleanup()

	_, err := execute("search", "--limit", "25", "test query")
	require.NoError(t, err)
	assert.Equal(t, 25, ts.search.opts.Limit)

	_, err = execute("search", "-n", "5", "another query")
	require.NoError(t, err)
	assert.Equal(t, 5, ts.search.opts.Limit)
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("search", "--json", "test query")
	require.NoError(t, err)

	var outcome domain.SearchOutcome
	require.NoError(t, json.Unmarshal([]byte(out), &outcome))
	require.Len(t, outcome.Results, 1)
	assert.Equal(t, "chunk-1", outcome.Results[0].ChunkID)
	assert.Contains(t, out, `"knowledge_item_id"`)
	assert.Nil(t, outcome.Reindex)
}

func TestSearchCmd_NoResults(t *testing.T) {
	ts, cleanup := installTestServices()
	defer cleanup()
	ts.search.outcome = domain.SearchOutcome{}

	out, err := execute("search", "nothing")

	require.NoError(t, err)
	assert.Contains(t, out, "No results found.")
}

func TestSearchCmd_ReindexRequired(t *testing.T) {
	ts, cleanup := installTestServices()
	defer cleanup()
	ts.search.outcome = domain.SearchOutcome{
		Reindex: &domain.ReindexRequired{QueryDimension: 384, StoredDimension: 768},
	}

	out, err := execute("search", "anything")
	require.NoError(t, err)
	assert.Contains(t, out, "stored dimension 768")
	assert.Contains(t, out, "kcache reindex")

	out, err = execute("search", "--json", "anything")
	require.NoError(t, err)
	assert.Contains(t, out, `"reindex"`)
	assert.Contains(t, out, `"results": []`)
}

func TestSearchCmd_ServiceError(t *testing.T) {
	ts, cleanup := installTestServices()
	defer cleanup()
	ts.search.err = domain.ErrEmbeddingUnavailable

	_, err := execute("search", "anything")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), "search failed")
}

func TestSearchCmd_ServiceNotConfigured(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	searchService = nil

	_, err := execute("search", "test")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "search service not configured")
}

func TestSnippet(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  string
	}{
		{"short", "hello world", 20, "hello world"},
		{"collapses whitespace", "a\n\n  b\tc", 20, "a b c"},
		{"truncates", "abcdef ghij", 7, "abcdef..."},
		{"counts runes", "héllo wörld", 5, "héllo..."},
		{"empty", "", 5, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, snippet(tt.text, tt.limit))
		})
	}
}

func TestHintFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"no content", domain.ErrNoContent, "pasting the text"},
		{"tokenizer before embedder", errors.Join(domain.ErrEmbeddingUnavailable, domain.ErrTokenizerUnavailable), "vocab.txt"},
		{"embedder", domain.ErrEmbeddingUnavailable, "ollama pull"},
		{"embedding failed", domain.ErrEmbeddingFailed, "nothing was saved"},
		{"dimension", domain.ErrDimensionMismatch, "kcache reindex"},
		{"unsupported", domain.ErrUnsupportedType, "Markdown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, hintFor(tt.err), tt.want)
		})
	}

	assert.Empty(t, hintFor(errors.New("other")))
}
