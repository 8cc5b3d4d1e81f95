package domain

import "time"

const unknownDescription = "Unknown"

// RankingMode selects how the retriever scores chunks.
type RankingMode string

// Available ranking modes.
const (
	// RankingHybrid blends vector similarity, lexical signals, intent and
	// metadata boosts.
	RankingHybrid RankingMode = "hybrid"

	// RankingSimple ranks by vector dot product only. It is the reduced
	// feature fallback; diversification still applies.
	RankingSimple RankingMode = "simple"
)

// IsValid returns true if the ranking mode is recognised.
func (m RankingMode) IsValid() bool {
	return m == RankingHybrid || m == RankingSimple
}

// String returns the string representation.
func (m RankingMode) String() string {
	return string(m)
}

// Description returns a human-readable description of the mode.
func (m RankingMode) Description() string {
	switch m {
	case RankingHybrid:
		return "Hybrid (semantic + lexical + boosts)"
	case RankingSimple:
		return "Simple (semantic only)"
	default:
		return unknownDescription
	}
}

// EmbeddingProvider identifies the embedder implementation.
type EmbeddingProvider string

// Available embedding providers.
const (
	// EmbeddingProviderSubword is the built-in offline embedder that only
	// needs the vocabulary file.
	EmbeddingProviderSubword EmbeddingProvider = "subword"

	// EmbeddingProviderOllama is a local Ollama instance.
	EmbeddingProviderOllama EmbeddingProvider = "ollama"

	// EmbeddingProviderOpenAI is any OpenAI-compatible embeddings endpoint
	// (LM Studio, llama.cpp server, OpenAI).
	EmbeddingProviderOpenAI EmbeddingProvider = "openai"
)

// IsValid returns true if the provider is recognised.
func (p EmbeddingProvider) IsValid() bool {
	switch p {
	case EmbeddingProviderSubword, EmbeddingProviderOllama, EmbeddingProviderOpenAI:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (p EmbeddingProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p EmbeddingProvider) Description() string {
	switch p {
	case EmbeddingProviderSubword:
		return "Subword hashing (built-in, offline)"
	case EmbeddingProviderOllama:
		return "Ollama (local)"
	case EmbeddingProviderOpenAI:
		return "OpenAI-compatible endpoint"
	default:
		return unknownDescription
	}
}

// StorageBackend identifies the KnowledgeStore implementation.
type StorageBackend string

// Available storage backends.
const (
	// StorageSQLite is the default single-file store.
	StorageSQLite StorageBackend = "sqlite"

	// StoragePostgres stores vectors in a pgvector column.
	StoragePostgres StorageBackend = "postgres"

	// StorageMemory keeps everything in process memory.
	StorageMemory StorageBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b StorageBackend) IsValid() bool {
	switch b {
	case StorageSQLite, StoragePostgres, StorageMemory:
		return true
	default:
		return false
	}
}

// IngestSettings bounds how much of a document is indexed.
type IngestSettings struct {
	// MaxExtractedChars truncates longer bodies (and flags the item).
	MaxExtractedChars int

	// MaxChunks caps the number of chunks per item (and flags the item).
	MaxChunks int

	// Processors names the text processors run before hashing, in order.
	Processors []string
}

// ChunkSettings configures the chunker window.
type ChunkSettings struct {
	// MaxChars is the window size in characters.
	MaxChars int

	// OverlapChars is how much text adjacent chunks share.
	OverlapChars int
}

// ScoringWeights are the tunable constants of the hybrid ranker.
// Tests assert relative ordering, not exact scores.
type ScoringWeights struct {
	// Semantic and Lexical weight the combined score.
	Semantic float64
	Lexical  float64

	// TokenOverlap, Trigram and Phrase blend the lexical score.
	TokenOverlap float64
	Trigram      float64
	Phrase       float64

	// Intent is added when a query intent matches chunk markers.
	Intent float64

	// Metadata scales the title/source lexical blend into the boost.
	Metadata float64

	// TitleContains and SourceContains are added when the query appears
	// verbatim in the title or source display.
	TitleContains  float64
	SourceContains float64

	// MetadataIntent is added when a query intent matches metadata markers.
	MetadataIntent float64
}

// DefaultScoringWeights returns the tuned defaults.
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		Semantic:       0.65,
		Lexical:        0.35,
		TokenOverlap:   0.6,
		Trigram:        0.25,
		Phrase:         0.15,
		Intent:         0.08,
		Metadata:       0.1,
		TitleContains:  0.12,
		SourceContains: 0.06,
		MetadataIntent: 0.05,
	}
}

// SearchSettings holds retriever configuration.
type SearchSettings struct {
	// Mode is the ranking mode.
	Mode RankingMode

	// TopK is the default result count.
	TopK int

	// PerSourceCap limits chunks per item in the final results.
	PerSourceCap int

	// LexicalCandidates is how many full-text hits to request.
	LexicalCandidates int

	// Weights are the scoring constants.
	Weights ScoringWeights
}

// EmbeddingSettings holds embedder configuration.
type EmbeddingSettings struct {
	// Provider selects the implementation.
	Provider EmbeddingProvider

	// Model is the model name (ollama/openai).
	Model string

	// BaseURL is the API endpoint (ollama/openai).
	BaseURL string

	// APIKey is the API key (openai). Local servers accept any value.
	APIKey string

	// VocabPath is the tokenizer vocabulary file (subword).
	VocabPath string

	// Dimensions is the expected vector size. Zero lets remote providers
	// report their own.
	Dimensions int

	// RequestsPerSecond throttles remote embedders. Zero disables throttling.
	RequestsPerSecond float64

	// BatchSize bounds a single embedding request during reindex.
	BatchSize int
}

// StorageSettings selects and configures the store.
type StorageSettings struct {
	// Backend selects the implementation.
	Backend StorageBackend

	// DataDir holds the SQLite database and lock file.
	DataDir string

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string
}

// StructurerSettings configures the optional structuring command.
type StructurerSettings struct {
	// Command is the program and arguments. Empty disables structuring.
	Command []string

	// Timeout bounds a single run.
	Timeout time.Duration
}

// WatchSettings configures the directory watcher.
type WatchSettings struct {
	// IgnoreFile is a gitignore-style file looked up in the watched root.
	IgnoreFile string

	// Debounce is how long a path must stay quiet before it is ingested.
	Debounce time.Duration
}

// Settings holds all engine settings.
type Settings struct {
	Ingest     IngestSettings
	Chunk      ChunkSettings
	Search     SearchSettings
	Embedding  EmbeddingSettings
	Storage    StorageSettings
	Structurer StructurerSettings
	Watch      WatchSettings
}

// DefaultSettings returns settings with sensible defaults.
func DefaultSettings() Settings {
	return Settings{
		Ingest: IngestSettings{
			MaxExtractedChars: 200_000,
			MaxChunks:         400,
			Processors:        []string{"structure", "dedupe"},
		},
		Chunk: ChunkSettings{
			MaxChars:     800,
			OverlapChars: 100,
		},
		Search: SearchSettings{
			Mode:              RankingHybrid,
			TopK:              10,
			PerSourceCap:      3,
			LexicalCandidates: 50,
			Weights:           DefaultScoringWeights(),
		},
		Embedding: EmbeddingSettings{
			Provider:   EmbeddingProviderSubword,
			Dimensions: 384,
			BatchSize:  32,
		},
		Storage: StorageSettings{
			Backend: StorageSQLite,
		},
		Structurer: StructurerSettings{
			Timeout: 60 * time.Second,
		},
		Watch: WatchSettings{
			IgnoreFile: ".kcacheignore",
			Debounce:   500 * time.Millisecond,
		},
	}
}
