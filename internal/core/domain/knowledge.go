package domain

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// PastedNoteDisplay is shown as the source of items without an origin.
const PastedNoteDisplay = "Pasted note"

// KnowledgeItem is the persisted unit of saved content.
// At most one item exists per distinct ContentHash.
type KnowledgeItem struct {
	// ID is the unique, stable identifier.
	ID string

	// Title is the human-readable title.
	Title string

	// SourceURL is the origin of the content. Empty for pasted notes.
	SourceURL string

	// RawContent is the text that was chunked (after structuring,
	// duplicate-paragraph collapsing and truncation).
	RawContent string

	// ContentHash is the deduplication key: a hex SHA-256 digest of the
	// whitespace-normalised content.
	ContentHash string

	// WasTruncated reports that a character or chunk ceiling dropped content.
	WasTruncated bool

	// CreatedAt is when the item was first ingested.
	CreatedAt time.Time
}

// SourceDisplay returns a short name for the item's origin: the host of a
// URL without a leading "www.", the base name of a file path, or
// PastedNoteDisplay when there is no origin.
func (k KnowledgeItem) SourceDisplay() string {
	return SourceDisplay(k.SourceURL)
}

// SourceDisplay derives a display name from a source origin.
func SourceDisplay(origin string) string {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return PastedNoteDisplay
	}
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	}
	if strings.HasPrefix(origin, "file://") {
		origin = strings.TrimPrefix(origin, "file://")
	}
	if base := filepath.Base(origin); base != "." && base != string(filepath.Separator) {
		return base
	}
	return origin
}

// ChunkRow is the read shape of a stored chunk. The embedding stays in its
// wire format until the retriever decodes it against EmbeddingDim. Chunks are
// immutable once written; only a reindex replaces their embedding.
type ChunkRow struct {
	ID               string
	KnowledgeItemID  string
	Index            int
	Text             string
	EmbeddingBlob    []byte
	EmbeddingDim     int
	EmbeddingModelID string
}

// ChunkVector pairs chunk text with its embedding for a single insert.
type ChunkVector struct {
	Text      string
	Embedding []float32
}

// ChunkEmbedding is a replacement embedding for an existing chunk.
type ChunkEmbedding struct {
	ChunkID   string
	Embedding []float32
}

// Segment is a chunker output: an indexed piece of text before embedding.
type Segment struct {
	Index int
	Text  string
}
