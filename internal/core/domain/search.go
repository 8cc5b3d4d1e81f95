package domain

import "fmt"

// SearchOptions configures a search query.
type SearchOptions struct {
	// Limit is the maximum number of results (top-K). Zero uses the
	// configured default.
	Limit int

	// PerSourceCap overrides how many chunks one item may contribute.
	// Zero uses the configured default.
	PerSourceCap int
}

// RetrievalResult is a single ranked chunk with its parent item metadata.
type RetrievalResult struct {
	// ChunkID is the matched chunk.
	ChunkID string `json:"chunk_id"`

	// ChunkText is the chunk content.
	ChunkText string `json:"chunk_text"`

	// Score is the final relevance score, higher is better.
	Score float64 `json:"score"`

	// KnowledgeItemID links to the parent item.
	KnowledgeItemID string `json:"knowledge_item_id"`

	// Title is the parent item title.
	Title string `json:"title"`

	// SourceURL is the parent item origin, may be empty.
	SourceURL string `json:"source_url,omitempty"`

	// SourceDisplay is a short name for the origin.
	SourceDisplay string `json:"source_display"`
}

// ReindexRequired signals that stored vectors cannot be compared with the
// live query vector. The caller must re-embed every chunk before searching.
type ReindexRequired struct {
	// QueryDimension is the live embedder's vector length.
	QueryDimension int `json:"query_dimension"`

	// StoredDimension is the dimension recorded on the first stored chunk.
	StoredDimension int `json:"stored_dimension"`

	// Mixed reports that stored chunks disagree among themselves.
	Mixed bool `json:"mixed"`
}

// Error implements error so the signal can travel through error-only
// interfaces (CLI, MCP) when a caller chooses to surface it that way.
func (r *ReindexRequired) Error() string {
	if r.Mixed {
		return "reindex required: stored chunks have mixed embedding dimensions"
	}
	return fmt.Sprintf("reindex required: stored dimension %d, query dimension %d",
		r.StoredDimension, r.QueryDimension)
}

// SearchOutcome is either a ranked result list or a reindex signal.
type SearchOutcome struct {
	// Results are ordered by descending Score. Empty when Reindex is set.
	Results []RetrievalResult `json:"results"`

	// Reindex is non-nil when no scoring was attempted because vector
	// dimensions are incompatible.
	Reindex *ReindexRequired `json:"reindex,omitempty"`
}

// NeedsReindex reports whether the outcome is the reindex signal.
func (o SearchOutcome) NeedsReindex() bool {
	return o.Reindex != nil
}

// IngestResult reports the outcome of a single ingestion.
type IngestResult struct {
	// Item is the stored item; for duplicates it is the pre-existing item.
	Item KnowledgeItem

	// Created is false when the content hash already existed.
	Created bool

	// ChunkCount is the number of chunks written (zero for duplicates).
	ChunkCount int
}

// ReindexReport summarises a reindex run.
type ReindexReport struct {
	// Chunks is the number of re-embedded chunks.
	Chunks int

	// ModelID is the model now recorded on every chunk.
	ModelID string

	// Dimension is the vector length now recorded on every chunk.
	Dimension int
}
