package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/kcache/internal/core/domain"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the question or keywords to look up in saved knowledge"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of chunks to return (default 10)"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`

	// ReindexRequired is set instead of results when stored vectors were
	// produced by a different embedding model.
	ReindexRequired string `json:"reindex_required,omitempty"`
}

// SearchResultOutput represents a single ranked chunk.
type SearchResultOutput struct {
	ItemID    string  `json:"item_id"`
	ChunkID   string  `json:"chunk_id"`
	Title     string  `json:"title"`
	Source    string  `json:"source"`
	SourceURL string  `json:"source_url,omitempty"`
	Score     float64 `json:"score"`
	Content   string  `json:"content"`
}

// IngestInput is the input schema for the ingest tool.
type IngestInput struct {
	Text      string `json:"text" jsonschema:"the text to save"`
	Title     string `json:"title,omitempty" jsonschema:"optional title, derived from the text when empty"`
	SourceURL string `json:"source_url,omitempty" jsonschema:"optional origin of the text"`
}

// IngestOutput is the output schema for the ingest tool.
type IngestOutput struct {
	ItemID    string `json:"item_id"`
	Title     string `json:"title"`
	Created   bool   `json:"created"`
	Chunks    int    `json:"chunks"`
	Truncated bool   `json:"truncated"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search saved knowledge and return the most relevant passages",
	}, s.handleSearch)
	s.tools = append(s.tools, "search")

	if s.Writable() {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest",
			Description: "Save a piece of text to the knowledge cache so it can be searched later",
		}, s.handleIngest)
		s.tools = append(s.tools, "ingest")
	}
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	opts := domain.SearchOptions{Limit: limit}
	outcome, err := s.ports.Search.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	if outcome.NeedsReindex() {
		return nil, SearchOutput{
			Results:         []SearchResultOutput{},
			ReindexRequired: outcome.Reindex.Error() + "; run `kcache reindex`",
		}, nil
	}

	results := outcome.Results
	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}

	for i := range results {
		output.Results[i] = SearchResultOutput{
			ItemID:    results[i].KnowledgeItemID,
			ChunkID:   results[i].ChunkID,
			Title:     results[i].Title,
			Source:    results[i].SourceDisplay,
			SourceURL: results[i].SourceURL,
			Score:     results[i].Score,
			Content:   results[i].ChunkText,
		}
	}

	return nil, output, nil
}

// handleIngest handles the ingest tool invocation.
func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	res, err := s.ports.Ingest.Ingest(ctx, domain.RawDocument{
		Title:        input.Title,
		Body:         input.Text,
		SourceOrigin: input.SourceURL,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNoContent) {
			return nil, IngestOutput{}, fmt.Errorf("nothing to save: %w", err)
		}
		return nil, IngestOutput{}, err
	}

	return nil, IngestOutput{
		ItemID:    res.Item.ID,
		Title:     res.Item.Title,
		Created:   res.Created,
		Chunks:    res.ChunkCount,
		Truncated: res.Item.WasTruncated,
	}, nil
}
