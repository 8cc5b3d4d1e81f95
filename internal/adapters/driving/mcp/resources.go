package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/kcache/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for kcache resources.
	uriScheme = "kcache://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for listing items.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "items",
		Name:        "items",
		Description: "List of saved knowledge items, newest first",
		MIMEType:    "application/json",
	}, s.handleItemsResource)

	// Template for item content.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "items/{itemId}",
		Name:        "item-content",
		Description: "Indexed text of a knowledge item",
		MIMEType:    "text/plain",
	}, s.handleItemContentResource)

	// Template for item chunks.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "items/{itemId}/chunks",
		Name:        "item-chunks",
		Description: "Chunks of a knowledge item in index order",
		MIMEType:    "application/json",
	}, s.handleItemChunksResource)
}

// itemInfo is the JSON shape of a listed item.
type itemInfo struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Source    string `json:"source"`
	SourceURL string `json:"source_url,omitempty"`
	Truncated bool   `json:"truncated"`
	CreatedAt string `json:"created_at"`
}

// handleItemsResource returns all stored items.
func (s *Server) handleItemsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Knowledge == nil {
		return jsonResult(req.Params.URI, "[]"), nil
	}

	items, err := s.ports.Knowledge.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}

	infos := make([]itemInfo, len(items))
	for i := range items {
		infos[i] = itemInfo{
			ID:        items[i].ID,
			Title:     items[i].Title,
			Source:    items[i].SourceDisplay(),
			SourceURL: items[i].SourceURL,
			Truncated: items[i].WasTruncated,
			CreatedAt: items[i].CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling items: %w", err)
	}

	return jsonResult(req.Params.URI, string(data)), nil
}

// handleItemContentResource returns the indexed text of an item.
func (s *Server) handleItemContentResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Knowledge == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	itemID := extractItemID(req.Params.URI)
	if itemID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	item, err := s.ports.Knowledge.Get(ctx, itemID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     item.RawContent,
		}},
	}, nil
}

// handleItemChunksResource returns the chunks of an item.
func (s *Server) handleItemChunksResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Knowledge == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	itemID := extractChunksItemID(req.Params.URI)
	if itemID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	rows, err := s.ports.Knowledge.Chunks(ctx, itemID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}

	type chunkInfo struct {
		ID    string `json:"id"`
		Index int    `json:"index"`
		Text  string `json:"text"`
		Model string `json:"model"`
	}

	infos := make([]chunkInfo, len(rows))
	for i := range rows {
		infos[i] = chunkInfo{
			ID:    rows[i].ID,
			Index: rows[i].Index,
			Text:  rows[i].Text,
			Model: rows[i].EmbeddingModelID,
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling chunks: %w", err)
	}

	return jsonResult(req.Params.URI, string(data)), nil
}

func jsonResult(uri, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		}},
	}
}

// extractItemID extracts the item ID from a URI like kcache://items/{itemId}.
func extractItemID(uri string) string {
	const prefix = uriScheme + "items/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}

// extractChunksItemID extracts the item ID from a URI like
// kcache://items/{itemId}/chunks.
func extractChunksItemID(uri string) string {
	const prefix = uriScheme + "items/"
	const suffix = "/chunks"

	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return ""
	}

	id := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	if id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}
