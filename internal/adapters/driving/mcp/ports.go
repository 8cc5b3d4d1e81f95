package mcp

import (
	"github.com/custodia-labs/kcache/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search ranks stored chunks.
	Search driving.SearchService

	// Ingest stores new knowledge. Optional: without it, or on a read-only
	// server, the ingest tool is not registered.
	Ingest driving.IngestService

	// Knowledge lists and reads stored items. Optional.
	Knowledge driving.KnowledgeService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
