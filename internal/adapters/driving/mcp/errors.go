// Package mcp provides an MCP (Model Context Protocol) server adapter for kcache.
// It lets AI assistants search and extend the local knowledge cache.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")
