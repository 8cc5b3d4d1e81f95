// Package tui provides an interactive terminal search browser for kcache.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/kcache/internal/core/domain"
	"github.com/custodia-labs/kcache/internal/core/ports/driving"
)

// Ports aggregates the driving ports the TUI needs.
type Ports struct {
	// Search runs queries. Required.
	Search driving.SearchService

	// Knowledge loads the full item behind a result. Optional; without it
	// the reader shows only the matched chunk.
	Knowledge driving.KnowledgeService

	// Options are passed to every search.
	Options domain.SearchOptions
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrInvalidPorts
	}
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
