package driving

import (
	"context"

	"github.com/custodia-labs/kcache/internal/core/domain"
)

// SearchService provides retrieval to external actors.
type SearchService interface {
	// Search ranks stored chunks against query. An incompatible store is
	// reported through SearchOutcome.Reindex, never as an error.
	Search(ctx context.Context, query string, opts domain.SearchOptions) (domain.SearchOutcome, error)
}
