package driving

import (
	"context"

	"github.com/custodia-labs/kcache/internal/core/domain"
)

// IngestService turns raw text into a stored, embedded knowledge item.
type IngestService interface {
	// Ingest stores raw as a knowledge item. Content already stored (by
	// hash) is returned with Created=false and nothing is written.
	Ingest(ctx context.Context, raw domain.RawDocument) (domain.IngestResult, error)

	// IngestFile extracts text from a local file and ingests it.
	IngestFile(ctx context.Context, path string) (domain.IngestResult, error)
}
