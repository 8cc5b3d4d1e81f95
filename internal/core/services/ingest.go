package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/kcache/internal/core/domain"
	"github.com/custodia-labs/kcache/internal/core/ports/driven"
	"github.com/custodia-labs/kcache/internal/core/ports/driving"
	"github.com/custodia-labs/kcache/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// maxDerivedTitle bounds titles taken from the first line of content.
const maxDerivedTitle = 80

// IngestService turns raw text into a stored knowledge item: process,
// hash, deduplicate, chunk, embed, insert.
type IngestService struct {
	store     driven.KnowledgeStore
	embedder  driven.Embedder
	chunker   driven.Chunker
	pipeline  driven.TextPipeline
	extractor driven.Extractor
	settings  domain.IngestSettings
	now       func() time.Time
}

// NewIngestService creates a new ingest service.
// The pipeline parameter is optional (can be nil).
func NewIngestService(
	store driven.KnowledgeStore,
	embedder driven.Embedder,
	chunker driven.Chunker,
	pipeline driven.TextPipeline,
	settings domain.IngestSettings,
) *IngestService {
	return &IngestService{
		store:    store,
		embedder: embedder,
		chunker:  chunker,
		pipeline: pipeline,
		settings: settings,
		now:      time.Now,
	}
}

// SetExtractor sets the file extractor used by IngestFile.
func (s *IngestService) SetExtractor(extractor driven.Extractor) {
	s.extractor = extractor
}

// IngestFile extracts text from a local file and ingests it.
func (s *IngestService) IngestFile(ctx context.Context, path string) (domain.IngestResult, error) {
	if s.extractor == nil {
		return domain.IngestResult{}, fmt.Errorf("%w: no file extractor configured", domain.ErrUnsupportedType)
	}
	raw, err := s.extractor.Extract(ctx, path)
	if err != nil {
		return domain.IngestResult{}, fmt.Errorf("extract %s: %w", path, err)
	}
	return s.Ingest(ctx, *raw)
}

// Ingest stores raw as a knowledge item. Content whose hash is already
// stored returns the existing item without writing anything.
func (s *IngestService) Ingest(ctx context.Context, raw domain.RawDocument) (domain.IngestResult, error) {
	logger.Section("Ingest")
	logger.Debug("Title: %q, origin: %q, %d chars", raw.Title, raw.SourceOrigin, len(raw.Body))

	text := raw.Body
	if s.pipeline != nil {
		var err error
		text, err = s.pipeline.Process(ctx, text)
		if err != nil {
			return domain.IngestResult{}, fmt.Errorf("process text: %w", err)
		}
	}

	hash := ContentHash(text)
	existing, err := s.store.FindByContentHash(ctx, hash)
	switch {
	case err == nil:
		logger.Debug("Duplicate content, returning item %s", existing.ID)
		return domain.IngestResult{Item: *existing}, nil
	case !errors.Is(err, domain.ErrNotFound):
		return domain.IngestResult{}, fmt.Errorf("find by hash: %w", err)
	}

	truncated := false
	if runes := []rune(text); s.settings.MaxExtractedChars > 0 && len(runes) > s.settings.MaxExtractedChars {
		text = string(runes[:s.settings.MaxExtractedChars])
		truncated = true
		logger.Debug("Truncated to %d chars", s.settings.MaxExtractedChars)
	}

	segments, capped := s.chunker.Chunk(text, s.settings.MaxChunks)
	if capped {
		truncated = true
		logger.Debug("Chunk count capped at %d", s.settings.MaxChunks)
	}
	if len(segments) == 0 {
		return domain.IngestResult{}, domain.ErrNoContent
	}

	if s.embedder == nil || !s.embedder.Available(ctx) {
		return domain.IngestResult{}, domain.ErrEmbeddingUnavailable
	}

	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return domain.IngestResult{}, fmt.Errorf("%w: %v", domain.ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(segments) {
		return domain.IngestResult{}, fmt.Errorf("%w: got %d vectors for %d chunks",
			domain.ErrEmbeddingFailed, len(vectors), len(segments))
	}
	dim := s.embedder.Dimension()
	pairs := make([]domain.ChunkVector, len(segments))
	for i, v := range vectors {
		if len(v) != dim {
			return domain.IngestResult{}, fmt.Errorf("%w: vector %d has %d values, want %d",
				domain.ErrEmbeddingFailed, i, len(v), dim)
		}
		pairs[i] = domain.ChunkVector{Text: segments[i].Text, Embedding: v}
	}

	item := domain.KnowledgeItem{
		ID:           uuid.New().String(),
		Title:        deriveTitle(raw.Title, text),
		SourceURL:    strings.TrimSpace(raw.SourceOrigin),
		RawContent:   text,
		ContentHash:  hash,
		WasTruncated: truncated,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.store.Insert(ctx, &item, pairs, s.embedder.ModelID(), dim); err != nil {
		// A concurrent ingestion of the same content may have won.
		if existing, findErr := s.store.FindByContentHash(ctx, hash); findErr == nil {
			return domain.IngestResult{Item: *existing}, nil
		}
		return domain.IngestResult{}, fmt.Errorf("insert item: %w", err)
	}

	logger.Event("stored item", "id", item.ID, "chunks", len(pairs), "truncated", truncated)
	return domain.IngestResult{Item: item, Created: true, ChunkCount: len(pairs)}, nil
}

// deriveTitle returns title, or the first line of text when title is blank.
func deriveTitle(title, text string) string {
	if title = strings.TrimSpace(title); title != "" {
		return title
	}
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	line = strings.TrimSpace(line)
	if runes := []rune(line); len(runes) > maxDerivedTitle {
		line = strings.TrimSpace(string(runes[:maxDerivedTitle])) + "…"
	}
	if line == "" {
		return "Untitled"
	}
	return line
}
