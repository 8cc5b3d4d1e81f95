package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/kcache/internal/core/domain"
	"github.com/custodia-labs/kcache/internal/core/ports/driven"
	"github.com/custodia-labs/kcache/internal/core/ports/driving"
	"github.com/custodia-labs/kcache/internal/logger"
	"github.com/custodia-labs/kcache/internal/vector"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// scoredChunk holds a candidate between scoring and hydration.
type scoredChunk struct {
	row   domain.ChunkRow
	score float64
}

// SearchService ranks stored chunks against a query by blending vector
// similarity with lexical signals, then diversifies by source item.
type SearchService struct {
	store    driven.KnowledgeStore
	embedder driven.Embedder
	lexical  driven.LexicalSearcher
	settings domain.SearchSettings
}

// NewSearchService creates a new search service.
func NewSearchService(
	store driven.KnowledgeStore,
	embedder driven.Embedder,
	settings domain.SearchSettings,
) *SearchService {
	return &SearchService{
		store:    store,
		embedder: embedder,
		settings: settings,
	}
}

// SetLexicalSearcher sets the optional full-text rank source.
func (s *SearchService) SetLexicalSearcher(lexical driven.LexicalSearcher) {
	s.lexical = lexical
}

// Search ranks stored chunks against query.
func (s *SearchService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) (domain.SearchOutcome, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q", query)

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return domain.SearchOutcome{}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = s.settings.TopK
	}
	perSource := opts.PerSourceCap
	if perSource <= 0 {
		perSource = s.settings.PerSourceCap
	}
	logger.Debug("Limit: %d, per-source cap: %d, mode: %s", limit, perSource, s.settings.Mode)

	if s.embedder == nil {
		logger.Warn("No embedder configured, returning no results")
		return domain.SearchOutcome{}, nil
	}
	queryVec, err := s.embedder.EmbedOne(ctx, query)
	if err != nil || len(queryVec) == 0 {
		logger.Warn("Query embedding failed, returning no results: %v", err)
		return domain.SearchOutcome{}, nil
	}

	rows, err := s.store.FetchAllChunks(ctx)
	if err != nil {
		return domain.SearchOutcome{}, fmt.Errorf("fetch chunks: %w", err)
	}
	logger.Debug("Stored chunks: %d", len(rows))
	if len(rows) == 0 {
		return domain.SearchOutcome{}, nil
	}

	vectors, reindex := decodeAll(rows, len(queryVec))
	if reindex != nil {
		logger.Warn("Reindex required: %v", reindex)
		return domain.SearchOutcome{Reindex: reindex}, nil
	}

	q := newQueryFeatures(query)
	if len(q.intents) > 0 {
		names := make([]string, len(q.intents))
		for i, in := range q.intents {
			names[i] = in.name
		}
		logger.Debug("Detected intents: %v", names)
	}

	scored := s.score(ctx, q, query, rows, vectors, queryVec)

	// Ties keep store order.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	selected := diversify(scored, limit, perSource)
	logger.Debug("Selected after diversification: %d", len(selected))

	results, err := s.hydrate(ctx, q, selected)
	if err != nil {
		return domain.SearchOutcome{}, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	logger.Info("Final results: %d", len(results))

	return domain.SearchOutcome{Results: results}, nil
}

// decodeAll checks every stored vector against the query dimension. Any
// disagreement yields a reindex signal instead of vectors.
func decodeAll(rows []domain.ChunkRow, queryDim int) ([][]float32, *domain.ReindexRequired) {
	stored := rows[0].EmbeddingDim
	if stored != queryDim {
		return nil, &domain.ReindexRequired{QueryDimension: queryDim, StoredDimension: stored}
	}

	vectors := make([][]float32, len(rows))
	for i, row := range rows {
		if row.EmbeddingDim != stored {
			return nil, &domain.ReindexRequired{QueryDimension: queryDim, StoredDimension: stored, Mixed: true}
		}
		v, err := vector.Decode(row.EmbeddingBlob, stored)
		if err != nil {
			logger.Debug("Chunk %s: %v", row.ID, err)
			return nil, &domain.ReindexRequired{QueryDimension: queryDim, StoredDimension: stored}
		}
		vectors[i] = v
	}
	return vectors, nil
}

// score computes the combined score of every chunk.
func (s *SearchService) score(
	ctx context.Context, q queryFeatures, query string,
	rows []domain.ChunkRow, vectors [][]float32, queryVec []float32,
) []scoredChunk {
	w := s.settings.Weights
	hybrid := s.settings.Mode != domain.RankingSimple

	var fts map[string]float64
	if hybrid && s.lexical != nil {
		hits, err := s.lexical.SearchLexical(ctx, query, s.settings.LexicalCandidates)
		if err != nil {
			logger.Warn("Full-text search failed, continuing without it: %v", err)
		} else {
			fts = ftsScores(hits)
			logger.Debug("Full-text hits: %d", len(hits))
		}
	}

	scored := make([]scoredChunk, len(rows))
	for i, row := range rows {
		// Lengths were validated by decodeAll.
		semantic, _ := vector.Dot(queryVec, vectors[i])

		combined := semantic
		if hybrid {
			lexical := lexicalScore(q, row.Text, w)
			if f, ok := fts[row.ID]; ok && f > lexical {
				lexical = f
			}
			combined = w.Semantic*semantic + w.Lexical*lexical + intentBoost(q.intents, row.Text, w.Intent)
		}

		scored[i] = scoredChunk{row: row, score: combined}
	}
	return scored
}

// diversify walks candidates in order and keeps at most perSource chunks
// per item until limit chunks are kept.
func diversify(candidates []scoredChunk, limit, perSource int) []scoredChunk {
	selected := make([]scoredChunk, 0, min(limit, len(candidates)))
	taken := make(map[string]int)
	for _, c := range candidates {
		if len(selected) >= limit {
			break
		}
		if taken[c.row.KnowledgeItemID] >= perSource {
			continue
		}
		taken[c.row.KnowledgeItemID]++
		selected = append(selected, c)
	}
	return selected
}

// hydrate attaches item metadata and applies the metadata boost.
// Chunks whose item has disappeared are dropped.
func (s *SearchService) hydrate(
	ctx context.Context, q queryFeatures, selected []scoredChunk,
) ([]domain.RetrievalResult, error) {
	w := s.settings.Weights
	hybrid := s.settings.Mode != domain.RankingSimple
	items := make(map[string]*domain.KnowledgeItem)

	results := make([]domain.RetrievalResult, 0, len(selected))
	for _, c := range selected {
		item, ok := items[c.row.KnowledgeItemID]
		if !ok {
			var err error
			item, err = s.store.FetchItem(ctx, c.row.KnowledgeItemID)
			if errors.Is(err, domain.ErrNotFound) {
				logger.Warn("Chunk %s references missing item %s", c.row.ID, c.row.KnowledgeItemID)
				item = nil
			} else if err != nil {
				return nil, fmt.Errorf("fetch item %s: %w", c.row.KnowledgeItemID, err)
			}
			items[c.row.KnowledgeItemID] = item
		}
		if item == nil {
			continue
		}

		display := item.SourceDisplay()
		score := c.score
		if hybrid {
			score += metadataBoost(q, item.Title, display, w)
		}

		results = append(results, domain.RetrievalResult{
			ChunkID:         c.row.ID,
			ChunkText:       c.row.Text,
			Score:           score,
			KnowledgeItemID: item.ID,
			Title:           item.Title,
			SourceURL:       item.SourceURL,
			SourceDisplay:   display,
		})
	}
	return results, nil
}

// metadataBoost scores the query against an item's title and source.
func metadataBoost(q queryFeatures, title, display string, w domain.ScoringWeights) float64 {
	meta := title + " " + display
	boost := w.Metadata * lexicalScore(q, meta, w)
	if q.contains(title) {
		boost += w.TitleContains
	}
	if q.contains(display) {
		boost += w.SourceContains
	}
	return boost + intentBoost(q.intents, meta, w.MetadataIntent)
}
