// Package postgres provides a KnowledgeStore backed by PostgreSQL with the
// pgvector extension. Chunk text is indexed as a tsvector so the store also
// serves as the retriever's LexicalSearcher.
//
// Vector columns carry no fixed dimension, so chunks embedded by different
// models can coexist until a reindex; the retriever detects the mismatch.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/custodia-labs/kcache/internal/core/domain"
	"github.com/custodia-labs/kcache/internal/core/ports/driven"
	"github.com/custodia-labs/kcache/internal/vector"
)

// Ensure Store implements the interfaces.
var (
	_ driven.KnowledgeStore  = (*Store)(nil)
	_ driven.LexicalSearcher = (*Store)(nil)
)

//go:embed schema.sql
var schema string

// uniqueViolation is the SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

// Store is a PostgreSQL-backed knowledge store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore ensures the schema exists, then opens a connection pool whose
// connections know the vector type.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	// The vector type must exist before pool connections can register it.
	if err := applySchema(ctx, dsn); err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

func applySchema(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const itemColumns = `id, title, source_url, raw_content, content_hash, was_truncated, created_at`

func scanItem(row pgx.Row) (*domain.KnowledgeItem, error) {
	var item domain.KnowledgeItem
	if err := row.Scan(&item.ID, &item.Title, &item.SourceURL, &item.RawContent,
		&item.ContentHash, &item.WasTruncated, &item.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning item: %w", err)
	}
	item.CreatedAt = item.CreatedAt.UTC()
	return &item, nil
}

// FindByContentHash returns the item with the given hash.
func (s *Store) FindByContentHash(ctx context.Context, hash string) (*domain.KnowledgeItem, error) {
	return scanItem(s.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM knowledge_items WHERE content_hash = $1`, hash))
}

// FetchItem retrieves an item by ID.
func (s *Store) FetchItem(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	return scanItem(s.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM knowledge_items WHERE id = $1`, id))
}

// ListItems returns all items, newest first.
func (s *Store) ListItems(ctx context.Context) ([]domain.KnowledgeItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+itemColumns+` FROM knowledge_items ORDER BY created_at DESC, seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	var items []domain.KnowledgeItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// Insert stores an item and its chunks in one transaction.
func (s *Store) Insert(
	ctx context.Context, item *domain.KnowledgeItem, chunks []domain.ChunkVector, modelID string, dim int,
) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("%w: item id required", domain.ErrInvalidInput)
	}
	for i, c := range chunks {
		if len(c.Embedding) != dim {
			return fmt.Errorf("chunk %d: %w", i, domain.ErrDimensionMismatch)
		}
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	return s.transact(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO knowledge_items (`+itemColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, item.ID, item.Title, item.SourceURL, item.RawContent, item.ContentHash,
			item.WasTruncated, item.CreatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
			}
			return fmt.Errorf("inserting item: %w", err)
		}

		batch := &pgx.Batch{}
		for i, c := range chunks {
			batch.Queue(`
				INSERT INTO chunks (id, knowledge_item_id, chunk_index, text, embedding, embedding_dim, embedding_model_id)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, uuid.New().String(), item.ID, i, c.Text, pgvector.NewVector(c.Embedding), dim, modelID)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting chunks: %w", err)
		}
		return nil
	})
}

// FetchAllChunks returns every chunk in insertion order, with embeddings
// in the shared wire format.
func (s *Store) FetchAllChunks(ctx context.Context) ([]domain.ChunkRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, knowledge_item_id, chunk_index, text, embedding, embedding_dim, embedding_model_id
		FROM chunks ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.ChunkRow
	for rows.Next() {
		var c domain.ChunkRow
		var vec pgvector.Vector
		if err := rows.Scan(&c.ID, &c.KnowledgeItemID, &c.Index, &c.Text,
			&vec, &c.EmbeddingDim, &c.EmbeddingModelID); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.EmbeddingBlob = vector.Encode(vec.Slice())
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// DeleteItem removes an item and, by cascade, its chunks.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM knowledge_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ReplaceEmbeddings swaps chunk embeddings in one transaction. An unknown
// chunk ID rolls back every update.
func (s *Store) ReplaceEmbeddings(
	ctx context.Context, updates []domain.ChunkEmbedding, modelID string, dim int,
) error {
	for _, u := range updates {
		if len(u.Embedding) != dim {
			return fmt.Errorf("chunk %s: %w", u.ChunkID, domain.ErrDimensionMismatch)
		}
	}

	return s.transact(ctx, func(tx pgx.Tx) error {
		for _, u := range updates {
			tag, err := tx.Exec(ctx, `
				UPDATE chunks SET embedding = $1, embedding_dim = $2, embedding_model_id = $3 WHERE id = $4
			`, pgvector.NewVector(u.Embedding), dim, modelID, u.ChunkID)
			if err != nil {
				return fmt.Errorf("updating chunk %s: %w", u.ChunkID, err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("chunk %s: %w", u.ChunkID, domain.ErrNotFound)
			}
		}
		return nil
	})
}

// SearchLexical ranks chunks with ts_rank. Ranks are negated so that, as
// with SQLite bm25, lower is better.
func (s *Store) SearchLexical(ctx context.Context, query string, limit int) ([]driven.LexicalHit, error) {
	tsquery := tsQuery(query)
	if tsquery == "" || limit <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, -ts_rank(tsv, q) AS rank
		FROM chunks, to_tsquery('simple', $1) AS q
		WHERE tsv @@ q
		ORDER BY rank, seq
		LIMIT $2
	`, tsquery, limit)
	if err != nil {
		return nil, fmt.Errorf("full-text query: %w", err)
	}
	defer rows.Close()

	var hits []driven.LexicalHit
	for rows.Next() {
		var h driven.LexicalHit
		var rank float32
		if err := rows.Scan(&h.ChunkID, &rank); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		h.Rank = float64(rank)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// tsQuery OR-joins the alphanumeric terms of query, keeping user input out
// of the tsquery syntax.
func tsQuery(query string) string {
	terms := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return strings.Join(out, " | ")
}

// transact runs fn in a transaction, committing on success.
func (s *Store) transact(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx rollback failed: %v (original err: %w)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
