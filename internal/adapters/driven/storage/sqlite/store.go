package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/kcache/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/kcache/internal/core/domain"
	"github.com/custodia-labs/kcache/internal/core/ports/driven"
	"github.com/custodia-labs/kcache/internal/vector"
)

// Ensure Store implements the interfaces.
var (
	_ driven.KnowledgeStore  = (*Store)(nil)
	_ driven.LexicalSearcher = (*Store)(nil)
)

// File names inside the data directory.
const (
	DatabaseFile = "kcache.db"
	LockFile     = "kcache.lock"
)

// lockRetryDelay is how often a blocked writer retries the file lock.
const lockRetryDelay = 50 * time.Millisecond

// Store is a SQLite-backed knowledge store.
type Store struct {
	db   *sql.DB
	path string

	// mu and lock serialise writers within and across processes.
	mu   sync.Mutex
	lock *flock.Flock
}

// NewStore creates a new SQLite store in the specified data directory.
// If dataDir is empty, defaults to ~/.kcache/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".kcache", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)

	// Open database with WAL mode for concurrent readers
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
		lock: flock.New(filepath.Join(dataDir, LockFile)),
	}

	if err := s.withWriteLock(context.Background(), func() error {
		return s.migrate(migrations.FS)
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// withWriteLock runs fn while holding the process mutex and the file lock.
func (s *Store) withWriteLock(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("acquiring write lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("acquiring write lock: %s is held by another process", s.lock.Path())
	}
	defer func() { _ = s.lock.Unlock() }()

	return fn()
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys fs.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// ==================== Knowledge Store ====================

const itemColumns = `id, title, source_url, raw_content, content_hash, was_truncated, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.KnowledgeItem, error) {
	var item domain.KnowledgeItem
	var createdAt sql.NullTime
	if err := row.Scan(&item.ID, &item.Title, &item.SourceURL, &item.RawContent,
		&item.ContentHash, &item.WasTruncated, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning item: %w", err)
	}
	if createdAt.Valid {
		item.CreatedAt = createdAt.Time
	}
	return &item, nil
}

// FindByContentHash returns the item with the given hash.
func (s *Store) FindByContentHash(ctx context.Context, hash string) (*domain.KnowledgeItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM knowledge_items WHERE content_hash = ?`, hash)
	return scanItem(row)
}

// FetchItem retrieves an item by ID.
func (s *Store) FetchItem(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM knowledge_items WHERE id = ?`, id)
	return scanItem(row)
}

// ListItems returns all items, newest first.
func (s *Store) ListItems(ctx context.Context) ([]domain.KnowledgeItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM knowledge_items ORDER BY created_at DESC, rowid DESC`)
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

	return s.withWriteLock(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		_, err = tx.ExecContext(ctx, `
			INSERT INTO knowledge_items (`+itemColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, item.ID, item.Title, item.SourceURL, item.RawContent, item.ContentHash,
			item.WasTruncated, item.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
			}
			return fmt.Errorf("inserting item: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (id, knowledge_item_id, chunk_index, text, embedding, embedding_dim, embedding_model_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing chunk insert: %w", err)
		}
		defer stmt.Close()

		for i, c := range chunks {
			if _, err := stmt.ExecContext(ctx, uuid.New().String(), item.ID, i, c.Text,
				vector.Encode(c.Embedding), dim, modelID); err != nil {
				return fmt.Errorf("inserting chunk %d: %w", i, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing insert: %w", err)
		}
		return nil
	})
}

// FetchAllChunks returns every chunk in insertion order.
func (s *Store) FetchAllChunks(ctx context.Context) ([]domain.ChunkRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, knowledge_item_id, chunk_index, text, embedding, embedding_dim, embedding_model_id
		FROM chunks ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.ChunkRow
	for rows.Next() {
		var c domain.ChunkRow
		if err := rows.Scan(&c.ID, &c.KnowledgeItemID, &c.Index, &c.Text,
			&c.EmbeddingBlob, &c.EmbeddingDim, &c.EmbeddingModelID); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// DeleteItem removes an item. Its chunks and their full-text rows are
// removed by the schema's cascade and triggers.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	return s.withWriteLock(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM knowledge_items WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("deleting item: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("deleting item: %w", err)
		}
		if n == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
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

	return s.withWriteLock(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `
			UPDATE chunks SET embedding = ?, embedding_dim = ?, embedding_model_id = ? WHERE id = ?
		`)
		if err != nil {
			return fmt.Errorf("preparing update: %w", err)
		}
		defer stmt.Close()

		for _, u := range updates {
			res, err := stmt.ExecContext(ctx, vector.Encode(u.Embedding), dim, modelID, u.ChunkID)
			if err != nil {
				return fmt.Errorf("updating chunk %s: %w", u.ChunkID, err)
			}
			if n, err := res.RowsAffected(); err != nil || n == 0 {
				return fmt.Errorf("chunk %s: %w", u.ChunkID, domain.ErrNotFound)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing embeddings: %w", err)
		}
		return nil
	})
}

// ==================== Lexical Search ====================

// SearchLexical ranks chunks with FTS5 bm25. Ranks are negative, lower is
// better. Query terms are OR-ed so partial matches still rank.
func (s *Store) SearchLexical(ctx context.Context, query string, limit int) ([]driven.LexicalHit, error) {
	match := ftsQuery(query)
	if match == "" || limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, bm25(chunks_fts) AS rank
		FROM chunks_fts
		JOIN chunks c ON c.rowid = chunks_fts.rowid
		WHERE chunks_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("full-text query: %w", err)
	}
	defer rows.Close()

	var hits []driven.LexicalHit
	for rows.Next() {
		var h driven.LexicalHit
		if err := rows.Scan(&h.ChunkID, &h.Rank); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// ftsQuery quotes each alphanumeric term so user input never reaches the
// FTS5 query syntax.
func ftsQuery(query string) string {
	terms := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(terms))
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		if seen[t] {
			continue
		}
		seen[t] = true
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " OR ")
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
