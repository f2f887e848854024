package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/devrag-cli/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/devrag-cli/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
)

// Ensure Store implements the interfaces.
var (
	_ driven.VectorIndex      = (*Store)(nil)
	_ driven.DocumentReplacer = (*Store)(nil)
)

// DefaultFileName is the index file created under ~/.devrag.
const DefaultFileName = "index.db"

const metaDimensions = "dimensions"

// recordColumns lists the columns read back for query results.
const recordColumns = `id, repository, path, ordinal, span_start, span_end, overlap, oversize,
	text, language, content_type, file_type, source_url, symbols, vector`

const upsertSQL = `
	INSERT INTO records (id, repository, path, ordinal, span_start, span_end, overlap, oversize,
		text, language, content_type, file_type, source_url, symbols, vector)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		repository = excluded.repository,
		path = excluded.path,
		ordinal = excluded.ordinal,
		span_start = excluded.span_start,
		span_end = excluded.span_end,
		overlap = excluded.overlap,
		oversize = excluded.oversize,
		text = excluded.text,
		language = excluded.language,
		content_type = excluded.content_type,
		file_type = excluded.file_type,
		source_url = excluded.source_url,
		symbols = excluded.symbols,
		vector = excluded.vector,
		indexed_at = CURRENT_TIMESTAMP
`

// Store is a SQLite-backed vector index.
type Store struct {
	db         *sql.DB
	path       string
	dimensions int
}

// symbols is the JSON shape of the symbols column.
type symbols struct {
	Functions []string `json:"functions,omitempty"`
	Classes   []string `json:"classes,omitempty"`
	Imports   []string `json:"imports,omitempty"`
}

// DefaultPath returns ~/.devrag/index.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".devrag", DefaultFileName), nil
}

// NewStore opens or creates the index at dbPath for vectors of the given
// size. If dbPath is empty, DefaultPath is used. Opening an index built
// with a different vector size fails with domain.ErrDimensionMismatch.
func NewStore(dbPath string, dimensions int) (*Store, error) {
	if dimensions <= 0 {
		return nil, &domain.ConfigurationError{
			Op:  "sqlite index",
			Err: fmt.Errorf("%w: dimensions must be positive (got %d)", domain.ErrInvalidInput, dimensions),
		}
	}
	if dbPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		dbPath = p
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %w", domain.ErrVectorIndexUnavailable, err)
	}

	s := &Store{
		db:         db,
		path:       dbPath,
		dimensions: dimensions,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: running migrations: %w", domain.ErrVectorIndexUnavailable, err)
	}

	if err := s.checkDimensions(); err != nil {
		db.Close()
		return nil, err
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

// Dimensions returns the configured vector size.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
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
		// Extract version number (e.g., "001_vector_index.up.sql" -> 1)
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

		if err := s.applyMigration(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

func (s *Store) applyMigration(version int, content string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(content); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// checkDimensions records the vector size on first open and rejects a
// mismatch on later opens.
func (s *Store) checkDimensions() error {
	var stored string
	err := s.db.QueryRow("SELECT value FROM index_meta WHERE key = ?", metaDimensions).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = s.db.Exec("INSERT INTO index_meta (key, value) VALUES (?, ?)", metaDimensions, strconv.Itoa(s.dimensions))
		if err != nil {
			return fmt.Errorf("recording dimensions: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading dimensions: %w", err)
	}

	got, err := strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("%w: stored dimensions %q", domain.ErrMalformed, stored)
	}
	if got != s.dimensions {
		return &domain.ConfigurationError{
			Op: "sqlite index",
			Err: fmt.Errorf("%w: %s holds %d-dimensional vectors, embedding model produces %d (re-ingest into a new index)",
				domain.ErrDimensionMismatch, s.path, got, s.dimensions),
		}
	}
	return nil
}

// Upsert inserts or replaces records by ID in one transaction.
func (s *Store) Upsert(ctx context.Context, records []domain.IndexRecord) error {
	if err := vecmath.CheckRecords("sqlite index upsert", records, s.dimensions); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertRecords(ctx, tx, records)
	})
}

// DeleteDocument removes every record of a document.
func (s *Store) DeleteDocument(ctx context.Context, key domain.DocumentKey) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE repository = ? AND path = ?", key.Repository, key.Path)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", key, err)
	}
	return nil
}

// ReplaceDocument deletes a document's records and inserts the new set in
// one transaction.
func (s *Store) ReplaceDocument(ctx context.Context, key domain.DocumentKey, records []domain.IndexRecord) error {
	if err := vecmath.CheckRecords("sqlite index replace", records, s.dimensions); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE repository = ? AND path = ?",
			key.Repository, key.Path); err != nil {
			return fmt.Errorf("deleting document %s: %w", key, err)
		}
		return insertRecords(ctx, tx, records)
	})
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func insertRecords(ctx context.Context, tx *sql.Tx, records []domain.IndexRecord) error {
	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		c := r.Chunk
		symJSON, err := json.Marshal(symbols{
			Functions: c.Metadata.Functions,
			Classes:   c.Metadata.Classes,
			Imports:   c.Metadata.Imports,
		})
		if err != nil {
			return fmt.Errorf("marshalling symbols: %w", err)
		}

		_, err = stmt.ExecContext(ctx,
			r.ID, c.Document.Repository, c.Document.Path, c.Ordinal, c.Span.Start, c.Span.End,
			c.Overlap, boolToInt(c.Oversize), c.Text, c.Metadata.Language, string(c.Metadata.ContentType),
			c.Metadata.FileType, c.Metadata.SourceURL, string(symJSON), vecmath.Encode(r.Vector))
		if err != nil {
			return fmt.Errorf("upserting record %s: %w", r.ID, err)
		}
	}
	return nil
}

// Query scans the rows matching filter and keeps the topK most similar.
func (s *Store) Query(
	ctx context.Context,
	vector []float32,
	topK int,
	filter domain.MetadataFilter,
) ([]domain.SearchResult, error) {
	if err := vecmath.CheckDimensions("sqlite index query", vector, s.dimensions); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	where, args := filterClause(filter)
	rows, err := s.db.QueryContext(ctx, "SELECT "+recordColumns+" FROM records"+where, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying records: %w", domain.ErrVectorIndexUnavailable, err)
	}
	defer rows.Close()

	// Ranking every few topK rows bounds memory on large indexes.
	results := make([]domain.SearchResult, 0, 2*topK)
	for rows.Next() {
		chunk, vec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		if len(vec) != s.dimensions {
			return nil, fmt.Errorf("%w: record %s has %d dimensions", domain.ErrMalformed, chunk.ID, len(vec))
		}
		results = append(results, domain.SearchResult{
			ChunkID: chunk.ID,
			Score:   vecmath.Cosine(vector, vec),
			Chunk:   chunk,
		})
		if len(results) >= 4*topK {
			results = vecmath.Rank(results, topK)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}

	return vecmath.Rank(results, topK), nil
}

// filterClause turns the set filter fields into a WHERE clause.
func filterClause(f domain.MetadataFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(col, val string) {
		if val != "" {
			conds = append(conds, col+" = ?")
			args = append(args, val)
		}
	}
	add("repository", f.Repository)
	add("language", f.Language)
	add("file_type", f.FileType)
	add("content_type", string(f.ContentType))

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanRecord(rows *sql.Rows) (domain.Chunk, []float32, error) {
	var (
		c           domain.Chunk
		oversize    int
		contentType string
		symJSON     string
		blob        []byte
	)
	err := rows.Scan(&c.ID, &c.Document.Repository, &c.Document.Path, &c.Ordinal, &c.Span.Start, &c.Span.End,
		&c.Overlap, &oversize, &c.Text, &c.Metadata.Language, &contentType, &c.Metadata.FileType,
		&c.Metadata.SourceURL, &symJSON, &blob)
	if err != nil {
		return c, nil, fmt.Errorf("scanning record: %w", err)
	}

	c.Oversize = oversize != 0
	c.Metadata.Repository = c.Document.Repository
	c.Metadata.Path = c.Document.Path
	c.Metadata.ContentType = domain.ContentType(contentType)

	var sym symbols
	if symJSON != "" {
		if err := json.Unmarshal([]byte(symJSON), &sym); err != nil {
			return c, nil, fmt.Errorf("%w: symbols of %s: %w", domain.ErrMalformed, c.ID, err)
		}
	}
	c.Metadata.Functions = sym.Functions
	c.Metadata.Classes = sym.Classes
	c.Metadata.Imports = sym.Imports

	vec, err := vecmath.Decode(blob)
	if err != nil {
		return c, nil, err
	}
	return c, vec, nil
}

// Stats summarises the index contents.
func (s *Store) Stats(ctx context.Context) (domain.IndexStats, error) {
	stats := domain.IndexStats{
		Dimensions:   s.dimensions,
		Repositories: make(map[string]int),
		Languages:    make(map[string]int),
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&stats.Records); err != nil {
		return stats, fmt.Errorf("counting records: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM (SELECT DISTINCT repository, path FROM records)").Scan(&stats.Documents); err != nil {
		return stats, fmt.Errorf("counting documents: %w", err)
	}
	if err := s.countBy(ctx, "repository", stats.Repositories); err != nil {
		return stats, err
	}
	if err := s.countBy(ctx, "language", stats.Languages); err != nil {
		return stats, err
	}
	return stats, nil
}

func (s *Store) countBy(ctx context.Context, column string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+column+", COUNT(*) FROM records WHERE "+column+" != '' GROUP BY "+column)
	if err != nil {
		return fmt.Errorf("counting by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scanning %s count: %w", column, err)
		}
		into[key] = n
	}
	return rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
