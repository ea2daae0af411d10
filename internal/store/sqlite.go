package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/54b3r/pmrag-go/internal/rag"
)

// SQLiteStore is a rag.ArticleStore backed by a local SQLite database.
// Similarity search is a brute-force cosine scan, which is adequate for a
// personal corpus of a few thousand abstracts.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
	// qb builds statements with ? placeholders.
	qb sq.StatementBuilderType
}

// OpenSQLite opens (or creates) a SQLiteStore at path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent
	// writes; it also keeps ":memory:" databases on one connection.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, qb: sq.StatementBuilder.PlaceholderFormat(sq.Question)}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS pubmed (
    id                  TEXT    PRIMARY KEY,
    title               TEXT    NOT NULL,
    abstract            TEXT    NOT NULL,
    authors             TEXT,
    pub_date            TEXT,
    pubmed_url          TEXT,
    is_free             INTEGER NOT NULL DEFAULT 0,
    translated_title    TEXT,
    translated_abstract TEXT,
    embedding           BLOB    NOT NULL,
    created_at          INTEGER NOT NULL  -- Unix timestamp (nanoseconds)
);
CREATE INDEX IF NOT EXISTS idx_pubmed_created ON pubmed (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Name implements rag.ArticleStore.
func (s *SQLiteStore) Name() string { return BackendSQLite }

// Ping implements rag.ArticleStore.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: sqlite ping: %w", err)
	}
	return nil
}

// Insert implements rag.ArticleWriter.
func (s *SQLiteStore) Insert(ctx context.Context, a rag.Article, embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("%w: embedding", rag.ErrMissingField)
	}
	query, args, err := s.qb.Insert("pubmed").
		Columns(append(articleColumns, "embedding", "created_at")...).
		Values(a.ID, a.Title, a.Abstract, nullable(a.Authors), nullable(a.PubDate), nullable(a.PubmedURL), a.IsFree,
			nullable(a.TranslatedTitle), nullable(a.TranslatedAbstract), encodeVector(embedding), time.Now().UnixNano()).
		ToSql()
	if err != nil {
		return fmt.Errorf("store: build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("store: sqlite insert %s: %w", a.ID, mapSQLiteError(err))
	}
	return nil
}

// Match implements rag.VectorStore.
func (s *SQLiteStore) Match(ctx context.Context, vector []float32, threshold float64, limit int) ([]rag.Candidate, error) {
	query, args, err := s.qb.Select(append(articleColumns, "embedding")...).From("pubmed").ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build match: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: sqlite match: %w", err)
	}
	defer rows.Close()

	var out []rag.Candidate
	for rows.Next() {
		var c rag.Candidate
		var blob []byte
		dst, fill := articleScanDest(&c.Article)
		if err := rows.Scan(append(dst, &blob)...); err != nil {
			return nil, fmt.Errorf("store: sqlite match scan: %w", err)
		}
		fill()
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, err
		}
		c.Similarity = cosineSimilarity(vector, vec)
		if c.Similarity > threshold {
			out = append(out, c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: sqlite match rows: %w", err)
	}

	slices.SortStableFunc(out, func(a, b rag.Candidate) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		}
		return 0
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// List implements rag.ArticleReader.
func (s *SQLiteStore) List(ctx context.Context) ([]rag.Article, error) {
	query, args, err := s.qb.Select(articleColumns...).From("pubmed").OrderBy("created_at DESC", "rowid DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build list: %w", err)
	}
	return queryArticles(ctx, s.db, query, args)
}

// IDs implements rag.ArticleReader.
func (s *SQLiteStore) IDs(ctx context.Context) ([]string, error) {
	query, args, err := s.qb.Select("id").From("pubmed").ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build ids: %w", err)
	}
	return queryIDs(ctx, s.db, query, args)
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

// mapSQLiteError translates constraint violations into rag sentinels.
func mapSQLiteError(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return fmt.Errorf("%w: %w", rag.ErrDuplicateArticle, err)
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return fmt.Errorf("%w: %w", rag.ErrMissingField, err)
	}
	if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		switch msg := err.Error(); {
		case strings.Contains(msg, "UNIQUE"):
			return fmt.Errorf("%w: %w", rag.ErrDuplicateArticle, err)
		case strings.Contains(msg, "NOT NULL"):
			return fmt.Errorf("%w: %w", rag.ErrMissingField, err)
		}
	}
	return err
}
