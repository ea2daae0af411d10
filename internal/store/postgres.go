package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/54b3r/pmrag-go/internal/rag"
)

// SQLSTATE codes mapped to rag sentinels.
const (
	pgUniqueViolation   = "23505"
	pgNotNullViolation  = "23502"
	pgUndefinedFunction = "42883"
)

// PostgresConfig holds connection parameters for the Postgres backend.
type PostgresConfig struct {
	// DSN is the lib/pq connection string or URL.
	DSN string
	// Migrate creates the extension, table and match function on open.
	Migrate bool
	// Dimension is the vector column dimension used by Migrate (default 768).
	Dimension int
}

// PostgresStore implements rag.ArticleStore on Postgres with pgvector. Rows
// live in the `pubmed` table and similarity search is delegated to the
// `match_articles(query_embedding, match_threshold, match_count)` function.
type PostgresStore struct {
	// db is the underlying connection pool.
	db *sql.DB
	// qb builds statements with $n placeholders.
	qb sq.StatementBuilderType
}

// OpenPostgres connects to Postgres, verifies the connection and optionally
// runs the schema migration.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store: postgres DSN is required (set DATABASE_URL)")
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = 768
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}

	s := newPostgresStore(db)
	if cfg.Migrate {
		if err := s.migrate(ctx, cfg.Dimension); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

func newPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// migrate creates the schema if it does not already exist. The embedding
// column is named pgvector for compatibility with existing deployments.
func (s *PostgresStore) migrate(ctx context.Context, dim int) error {
	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS pubmed (
    id                  TEXT PRIMARY KEY,
    title               TEXT NOT NULL,
    abstract            TEXT NOT NULL,
    authors             TEXT,
    pub_date            TEXT,
    pubmed_url          TEXT,
    is_free             BOOLEAN NOT NULL DEFAULT FALSE,
    translated_title    TEXT,
    translated_abstract TEXT,
    pgvector            VECTOR(%[1]d) NOT NULL,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE OR REPLACE FUNCTION match_articles(
    query_embedding VECTOR(%[1]d),
    match_threshold FLOAT,
    match_count     INT
)
RETURNS TABLE (
    id                  TEXT,
    title               TEXT,
    abstract            TEXT,
    authors             TEXT,
    pub_date            TEXT,
    pubmed_url          TEXT,
    is_free             BOOLEAN,
    translated_title    TEXT,
    translated_abstract TEXT,
    similarity          FLOAT
)
LANGUAGE sql STABLE AS $$
    SELECT p.id, p.title, p.abstract, p.authors, p.pub_date, p.pubmed_url, p.is_free,
           p.translated_title, p.translated_abstract,
           1 - (p.pgvector <=> query_embedding) AS similarity
    FROM   pubmed p
    WHERE  1 - (p.pgvector <=> query_embedding) > match_threshold
    ORDER  BY p.pgvector <=> query_embedding
    LIMIT  match_count;
$$;
`, dim)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("store: postgres migrate: %w", err)
	}
	return nil
}

// Name implements rag.ArticleStore.
func (s *PostgresStore) Name() string { return BackendPostgres }

// Ping implements rag.ArticleStore.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: postgres ping: %w", err)
	}
	return nil
}

// Insert implements rag.ArticleWriter.
func (s *PostgresStore) Insert(ctx context.Context, a rag.Article, embedding []float32) error {
	query, args, err := s.qb.Insert("pubmed").
		Columns(append(articleColumns, "pgvector")...).
		Values(a.ID, a.Title, a.Abstract, nullable(a.Authors), nullable(a.PubDate), nullable(a.PubmedURL), a.IsFree,
			nullable(a.TranslatedTitle), nullable(a.TranslatedAbstract), pgvector.NewVector(embedding)).
		ToSql()
	if err != nil {
		return fmt.Errorf("store: build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("store: postgres insert %s: %w", a.ID, mapPQError(err))
	}
	return nil
}

// matchQuery calls the similarity function. squirrel's From does not take
// arguments, so this one stays literal.
const matchQuery = `SELECT id, title, abstract, authors, pub_date, pubmed_url, is_free,
       translated_title, translated_abstract, similarity
FROM   match_articles($1, $2, $3)`

// Match implements rag.VectorStore.
func (s *PostgresStore) Match(ctx context.Context, vector []float32, threshold float64, limit int) ([]rag.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, matchQuery, pgvector.NewVector(vector), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("store: postgres match: %w", mapPQError(err))
	}
	defer rows.Close()

	var out []rag.Candidate
	for rows.Next() {
		var c rag.Candidate
		dst, fill := articleScanDest(&c.Article)
		if err := rows.Scan(append(dst, &c.Similarity)...); err != nil {
			return nil, fmt.Errorf("store: postgres match scan: %w", err)
		}
		fill()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: postgres match rows: %w", mapPQError(err))
	}
	return out, nil
}

// List implements rag.ArticleReader.
func (s *PostgresStore) List(ctx context.Context) ([]rag.Article, error) {
	query, args, err := s.qb.Select(articleColumns...).From("pubmed").OrderBy("created_at DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build list: %w", err)
	}
	return queryArticles(ctx, s.db, query, args)
}

// IDs implements rag.ArticleReader.
func (s *PostgresStore) IDs(ctx context.Context) ([]string, error) {
	query, args, err := s.qb.Select("id").From("pubmed").ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build ids: %w", err)
	}
	return queryIDs(ctx, s.db, query, args)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

// mapPQError translates Postgres SQLSTATE codes into rag sentinels while
// keeping the driver error in the chain.
func mapPQError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case pgUniqueViolation:
		return fmt.Errorf("%w: %w", rag.ErrDuplicateArticle, err)
	case pgNotNullViolation:
		return fmt.Errorf("%w: %s: %w", rag.ErrMissingField, pqErr.Column, err)
	case pgUndefinedFunction:
		return fmt.Errorf("%w: %w", rag.ErrMatchFunctionMissing, err)
	}
	return err
}
