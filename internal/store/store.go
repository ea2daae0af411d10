// Package store implements rag.ArticleStore over three backends: Postgres
// with pgvector (the reference schema, compatible with an existing `pubmed`
// table and `match_articles` function), Qdrant, and a local SQLite file for
// zero-infrastructure use.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/54b3r/pmrag-go/internal/rag"
)

// Backend names accepted by Open.
const (
	BackendPostgres = "postgres"
	BackendQdrant   = "qdrant"
	BackendSQLite   = "sqlite"
)

// Config selects and configures a backend.
type Config struct {
	// Backend is one of BackendPostgres, BackendQdrant or BackendSQLite.
	Backend string
	// Dimension is the embedding dimension used when creating schemas.
	Dimension int
	// Postgres configures the postgres backend.
	Postgres PostgresConfig
	// Qdrant configures the qdrant backend.
	Qdrant QdrantConfig
	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string
}

// Open returns the configured store.
func Open(ctx context.Context, cfg Config) (rag.ArticleStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendPostgres, "":
		pc := cfg.Postgres
		if pc.Dimension == 0 {
			pc.Dimension = cfg.Dimension
		}
		return OpenPostgres(ctx, pc)
	case BackendQdrant:
		qc := cfg.Qdrant
		if qc.VectorSize == 0 && cfg.Dimension > 0 {
			qc.VectorSize = uint64(cfg.Dimension)
		}
		return NewQdrantStore(ctx, &qc)
	case BackendSQLite:
		path := cfg.SQLitePath
		if path == "" {
			p, err := DefaultSQLitePath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("store: unsupported backend %q (want postgres, qdrant or sqlite)", cfg.Backend)
	}
}

// DefaultSQLitePath returns ~/.pmrag/articles.db, creating the directory if
// needed.
func DefaultSQLitePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".pmrag")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "articles.db"), nil
}

// articleColumns is the column order shared by the SQL backends.
var articleColumns = []string{
	"id", "title", "abstract", "authors", "pub_date", "pubmed_url", "is_free",
	"translated_title", "translated_abstract",
}

// nullable maps "" to NULL for optional text columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
