package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/54b3r/pmrag-go/internal/rag"
)

// articleScanDest returns scan destinations for articleColumns and a fill
// func that copies nullable columns into a once the row is scanned.
func articleScanDest(a *rag.Article) ([]any, func()) {
	var authors, pubDate, url, tTitle, tAbstract sql.NullString
	var isFree sql.NullBool
	dst := []any{&a.ID, &a.Title, &a.Abstract, &authors, &pubDate, &url, &isFree, &tTitle, &tAbstract}
	return dst, func() {
		a.Authors = authors.String
		a.PubDate = pubDate.String
		a.PubmedURL = url.String
		a.IsFree = isFree.Bool
		a.TranslatedTitle = tTitle.String
		a.TranslatedAbstract = tAbstract.String
	}
}

func queryArticles(ctx context.Context, db *sql.DB, query string, args []any) ([]rag.Article, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	out := []rag.Article{}
	for rows.Next() {
		var a rag.Article
		dst, fill := articleScanDest(&a)
		if err := rows.Scan(dst...); err != nil {
			return nil, fmt.Errorf("store: list scan: %w", err)
		}
		fill()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list rows: %w", err)
	}
	return out, nil
}

func queryIDs(ctx context.Context, db *sql.DB, query string, args []any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: ids scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ids rows: %w", err)
	}
	return ids, nil
}
