// Package ingestion saves PubMed articles into the article store. Each
// article is embedded as "Title: <title>\n\nAbstract: <abstract>" and
// stored together with its vector. This pipeline is invoked by
// `POST /api/articles` and the `pmrag save` CLI command.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/54b3r/pmrag-go/internal/logging"
	"github.com/54b3r/pmrag-go/internal/rag"
)

// MaxEmbeddingText is the longest embedding input accepted, in characters.
const MaxEmbeddingText = 20000

var (
	// ErrInvalidArticle is returned when id, title or abstract is empty.
	ErrInvalidArticle = errors.New("ingestion: article ID, title, and abstract are required")
	// ErrTextTooLong is returned when the embedding text exceeds
	// MaxEmbeddingText characters.
	ErrTextTooLong = errors.New("ingestion: text content too long for embedding (max 20,000 characters)")
)

// Receipt describes a saved article.
type Receipt struct {
	// ArticleID is the saved PubMed id.
	ArticleID string `json:"articleId"`
	// EmbeddingDimension is the length of the stored vector.
	EmbeddingDimension int `json:"embeddingDimension"`
}

// Outcome is the per-article result of SaveAll.
type Outcome struct {
	// ArticleID is the id of the article attempted.
	ArticleID string
	// Receipt is set when the save succeeded.
	Receipt *Receipt
	// Err is set when the save failed.
	Err error
}

// Pipeline orchestrates the validate → embed → insert flow.
type Pipeline struct {
	// embedder converts article text into a dense vector.
	embedder rag.Embedder

	// store persists the article and its vector.
	store rag.ArticleWriter
}

// NewPipeline constructs a Pipeline from the provided dependencies.
func NewPipeline(embedder rag.Embedder, store rag.ArticleWriter) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	return &Pipeline{embedder: embedder, store: store}, nil
}

// EmbeddingText returns the text embedded for a.
func EmbeddingText(a rag.Article) string {
	return fmt.Sprintf("Title: %s\n\nAbstract: %s", a.Title, a.Abstract)
}

// Validate checks that a can be saved.
func Validate(a rag.Article) error {
	if strings.TrimSpace(a.ID) == "" || strings.TrimSpace(a.Title) == "" || strings.TrimSpace(a.Abstract) == "" {
		return ErrInvalidArticle
	}
	if utf8.RuneCountInString(EmbeddingText(a)) > MaxEmbeddingText {
		return ErrTextTooLong
	}
	return nil
}

// Save validates, embeds and stores a single article. Embedding failures
// wrap rag.ErrEmbeddingFailed; store conflicts surface as
// rag.ErrDuplicateArticle or rag.ErrMissingField.
func (p *Pipeline) Save(ctx context.Context, a rag.Article) (*Receipt, error) {
	log := logging.FromContext(ctx)

	if err := Validate(a); err != nil {
		return nil, err
	}
	text := EmbeddingText(a)
	log.Debug("ingestion: processing article", slog.String("id", a.ID), slog.Int("text_length", utf8.RuneCountInString(text)))

	vec, err := rag.EmbedQuery(ctx, p.embedder, text)
	if err != nil {
		return nil, fmt.Errorf("ingestion: %s: %w", a.ID, err)
	}

	if err := p.store.Insert(ctx, a, vec); err != nil {
		return nil, fmt.Errorf("ingestion: %s: %w", a.ID, err)
	}

	log.Info("ingestion: article saved", slog.String("id", a.ID), slog.Int("dimension", len(vec)))
	return &Receipt{ArticleID: a.ID, EmbeddingDimension: len(vec)}, nil
}

// SaveAll saves articles sequentially and returns one Outcome per article.
// A failed article does not stop the batch; cancellation does. Progress is
// reported via the optional progress callback.
func (p *Pipeline) SaveAll(ctx context.Context, articles []rag.Article, progress func(msg string)) []Outcome {
	if progress == nil {
		progress = func(string) {}
	}

	out := make([]Outcome, 0, len(articles))
	for i, a := range articles {
		if err := ctx.Err(); err != nil {
			out = append(out, Outcome{ArticleID: a.ID, Err: err})
			continue
		}
		progress(fmt.Sprintf("[%d/%d] saving %s", i+1, len(articles), a.ID))

		r, err := p.Save(ctx, a)
		switch {
		case err == nil:
			progress(fmt.Sprintf("[%d/%d] saved %s (dimension %d)", i+1, len(articles), a.ID, r.EmbeddingDimension))
		case errors.Is(err, rag.ErrDuplicateArticle):
			progress(fmt.Sprintf("[%d/%d] %s already saved", i+1, len(articles), a.ID))
		default:
			progress(fmt.Sprintf("[%d/%d] failed %s: %v", i+1, len(articles), a.ID, err))
		}
		out = append(out, Outcome{ArticleID: a.ID, Receipt: r, Err: err})
	}
	return out
}
