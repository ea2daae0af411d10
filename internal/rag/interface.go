// Package rag defines the shared types and interfaces of the answering
// pipeline: saved articles, retrieved candidates, embedding, and vector
// similarity search. Concrete backends (Postgres/pgvector, Qdrant, SQLite)
// satisfy these interfaces so the pipeline never depends on a specific store.
package rag

import (
	"context"
	"errors"
)

// Sentinel errors shared by embedders, stores and the pipeline.
var (
	// ErrEmbeddingFailed marks a failure of the embedding capability. It is
	// fatal to the current request and never retried.
	ErrEmbeddingFailed = errors.New("rag: embedding failed")

	// ErrRetrievalFailed marks a failure of the vector store during
	// similarity search.
	ErrRetrievalFailed = errors.New("rag: retrieval failed")

	// ErrMatchFunctionMissing is returned when the store's similarity search
	// function has not been created.
	ErrMatchFunctionMissing = errors.New(`rag: database function "match_articles" not found, create it first`)

	// ErrDuplicateArticle is returned when an article with the same id is
	// already saved.
	ErrDuplicateArticle = errors.New("rag: article has already been saved")

	// ErrMissingField is returned when the store rejects a row because a
	// required column is empty.
	ErrMissingField = errors.New("rag: required field is missing")
)

// Article is the public shape of a saved PubMed record.
type Article struct {
	// ID is the PubMed identifier (PMID).
	ID string `json:"id"`
	// Title is the article title.
	Title string `json:"title"`
	// Abstract is the full abstract text.
	Abstract string `json:"abstract"`
	// Authors is the display author string (e.g. "Smith J et al.").
	Authors string `json:"authors"`
	// PubDate is the display publication date (e.g. "Mar 4 2024").
	PubDate string `json:"pubDate"`
	// PubmedURL links to the article on pubmed.ncbi.nlm.nih.gov.
	PubmedURL string `json:"pubmedUrl"`
	// IsFree reports whether free full text is available.
	IsFree bool `json:"isFree"`
	// TranslatedTitle is the optional Korean title.
	TranslatedTitle string `json:"translatedTitle,omitempty"`
	// TranslatedAbstract is the optional Korean abstract.
	TranslatedAbstract string `json:"translatedAbstract,omitempty"`
}

// Candidate is an article returned by similarity search together with its
// cosine-derived similarity (1 - cosine distance). Candidates live for a
// single request.
type Candidate struct {
	Article
	// Similarity is in [0, 1], higher is closer.
	Similarity float64
}

// Source promotes the candidate to the public Article shape.
func (c Candidate) Source() Article {
	return c.Article
}

// Embedder converts text into dense vectors.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their embeddings. The returned
	// slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore performs thresholded similarity search over saved articles.
type VectorStore interface {
	// Match returns at most limit candidates whose similarity to vector is
	// strictly greater than threshold, ordered by similarity descending.
	Match(ctx context.Context, vector []float32, threshold float64, limit int) ([]Candidate, error)
}

// ArticleWriter persists an article together with its embedding.
type ArticleWriter interface {
	// Insert saves a new article. It returns ErrDuplicateArticle when the id
	// already exists and ErrMissingField on NOT NULL violations.
	Insert(ctx context.Context, a Article, embedding []float32) error
}

// ArticleReader lists saved articles.
type ArticleReader interface {
	// List returns every saved article, most recently saved first.
	List(ctx context.Context) ([]Article, error)
	// IDs returns the ids of every saved article.
	IDs(ctx context.Context) ([]string, error)
}

// ArticleStore is the full repository implemented by every backend.
type ArticleStore interface {
	VectorStore
	ArticleWriter
	ArticleReader
	// Name identifies the backend in logs and readiness checks.
	Name() string
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases any resources held by the store.
	Close() error
}
