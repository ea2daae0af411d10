package store

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/pmrag-go/internal/rag"
)

// pointNamespace derives stable point UUIDs from PubMed ids, since Qdrant
// only accepts integers or UUIDs as point ids.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://pubmed.ncbi.nlm.nih.gov/"))

// pointID returns the Qdrant point id for a PubMed id.
func pointID(articleID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(pointNamespace, []byte(articleID)).String())
}

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use (default: pubmed).
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements rag.ArticleStore backed by a Qdrant collection.
// Article fields are kept in the point payload.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a new QdrantStore, ensuring the target collection
// exists (creating it if necessary).
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "pubmed"
	}
	if cfg.VectorSize == 0 {
		cfg.VectorSize = 768
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	s := &QdrantStore{client: client, cfg: cfg}
	if err := s.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}
	return nil
}

// Name implements rag.ArticleStore.
func (s *QdrantStore) Name() string { return BackendQdrant }

// Ping implements rag.ArticleStore.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check: %w", err)
	}
	return nil
}

// Insert implements rag.ArticleWriter. Qdrant upserts are idempotent, so the
// duplicate check is a lookup before the write.
func (s *QdrantStore) Insert(ctx context.Context, a rag.Article, embedding []float32) error {
	if a.ID == "" || a.Title == "" || a.Abstract == "" || len(embedding) == 0 {
		return fmt.Errorf("qdrant: insert: %w", rag.ErrMissingField)
	}
	id := pointID(a.ID)

	existing, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.cfg.Collection,
		Ids:            []*qdrant.PointId{id},
	})
	if err != nil {
		return fmt.Errorf("qdrant: lookup %s: %w", a.ID, err)
	}
	if len(existing) > 0 {
		return fmt.Errorf("qdrant: insert %s: %w", a.ID, rag.ErrDuplicateArticle)
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points: []*qdrant.PointStruct{{
			Id:      id,
			Vectors: qdrant.NewVectors(embedding...),
			Payload: qdrant.NewValueMap(articlePayload(a, time.Now())),
		}},
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}
	return nil
}

// Match implements rag.VectorStore.
func (s *QdrantStore) Match(ctx context.Context, vector []float32, threshold float64, limit int) ([]rag.Candidate, error) {
	lim := uint64(limit)
	score := float32(threshold)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &lim,
		ScoreThreshold: &score,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	out := make([]rag.Candidate, 0, len(results))
	for _, r := range results {
		a, _ := articleFromPayload(r.GetPayload())
		out = append(out, rag.Candidate{Article: a, Similarity: float64(r.GetScore())})
	}
	return out, nil
}

// List implements rag.ArticleReader.
func (s *QdrantStore) List(ctx context.Context) ([]rag.Article, error) {
	points, err := s.scrollAll(ctx)
	if err != nil {
		return nil, err
	}
	type row struct {
		a  rag.Article
		ts int64
	}
	rows := make([]row, 0, len(points))
	for _, p := range points {
		a, ts := articleFromPayload(p.GetPayload())
		rows = append(rows, row{a: a, ts: ts})
	}
	slices.SortStableFunc(rows, func(x, y row) int {
		switch {
		case x.ts > y.ts:
			return -1
		case x.ts < y.ts:
			return 1
		}
		return 0
	})
	out := make([]rag.Article, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.a)
	}
	return out, nil
}

// IDs implements rag.ArticleReader.
func (s *QdrantStore) IDs(ctx context.Context) ([]string, error) {
	points, err := s.scrollAll(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(points))
	for _, p := range points {
		if v, ok := p.GetPayload()["id"]; ok {
			ids = append(ids, v.GetStringValue())
		}
	}
	return ids, nil
}

// scrollAll returns every point in the collection with its payload.
func (s *QdrantStore) scrollAll(ctx context.Context) ([]*qdrant.RetrievedPoint, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: count failed: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	limit := uint32(n)
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.cfg.Collection,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: scroll failed: %w", err)
	}
	return points, nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// articlePayload flattens a into a Qdrant payload.
func articlePayload(a rag.Article, savedAt time.Time) map[string]any {
	p := map[string]any{
		"id":         a.ID,
		"title":      a.Title,
		"abstract":   a.Abstract,
		"authors":    a.Authors,
		"pub_date":   a.PubDate,
		"pubmed_url": a.PubmedURL,
		"is_free":    a.IsFree,
		"created_at": savedAt.UnixNano(),
	}
	if a.TranslatedTitle != "" {
		p["translated_title"] = a.TranslatedTitle
	}
	if a.TranslatedAbstract != "" {
		p["translated_abstract"] = a.TranslatedAbstract
	}
	return p
}

// articleFromPayload is the inverse of articlePayload. It also returns the
// saved-at timestamp in Unix nanoseconds.
func articleFromPayload(p map[string]*qdrant.Value) (rag.Article, int64) {
	str := func(k string) string {
		if v, ok := p[k]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	a := rag.Article{
		ID:                 str("id"),
		Title:              str("title"),
		Abstract:           str("abstract"),
		Authors:            str("authors"),
		PubDate:            str("pub_date"),
		PubmedURL:          str("pubmed_url"),
		TranslatedTitle:    str("translated_title"),
		TranslatedAbstract: str("translated_abstract"),
	}
	if v, ok := p["is_free"]; ok {
		a.IsFree = v.GetBoolValue()
	}
	var ts int64
	if v, ok := p["created_at"]; ok {
		ts = v.GetIntegerValue()
	}
	return a, ts
}
