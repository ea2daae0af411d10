package rag

import (
	"context"
	"fmt"
	"slices"
)

// Retrieval profiles used by the pipeline.
const (
	// PrimaryThreshold is the similarity cutoff for the main evidence pool.
	PrimaryThreshold = 0.4
	// PrimaryLimit is the size of the main evidence pool.
	PrimaryLimit = 7
	// BackfillThreshold is the looser cutoff used to widen the pool when
	// relevance filtering excluded primary candidates.
	BackfillThreshold = 0.35
	// BackfillBaseLimit is added to the excluded count to size the backfill
	// request.
	BackfillBaseLimit = 15
)

// Profile is a named (threshold, limit) pair for one retrieval call.
type Profile struct {
	// Name labels the profile in logs ("primary", "backfill").
	Name string
	// Threshold is the exclusive minimum similarity.
	Threshold float64
	// Limit is the maximum number of candidates returned.
	Limit int
}

// PrimaryProfile returns the first-pass retrieval profile.
func PrimaryProfile() Profile {
	return Profile{Name: "primary", Threshold: PrimaryThreshold, Limit: PrimaryLimit}
}

// BackfillProfile returns the widened profile sized for excluded candidates.
func BackfillProfile(excluded int) Profile {
	return Profile{Name: "backfill", Threshold: BackfillThreshold, Limit: BackfillBaseLimit + excluded}
}

// Retriever runs profile-driven similarity search against a VectorStore.
// It enforces the ordering, threshold and limit contract regardless of how
// strictly the backend honours them.
type Retriever struct {
	// store performs the similarity search.
	store VectorStore
}

// NewRetriever constructs a Retriever over store.
func NewRetriever(store VectorStore) (*Retriever, error) {
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	return &Retriever{store: store}, nil
}

// Retrieve returns the candidates for vector under profile p. An empty
// result is not an error. Store failures wrap ErrRetrievalFailed and keep
// the underlying cause (e.g. ErrMatchFunctionMissing) reachable via
// errors.Is.
func (r *Retriever) Retrieve(ctx context.Context, vector []float32, p Profile) ([]Candidate, error) {
	if p.Limit <= 0 {
		return nil, nil
	}
	cands, err := r.store.Match(ctx, vector, p.Threshold, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %s search: %w", ErrRetrievalFailed, p.Name, err)
	}

	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Similarity > p.Threshold {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b Candidate) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		}
		return 0
	})
	if len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

// EmbedQuery embeds a single text and returns its vector. Any failure,
// including an empty vector, wraps ErrEmbeddingFailed.
func EmbedQuery(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("%w: embedder returned an empty vector", ErrEmbeddingFailed)
	}
	return vecs[0], nil
}
