// Package evidence decides which retrieved candidates ground the answer.
// Candidates the relevance evaluator rated below KeepThreshold are dropped
// and replaced, where possible, by supplementary candidates from a wider
// backfill search.
package evidence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/54b3r/pmrag-go/internal/logging"
	"github.com/54b3r/pmrag-go/internal/rag"
	"github.com/54b3r/pmrag-go/internal/relevance"
)

const (
	// KeepThreshold is the minimum relevance score a primary candidate needs
	// to stay in the evidence set.
	KeepThreshold = 5.0

	// FallbackSize is how many top primary candidates are used when nothing
	// else survives filtering.
	FallbackSize = 3
)

// Retriever runs a similarity search with a given profile.
// *rag.Retriever satisfies this interface.
type Retriever interface {
	Retrieve(ctx context.Context, vector []float32, p rag.Profile) ([]rag.Candidate, error)
}

// Item is one candidate in the evidence set.
type Item struct {
	rag.Candidate
	// Score is the candidate's relevance score, nil when it was not scored.
	Score *relevance.Score
	// Supplementary marks candidates added by backfill.
	Supplementary bool
}

// Set is the ordered evidence used for generation together with the counts
// reported to the caller.
type Set struct {
	// Items holds kept primary candidates followed by backfill, with no
	// duplicate ids.
	Items []Item
	// HighlyRelevant is the number of primary candidates kept.
	HighlyRelevant int
	// Supplementary is the number of backfilled candidates.
	Supplementary int
	// Excluded is the number of primary candidates dropped by scoring.
	Excluded int
}

// Total returns the number of candidates used.
func (s Set) Total() int { return len(s.Items) }

// Sources promotes the evidence to the public Article shape, in order.
func (s Set) Sources() []rag.Article {
	out := make([]rag.Article, 0, len(s.Items))
	for _, it := range s.Items {
		out = append(out, it.Source())
	}
	return out
}

// Input carries what the assembler needs for one request.
type Input struct {
	// Primary is the primary retrieval result, ordered by similarity.
	Primary []rag.Candidate
	// Scores are the relevance scores keyed by candidate id. When scores were
	// produced, a primary candidate without one is excluded.
	Scores relevance.Scores
	// QueryVector is reused for the backfill search.
	QueryVector []float32
}

// Assembler builds evidence sets.
type Assembler struct {
	retriever Retriever
}

// NewAssembler returns an Assembler that backfills through r.
func NewAssembler(r Retriever) (*Assembler, error) {
	if r == nil {
		return nil, fmt.Errorf("evidence: retriever must not be nil")
	}
	return &Assembler{retriever: r}, nil
}

// Assemble filters the primary candidates by score, backfills the excluded
// slots and applies the top-N fallback. The result is deterministic for
// identical inputs; backfill failures are logged and ignored.
func (a *Assembler) Assemble(ctx context.Context, in Input) Set {
	log := logging.FromContext(ctx)

	if !in.Scores.Produced() {
		log.Info("evidence: no relevance scores, using all primary candidates", slog.Int("candidates", len(in.Primary)))
		items := make([]Item, 0, len(in.Primary))
		for _, c := range in.Primary {
			items = append(items, Item{Candidate: c})
		}
		return Set{Items: items, HighlyRelevant: len(items)}
	}

	kept := make([]Item, 0, len(in.Primary))
	for i, c := range in.Primary {
		sc, ok := in.Scores.Lookup(c.ID)
		if ok && sc.Value >= KeepThreshold {
			kept = append(kept, Item{Candidate: c, Score: &sc})
			continue
		}
		if ok {
			log.Debug("evidence: excluded candidate",
				slog.Int("article", i+1),
				slog.Float64("score", sc.Value),
				slog.String("title", logging.Preview(c.Title, 50)),
			)
		}
	}
	excluded := len(in.Primary) - len(kept)
	log.Info("evidence: filtered by relevance",
		slog.Int("primary", len(in.Primary)),
		slog.Int("kept", len(kept)),
		slog.Int("excluded", excluded),
	)

	var backfill []Item
	if excluded > 0 {
		backfill = a.backfill(ctx, in, kept, excluded)
	}

	items := append(kept, backfill...)
	if len(items) == 0 && len(in.Primary) > 0 {
		n := min(FallbackSize, len(in.Primary))
		log.Info("evidence: no relevant candidates, using top primary candidates", slog.Int("count", n))
		for _, c := range in.Primary[:n] {
			it := Item{Candidate: c}
			if sc, ok := in.Scores.Lookup(c.ID); ok {
				it.Score = &sc
			}
			items = append(items, it)
		}
	}

	log.Info("evidence: assembled",
		slog.Int("total", len(items)),
		slog.Int("highly_relevant", len(kept)),
		slog.Int("supplementary", len(backfill)),
	)
	return Set{
		Items:          items,
		HighlyRelevant: len(kept),
		Supplementary:  len(backfill),
		Excluded:       excluded,
	}
}

// backfill retrieves up to want replacement candidates. Ids already kept or
// present anywhere in the primary set are skipped.
func (a *Assembler) backfill(ctx context.Context, in Input, kept []Item, want int) []Item {
	log := logging.FromContext(ctx)

	more, err := a.retriever.Retrieve(ctx, in.QueryVector, rag.BackfillProfile(want))
	if err != nil {
		log.Warn("evidence: backfill search failed, continuing without supplementary candidates", slog.Any("error", err))
		return nil
	}

	seen := make(map[string]struct{}, len(kept)+len(in.Primary))
	for _, it := range kept {
		seen[it.ID] = struct{}{}
	}
	for _, c := range in.Primary {
		seen[c.ID] = struct{}{}
	}

	out := make([]Item, 0, want)
	for _, c := range more {
		if len(out) == want {
			break
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, Item{Candidate: c, Supplementary: true})
		log.Debug("evidence: added supplementary candidate",
			slog.String("title", logging.Preview(c.Title, 50)),
			slog.Float64("similarity", c.Similarity),
		)
	}
	log.Info("evidence: backfill completed", slog.Int("retrieved", len(more)), slog.Int("added", len(out)))
	return out
}
