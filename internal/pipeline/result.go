package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/54b3r/pmrag-go/internal/answer"
	"github.com/54b3r/pmrag-go/internal/rag"
)

// EmptyAnswer is returned when primary retrieval finds nothing.
const EmptyAnswer = "I couldn't find any relevant information in your saved articles to answer that question. Try rephrasing your question or adding more articles to your database."

// Outcome labels how a request finished, for metrics and logs.
type Outcome string

const (
	// OutcomeAnswered means the model produced the answer.
	OutcomeAnswered Outcome = "answered"
	// OutcomeEmpty means no candidate passed primary retrieval.
	OutcomeEmpty Outcome = "empty"
	// OutcomeDegraded means a fallback answer was substituted.
	OutcomeDegraded Outcome = "degraded"
)

// SearchInfo summarises retrieval for the caller. The JSON shape differs
// between empty and non-empty results.
type SearchInfo struct {
	// Empty selects the empty-result JSON shape.
	Empty bool
	// ArticlesFound is the primary retrieval count.
	ArticlesFound int
	// HighlyRelevant is the number of primary candidates kept.
	HighlyRelevant int
	// Supplementary is the number of backfilled candidates.
	Supplementary int
	// TotalUsed is the size of the evidence set.
	TotalUsed int
	// Threshold is the primary similarity threshold.
	Threshold float64
	// MaxSimilarity is the top primary similarity, formatted "%.3f", or "N/A".
	MaxSimilarity string
}

// MarshalJSON implements json.Marshaler.
func (s SearchInfo) MarshalJSON() ([]byte, error) {
	if s.Empty {
		return json.Marshal(struct {
			ArticlesFound    int     `json:"articlesFound"`
			Threshold        float64 `json:"threshold"`
			RelevantArticles int     `json:"relevantArticles"`
		}{s.ArticlesFound, s.Threshold, 0})
	}
	return json.Marshal(struct {
		ArticlesFound          int     `json:"articlesFound"`
		HighlyRelevantArticles int     `json:"highlyRelevantArticles"`
		SupplementaryArticles  int     `json:"supplementaryArticles"`
		TotalUsedArticles      int     `json:"totalUsedArticles"`
		Threshold              float64 `json:"threshold"`
		MaxSimilarity          string  `json:"maxSimilarity"`
	}{s.ArticlesFound, s.HighlyRelevant, s.Supplementary, s.TotalUsed, s.Threshold, s.MaxSimilarity})
}

// Result is the answer returned to the caller. It is not modified after
// Answer returns.
type Result struct {
	// Answer is the generated, fallback or empty-result text.
	Answer string `json:"answer"`
	// Sources are the articles the answer was grounded on, in prompt order.
	Sources []rag.Article `json:"sources"`
	// SearchInfo summarises retrieval.
	SearchInfo SearchInfo `json:"searchInfo"`

	// Outcome labels how the request finished.
	Outcome Outcome `json:"-"`
	// Degraded is the fallback reason when Outcome is OutcomeDegraded.
	Degraded answer.Reason `json:"-"`
	// Attempts is the number of generation calls made.
	Attempts int `json:"-"`
}

func formatSimilarity(cands []rag.Candidate) string {
	if len(cands) == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.3f", cands[0].Similarity)
}
