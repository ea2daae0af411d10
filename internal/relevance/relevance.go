// Package relevance re-ranks retrieved candidates by asking the LLM to score
// each one against the question. Scoring is best effort: any failure is
// logged and reported as an empty score set so the pipeline falls back to
// the unfiltered primary candidates.
package relevance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/54b3r/pmrag-go/internal/budget"
	"github.com/54b3r/pmrag-go/internal/llm"
	"github.com/54b3r/pmrag-go/internal/logging"
	"github.com/54b3r/pmrag-go/internal/question"
	"github.com/54b3r/pmrag-go/internal/rag"
)

// CallOptions are the model settings for a scoring call.
var CallOptions = llm.Options{Temperature: 0.2, MaxTokens: 1000}

// Score is the model's judgement of one candidate.
type Score struct {
	// CandidateID is the id of the scored candidate.
	CandidateID string `json:"candidateId"`
	// Ordinal is the 1-based position the candidate had in the prompt.
	Ordinal int `json:"articleNumber"`
	// Value is the relevance score, nominally 1–10.
	Value float64 `json:"relevanceScore"`
	// Reason is the model's short justification.
	Reason string `json:"reason"`
}

// Scores holds the model's scores keyed by candidate id. The zero value
// means no scores were produced.
type Scores struct {
	// Reported is the number of entries the model returned, counting
	// entries whose article number matched no candidate.
	Reported int
	byID     map[string]Score
}

// NewScores builds Scores from entries in response order. When two entries
// name the same candidate the later one wins.
func NewScores(reported int, entries ...Score) Scores {
	byID := make(map[string]Score, len(entries))
	for _, sc := range entries {
		byID[sc.CandidateID] = sc
	}
	return Scores{Reported: reported, byID: byID}
}

// Produced reports whether the model returned any score entries at all.
// Scores can be produced yet match no candidate.
func (s Scores) Produced() bool { return s.Reported > 0 }

// Len returns the number of candidates that received a score.
func (s Scores) Len() int { return len(s.byID) }

// Lookup returns the score for id, if present.
func (s Scores) Lookup(id string) (Score, bool) {
	sc, ok := s.byID[id]
	return sc, ok
}

// Evaluator scores candidates against a question.
type Evaluator struct {
	client llm.Client
}

// NewEvaluator returns an Evaluator backed by client.
func NewEvaluator(client llm.Client) (*Evaluator, error) {
	if client == nil {
		return nil, fmt.Errorf("relevance: llm client must not be nil")
	}
	return &Evaluator{client: client}, nil
}

// Score asks the model to rate candidates and returns the scores keyed by
// candidate id. It never fails: network, status, extraction and decode
// errors are logged at warn level and yield an empty Scores.
func (e *Evaluator) Score(ctx context.Context, q string, lang question.Language, candidates []rag.Candidate) Scores {
	log := logging.FromContext(ctx)
	if len(candidates) == 0 {
		return Scores{}
	}

	prompt := BuildPrompt(q, lang, candidates)
	log.Debug("relevance: evaluating candidates",
		slog.Int("candidates", len(candidates)),
		slog.Int("prompt_tokens", budget.EstimatePrompt(prompt)),
	)

	raw, err := e.client.Complete(ctx, prompt, CallOptions)
	if err != nil {
		log.Warn("relevance: scoring call failed, using unfiltered candidates", slog.Any("error", err))
		return Scores{}
	}
	log.Debug("relevance: raw response", slog.String("response", logging.Preview(raw, 500)))

	scores, err := Parse(raw, candidates)
	if err != nil {
		log.Warn("relevance: could not parse scores, using unfiltered candidates", slog.Any("error", err))
		return Scores{}
	}

	for i, c := range candidates {
		if sc, ok := scores.Lookup(c.ID); ok {
			log.Debug("relevance: candidate scored",
				slog.Int("article", i+1),
				slog.Float64("score", sc.Value),
				slog.String("title", logging.Preview(c.Title, 50)),
			)
		} else {
			log.Debug("relevance: candidate unscored",
				slog.Int("article", i+1),
				slog.String("title", logging.Preview(c.Title, 50)),
			)
		}
	}
	log.Info("relevance: evaluation completed",
		slog.Int("reported", scores.Reported),
		slog.Int("scored", scores.Len()),
		slog.Int("candidates", len(candidates)),
	)
	return scores
}

// wireScores is the JSON contract the prompt asks the model to follow.
type wireScores struct {
	RelevanceScores []struct {
		ArticleNumber  int     `json:"articleNumber"`
		RelevanceScore float64 `json:"relevanceScore"`
		Reason         string  `json:"reason"`
	} `json:"relevanceScores"`
}

// Parse extracts the score object from raw and maps each 1-based article
// number to the id of the candidate at that position. Entries whose number
// is out of range still count as reported but score nobody; when a number
// repeats the last entry wins.
func Parse(raw string, candidates []rag.Candidate) (Scores, error) {
	obj, err := ExtractJSONObject(raw)
	if err != nil {
		return Scores{}, err
	}
	var w wireScores
	if err := json.Unmarshal([]byte(obj), &w); err != nil {
		return Scores{}, fmt.Errorf("relevance: decode scores: %w", err)
	}

	entries := make([]Score, 0, len(w.RelevanceScores))
	for _, s := range w.RelevanceScores {
		if s.ArticleNumber < 1 || s.ArticleNumber > len(candidates) {
			continue
		}
		entries = append(entries, Score{
			CandidateID: candidates[s.ArticleNumber-1].ID,
			Ordinal:     s.ArticleNumber,
			Value:       s.RelevanceScore,
			Reason:      s.Reason,
		})
	}
	return NewScores(len(w.RelevanceScores), entries...), nil
}
