// Package pipeline answers a question from the saved corpus:
//
//	VALIDATE → EMBED → RETRIEVE_PRIMARY → EMPTY_RESULT
//	                                   → EVALUATE_RELEVANCE → ASSEMBLE_EVIDENCE → GENERATE → RESPOND
//
// Each stage awaits the previous one; the only state is local to a request.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/54b3r/pmrag-go/internal/answer"
	"github.com/54b3r/pmrag-go/internal/evidence"
	"github.com/54b3r/pmrag-go/internal/logging"
	"github.com/54b3r/pmrag-go/internal/question"
	"github.com/54b3r/pmrag-go/internal/rag"
	"github.com/54b3r/pmrag-go/internal/relevance"
)

// Retriever runs a similarity search. *rag.Retriever satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, vector []float32, p rag.Profile) ([]rag.Candidate, error)
}

// Scorer rates candidates. *relevance.Evaluator satisfies it.
type Scorer interface {
	Score(ctx context.Context, q string, lang question.Language, candidates []rag.Candidate) relevance.Scores
}

// Assembler builds the evidence set. *evidence.Assembler satisfies it.
type Assembler interface {
	Assemble(ctx context.Context, in evidence.Input) evidence.Set
}

// AnswerGenerator produces the answer. *answer.Generator satisfies it.
type AnswerGenerator interface {
	Generate(ctx context.Context, q string, lang question.Language, set evidence.Set) (answer.Outcome, error)
}

// Config wires the pipeline stages.
type Config struct {
	Embedder  rag.Embedder
	Retriever Retriever
	Scorer    Scorer
	Assembler Assembler
	Generator AnswerGenerator
}

// Pipeline answers questions. It is safe for concurrent use when its stages
// are.
type Pipeline struct {
	embedder  rag.Embedder
	retriever Retriever
	scorer    Scorer
	assembler Assembler
	generator AnswerGenerator
}

// New validates cfg and returns a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Embedder == nil:
		return nil, fmt.Errorf("pipeline: embedder must not be nil")
	case cfg.Retriever == nil:
		return nil, fmt.Errorf("pipeline: retriever must not be nil")
	case cfg.Scorer == nil:
		return nil, fmt.Errorf("pipeline: scorer must not be nil")
	case cfg.Assembler == nil:
		return nil, fmt.Errorf("pipeline: assembler must not be nil")
	case cfg.Generator == nil:
		return nil, fmt.Errorf("pipeline: generator must not be nil")
	}
	return &Pipeline{
		embedder:  cfg.Embedder,
		retriever: cfg.Retriever,
		scorer:    cfg.Scorer,
		assembler: cfg.Assembler,
		generator: cfg.Generator,
	}, nil
}

// Answer runs the full pipeline for q. Validation errors are
// question.ErrEmpty or question.ErrTooLong and occur before any remote
// call; embedding, retrieval and fatal generation failures are returned
// wrapped. Every other failure is recovered inside its stage.
func (p *Pipeline) Answer(ctx context.Context, q string) (*Result, error) {
	start := time.Now()
	log := logging.FromContext(ctx)

	if err := question.Validate(q); err != nil {
		return nil, err
	}
	lang := question.DetectLanguage(q)
	log = log.With(slog.String("language", lang.String()))
	ctx = logging.WithLogger(ctx, log)
	log.Info("pipeline: processing question", slog.String("question", logging.Preview(q, 100)))

	vec, err := rag.EmbedQuery(ctx, p.embedder, q)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	log.Debug("pipeline: query embedded", slog.Int("dimension", len(vec)))

	primary, err := p.retriever.Retrieve(ctx, vec, rag.PrimaryProfile())
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	log.Info("pipeline: primary retrieval", slog.Int("candidates", len(primary)))

	if len(primary) == 0 {
		log.Info("pipeline: no matching articles", slog.Duration("elapsed", time.Since(start)))
		return &Result{
			Answer:  EmptyAnswer,
			Sources: []rag.Article{},
			SearchInfo: SearchInfo{
				Empty:     true,
				Threshold: rag.PrimaryThreshold,
			},
			Outcome: OutcomeEmpty,
		}, nil
	}

	scores := p.scorer.Score(ctx, q, lang, primary)
	set := p.assembler.Assemble(ctx, evidence.Input{
		Primary:     primary,
		Scores:      scores,
		QueryVector: vec,
	})

	out, err := p.generator.Generate(ctx, q, lang, set)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	res := &Result{
		Answer:  out.Answer,
		Sources: set.Sources(),
		SearchInfo: SearchInfo{
			ArticlesFound:  len(primary),
			HighlyRelevant: set.HighlyRelevant,
			Supplementary:  set.Supplementary,
			TotalUsed:      set.Total(),
			Threshold:      rag.PrimaryThreshold,
			MaxSimilarity:  formatSimilarity(primary),
		},
		Outcome:  OutcomeAnswered,
		Attempts: out.Attempts,
	}
	if out.State == answer.Degraded {
		res.Outcome = OutcomeDegraded
		res.Degraded = out.Reason
	}

	log.Info("pipeline: answered",
		slog.String("outcome", string(res.Outcome)),
		slog.Int("sources", len(res.Sources)),
		slog.Int("attempts", out.Attempts),
		slog.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}
