// Package answer generates the grounded answer from an evidence set.
//
// Generation runs as an explicit state machine over at most MaxAttempts
// model calls:
//
//	Attempting(n) → Succeeded
//	              → Backoff(2^n × unit) → Attempting(n+1)   overloaded, n < max
//	              → Attempting(n+1)                         transport / malformed, n < max
//	              → Degraded(overloaded | quota | unavailable)
//	              → FatalFailed                              other status, cancellation
//
// Degraded outcomes carry a fallback answer that names the evidence count so
// the caller can still return the sources.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/54b3r/pmrag-go/internal/budget"
	"github.com/54b3r/pmrag-go/internal/evidence"
	"github.com/54b3r/pmrag-go/internal/llm"
	"github.com/54b3r/pmrag-go/internal/logging"
	"github.com/54b3r/pmrag-go/internal/question"
)

const (
	// DefaultMaxAttempts is the number of model calls before degrading.
	DefaultMaxAttempts = 3
	// DefaultBackoffUnit is multiplied by 2^attempt between overloaded retries.
	DefaultBackoffUnit = time.Second
)

// CallOptions are the model settings for a generation call.
var CallOptions = llm.Options{Temperature: 0.3, MaxTokens: 2000}

// State is a generation state.
type State int

const (
	// Attempting is an in-flight model call.
	Attempting State = iota
	// Backoff is the wait between overloaded retries.
	Backoff
	// Succeeded means the model produced an answer.
	Succeeded
	// Degraded means a fallback answer was substituted.
	Degraded
	// FatalFailed means the request must fail.
	FatalFailed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Attempting:
		return "attempting"
	case Backoff:
		return "backoff"
	case Succeeded:
		return "succeeded"
	case Degraded:
		return "degraded"
	case FatalFailed:
		return "fatal"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Reason explains a degraded outcome.
type Reason string

const (
	// ReasonNone is set on non-degraded outcomes.
	ReasonNone Reason = ""
	// ReasonOverloaded means the backend stayed overloaded through every attempt.
	ReasonOverloaded Reason = "overloaded"
	// ReasonQuota means the backend reported an exhausted quota.
	ReasonQuota Reason = "quota"
	// ReasonUnavailable means every attempt failed in transport or returned
	// an unusable response.
	ReasonUnavailable Reason = "unavailable"
)

// Outcome is the terminal result of a generation run.
type Outcome struct {
	// Answer is the generated text or the fallback text.
	Answer string
	// State is Succeeded or Degraded.
	State State
	// Reason is set when State is Degraded.
	Reason Reason
	// Attempts is the number of model calls made.
	Attempts int
}

// Config tunes the Generator.
type Config struct {
	// MaxAttempts caps model calls. Zero means DefaultMaxAttempts.
	MaxAttempts int
	// BackoffUnit scales the overloaded backoff. Zero means
	// DefaultBackoffUnit.
	BackoffUnit time.Duration
	// MaxContextTokens is the prompt size above which a warning is logged.
	// Zero means budget.DefaultMaxContextTokens.
	MaxContextTokens int
	// OnAttempt, when set, is called after every model call with its
	// classification ("success", "overloaded", "quota", "status", "transient").
	OnAttempt func(result string)
}

// Generator produces answers from evidence.
type Generator struct {
	client llm.Client
	cfg    Config
}

// NewGenerator returns a Generator backed by client.
func NewGenerator(client llm.Client, cfg Config) (*Generator, error) {
	if client == nil {
		return nil, fmt.Errorf("answer: llm client must not be nil")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BackoffUnit <= 0 {
		cfg.BackoffUnit = DefaultBackoffUnit
	}
	return &Generator{client: client, cfg: cfg}, nil
}

// BackoffFor returns the wait after the given failed overloaded attempt.
func (g *Generator) BackoffFor(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * g.cfg.BackoffUnit
}

// Generate builds the grounded prompt and runs the retry state machine.
// It returns an error only for FatalFailed; degraded outcomes are returned
// with a nil error.
func (g *Generator) Generate(ctx context.Context, q string, lang question.Language, set evidence.Set) (Outcome, error) {
	log := logging.FromContext(ctx)

	prompt := BuildPrompt(q, lang, set)
	tokens, over := budget.Check(prompt, g.cfg.MaxContextTokens)
	if over {
		log.Warn("answer: prompt exceeds context budget",
			slog.Int("prompt_tokens", tokens),
			slog.Int("articles", set.Total()),
		)
	}
	log.Info("answer: generating", slog.Int("articles", set.Total()), slog.Int("prompt_tokens", tokens))

	n := set.Total()
	for attempt := 1; ; attempt++ {
		log.Debug("answer: attempt", slog.Int("attempt", attempt))

		text, err := g.client.Complete(ctx, prompt, CallOptions)
		next, reason := g.transition(ctx, attempt, err)

		switch next {
		case Succeeded:
			g.observe("success")
			log.Info("answer: generated", slog.Int("attempt", attempt))
			return Outcome{Answer: text, State: Succeeded, Attempts: attempt}, nil

		case Backoff:
			wait := g.BackoffFor(attempt)
			log.Warn("answer: backend overloaded, backing off",
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
				slog.Any("error", err),
			)
			if err := sleep(ctx, wait); err != nil {
				return Outcome{State: FatalFailed, Attempts: attempt}, fmt.Errorf("answer: backoff interrupted: %w", err)
			}

		case Attempting:
			log.Warn("answer: attempt failed, retrying", slog.Int("attempt", attempt), slog.Any("error", err))

		case Degraded:
			log.Warn("answer: degraded to fallback answer",
				slog.Int("attempt", attempt),
				slog.String("reason", string(reason)),
				slog.Any("error", err),
			)
			return Outcome{Answer: Fallback(reason, n, q), State: Degraded, Reason: reason, Attempts: attempt}, nil

		default:
			if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
				err = fmt.Errorf("%w (last error: %v)", ctxErr, err)
			}
			log.Error("answer: generation failed", slog.Int("attempt", attempt), slog.Any("error", err))
			return Outcome{State: FatalFailed, Attempts: attempt}, fmt.Errorf("answer: generate: %w", err)
		}
	}
}

// transition classifies the result of attempt and returns the next state.
func (g *Generator) transition(ctx context.Context, attempt int, err error) (State, Reason) {
	last := attempt >= g.cfg.MaxAttempts

	var status *llm.StatusError
	switch {
	case err == nil:
		return Succeeded, ReasonNone
	case ctx.Err() != nil:
		// Only the caller's own cancellation is fatal; a per-call timeout
		// from the transport is retried like any other transport failure.
		return FatalFailed, ReasonNone
	case errors.Is(err, llm.ErrOverloaded):
		g.observe("overloaded")
		if last {
			return Degraded, ReasonOverloaded
		}
		return Backoff, ReasonNone
	case errors.Is(err, llm.ErrQuotaExceeded):
		g.observe("quota")
		return Degraded, ReasonQuota
	case errors.As(err, &status):
		g.observe("status")
		return FatalFailed, ReasonNone
	default:
		g.observe("transient")
		if last {
			return Degraded, ReasonUnavailable
		}
		return Attempting, ReasonNone
	}
}

func (g *Generator) observe(result string) {
	if g.cfg.OnAttempt != nil {
		g.cfg.OnAttempt(result)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Fallback returns the canned answer for a degraded outcome. n is the number
// of evidence articles and q the question asked.
func Fallback(reason Reason, n int, q string) string {
	switch reason {
	case ReasonOverloaded:
		return fmt.Sprintf(`I've found %d relevant article(s) for your question, but the AI service is currently overloaded. Please review the sources below for information about: "%s"`, n, q)
	case ReasonQuota:
		return fmt.Sprintf(`I've found %d relevant article(s) for your question, but I've exceeded my API quota. Please review the sources below for information about: "%s"`, n, q)
	default:
		return fmt.Sprintf("I found %d relevant article(s) for your question. Unfortunately, I cannot generate a summary at this moment due to service issues. Please review the sources below.", n)
	}
}
