package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/pmrag-go/internal/evidence"
	"github.com/54b3r/pmrag-go/internal/llm"
	"github.com/54b3r/pmrag-go/internal/question"
	"github.com/54b3r/pmrag-go/internal/rag"
	"github.com/54b3r/pmrag-go/internal/relevance"
)

type step struct {
	text string
	err  error
}

// scriptedClient replays steps in order, repeating the last one.
type scriptedClient struct {
	steps []step
	calls int
	opts  llm.Options
}

func (s *scriptedClient) Complete(_ context.Context, _ string, opts llm.Options) (string, error) {
	s.opts = opts
	i := min(s.calls, len(s.steps)-1)
	s.calls++
	return s.steps[i].text, s.steps[i].err
}

func twoItems() evidence.Set {
	return evidence.Set{Items: []evidence.Item{
		{Candidate: rag.Candidate{Article: rag.Article{ID: "1", Title: "A"}, Similarity: 0.8}},
		{Candidate: rag.Candidate{Article: rag.Article{ID: "2", Title: "B"}, Similarity: 0.5}, Supplementary: true},
	}}
}

func newGen(t *testing.T, c llm.Client, attempts *[]string) *Generator {
	t.Helper()
	g, err := NewGenerator(c, Config{
		BackoffUnit: time.Nanosecond,
		OnAttempt: func(r string) {
			if attempts != nil {
				*attempts = append(*attempts, r)
			}
		},
	})
	require.NoError(t, err)
	return g
}

func TestGenerate_Transitions(t *testing.T) {
	t.Parallel()

	overloaded := &llm.StatusError{Code: 503}
	quota := &llm.StatusError{Code: 429}
	transient := errors.New("connection reset")

	tests := []struct {
		name      string
		steps     []step
		wantState State
		wantWhy   Reason
		wantCalls int
		wantErr   bool
		wantText  string
		wantSeen  []string
	}{
		{
			name:      "first try",
			steps:     []step{{text: "answer"}},
			wantState: Succeeded, wantCalls: 1, wantText: "answer",
			wantSeen: []string{"success"},
		},
		{
			name:      "overloaded then success",
			steps:     []step{{err: overloaded}, {text: "late answer"}},
			wantState: Succeeded, wantCalls: 2, wantText: "late answer",
			wantSeen: []string{"overloaded", "success"},
		},
		{
			name:      "overloaded three times",
			steps:     []step{{err: overloaded}},
			wantState: Degraded, wantWhy: ReasonOverloaded, wantCalls: 3,
			wantText: `I've found 2 relevant article(s) for your question, but the AI service is currently overloaded. Please review the sources below for information about: "q?"`,
			wantSeen: []string{"overloaded", "overloaded", "overloaded"},
		},
		{
			name:      "quota degrades immediately",
			steps:     []step{{err: quota}},
			wantState: Degraded, wantWhy: ReasonQuota, wantCalls: 1,
			wantText: `I've found 2 relevant article(s) for your question, but I've exceeded my API quota. Please review the sources below for information about: "q?"`,
			wantSeen: []string{"quota"},
		},
		{
			name:      "other status is fatal",
			steps:     []step{{err: &llm.StatusError{Code: 400}}},
			wantState: FatalFailed, wantCalls: 1, wantErr: true,
			wantSeen: []string{"status"},
		},
		{
			name:      "malformed then success",
			steps:     []step{{err: llm.ErrMalformedResponse}, {text: "ok"}},
			wantState: Succeeded, wantCalls: 2, wantText: "ok",
			wantSeen: []string{"transient", "success"},
		},
		{
			name:      "transport failures exhaust attempts",
			steps:     []step{{err: transient}},
			wantState: Degraded, wantWhy: ReasonUnavailable, wantCalls: 3,
			wantText: "I found 2 relevant article(s) for your question. Unfortunately, I cannot generate a summary at this moment due to service issues. Please review the sources below.",
			wantSeen: []string{"transient", "transient", "transient"},
		},
		{
			name:      "per-call timeout with live request is retried",
			steps:     []step{{err: fmt.Errorf("openai: post: %w", context.DeadlineExceeded)}, {text: "ok"}},
			wantState: Succeeded, wantCalls: 2, wantText: "ok",
			wantSeen: []string{"transient", "success"},
		},
		{
			name:      "per-call timeouts exhaust attempts",
			steps:     []step{{err: fmt.Errorf("openai: post: %w", context.DeadlineExceeded)}},
			wantState: Degraded, wantWhy: ReasonUnavailable, wantCalls: 3,
			wantText: Fallback(ReasonUnavailable, 2, "q?"),
			wantSeen: []string{"transient", "transient", "transient"},
		},
		{
			name:      "overloaded then quota",
			steps:     []step{{err: overloaded}, {err: quota}},
			wantState: Degraded, wantWhy: ReasonQuota, wantCalls: 2,
			wantText: Fallback(ReasonQuota, 2, "q?"),
			wantSeen: []string{"overloaded", "quota"},
		},
		{
			name:      "transient then overloaded on last attempt",
			steps:     []step{{err: transient}, {err: transient}, {err: fmt.Errorf("wrapped: %w", overloaded)}},
			wantState: Degraded, wantWhy: ReasonOverloaded, wantCalls: 3,
			wantText: Fallback(ReasonOverloaded, 2, "q?"),
			wantSeen: []string{"transient", "transient", "overloaded"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var seen []string
			c := &scriptedClient{steps: tt.steps}
			out, err := newGen(t, c, &seen).Generate(context.Background(), "q?", question.English, twoItems())

			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantState, out.State)
			assert.Equal(t, tt.wantWhy, out.Reason)
			assert.Equal(t, tt.wantCalls, c.calls)
			assert.Equal(t, tt.wantCalls, out.Attempts)
			assert.Equal(t, tt.wantText, out.Answer)
			assert.Equal(t, tt.wantSeen, seen)
			assert.Equal(t, CallOptions, c.opts)
		})
	}
}

func TestGenerate_CancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	g, err := NewGenerator(&scriptedClient{steps: []step{{err: llm.ErrOverloaded}}}, Config{BackoffUnit: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var out Outcome
	var genErr error
	go func() {
		defer close(done)
		out, genErr = g.Generate(ctx, "q", question.English, twoItems())
	}()
	cancel()
	<-done

	assert.ErrorIs(t, genErr, context.Canceled)
	assert.Equal(t, FatalFailed, out.State)
}

func TestGenerate_CancelledContextIsFatal(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &scriptedClient{steps: []step{{err: context.Canceled}}}
	out, err := newGen(t, c, nil).Generate(ctx, "q", question.English, twoItems())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, FatalFailed, out.State)
	assert.Equal(t, 1, c.calls)
}

func TestBackoffFor(t *testing.T) {
	t.Parallel()

	g, err := NewGenerator(&scriptedClient{steps: []step{{}}}, Config{})
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, g.BackoffFor(1))
	assert.Equal(t, 4*time.Second, g.BackoffFor(2))
}

func TestState_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "degraded", Degraded.String())
	assert.Equal(t, "state(42)", State(42).String())
}

func TestBuildContext(t *testing.T) {
	t.Parallel()

	set := evidence.Set{Items: []evidence.Item{
		{
			Candidate: rag.Candidate{Article: rag.Article{
				ID: "111", Title: "Exercise", Authors: "Kim J et al.", PubDate: "Jan 2 2024", Abstract: "Full abstract one.",
			}, Similarity: 0.81234},
			Score: &relevance.Score{CandidateID: "111", Value: 8},
		},
		{
			Candidate:     rag.Candidate{Article: rag.Article{ID: "222", Title: "Diet", Abstract: "Two."}, Similarity: 0.4},
			Supplementary: true,
		},
		{
			Candidate: rag.Candidate{Article: rag.Article{ID: "333", Title: "Sleep", Abstract: "Three."}, Similarity: 0.5},
		},
	}}

	got := BuildContext(set)
	want := strings.Join([]string{
		"[Article 1] ID: 111, Title: \"Exercise\"\nAuthors: Kim J et al.\nPublication Date: Jan 2 2024\nSimilarity Score: 0.812\nRelevance Score: 8/10\n\n\nAbstract excerpt:\nFull abstract one.\n\n---",
		"[Article 2] ID: 222, Title: \"Diet\"\nAuthors: Not specified\nPublication Date: Not specified\nSimilarity Score: 0.400\nRelevance Score: N/A (supplementary)\n(Supplementary article)\n\nAbstract excerpt:\nTwo.\n\n---",
		"[Article 3] ID: 333, Title: \"Sleep\"\nAuthors: Not specified\nPublication Date: Not specified\nSimilarity Score: 0.500\nRelevance Score: N/A\n\n\nAbstract excerpt:\nThree.\n\n---",
	}, "\n\n")
	assert.Equal(t, want, got)
}

func TestBuildPrompt_Languages(t *testing.T) {
	t.Parallel()

	en := BuildPrompt("Does it work?", question.English, twoItems())
	assert.True(t, strings.HasPrefix(en, "You are a medical research expert"))
	assert.Contains(t, en, "**USER QUESTION:**\nDoes it work?\n")
	assert.Contains(t, en, "Don't use vague phrases like \"most studies show\"")
	assert.True(t, strings.HasSuffix(en, "Write evidence-based response):**"))

	ko := BuildPrompt("효과가 있나요?", question.Korean, twoItems())
	assert.True(t, strings.HasPrefix(ko, "당신은 의학 연구 전문가"))
	assert.Contains(t, ko, "**사용자 질문:**\n효과가 있나요?\n")
	assert.Contains(t, ko, "[Article 1] ID: 1")
}

func TestFormatScore(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "7", formatScore(7))
	assert.Equal(t, "6.5", formatScore(6.5))
}
