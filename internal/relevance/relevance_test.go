package relevance

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/pmrag-go/internal/llm"
	"github.com/54b3r/pmrag-go/internal/question"
	"github.com/54b3r/pmrag-go/internal/rag"
)

type fakeClient struct {
	reply  string
	err    error
	prompt string
	opts   llm.Options
	calls  int
}

func (f *fakeClient) Complete(_ context.Context, prompt string, opts llm.Options) (string, error) {
	f.calls++
	f.prompt = prompt
	f.opts = opts
	return f.reply, f.err
}

func cands(ids ...string) []rag.Candidate {
	out := make([]rag.Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, rag.Candidate{
			Article:    rag.Article{ID: id, Title: "Title " + id, Abstract: "Abstract of " + id},
			Similarity: 0.5,
		})
	}
	return out
}

func TestExtractJSONObject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "bare", in: `{"a":1}`, want: `{"a":1}`},
		{name: "fenced", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "commentary around", in: `Here you go: {"a":{"b":2}} hope it helps {x}`, want: `{"a":{"b":2}}`},
		{name: "brace inside string", in: `{"reason":"uses } and { freely","n":1}`, want: `{"reason":"uses } and { freely","n":1}`},
		{name: "escaped quote in string", in: `{"reason":"said \"}\" loudly"}`, want: `{"reason":"said \"}\" loudly"}`},
		{name: "invalid first then valid", in: `{not json} {"ok":true}`, want: `{"ok":true}`},
		{name: "truncated", in: `{"relevanceScores":[{"articleNumber":1`, wantErr: true},
		{name: "absent", in: "no json here", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ExtractJSONObject(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoStructuredData)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_MapsOrdinalsToIDs(t *testing.T) {
	t.Parallel()

	raw := "```json\n" + `{"relevanceScores":[
		{"articleNumber":2,"relevanceScore":8,"reason":"direct"},
		{"articleNumber":1,"relevanceScore":3.5,"reason":"weak"},
		{"articleNumber":9,"relevanceScore":10,"reason":"out of range"},
		{"articleNumber":0,"relevanceScore":10,"reason":"zero"}
	]}` + "\n```"

	scores, err := Parse(raw, cands("p1", "p2", "p3"))
	require.NoError(t, err)
	assert.Equal(t, 2, scores.Len())
	assert.Equal(t, 4, scores.Reported)
	assert.True(t, scores.Produced())

	p2, ok := scores.Lookup("p2")
	require.True(t, ok)
	assert.Equal(t, Score{CandidateID: "p2", Ordinal: 2, Value: 8, Reason: "direct"}, p2)
	p1, _ := scores.Lookup("p1")
	assert.InDelta(t, 3.5, p1.Value, 1e-9)
	_, ok = scores.Lookup("p3")
	assert.False(t, ok)
}

func TestParse_RepeatedNumberLastWins(t *testing.T) {
	t.Parallel()

	raw := `{"relevanceScores":[
		{"articleNumber":1,"relevanceScore":2,"reason":"first"},
		{"articleNumber":1,"relevanceScore":9,"reason":"second"}
	]}`
	scores, err := Parse(raw, cands("a", "b"))
	require.NoError(t, err)

	a, ok := scores.Lookup("a")
	require.True(t, ok)
	assert.InDelta(t, 9.0, a.Value, 1e-9)
	assert.Equal(t, "second", a.Reason)
	assert.Equal(t, 1, scores.Len())
}

func TestParse_OnlyOutOfRangeIsProducedButEmpty(t *testing.T) {
	t.Parallel()

	scores, err := Parse(`{"relevanceScores":[{"articleNumber":5,"relevanceScore":9,"reason":"x"}]}`, cands("a", "b"))
	require.NoError(t, err)
	assert.True(t, scores.Produced(), "the model did answer with scores")
	assert.Zero(t, scores.Len())
}

func TestParse_MissingKeyIsEmpty(t *testing.T) {
	t.Parallel()
	scores, err := Parse(`{"other":[]}`, cands("p1"))
	require.NoError(t, err)
	assert.False(t, scores.Produced())
	assert.Zero(t, scores.Len())
}

func TestParse_WrongTypes(t *testing.T) {
	t.Parallel()
	_, err := Parse(`{"relevanceScores":"nope"}`, cands("p1"))
	assert.Error(t, err)
}

func TestEvaluator_Score(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{reply: `{"relevanceScores":[{"articleNumber":1,"relevanceScore":9,"reason":"x"}]}`}
	ev, err := NewEvaluator(fc)
	require.NoError(t, err)

	scores := ev.Score(context.Background(), "does exercise help?", question.English, cands("a", "b"))
	assert.Equal(t, 1, scores.Len())
	a, _ := scores.Lookup("a")
	assert.InDelta(t, 9.0, a.Value, 1e-9)
	assert.Equal(t, CallOptions, fc.opts)
	assert.Contains(t, fc.prompt, `User's question: "does exercise help?"`)
}

func TestEvaluator_Score_FailuresYieldEmpty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{name: "network", err: errors.New("connection reset")},
		{name: "status", err: &llm.StatusError{Code: 500}},
		{name: "no json", reply: "I think they are all relevant."},
		{name: "truncated", reply: `{"relevanceScores":[{"articleNumber":1,"relevanceScore":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev, err := NewEvaluator(&fakeClient{reply: tt.reply, err: tt.err})
			require.NoError(t, err)
			scores := ev.Score(context.Background(), "q", question.English, cands("a"))
			assert.False(t, scores.Produced())
			assert.Zero(t, scores.Len())
		})
	}
}

func TestEvaluator_Score_NoCandidatesSkipsCall(t *testing.T) {
	t.Parallel()
	fc := &fakeClient{}
	ev, err := NewEvaluator(fc)
	require.NoError(t, err)
	assert.False(t, ev.Score(context.Background(), "q", question.English, nil).Produced())
	assert.Zero(t, fc.calls)
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	c := cands("a", "b")
	c[0].Abstract = strings.Repeat("가", 400)

	en := BuildPrompt("why?", question.English, c)
	assert.Contains(t, en, "You are a medical paper relevance evaluator.")
	assert.Contains(t, en, "Read the titles and abstracts of the 2 articles below")
	assert.Contains(t, en, "Article 1: \"Title a\"\nAbstract: "+strings.Repeat("가", 300)+"...")
	assert.Contains(t, en, "\n\n---\n\nArticle 2: \"Title b\"\nAbstract: Abstract of b...")
	assert.Contains(t, en, "Don't be too strict")
	assert.Contains(t, en, "Moderately Relevant (5-6)")

	ko := BuildPrompt("왜?", question.Korean, c)
	assert.Contains(t, ko, "당신은 의학 논문 관련성 평가자입니다.")
	assert.Contains(t, ko, "아래의 2개 논문")
	assert.Contains(t, ko, `"relevanceScores"`)
}
