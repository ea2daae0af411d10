package translate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	out    string
	err    error
	prompt string
	schema *genai.Schema
}

func (f *fakeGenerator) GenerateJSON(_ context.Context, prompt string, schema *genai.Schema) (string, error) {
	f.prompt = prompt
	f.schema = schema
	return f.out, f.err
}

func TestTranslate(t *testing.T) {
	t.Parallel()
	gen := &fakeGenerator{out: `{"translatedTitle":"제목","translatedAbstract":"첫 문단\n\n둘째 문단"}`}
	svc := &Service{gen: gen}

	res, err := svc.Translate(context.Background(), "Title", "Para one.\n\nPara two.")
	require.NoError(t, err)
	assert.Equal(t, "제목", res.TranslatedTitle)
	assert.Equal(t, "첫 문단\n\n둘째 문단", res.TranslatedAbstract)

	assert.Contains(t, gen.prompt, `**English Title:** "Title"`)
	assert.Contains(t, gen.prompt, "Para one.\n\nPara two.")
	assert.ElementsMatch(t, []string{"translatedTitle", "translatedAbstract"}, gen.schema.Required)
}

func TestTranslate_InvalidInput(t *testing.T) {
	t.Parallel()
	svc := &Service{gen: &fakeGenerator{}}

	_, err := svc.Translate(context.Background(), "", "abstract")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Translate(context.Background(), "title", "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTranslate_Failures(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		gen  *fakeGenerator
		want error
	}{
		{name: "model error", gen: &fakeGenerator{err: errors.New("boom")}},
		{name: "not json", gen: &fakeGenerator{out: "sorry"}},
		{name: "blank fields", gen: &fakeGenerator{out: `{"translatedTitle":"","translatedAbstract":"x"}`}, want: ErrEmptyTranslation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := (&Service{gen: tc.gen}).Translate(context.Background(), "t", "a")
			require.Error(t, err)
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}
}

type fakeModels struct {
	cfg *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(_ context.Context, _ string, _ []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.cfg = cfg
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(`{"translatedTitle":"a","translatedAbstract":"b"}`, genai.RoleModel),
		}},
	}, nil
}

func TestGeminiGenerator_RequestsJSON(t *testing.T) {
	t.Parallel()
	models := &fakeModels{}
	g := &geminiGenerator{models: models, model: DefaultModel}

	out, err := g.GenerateJSON(context.Background(), "p", responseSchema)
	require.NoError(t, err)
	assert.JSONEq(t, `{"translatedTitle":"a","translatedAbstract":"b"}`, out)
	assert.Equal(t, "application/json", models.cfg.ResponseMIMEType)
	require.NotNil(t, models.cfg.Temperature)
	assert.InDelta(t, 0.2, *models.cfg.Temperature, 0.0001)
}
