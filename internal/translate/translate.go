// Package translate renders article titles and abstracts into formal
// academic Korean with a schema-constrained Gemini call.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/54b3r/pmrag-go/internal/logging"
)

// DefaultModel is the Gemini model used for translation.
const DefaultModel = "gemini-2.5-flash"

// temperature keeps the wording stable across repeated requests.
const temperature float32 = 0.2

var (
	// ErrInvalidInput is returned when the title or abstract is empty.
	ErrInvalidInput = errors.New("translate: title and abstract are required")
	// ErrEmptyTranslation is returned when the model answers with blank fields.
	ErrEmptyTranslation = errors.New("translate: model returned an empty translation")
)

// Result is the translated article text.
type Result struct {
	TranslatedTitle    string `json:"translatedTitle"`
	TranslatedAbstract string `json:"translatedAbstract"`
}

// jsonGenerator produces a JSON document that conforms to schema.
type jsonGenerator interface {
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error)
}

// Service translates articles.
type Service struct {
	gen jsonGenerator
}

// New returns a Service backed by the Gemini client.
func New(client *genai.Client, model string) *Service {
	if model == "" {
		model = DefaultModel
	}
	return &Service{gen: &geminiGenerator{models: client.Models, model: model}}
}

// NewGemini builds a Gemini client for apiKey and returns a Service using
// model (DefaultModel when empty).
func NewGemini(ctx context.Context, apiKey, model string) (*Service, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("translate: GEMINI_API_KEY is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("translate: create gemini client: %w", err)
	}
	return New(client, model), nil
}

// responseSchema requires both translated fields.
var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"translatedTitle":    {Type: genai.TypeString},
		"translatedAbstract": {Type: genai.TypeString},
	},
	Required: []string{"translatedTitle", "translatedAbstract"},
}

// Translate renders title and abstract into Korean. Paragraph breaks in the
// abstract are preserved by the model.
func (s *Service) Translate(ctx context.Context, title, abstract string) (Result, error) {
	log := logging.FromContext(ctx)
	if strings.TrimSpace(title) == "" || strings.TrimSpace(abstract) == "" {
		return Result{}, ErrInvalidInput
	}

	start := time.Now()
	raw, err := s.gen.GenerateJSON(ctx, BuildPrompt(title, abstract), responseSchema)
	if err != nil {
		return Result{}, fmt.Errorf("translate: generate: %w", err)
	}

	var res Result
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &res); err != nil {
		return Result{}, fmt.Errorf("translate: decode response: %w", err)
	}
	if strings.TrimSpace(res.TranslatedTitle) == "" || strings.TrimSpace(res.TranslatedAbstract) == "" {
		return Result{}, ErrEmptyTranslation
	}

	log.Info("translate: completed",
		slog.String("title", logging.Preview(title, 100)),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// geminiModels is the subset of *genai.Models used here.
type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type geminiGenerator struct {
	models geminiModels
	model  string
}

// GenerateJSON implements jsonGenerator.
func (g *geminiGenerator) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(temperature),
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("empty response")
	}
	return text, nil
}
