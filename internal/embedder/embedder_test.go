package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/genai"
)

func Test_OllamaEmbedder_Embed(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %s, want /api/embed", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" || len(req.Input) != 2 {
			t.Errorf("unexpected request %+v", req)
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{1, 2}, {3, 4}}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL + "/", Model: "nomic-embed-text"})
	got, err := e.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(got) != 2 || got[1][0] != 3 {
		t.Errorf("unexpected embeddings %v", got)
	}
}

func Test_OllamaEmbedder_HTTPError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "missing"})
	_, err := e.Embed(context.Background(), []string{"a"})
	if err == nil || !strings.Contains(err.Error(), "HTTP 404") {
		t.Fatalf("want HTTP 404 error, got %v", err)
	}
}

func Test_OllamaEmbedder_CountMismatch(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{1}}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "m"})
	if _, err := e.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected count mismatch error")
	}
}

func Test_OpenAIEmbedder_Embed(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			t.Errorf("path = %s, want .../embeddings", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		// Out of order on purpose.
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small","data":[
			{"object":"embedding","index":1,"embedding":[0.3,0.4]},
			{"object":"embedding","index":0,"embedding":[0.1,0.2]}
		]}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL + "/v1", APIKey: "sk-test", Model: "text-embedding-3-small"})
	got, err := e.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(got) != 2 || got[0][0] != float32(0.1) || got[1][0] != float32(0.3) {
		t.Errorf("embeddings not ordered by index: %v", got)
	}
}

func Test_OpenAIEmbedder_APIError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	if _, err := e.Embed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error for 429")
	}
}

type fakeGeminiModels struct {
	resp     *genai.EmbedContentResponse
	err      error
	model    string
	contents []*genai.Content
	cfg      *genai.EmbedContentConfig
}

func (f *fakeGeminiModels) EmbedContent(_ context.Context, model string, contents []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.model, f.contents, f.cfg = model, contents, cfg
	return f.resp, f.err
}

func Test_GeminiEmbedder_Embed(t *testing.T) {
	t.Parallel()
	fm := &fakeGeminiModels{resp: &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{
		{Values: []float32{0.5, 0.25}},
	}}}
	e := newGeminiEmbedder(fm, &GeminiConfig{})

	got, err := e.Embed(context.Background(), []string{"Title: x\n\nAbstract: y"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if fm.model != defaultGeminiModel {
		t.Errorf("model = %q, want %q", fm.model, defaultGeminiModel)
	}
	if fm.cfg != nil {
		t.Errorf("no dimensions configured, want nil config, got %+v", fm.cfg)
	}
	if len(fm.contents) != 1 || fm.contents[0].Parts[0].Text != "Title: x\n\nAbstract: y" {
		t.Errorf("unexpected contents %+v", fm.contents)
	}
	if len(got) != 1 || got[0][1] != 0.25 {
		t.Errorf("unexpected embeddings %v", got)
	}
}

func Test_GeminiEmbedder_Errors(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		fm   *fakeGeminiModels
	}{
		{"api error", &fakeGeminiModels{err: errors.New("quota")}},
		{"count mismatch", &fakeGeminiModels{resp: &genai.EmbedContentResponse{}}},
		{"empty vector", &fakeGeminiModels{resp: &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{{}}}}},
	}
	for _, tc := range cases {
		e := newGeminiEmbedder(tc.fm, &GeminiConfig{Model: "m", Dimensions: 256})
		if _, err := e.Embed(context.Background(), []string{"a"}); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
		if tc.fm.cfg == nil || *tc.fm.cfg.OutputDimensionality != 256 {
			t.Errorf("%s: dimensions not forwarded", tc.name)
		}
	}
}

func Test_DefaultDimensions(t *testing.T) {
	t.Setenv("EMBEDDING_DIMENSIONS", "")
	if got := DefaultDimensions("gemini"); got != 768 {
		t.Errorf("gemini = %d, want 768", got)
	}
	if got := DefaultDimensions("openai"); got != 1536 {
		t.Errorf("openai = %d, want 1536", got)
	}
	t.Setenv("EMBEDDING_DIMENSIONS", "384")
	if got := DefaultDimensions("gemini"); got != 384 {
		t.Errorf("override = %d, want 384", got)
	}
}

func Test_NewFromEnv_Errors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"gemini without key", map[string]string{"EMBEDDING_PROVIDER": "gemini"}, "GEMINI_API_KEY"},
		{"openai without key", map[string]string{"EMBEDDING_PROVIDER": "openai"}, "OPENAI_API_KEY"},
		{"azure without endpoint", map[string]string{"EMBEDDING_PROVIDER": "azure", "AZURE_OPENAI_API_KEY": "k"}, "AZURE_OPENAI_ENDPOINT"},
		{"unknown", map[string]string{"EMBEDDING_PROVIDER": "bedrock"}, "unknown backend"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, k := range []string{"EMBEDDING_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY",
				"AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT", "EMBEDDING_ENDPOINT", "MODEL_PROVIDER"} {
				t.Setenv(k, "")
			}
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := NewFromEnv(context.Background())
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("want error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func Test_NewFromEnv_Ollama(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "ollama")
	t.Setenv("EMBEDDING_ENDPOINT", "")
	t.Setenv("OLLAMA_HOST", "http://ollama:11434")
	t.Setenv("EMBEDDING_MODEL", "")

	e, err := NewFromEnv(context.Background())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	oe, ok := e.(*OllamaEmbedder)
	if !ok {
		t.Fatalf("want *OllamaEmbedder, got %T", e)
	}
	if oe.host != "http://ollama:11434" || oe.model != defaultOllamaModel {
		t.Errorf("unexpected config host=%s model=%s", oe.host, oe.model)
	}
}

func Test_Validate(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	t.Setenv("EMBEDDING_PROVIDER", "ollama")
	t.Setenv("EMBEDDING_MODEL", "llama3:8b")
	t.Setenv("EMBEDDING_DIMENSIONS", "")
	if err := Validate(log, 1024); err != nil {
		t.Fatalf("validate: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "looks like a chat model") {
		t.Errorf("missing chat model warning in %q", out)
	}
	if !strings.Contains(out, "dimension differs") {
		t.Errorf("missing dimension warning in %q", out)
	}

	t.Setenv("EMBEDDING_PROVIDER", "gemini")
	t.Setenv("EMBEDDING_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	if err := Validate(log, 768); err == nil {
		t.Error("expected error for gemini without key")
	}
}

func Test_LooksLikeChatModel(t *testing.T) {
	t.Parallel()
	for model, want := range map[string]bool{
		"text-embedding-004":     false,
		"nomic-embed-text":       false,
		"gemini-2.0-flash":       true,
		"gpt-4o":                 true,
		"text-embedding-3-small": false,
	} {
		if got := looksLikeChatModel(model); got != want {
			t.Errorf("looksLikeChatModel(%q) = %v, want %v", model, got, want)
		}
	}
}

func Test_ModelName(t *testing.T) {
	t.Setenv("EMBEDDING_MODEL", "")
	tests := map[string]string{
		"gemini": defaultGeminiModel,
		"ollama": defaultOllamaModel,
		"openai": defaultOpenAIModel,
		"azure":  defaultOpenAIModel,
	}
	for backend, want := range tests {
		if got := ModelName(backend); got != want {
			t.Errorf("ModelName(%q) = %q, want %q", backend, got, want)
		}
	}

	t.Setenv("EMBEDDING_MODEL", "mxbai-embed-large")
	if got := ModelName("ollama"); got != "mxbai-embed-large" {
		t.Errorf("ModelName with EMBEDDING_MODEL = %q", got)
	}
}
