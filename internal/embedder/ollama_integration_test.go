//go:build integration

package embedder

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/54b3r/pmrag-go/internal/ingestion"
	"github.com/54b3r/pmrag-go/internal/rag"
)

// TestOllamaEmbedder_RanksRelevantAbstract embeds two saved-article texts and
// a question against a local Ollama and checks that the matching abstract
// scores higher, and that the vector size fits the store schema.
//
//	ollama pull nomic-embed-text
//	go test -tags=integration -run Ollama ./internal/embedder/
//
// OLLAMA_HOST and EMBEDDING_MODEL are honoured.
func TestOllamaEmbedder_RanksRelevantAbstract(t *testing.T) {
	host := getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
	model := ModelName("ollama")
	emb := NewOllamaEmbedder(&OllamaConfig{Host: host, Model: model})

	articles := []rag.Article{
		{
			ID:       "31000001",
			Title:    "Aerobic exercise and glycaemic control in type 2 diabetes",
			Abstract: "Twelve weeks of supervised aerobic training lowered HbA1c by 0.6% compared with usual care.",
		},
		{
			ID:       "31000002",
			Title:    "Sleep duration and academic performance in adolescents",
			Abstract: "Students sleeping under seven hours had lower grades across two school years.",
		},
	}
	texts := []string{
		"Does exercise improve blood sugar in diabetic patients?",
		ingestion.EmbeddingText(articles[0]),
		ingestion.EmbeddingText(articles[1]),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	vecs, err := emb.Embed(ctx, texts)
	if err != nil {
		t.Fatalf("Embed: %v\n\nIs Ollama running with %q pulled?", err, model)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(vecs))
	}

	want := DefaultDimensions("ollama")
	for i, v := range vecs {
		if len(v) != want {
			t.Errorf("vector %d: dim=%d, store expects %d (set EMBEDDING_DIMENSIONS)", i, len(v), want)
		}
	}

	relevant := cosine(vecs[0], vecs[1])
	unrelated := cosine(vecs[0], vecs[2])
	t.Logf("model=%s relevant=%.3f unrelated=%.3f", model, relevant, unrelated)
	if relevant <= unrelated {
		t.Errorf("expected the diabetes abstract to score higher: %.3f <= %.3f", relevant, unrelated)
	}
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
