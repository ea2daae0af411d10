package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/54b3r/pmrag-go/internal/answer"
	"github.com/54b3r/pmrag-go/internal/embedder"
	"github.com/54b3r/pmrag-go/internal/evidence"
	"github.com/54b3r/pmrag-go/internal/llm"
	"github.com/54b3r/pmrag-go/internal/pipeline"
	"github.com/54b3r/pmrag-go/internal/provider"
	"github.com/54b3r/pmrag-go/internal/pubmed"
	"github.com/54b3r/pmrag-go/internal/rag"
	"github.com/54b3r/pmrag-go/internal/relevance"
	"github.com/54b3r/pmrag-go/internal/server"
	"github.com/54b3r/pmrag-go/internal/store"
	"github.com/54b3r/pmrag-go/internal/translate"
)

// library bundles the embedder and the article store every data command
// needs. close releases the store.
type library struct {
	embedder  rag.Embedder
	store     rag.ArticleStore
	dimension int
}

// openLibrary validates the embedding configuration, builds the embedder and
// opens the configured store sized for its vectors.
func openLibrary(ctx context.Context, log *slog.Logger) (*library, error) {
	backend := embedder.Backend()
	dim := embedder.DefaultDimensions(backend)

	if err := embedder.Validate(log, dim); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised", slog.String("provider", backend), slog.Int("dimension", dim))

	st, err := store.Open(ctx, store.ConfigFromEnv(dim))
	if err != nil {
		return nil, fmt.Errorf("failed to open article store: %w", err)
	}
	log.Info("article store ready", slog.String("backend", st.Name()))

	return &library{embedder: emb, store: st, dimension: dim}, nil
}

func (l *library) close(log *slog.Logger) {
	if err := l.store.Close(); err != nil {
		log.Warn("article store close failed", slog.Any("error", err))
	}
}

// buildChatClient constructs the configured chat model and wraps it in the
// llm.Client used by relevance scoring and answer generation.
func buildChatClient(ctx context.Context, log *slog.Logger) (*llm.ChatModelClient, *provider.Config, error) {
	chatModel, cfg, err := provider.NewFromEnv(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	client, err := llm.NewChatModelClient(chatModel, cfg.ModelName())
	if err != nil {
		return nil, nil, err
	}
	if !cfg.AcceptsTemperature() {
		client = client.WithoutTemperature()
		log.Info("model does not accept temperature, omitting it", slog.String("model", cfg.ModelName()))
	}
	log.Info("provider initialised", slog.String("provider", string(cfg.Backend)), slog.String("model", cfg.ModelName()))
	return client, cfg, nil
}

// buildPipeline wires the answering pipeline over lib. onAttempt, when not
// nil, observes every generation call.
func buildPipeline(client llm.Client, lib *library, onAttempt func(string)) (*pipeline.Pipeline, error) {
	retriever, err := rag.NewRetriever(lib.store)
	if err != nil {
		return nil, err
	}
	evaluator, err := relevance.NewEvaluator(client)
	if err != nil {
		return nil, err
	}
	assembler, err := evidence.NewAssembler(retriever)
	if err != nil {
		return nil, err
	}
	generator, err := answer.NewGenerator(client, answer.Config{OnAttempt: onAttempt})
	if err != nil {
		return nil, err
	}
	return pipeline.New(pipeline.Config{
		Embedder:  lib.embedder,
		Retriever: retriever,
		Scorer:    evaluator,
		Assembler: assembler,
		Generator: generator,
	})
}

// buildTranslator returns the Gemini translator, or nil when no Gemini key
// is configured.
func buildTranslator(ctx context.Context, log *slog.Logger) *translate.Service {
	key := getEnvOrDefault("GEMINI_API_KEY", os.Getenv("GOOGLE_API_KEY"))
	if key == "" {
		log.Info("translation disabled", slog.String("reason", "GEMINI_API_KEY not set"))
		return nil
	}
	svc, err := translate.NewGemini(ctx, key, os.Getenv("TRANSLATE_MODEL"))
	if err != nil {
		log.Warn("translation disabled", slog.Any("error", err))
		return nil
	}
	return svc
}

// buildPubMed returns an E-utilities client configured from NCBI_* variables.
func buildPubMed() *pubmed.Client {
	return pubmed.NewClient(pubmed.Config{
		APIKey: os.Getenv("NCBI_API_KEY"),
		Tool:   os.Getenv("NCBI_TOOL"),
		Email:  os.Getenv("NCBI_EMAIL"),
	})
}

// buildPingers returns the readiness checks: the article store, the chat
// model host and the embedding host when they can be reached over HTTP.
func buildPingers(st rag.ArticleStore, cfg *provider.Config) []server.Pinger {
	pingers := []server.Pinger{st}

	if url := server.ReachabilityURL(string(cfg.Backend), modelBaseURL(cfg)); url != "" {
		pingers = append(pingers, server.NewHTTPPinger("model", url))
	}

	embBackend := embedder.Backend()
	embBase := os.Getenv("EMBEDDING_ENDPOINT")
	if embBase == "" && embBackend == string(cfg.Backend) {
		embBase = modelBaseURL(cfg)
	}
	if url := server.ReachabilityURL(embBackend, embBase); url != "" {
		pingers = append(pingers, server.NewHTTPPinger("embedding", url))
	}
	return pingers
}

// components names the store, chat model and embedder for GET /api/health.
func components(st rag.ArticleStore, cfg *provider.Config) server.Components {
	emb := embedder.Backend()
	return server.Components{
		Store:     st.Name(),
		Model:     string(cfg.Backend) + "/" + cfg.ModelName(),
		Embedding: emb + "/" + embedder.ModelName(emb),
	}
}

// rateBudgetsFromEnv reads the per-route rate limits. Unset or unparsable
// values leave the server's built-in budgets in place.
func rateBudgetsFromEnv() server.RateBudgets {
	rps := func(key string) float64 {
		v, _ := strconv.ParseFloat(os.Getenv(key), 64)
		return v
	}
	burst, _ := strconv.Atoi(os.Getenv("PMRAG_RATE_LIMIT_BURST"))
	return server.RateBudgets{
		Default:   server.Budget{RPS: rps("PMRAG_RATE_LIMIT_RPS"), Burst: burst},
		Ask:       server.Budget{RPS: rps("PMRAG_ASK_RPS")},
		Save:      server.Budget{RPS: rps("PMRAG_SAVE_RPS")},
		Translate: server.Budget{RPS: rps("PMRAG_TRANSLATE_RPS")},
	}
}

func modelBaseURL(cfg *provider.Config) string {
	switch cfg.Backend {
	case provider.BackendOllama:
		return cfg.Ollama.Host
	case provider.BackendOpenAI:
		return cfg.OpenAI.BaseURL
	case provider.BackendAzure:
		return cfg.AzureOpenAI.Endpoint
	case provider.BackendArk:
		return cfg.Ark.BaseURL
	}
	return ""
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
