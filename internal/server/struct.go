package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/pmrag-go/internal/ingestion"
	"github.com/54b3r/pmrag-go/internal/pipeline"
	"github.com/54b3r/pmrag-go/internal/pubmed"
	"github.com/54b3r/pmrag-go/internal/rag"
	"github.com/54b3r/pmrag-go/internal/translate"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// AskTimeout bounds one POST /api/ask request, backoff sleeps included.
	// Defaults to 2 minutes.
	AskTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers are the dependency checks run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimits are the per-client budgets of the ask, save and translate
	// routes. Zero fields keep the built-in budgets.
	RateLimits RateBudgets
	// Components names the wired backends for GET /api/health.
	Components Components
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Metrics receives request and pipeline metrics. If nil, a fresh set is
	// registered against MetricsRegistry.
	Metrics *Metrics
	// MetricsRegistry is where metrics are registered when Metrics is nil.
	// Defaults to prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// Deps are the application services the handlers call. Answerer, Saver and
// Library are required; Translator and Searcher are optional and their
// routes answer 503 when absent.
type Deps struct {
	Answerer   answerer
	Saver      articleSaver
	Library    rag.ArticleReader
	Translator translator
	Searcher   searcher
}

// answerer runs the question-answering pipeline. *pipeline.Pipeline
// satisfies it; tests inject a fake.
type answerer interface {
	Answer(ctx context.Context, q string) (*pipeline.Result, error)
}

// articleSaver embeds and stores one article. *ingestion.Pipeline satisfies it.
type articleSaver interface {
	Save(ctx context.Context, a rag.Article) (*ingestion.Receipt, error)
}

// translator renders an article into Korean. *translate.Service satisfies it.
type translator interface {
	Translate(ctx context.Context, title, abstract string) (translate.Result, error)
}

// searcher queries PubMed. *pubmed.Client satisfies it.
type searcher interface {
	Search(ctx context.Context, term string, sort pubmed.Sort) ([]rag.Article, error)
}

// Server is the HTTP server exposing the answering pipeline, the article
// library, translation and PubMed search.
type Server struct {
	// deps are the services handlers delegate to.
	deps Deps
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers are the dependency checks for GET /api/ready.
	pingers []Pinger
	// metrics holds all Prometheus instruments owned by the server.
	metrics *Metrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Question is the user's natural language question.
	Question string `json:"question"`
}

// saveResponse is the JSON body returned by POST /api/articles on success.
type saveResponse struct {
	Message            string `json:"message"`
	ArticleID          string `json:"articleId"`
	EmbeddingDimension int    `json:"embeddingDimension"`
}

// idsResponse is the JSON body returned by GET /api/articles/ids.
type idsResponse struct {
	IDs []string `json:"ids"`
}

// translateRequest is the JSON body for POST /api/translate.
type translateRequest struct {
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
}
