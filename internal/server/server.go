// Package server implements the HTTP API for pmrag: question answering over
// saved PubMed articles, the article library, translation and PubMed search.
// The server is started by the `pmrag serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/pmrag-go/internal/logging"
	"github.com/54b3r/pmrag-go/internal/pubmed"
	"github.com/54b3r/pmrag-go/internal/question"
	"github.com/54b3r/pmrag-go/internal/rag"
)

// maxBodyBytes caps request bodies; abstracts are capped well below this.
const maxBodyBytes = 1 << 20

// New constructs a Server from the provided services and config.
func New(deps Deps, cfg *Config) (*Server, error) {
	if deps.Answerer == nil {
		return nil, fmt.Errorf("server: answerer must not be nil")
	}
	if deps.Saver == nil {
		return nil, fmt.Errorf("server: article saver must not be nil")
	}
	if deps.Library == nil {
		return nil, fmt.Errorf("server: article library must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.AskTimeout == 0 {
		cfg.AskTimeout = 2 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must outlast an ask with all its retries.
		cfg.WriteTimeout = cfg.AskTimeout + 30*time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(cfg.MetricsRegistry)
	}

	s := &Server{
		deps:    deps,
		cfg:     cfg,
		log:     log,
		pingers: cfg.Pingers,
		metrics: metrics,
	}

	auth := newAPIKeyAuth(cfg.APIKey, metrics.authRejectedTotal)
	if !auth.enabled() {
		log.Warn("auth: PMRAG_API_KEY is not set, API authentication is disabled")
	}

	rl, stop := newRateLimiter(cfg.RateLimits, metrics.rateLimitedTotal)
	s.stopRL = stop
	for route, b := range rl.budgets {
		log.Debug("rate budget", slog.String("route", route), slog.Float64("rps", b.RPS), slog.Int("burst", b.Burst))
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.routes(auth, rl),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// routes builds the handler tree. Health, readiness and metrics stay open.
// Every other /api route requires the API key, and the routes that call a
// model or write data each draw from their own per-client budget.
func (s *Server) routes(auth *apiKeyAuth, rl *rateLimiter) http.Handler {
	protect := func(h http.HandlerFunc) http.Handler {
		return auth.require(h)
	}
	limited := func(route string, h http.HandlerFunc) http.Handler {
		return auth.require(rl.limit(route, h))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/ask", s.instrument("ask", limited(routeAsk, s.handleAsk)))
	mux.Handle("POST /api/articles", s.instrument("articles_save", limited(routeSave, s.handleSaveArticle)))
	mux.Handle("GET /api/articles", s.instrument("articles_list", protect(s.handleListArticles)))
	mux.Handle("GET /api/articles/ids", s.instrument("articles_ids", protect(s.handleArticleIDs)))
	mux.Handle("POST /api/translate", s.instrument("translate", limited(routeTranslate, s.handleTranslate)))
	mux.Handle("GET /api/pubmed/search", s.instrument("pubmed_search", protect(s.handleSearch)))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	return requestLogger(s.log, corsMiddleware(mux))
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// decodeBody decodes a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequestBody, err)
	}
	return nil
}

// handleAsk handles POST /api/ask. The body is {"question": "..."}; the
// response is the full answer result or one error object.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.metrics.askInFlight.Inc()
	defer s.metrics.askInFlight.Dec()

	var req askRequest
	if err := decodeBody(w, r, &req); err != nil {
		// An unreadable body is answered like a missing question.
		s.metrics.observeAsk(askOutcomeInvalid, time.Since(start))
		writeError(w, r, opAsk, question.ErrEmpty)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.AskTimeout)
	defer cancel()

	res, err := s.deps.Answerer.Answer(ctx, req.Question)
	if err != nil {
		outcome := askOutcomeError
		if errors.Is(err, question.ErrEmpty) || errors.Is(err, question.ErrTooLong) {
			outcome = askOutcomeInvalid
		}
		s.metrics.observeAsk(outcome, time.Since(start))
		writeError(w, r, opAsk, err)
		return
	}

	s.metrics.observeAsk(string(res.Outcome), time.Since(start))
	writeJSON(w, r, http.StatusOK, res)
}

// handleSaveArticle handles POST /api/articles. The body is an article;
// the article is embedded and stored.
func (s *Server) handleSaveArticle(w http.ResponseWriter, r *http.Request) {
	var a rag.Article
	if err := decodeBody(w, r, &a); err != nil {
		writeError(w, r, opSave, err)
		return
	}

	receipt, err := s.deps.Saver.Save(r.Context(), a)
	if err != nil {
		writeError(w, r, opSave, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, saveResponse{
		Message:            "Article saved successfully with embedding.",
		ArticleID:          receipt.ArticleID,
		EmbeddingDimension: receipt.EmbeddingDimension,
	})
}

// handleListArticles handles GET /api/articles, newest first.
func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	articles, err := s.deps.Library.List(r.Context())
	if err != nil {
		writeError(w, r, opList, err)
		return
	}
	if articles == nil {
		articles = []rag.Article{}
	}
	writeJSON(w, r, http.StatusOK, articles)
}

// handleArticleIDs handles GET /api/articles/ids.
func (s *Server) handleArticleIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := s.deps.Library.IDs(r.Context())
	if err != nil {
		writeError(w, r, opList, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, r, http.StatusOK, idsResponse{IDs: ids})
}

// handleTranslate handles POST /api/translate.
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Translator == nil {
		writeError(w, r, opTranslate, errNotConfigured)
		return
	}
	var req translateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, opTranslate, err)
		return
	}

	res, err := s.deps.Translator.Translate(r.Context(), req.Title, req.Abstract)
	if err != nil {
		writeError(w, r, opTranslate, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleSearch handles GET /api/pubmed/search?term=&sort=.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Searcher == nil {
		writeError(w, r, opSearch, errNotConfigured)
		return
	}
	q := r.URL.Query()
	articles, err := s.deps.Searcher.Search(r.Context(), q.Get("term"), pubmed.ParseSort(q.Get("sort")))
	if err != nil {
		writeError(w, r, opSearch, err)
		return
	}
	writeJSON(w, r, http.StatusOK, articles)
}
