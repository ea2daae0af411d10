package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/pmrag-go/internal/ingestion"
	"github.com/54b3r/pmrag-go/internal/logging"
	"github.com/54b3r/pmrag-go/internal/server"
	"github.com/54b3r/pmrag-go/internal/tracing"
)

// NewServeCmd constructs the `pmrag serve` command, which starts the HTTP
// API used by the browser client.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the pmrag HTTP API",
		Long: `Start the pmrag HTTP server.

The server exposes question answering (POST /api/ask), the saved article
library (GET/POST /api/articles, GET /api/articles/ids), Korean translation
(POST /api/translate) and PubMed search (GET /api/pubmed/search), plus
/api/health, /api/ready and /metrics.

Examples:
  pmrag serve
  pmrag serve --port 9090
  STORE_BACKEND=sqlite MODEL_PROVIDER=ollama pmrag serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.FromContext(ctx)

			flush, ok := tracing.Setup()
			defer flush()
			if ok {
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			lib, err := openLibrary(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer lib.close(log)

			client, providerCfg, err := buildChatClient(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			metrics := server.NewMetrics(prometheus.DefaultRegisterer)
			answerer, err := buildPipeline(client, lib, metrics.GenerationAttempt)
			if err != nil {
				return fmt.Errorf("serve: failed to build pipeline: %w", err)
			}

			saver, err := ingestion.NewPipeline(lib.embedder, lib.store)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			deps := server.Deps{
				Answerer: answerer,
				Saver:    saver,
				Library:  lib.store,
				Searcher: buildPubMed(),
			}
			// A nil *translate.Service must stay a nil interface.
			if tr := buildTranslator(ctx, log); tr != nil {
				deps.Translator = tr
			}

			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("PMRAG_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				if p, err := strconv.Atoi(os.Getenv("PMRAG_PORT")); err == nil {
					port = p
				}
			}
			srv, err := server.New(deps, &server.Config{
				Host:       host,
				Port:       port,
				Logger:     log,
				Pingers:    buildPingers(lib.store, providerCfg),
				Components: components(lib.store, providerCfg),
				APIKey:     os.Getenv("PMRAG_API_KEY"),
				RateLimits: rateBudgetsFromEnv(),
				Metrics:    metrics,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
