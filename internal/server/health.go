package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/54b3r/pmrag-go/internal/logging"
)

// checkTimeout bounds each dependency check of GET /api/ready.
const checkTimeout = 5 * time.Second

// Pinger is a dependency that can report its own reachability. The article
// stores and [HTTPPinger] implement it. Implementations must be safe for
// concurrent use.
type Pinger interface {
	// Ping returns nil when the dependency is reachable.
	Ping(ctx context.Context) error
	// Name labels the dependency in readiness responses, e.g. "sqlite" or
	// "embedding".
	Name() string
}

// targeter is implemented by pingers that can say what they contact.
type targeter interface {
	Target() string
}

// Components names the backends wired into the server. They are reported by
// GET /api/health so a deployment can be identified without credentials.
type Components struct {
	// Store is the article store backend: sqlite, postgres or qdrant.
	Store string `json:"store,omitempty"`
	// Model is "<provider>/<model>" of the answer generator.
	Model string `json:"model,omitempty"`
	// Embedding is "<provider>/<model>" of the embedder.
	Embedding string `json:"embedding,omitempty"`
}

// healthResponse is the JSON body of GET /api/health.
type healthResponse struct {
	Status string `json:"status"`
	Components
}

// readyCheck is the outcome of one dependency check.
type readyCheck struct {
	Name      string `json:"name"`
	Target    string `json:"target,omitempty"`
	OK        bool   `json:"ok"`
	LatencyMS int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

// readyResponse is the JSON body of GET /api/ready.
type readyResponse struct {
	// Ready is true only when every check passed.
	Ready bool `json:"ready"`
	// Store repeats the configured store backend.
	Store string `json:"store,omitempty"`
	// Checks are in the order the pingers were registered.
	Checks []readyCheck `json:"checks"`
}

// handleHealth handles GET /api/health. It is a liveness check and never
// contacts a dependency.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, healthResponse{Status: "ok", Components: s.cfg.Components})
}

// handleReady handles GET /api/ready. All pingers run concurrently, each
// under checkTimeout; the answer is 200 when all pass and 503 otherwise.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	checks := make([]readyCheck, len(s.pingers))
	g, ctx := errgroup.WithContext(r.Context())
	for i, p := range s.pingers {
		g.Go(func() error {
			checks[i] = runCheck(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	resp := readyResponse{Ready: true, Store: s.cfg.Components.Store, Checks: checks}
	for _, c := range checks {
		if !c.OK {
			resp.Ready = false
			log.Warn("readiness check failed",
				slog.String("dependency", c.Name),
				slog.String("error", c.Error),
			)
		}
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, resp)
}

func runCheck(ctx context.Context, p Pinger) readyCheck {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := p.Ping(ctx)
	c := readyCheck{Name: p.Name(), OK: err == nil, LatencyMS: time.Since(start).Milliseconds()}
	if t, ok := p.(targeter); ok {
		c.Target = t.Target()
	}
	if err != nil {
		c.Error = err.Error()
	}
	return c
}
