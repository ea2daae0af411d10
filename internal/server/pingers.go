package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// HTTPPinger checks a model or embedding host with a plain GET. Any answer
// below 500 counts as reachable, so unauthenticated checks against
// authenticated APIs still pass and no tokens are spent.
type HTTPPinger struct {
	// name identifies the dependency in readiness responses.
	name string
	// url is the endpoint requested.
	url string
	// client has no timeout of its own; the check context bounds it.
	client *http.Client
}

// NewHTTPPinger constructs an HTTPPinger for url.
func NewHTTPPinger(name, url string) *HTTPPinger {
	return &HTTPPinger{name: name, url: url, client: &http.Client{}}
}

// Name returns the dependency label used in readiness responses.
func (p *HTTPPinger) Name() string { return p.name }

// Target returns the URL this pinger requests.
func (p *HTTPPinger) Target() string { return p.url }

// Ping issues GET url and fails on transport errors or 5xx answers.
func (p *HTTPPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build reachability request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("reach %s: %w", p.url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("reach %s: HTTP %d", p.url, resp.StatusCode)
	}
	return nil
}

// ReachabilityURL returns the endpoint checked for a model or embedding backend.
// Backends without a cheap unauthenticated endpoint fall back to their API
// root. An empty string means the backend cannot be checked.
func ReachabilityURL(backend, baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	switch backend {
	case "ollama":
		if base == "" {
			base = "http://localhost:11434"
		}
		return base + "/api/tags"
	case "gemini":
		return "https://generativelanguage.googleapis.com/"
	case "openai":
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		return base + "/models"
	case "azure", "ark":
		if base == "" {
			return ""
		}
		return base + "/"
	}
	return ""
}
