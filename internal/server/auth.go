package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/pmrag-go/internal/logging"
)

// Reasons a request fails authentication, used as the metric label.
const (
	authMissing = "missing"
	authInvalid = "invalid"
)

// apiKeyAuth guards the /api routes with a shared Bearer key. A zero key
// disables it.
type apiKeyAuth struct {
	key []byte
	// rejected counts 401s by reason; nil disables counting.
	rejected *prometheus.CounterVec
}

func newAPIKeyAuth(key string, rejected *prometheus.CounterVec) *apiKeyAuth {
	return &apiKeyAuth{key: []byte(key), rejected: rejected}
}

// enabled reports whether a key is configured.
func (a *apiKeyAuth) enabled() bool { return len(a.key) > 0 }

// require wraps next so it only runs for requests carrying
// "Authorization: Bearer <key>". The presented token is never logged.
func (a *apiKeyAuth) require(next http.Handler) http.Handler {
	if !a.enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		switch {
		case token == "":
			a.reject(w, r, authMissing, `Bearer realm="pmrag"`, "An API key is required.")
		case subtle.ConstantTimeCompare([]byte(token), a.key) != 1:
			a.reject(w, r, authInvalid, `Bearer realm="pmrag", error="invalid_token"`, "The API key is not valid.")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func (a *apiKeyAuth) reject(w http.ResponseWriter, r *http.Request, reason, challenge, msg string) {
	logging.FromContext(r.Context()).Warn("auth: request rejected", slog.String("reason", reason))
	if a.rejected != nil {
		a.rejected.WithLabelValues(reason).Inc()
	}
	w.Header().Set("WWW-Authenticate", challenge)
	writeJSON(w, r, http.StatusUnauthorized, errorBody{Error: msg, Code: codeUnauthorized})
}

// bearerToken returns the token of an "Authorization: Bearer <token>"
// header, or "" when the header is absent or uses another scheme.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
