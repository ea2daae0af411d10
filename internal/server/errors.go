package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/54b3r/pmrag-go/internal/ingestion"
	"github.com/54b3r/pmrag-go/internal/logging"
	"github.com/54b3r/pmrag-go/internal/question"
	"github.com/54b3r/pmrag-go/internal/rag"
	"github.com/54b3r/pmrag-go/internal/translate"
)

// Error codes carried in the "code" field of error bodies.
const (
	codeInternal         = "INTERNAL_ERROR"
	codeDuplicate        = "DUPLICATE_ENTRY"
	codeMissingField     = "MISSING_FIELD"
	codeEmbeddingService = "EMBEDDING_SERVICE_ERROR"
	codeUpstream         = "UPSTREAM_ERROR"
	codeUnavailable      = "NOT_CONFIGURED"
	codeUnauthorized     = "UNAUTHORIZED"
	codeRateLimited      = "RATE_LIMITED"
)

// errorBody is the single error shape returned by every JSON endpoint.
type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// operation names the endpoint whose failure is being reported, selecting
// the generic 500 message.
type operation int

const (
	opAsk operation = iota
	opSave
	opList
	opTranslate
	opSearch
)

// internalMessages are the client-facing messages for unexpected failures.
var internalMessages = map[operation]string{
	opAsk:       "Failed to process your question.",
	opSave:      "Failed to save article.",
	opList:      "Failed to load saved articles.",
	opTranslate: "Failed to translate content.",
	opSearch:    "Failed to search PubMed.",
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}

// writeError maps err onto an HTTP status and error body. It is the only
// place that translates package sentinels into client-facing messages.
func writeError(w http.ResponseWriter, r *http.Request, op operation, err error) {
	status, body := classifyError(op, err)
	log := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.Int("status", status), slog.Any("error", err))
	} else {
		log.Info("request rejected", slog.Int("status", status), slog.Any("error", err))
	}
	writeJSON(w, r, status, body)
}

func classifyError(op operation, err error) (int, errorBody) {
	switch {
	case errors.Is(err, question.ErrEmpty):
		return http.StatusBadRequest, errorBody{Error: "Valid question is required"}
	case errors.Is(err, question.ErrTooLong):
		return http.StatusBadRequest, errorBody{Error: "Question is too long (max 1000 characters)"}
	case errors.Is(err, ingestion.ErrInvalidArticle):
		return http.StatusBadRequest, errorBody{Error: "Article ID, title, and abstract are required"}
	case errors.Is(err, ingestion.ErrTextTooLong):
		return http.StatusBadRequest, errorBody{Error: "Text content too long for embedding (max 20,000 characters)"}
	case errors.Is(err, translate.ErrInvalidInput):
		return http.StatusBadRequest, errorBody{Error: "Title and abstract are required"}
	case errors.Is(err, errBadRequestBody):
		return http.StatusBadRequest, errorBody{Error: "Invalid request body", Details: err.Error()}
	case errors.Is(err, errNotConfigured):
		return http.StatusServiceUnavailable, errorBody{Error: "This feature is not configured on the server.", Code: codeUnavailable}
	}

	if op == opSave {
		switch {
		case errors.Is(err, rag.ErrDuplicateArticle):
			return http.StatusConflict, errorBody{Error: "This article has already been saved.", Code: codeDuplicate}
		case errors.Is(err, rag.ErrMissingField):
			return http.StatusBadRequest, errorBody{Error: "Required field is missing.", Code: codeMissingField, Details: err.Error()}
		case errors.Is(err, rag.ErrEmbeddingFailed):
			return http.StatusServiceUnavailable, errorBody{Error: "Embedding service temporarily unavailable.", Code: codeEmbeddingService}
		}
	}
	if op == opSearch {
		return http.StatusBadGateway, errorBody{Error: internalMessages[op], Code: codeUpstream, Details: err.Error()}
	}
	return http.StatusInternalServerError, errorBody{Error: internalMessages[op], Code: codeInternal, Details: err.Error()}
}

var (
	// errBadRequestBody marks an undecodable JSON body.
	errBadRequestBody = errors.New("server: invalid request body")
	// errNotConfigured marks a route whose backing service was not wired.
	errNotConfigured = errors.New("server: feature not configured")
)
