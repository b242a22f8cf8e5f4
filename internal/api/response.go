package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/uovfts/faculty-assistant/internal/log"
)

// Stable error kinds returned in the "error" field. Clients branch on these,
// so they are part of the API contract.
const (
	errInvalidRequest        = "invalid_request"
	errUnknownSession        = "unknown_session"
	errUnknownMessage        = "unknown_message"
	errEmbeddingFailed       = "embedding_failed"
	errGenerationUnavailable = "generation_unavailable"
	errRateLimited           = "rate_limited"
	errInternal              = "internal_error"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes a JSON response with the given status code. The body is
// encoded into a buffer first, so an encoding failure can still produce a
// clean 500 instead of a half-written response.
func writeJSON(w http.ResponseWriter, status int, data any, logger log.Logger) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.Debug("failed to write response", "error", err)
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, kind, message string, logger log.Logger) {
	writeJSON(w, status, ErrorResponse{Error: kind, Message: message}, logger)
}
