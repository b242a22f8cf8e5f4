package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/uovfts/faculty-assistant/internal/log"
	"github.com/uovfts/faculty-assistant/internal/store"
)

// History pagination bounds.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// HistoryStore lists a session's messages. Implemented by *store.Store.
type HistoryStore interface {
	GetMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]store.Message, error)
}

// HistoryHandler handles GET /api/v1/sessions/{id}/messages.
type HistoryHandler struct {
	store  HistoryStore
	logger log.Logger
}

// NewHistoryHandler creates a history handler.
func NewHistoryHandler(store HistoryStore, logger log.Logger) *HistoryHandler {
	return &HistoryHandler{store: store, logger: logger}
}

// RegisterRoutes registers history routes on the given mux.
func (h *HistoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/sessions/{id}/messages", h.list)
}

func (h *HistoryHandler) list(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errInvalidRequest, "session id must be a UUID", h.logger)
		return
	}

	limit := parseIntParam(r, "limit", DefaultHistoryLimit, 1, MaxHistoryLimit)

	messages, err := h.store.GetMessages(r.Context(), sessionID, limit)
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, errUnknownSession, "session does not exist", h.logger)
	case err != nil:
		h.logger.Error("failed to list messages", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, errInternal, "internal server error", h.logger)
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"session_id": sessionID.String(),
			"messages":   messages,
			"total":      len(messages),
		}, h.logger)
	}
}

// parseIntParam parses an integer query parameter with bounds checking.
// Out-of-range or unparseable values fall back to the default.
func parseIntParam(r *http.Request, name string, defaultVal, minVal, maxVal int) int {
	str := r.URL.Query().Get(name)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil || val < minVal || val > maxVal {
		return defaultVal
	}
	return val
}
