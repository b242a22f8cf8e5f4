package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/uovfts/faculty-assistant/internal/log"
	"github.com/uovfts/faculty-assistant/internal/store"
)

// MaxCommentLength bounds feedback comment size in runes.
const MaxCommentLength = 2000

// FeedbackStore persists feedback rows. Implemented by *store.Store.
type FeedbackStore interface {
	SaveFeedback(ctx context.Context, f store.Feedback) error
}

// FeedbackHandler handles POST /api/v1/feedback.
type FeedbackHandler struct {
	store  FeedbackStore
	logger log.Logger
}

// NewFeedbackHandler creates a feedback handler.
func NewFeedbackHandler(store FeedbackStore, logger log.Logger) *FeedbackHandler {
	return &FeedbackHandler{store: store, logger: logger}
}

// RegisterRoutes registers feedback routes on the given mux.
func (h *FeedbackHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/feedback", h.create)
}

type feedbackRequest struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	Rating    string `json:"rating"`
	Comment   string `json:"comment"`
}

func (h *FeedbackHandler) create(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidRequest, "malformed JSON body", h.logger)
		return
	}

	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		writeError(w, http.StatusBadRequest, errInvalidRequest, "session_id must be a UUID", h.logger)
		return
	}
	messageID, err := uuid.Parse(req.MessageID)
	if err != nil {
		writeError(w, http.StatusBadRequest, errInvalidRequest, "message_id must be a UUID", h.logger)
		return
	}
	if utf8.RuneCountInString(req.Comment) > MaxCommentLength {
		writeError(w, http.StatusBadRequest, errInvalidRequest, "comment exceeds 2000 characters", h.logger)
		return
	}

	err = h.store.SaveFeedback(r.Context(), store.Feedback{
		SessionID: sessionID,
		MessageID: messageID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	switch {
	case errors.Is(err, store.ErrInvalidRating):
		writeError(w, http.StatusBadRequest, errInvalidRequest, "rating must be \"up\" or \"down\"", h.logger)
	case errors.Is(err, store.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, errUnknownSession, "session does not exist", h.logger)
	case errors.Is(err, store.ErrMessageNotFound):
		writeError(w, http.StatusNotFound, errUnknownMessage, "message does not exist in this session", h.logger)
	case err != nil:
		h.logger.Error("failed to save feedback", "message_id", messageID, "error", err)
		writeError(w, http.StatusInternalServerError, errInternal, "internal server error", h.logger)
	default:
		writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"}, h.logger)
	}
}
