package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/uovfts/faculty-assistant/internal/generator"
	"github.com/uovfts/faculty-assistant/internal/log"
	"github.com/uovfts/faculty-assistant/internal/rag"
	"github.com/uovfts/faculty-assistant/internal/store"
)

// MaxQuestionLength bounds question size in runes.
const MaxQuestionLength = 1000

// ChatService answers one chat turn. Implemented by *rag.Pipeline.
type ChatService interface {
	Chat(ctx context.Context, sessionID uuid.UUID, question string) (*rag.Result, error)
}

// RequestLogger records request latency rows. Implemented by *store.Store.
type RequestLogger interface {
	LogRequest(ctx context.Context, rl store.RequestLog)
}

// ChatHandler handles POST /api/v1/chat.
type ChatHandler struct {
	service  ChatService
	requests RequestLogger
	logger   log.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(service ChatService, requests RequestLogger, logger log.Logger) *ChatHandler {
	return &ChatHandler{service: service, requests: requests, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/chat", h.chat)
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	Language  string `json:"language"`
}

type chatResponse struct {
	SessionID  string           `json:"session_id"`
	MessageID  string           `json:"message_id,omitempty"`
	Answer     string           `json:"answer"`
	Citations  []store.Citation `json:"citations"`
	Confidence string           `json:"confidence"`
	Cached     bool             `json:"cached"`
}

func (h *ChatHandler) chat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	errText := ""
	sessionID := uuid.Nil

	defer func() {
		h.requests.LogRequest(context.WithoutCancel(r.Context()), store.RequestLog{
			Endpoint:   "/api/v1/chat",
			SessionID:  sessionID,
			LatencyMS:  int(time.Since(start).Milliseconds()),
			StatusCode: status,
			Error:      errText,
		})
	}()

	fail := func(code int, kind, message string) {
		status, errText = code, kind
		writeError(w, code, kind, message, h.logger)
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(http.StatusBadRequest, errInvalidRequest, "malformed JSON body")
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		fail(http.StatusBadRequest, errInvalidRequest, "question must not be empty")
		return
	}
	if utf8.RuneCountInString(question) > MaxQuestionLength {
		fail(http.StatusBadRequest, errInvalidRequest, "question exceeds 1000 characters")
		return
	}

	if req.SessionID == "" {
		sessionID = uuid.New()
	} else {
		id, err := uuid.Parse(req.SessionID)
		if err != nil {
			fail(http.StatusBadRequest, errInvalidRequest, "session_id must be a UUID")
			return
		}
		sessionID = id
	}

	result, err := h.service.Chat(r.Context(), sessionID, question)
	if err != nil {
		switch {
		case errors.Is(err, rag.ErrEmbeddingFailed):
			h.logger.Error("chat failed: embedding", "session_id", sessionID, "error", err)
			fail(http.StatusServiceUnavailable, errEmbeddingFailed,
				"the assistant could not process your question, please try again")
		case errors.Is(err, rag.ErrGenerationUnavailable):
			h.logger.Error("chat failed: generation", "session_id", sessionID, "error", err)
			fail(http.StatusServiceUnavailable, errGenerationUnavailable,
				"sorry, the assistant is unavailable right now, please try again in a moment")
		case errors.Is(err, context.Canceled):
			// Client went away; nothing useful to write.
			status, errText = statusClientClosedRequest, "canceled"
		default:
			h.logger.Error("chat failed", "session_id", sessionID, "error", err)
			fail(http.StatusInternalServerError, errInternal, "internal server error")
		}
		return
	}

	resp := chatResponse{
		SessionID:  result.SessionID.String(),
		Answer:     result.Answer.Text,
		Citations:  result.Answer.Citations,
		Confidence: result.Answer.Confidence,
		Cached:     result.Cached,
	}
	if resp.Citations == nil {
		resp.Citations = []store.Citation{}
	}
	if resp.Confidence == "" {
		resp.Confidence = generator.ConfidenceLow
	}
	if result.MessageID != uuid.Nil {
		resp.MessageID = result.MessageID.String()
	}

	writeJSON(w, http.StatusOK, resp, h.logger)
}

// statusClientClosedRequest is nginx's non-standard 499, recorded in request
// logs when the client cancels mid-request.
const statusClientClosedRequest = 499
