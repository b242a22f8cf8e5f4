package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uovfts/faculty-assistant/internal/generator"
	"github.com/uovfts/faculty-assistant/internal/log"
	"github.com/uovfts/faculty-assistant/internal/rag"
	"github.com/uovfts/faculty-assistant/internal/store"
)

type fakeChatService struct {
	result *rag.Result
	err    error
	calls  int
	gotQ   string
	gotSID uuid.UUID
}

func (f *fakeChatService) Chat(_ context.Context, sessionID uuid.UUID, question string) (*rag.Result, error) {
	f.calls++
	f.gotSID = sessionID
	f.gotQ = question
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &rag.Result{
		SessionID: sessionID,
		MessageID: uuid.New(),
		Answer: &generator.Answer{
			Text:        "the answer",
			Citations:   []store.Citation{{Source: "handbook.pdf", Page: 1, Similarity: 0.9}},
			Confidence:  generator.ConfidenceMedium,
			ChunksUsed:  2,
			FromContext: true,
		},
	}, nil
}

type fakeRequestLogger struct {
	logs []store.RequestLog
}

func (f *fakeRequestLogger) LogRequest(_ context.Context, rl store.RequestLog) {
	f.logs = append(f.logs, rl)
}

func postChat(t *testing.T, h *ChatHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestChat(t *testing.T) {
	svc := &fakeChatService{}
	logs := &fakeRequestLogger{}
	h := NewChatHandler(svc, logs, log.NewNop())

	rec := postChat(t, h, `{"question": "when do admissions close?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "the answer", resp.Answer)
	assert.Equal(t, generator.ConfidenceMedium, resp.Confidence)
	assert.False(t, resp.Cached)
	assert.NotEmpty(t, resp.MessageID)
	require.Len(t, resp.Citations, 1)
	assert.Equal(t, "handbook.pdf", resp.Citations[0].Source)

	// Session generated server-side when absent.
	assert.NotEqual(t, uuid.Nil, svc.gotSID)
	assert.Equal(t, resp.SessionID, svc.gotSID.String())
	assert.Equal(t, "when do admissions close?", svc.gotQ)

	// One request log row with latency and status.
	require.Len(t, logs.logs, 1)
	assert.Equal(t, "/api/v1/chat", logs.logs[0].Endpoint)
	assert.Equal(t, http.StatusOK, logs.logs[0].StatusCode)
	assert.Equal(t, svc.gotSID, logs.logs[0].SessionID)
}

func TestChat_ExistingSessionID(t *testing.T) {
	svc := &fakeChatService{}
	h := NewChatHandler(svc, &fakeRequestLogger{}, log.NewNop())

	sid := uuid.New()
	rec := postChat(t, h, fmt.Sprintf(`{"session_id": %q, "question": "q"}`, sid))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sid, svc.gotSID)
}

func TestChat_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed body", `{"question": `},
		{"empty question", `{"question": "   "}`},
		{"question too long", fmt.Sprintf(`{"question": %q}`, strings.Repeat("a", MaxQuestionLength+1))},
		{"bad session id", `{"session_id": "not-a-uuid", "question": "q"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeChatService{}
			h := NewChatHandler(svc, &fakeRequestLogger{}, log.NewNop())

			rec := postChat(t, h, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, 0, svc.calls, "invalid requests must not reach the pipeline")

			var er ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
			assert.Equal(t, errInvalidRequest, er.Error)
		})
	}
}

func TestChat_PipelineErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"embedding failed", rag.ErrEmbeddingFailed, http.StatusServiceUnavailable, errEmbeddingFailed},
		{"generation unavailable", rag.ErrGenerationUnavailable, http.StatusServiceUnavailable, errGenerationUnavailable},
		{"unexpected error", fmt.Errorf("pool exhausted"), http.StatusInternalServerError, errInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := &fakeRequestLogger{}
			h := NewChatHandler(&fakeChatService{err: tt.err}, logs, log.NewNop())

			rec := postChat(t, h, `{"question": "q"}`)
			require.Equal(t, tt.wantStatus, rec.Code)

			var er ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
			assert.Equal(t, tt.wantKind, er.Error)
			assert.NotEmpty(t, er.Message, "pipeline failures carry a human-readable message")

			require.Len(t, logs.logs, 1)
			assert.Equal(t, tt.wantStatus, logs.logs[0].StatusCode)
			assert.Equal(t, tt.wantKind, logs.logs[0].Error)
		})
	}
}

func TestChat_CachedAnswer(t *testing.T) {
	sid := uuid.New()
	svc := &fakeChatService{result: &rag.Result{
		SessionID: sid,
		Answer: &generator.Answer{
			Text:       "cached text",
			Citations:  []store.Citation{},
			Confidence: generator.ConfidenceHigh,
		},
		Cached: true,
	}}
	h := NewChatHandler(svc, &fakeRequestLogger{}, log.NewNop())

	rec := postChat(t, h, fmt.Sprintf(`{"session_id": %q, "question": "q"}`, sid))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Cached)
	assert.Empty(t, resp.MessageID, "no message id when persistence was skipped or failed")
}
