package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uovfts/faculty-assistant/internal/log"
	"github.com/uovfts/faculty-assistant/internal/store"
)

type fakeHistoryStore struct {
	messages []store.Message
	err      error
	gotLimit int
}

func (f *fakeHistoryStore) GetMessages(_ context.Context, _ uuid.UUID, limit int) ([]store.Message, error) {
	f.gotLimit = limit
	return f.messages, f.err
}

func getHistory(t *testing.T, h *HistoryHandler, path string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHistory(t *testing.T) {
	sid := uuid.New()
	fs := &fakeHistoryStore{messages: []store.Message{
		{ID: uuid.New(), SessionID: sid, Role: store.RoleUser, Content: "q", Citations: []store.Citation{}},
		{ID: uuid.New(), SessionID: sid, Role: store.RoleAssistant, Content: "a",
			Citations: []store.Citation{{Source: "handbook.pdf", Similarity: 0.8}}},
	}}
	h := NewHistoryHandler(fs, log.NewNop())

	rec := getHistory(t, h, "/api/v1/sessions/"+sid.String()+"/messages")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, DefaultHistoryLimit, fs.gotLimit)

	var resp struct {
		SessionID string          `json:"session_id"`
		Messages  []store.Message `json:"messages"`
		Total     int             `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, sid.String(), resp.SessionID)
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, store.RoleUser, resp.Messages[0].Role)
	assert.Equal(t, "handbook.pdf", resp.Messages[1].Citations[0].Source)
}

func TestHistory_LimitParam(t *testing.T) {
	fs := &fakeHistoryStore{}
	h := NewHistoryHandler(fs, log.NewNop())

	getHistory(t, h, "/api/v1/sessions/"+uuid.NewString()+"/messages?limit=5")
	assert.Equal(t, 5, fs.gotLimit)

	getHistory(t, h, "/api/v1/sessions/"+uuid.NewString()+"/messages?limit=99999")
	assert.Equal(t, DefaultHistoryLimit, fs.gotLimit, "out-of-range limit falls back to default")
}

func TestHistory_UnknownSession(t *testing.T) {
	h := NewHistoryHandler(&fakeHistoryStore{err: store.ErrSessionNotFound}, log.NewNop())

	rec := getHistory(t, h, "/api/v1/sessions/"+uuid.NewString()+"/messages")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var er ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
	assert.Equal(t, errUnknownSession, er.Error)
}

func TestHistory_BadSessionID(t *testing.T) {
	h := NewHistoryHandler(&fakeHistoryStore{}, log.NewNop())

	rec := getHistory(t, h, "/api/v1/sessions/not-a-uuid/messages")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
