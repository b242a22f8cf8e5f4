package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uovfts/faculty-assistant/internal/log"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(context.Context) error { return f.err }

func getHealth(t *testing.T, h *HealthHandler) (*httptest.ResponseRecorder, healthResponse) {
	t.Helper()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestHealth(t *testing.T) {
	h := NewHealthHandler(&fakePinger{}, &fakePinger{}, "1.2.3", log.NewNop())

	rec, resp := getHealth(t, h)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.True(t, resp.Database)
	assert.True(t, resp.VectorIndex)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestHealth_DatabaseDown(t *testing.T) {
	h := NewHealthHandler(&fakePinger{err: errors.New("connection refused")}, &fakePinger{}, "dev", log.NewNop())

	rec, resp := getHealth(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", resp.Status)
	assert.False(t, resp.Database)
	assert.True(t, resp.VectorIndex)
}

func TestHealth_VectorIndexDown(t *testing.T) {
	h := NewHealthHandler(&fakePinger{}, &fakePinger{err: errors.New("relation missing")}, "dev", log.NewNop())

	rec, resp := getHealth(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", resp.Status)
	assert.True(t, resp.Database)
	assert.False(t, resp.VectorIndex)
}
