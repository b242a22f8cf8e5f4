package api

import (
	"context"
	"net/http"
	"time"

	"github.com/uovfts/faculty-assistant/internal/log"
)

// Pinger reports reachability of one dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles GET /health. The session store and the vector index
// are probed independently so a broken index still reports a reachable
// database, and vice versa.
type HealthHandler struct {
	db      Pinger
	vector  Pinger
	version string
	logger  log.Logger
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(db, vector Pinger, version string, logger log.Logger) *HealthHandler {
	return &HealthHandler{db: db, vector: vector, version: version, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.health)
}

type healthResponse struct {
	Status      string    `json:"status"` // healthy | degraded
	Version     string    `json:"version"`
	Database    bool      `json:"database_connected"`
	VectorIndex bool      `json:"vector_index_connected"`
	Timestamp   time.Time `json:"timestamp"`
}

func (h *HealthHandler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := healthResponse{
		Version:     h.version,
		Database:    true,
		VectorIndex: true,
		Timestamp:   time.Now().UTC(),
	}

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("health: session store unreachable", "error", err)
		resp.Database = false
	}
	if err := h.vector.Ping(ctx); err != nil {
		h.logger.Warn("health: vector index unreachable", "error", err)
		resp.VectorIndex = false
	}

	status := http.StatusOK
	resp.Status = "healthy"
	if !resp.Database || !resp.VectorIndex {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp, h.logger)
}
