package handler

import (
	"context"
	"net/http"
	"time"

	"motorgestor-api/internal/model"
)

// Pinger is anything whose connectivity can be checked
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db    Pinger
	cache Pinger
}

// NewHealthHandler creates the handler. db and cache may be nil when the
// database is disabled or the cache lives in process memory.
func NewHealthHandler(db Pinger, cache Pinger) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := model.HealthResponse{
		Status:    "ok",
		Database:  "disabled",
		Cache:     "memory",
		Timestamp: time.Now(),
	}

	if h.db != nil {
		response.Database = "connected"
		if err := h.db.Ping(ctx); err != nil {
			response.Database = "disconnected"
			response.Status = "degraded"
		}
	}

	if h.cache != nil {
		response.Cache = "connected"
		if err := h.cache.Ping(ctx); err != nil {
			response.Cache = "disconnected"
			response.Status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, response)
}
