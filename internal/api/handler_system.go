package api

import (
	"net/http"

	"github.com/procflow/retryd/internal/core"
	"github.com/procflow/retryd/internal/state"
)

// SystemHandler handles system-related HTTP endpoints.
type SystemHandler struct {
	store     state.Store
	storeName string
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(store state.Store, storeName string) *SystemHandler {
	return &SystemHandler{store: store, storeName: storeName}
}

// Health handles GET /v1/health
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"store":  h.storeName,
			"error":  err.Error(),
		})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"store":   h.storeName,
		"version": core.EngineVersion,
	})
}
