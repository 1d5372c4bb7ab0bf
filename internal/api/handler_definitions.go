package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/procflow/retryd/internal/core"
	"github.com/procflow/retryd/internal/procdef"
	"github.com/procflow/retryd/internal/state"
)

// DefinitionHandler handles process-definition deployment endpoints.
type DefinitionHandler struct {
	store state.Store
	cache *procdef.Cache
}

// NewDefinitionHandler creates a new DefinitionHandler.
func NewDefinitionHandler(store state.Store, cache *procdef.Cache) *DefinitionHandler {
	return &DefinitionHandler{store: store, cache: cache}
}

// Deploy handles POST /v1/definitions. The body is the YAML deployment
// document itself; it is validated by compilation before it is stored.
func (h *DefinitionHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	source, err := io.ReadAll(r.Body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, core.NewInvalidRequestError("Failed to read request body.", nil))
		return
	}
	if len(source) == 0 {
		WriteError(w, http.StatusBadRequest, core.NewInvalidRequestError("Empty deployment document.", nil))
		return
	}

	def, err := procdef.Parse(source)
	if err != nil {
		HandleError(w, err)
		return
	}

	record := &state.DefinitionRecord{
		ID:         def.ID,
		Name:       def.Name,
		Version:    def.Version,
		Source:     string(source),
		DeployedAt: core.NowFormatted(),
	}
	if err := h.store.PutDefinition(r.Context(), record); err != nil {
		HandleError(w, err)
		return
	}

	// A redeploy must not serve the previous compiled model.
	h.cache.Invalidate(def.ID)

	w.Header().Set("Location", "/v1/definitions/"+def.ID)
	WriteJSON(w, http.StatusCreated, map[string]any{
		"definition": map[string]any{
			"id":          def.ID,
			"name":        def.Name,
			"version":     def.Version,
			"activities":  len(def.Activities),
			"deployed_at": record.DeployedAt,
		},
	})
}

// Get handles GET /v1/definitions/{id}
func (h *DefinitionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.store.GetDefinition(r.Context(), id)
	if err != nil {
		HandleError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"definition": record})
}

// Delete handles DELETE /v1/definitions/{id}
func (h *DefinitionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.DeleteDefinition(r.Context(), id); err != nil {
		HandleError(w, err)
		return
	}
	h.cache.Invalidate(id)
	w.WriteHeader(http.StatusNoContent)
}
