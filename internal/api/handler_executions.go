package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/procflow/retryd/internal/core"
	"github.com/procflow/retryd/internal/state"
)

// ExecutionHandler handles execution-context endpoints. Execution variables
// are what retry-cycle expressions resolve against.
type ExecutionHandler struct {
	store state.Store
}

// NewExecutionHandler creates a new ExecutionHandler.
func NewExecutionHandler(store state.Store) *ExecutionHandler {
	return &ExecutionHandler{store: store}
}

// PutExecutionRequest is the body of PUT /v1/executions/{id}.
type PutExecutionRequest struct {
	ProcessDefinitionID string            `json:"process_definition_id,omitempty"`
	Variables           map[string]string `json:"variables,omitempty"`
}

// Put handles PUT /v1/executions/{id}
func (h *ExecutionHandler) Put(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, core.NewInvalidRequestError("Failed to read request body.", nil))
		return
	}

	var req PutExecutionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		WriteError(w, http.StatusBadRequest, core.NewInvalidRequestError("Invalid JSON in request body.", nil))
		return
	}

	record := &state.ExecutionRecord{
		ID:                  id,
		ProcessDefinitionID: req.ProcessDefinitionID,
		Variables:           req.Variables,
	}
	if err := h.store.PutExecution(r.Context(), record); err != nil {
		HandleError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"execution": record})
}

// Get handles GET /v1/executions/{id}
func (h *ExecutionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.store.GetExecution(r.Context(), id)
	if err != nil {
		HandleError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"execution": record})
}
