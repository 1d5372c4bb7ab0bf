package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/procflow/retryd/internal/core"
	"github.com/procflow/retryd/internal/dispatch"
	"github.com/procflow/retryd/internal/retry"
	"github.com/procflow/retryd/internal/state"
)

// JobHandler handles job-related HTTP endpoints.
type JobHandler struct {
	store      state.Store
	retries    *retry.Handler
	dispatcher dispatch.Dispatcher
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(store state.Store, retries *retry.Handler, dispatcher dispatch.Dispatcher) *JobHandler {
	return &JobHandler{store: store, retries: retries, dispatcher: dispatcher}
}

// RegisterJobRequest is the body of POST /v1/jobs.
type RegisterJobRequest struct {
	ID                  string `json:"id,omitempty"`
	HandlerType         string `json:"handler_type"`
	ProcessDefinitionID string `json:"process_definition_id,omitempty"`
	ActivityID          string `json:"activity_id,omitempty"`
	ExecutionID         string `json:"execution_id,omitempty"`
	Retries             *int   `json:"retries,omitempty"`
	Payload             string `json:"payload,omitempty"`
}

// FailureRequest is the body of POST /v1/jobs/{id}/failure.
type FailureRequest struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Create handles POST /v1/jobs
func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, core.NewInvalidRequestError("Failed to read request body.", nil))
		return
	}

	var req RegisterJobRequest
	if err := json.Unmarshal(body, &req); err != nil {
		WriteError(w, http.StatusBadRequest, core.NewInvalidRequestError("Invalid JSON in request body.", nil))
		return
	}
	if req.HandlerType == "" {
		WriteError(w, http.StatusUnprocessableEntity,
			core.NewValidationError("handler_type is required", nil))
		return
	}
	if req.ID != "" && !core.IsValidUUID(req.ID) {
		WriteError(w, http.StatusUnprocessableEntity,
			core.NewValidationError("id must be a UUID", map[string]any{"id": req.ID}))
		return
	}

	job := &core.Job{
		ID:                  req.ID,
		HandlerType:         req.HandlerType,
		State:               core.StateAvailable,
		ProcessDefinitionID: req.ProcessDefinitionID,
		ActivityID:          req.ActivityID,
		ExecutionID:         req.ExecutionID,
		Retries:             core.DefaultRetries,
		Payload:             req.Payload,
		CreatedAt:           core.NowFormatted(),
	}
	if job.ID == "" {
		job.ID = core.NewUUIDv7()
	}
	if req.Retries != nil {
		if *req.Retries < 0 {
			WriteError(w, http.StatusUnprocessableEntity,
				core.NewValidationError("retries cannot be negative", nil))
			return
		}
		job.Retries = *req.Retries
	}

	if err := h.store.PutJob(r.Context(), state.JobToRecord(job)); err != nil {
		HandleError(w, err)
		return
	}

	if err := h.dispatcher.Dispatch(r.Context(), job); err != nil {
		HandleError(w, err)
		return
	}

	w.Header().Set("Location", "/v1/jobs/"+job.ID)
	WriteJSON(w, http.StatusCreated, map[string]any{"job": job})
}

// Get handles GET /v1/jobs/{id}
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.store.GetJob(r.Context(), id)
	if err != nil {
		HandleError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"job": state.RecordToJob(record)})
}

// ReportFailure handles POST /v1/jobs/{id}/failure. A failure report for a
// job that no longer exists is acknowledged, not rejected: the worker has
// nothing useful to do with an error.
func (h *JobHandler) ReportFailure(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, core.NewInvalidRequestError("Failed to read request body.", nil))
		return
	}

	var req FailureRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			WriteError(w, http.StatusBadRequest, core.NewInvalidRequestError("Invalid JSON in request body.", nil))
			return
		}
	}

	cause := &core.Failure{Message: req.Message, Detail: req.Detail}
	if err := h.retries.HandleFailure(r.Context(), id, cause); err != nil {
		HandleError(w, err)
		return
	}

	record, err := h.store.GetJob(r.Context(), id)
	if err != nil {
		if core.ErrorCode(err) == core.ErrCodeNotFound {
			WriteJSON(w, http.StatusAccepted, map[string]any{
				"acknowledged": true,
				"job_id":       id,
			})
			return
		}
		HandleError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"job": state.RecordToJob(record)})
}

// Delete handles DELETE /v1/jobs/{id}
func (h *JobHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.DeleteJob(r.Context(), id); err != nil {
		HandleError(w, err)
		return
	}
	h.store.RemoveRetrySchedule(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}
