package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/procflow/retryd/internal/core"
)

// ErrorResponse wraps an engine error for JSON serialization.
type ErrorResponse struct {
	Error *core.EngineError `json:"error"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes an engine-formatted error response.
func WriteError(w http.ResponseWriter, status int, err *core.EngineError) {
	WriteJSON(w, status, ErrorResponse{Error: err})
}

// HandleError maps an error to the appropriate HTTP status and writes it.
func HandleError(w http.ResponseWriter, err error) {
	var engineErr *core.EngineError
	if !errors.As(err, &engineErr) {
		WriteError(w, http.StatusInternalServerError, core.NewInternalError(err.Error()))
		return
	}

	status := http.StatusInternalServerError
	switch engineErr.Code {
	case core.ErrCodeInvalidRequest:
		status = http.StatusBadRequest
	case core.ErrCodeValidationError:
		status = http.StatusUnprocessableEntity
	case core.ErrCodeNotFound:
		status = http.StatusNotFound
	case core.ErrCodeConflict:
		status = http.StatusConflict
	}
	WriteError(w, status, engineErr)
}
