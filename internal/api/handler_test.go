package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/procflow/retryd/internal/core"
	"github.com/procflow/retryd/internal/dispatch"
	"github.com/procflow/retryd/internal/expr"
	"github.com/procflow/retryd/internal/notify"
	"github.com/procflow/retryd/internal/procdef"
	"github.com/procflow/retryd/internal/retry"
	"github.com/procflow/retryd/internal/state"
)

type testEnv struct {
	store      *state.MemoryStore
	dispatcher *dispatch.MemoryDispatcher
	router     chi.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := state.NewMemoryStore()
	dispatcher := dispatch.NewMemoryDispatcher(16)
	t.Cleanup(func() { dispatcher.Close() })
	broker := notify.NewBroker()
	t.Cleanup(func() { broker.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cache := procdef.NewCache(store)
	retries := retry.NewHandler(store, cache, expr.NewTemplateEvaluator(), broker, broker, logger)

	jobHandler := NewJobHandler(store, retries, dispatcher)
	definitionHandler := NewDefinitionHandler(store, cache)
	executionHandler := NewExecutionHandler(store)
	systemHandler := NewSystemHandler(store, "memory")

	r := chi.NewRouter()
	r.Get("/v1/health", systemHandler.Health)
	r.Post("/v1/jobs", jobHandler.Create)
	r.Get("/v1/jobs/{id}", jobHandler.Get)
	r.Delete("/v1/jobs/{id}", jobHandler.Delete)
	r.Post("/v1/jobs/{id}/failure", jobHandler.ReportFailure)
	r.Post("/v1/definitions", definitionHandler.Deploy)
	r.Get("/v1/definitions/{id}", definitionHandler.Get)
	r.Delete("/v1/definitions/{id}", definitionHandler.Delete)
	r.Put("/v1/executions/{id}", executionHandler.Put)
	r.Get("/v1/executions/{id}", executionHandler.Get)

	return &testEnv{store: store, dispatcher: dispatcher, router: r}
}

func (e *testEnv) do(t *testing.T, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeJob(t *testing.T, rec *httptest.ResponseRecorder) *core.Job {
	t.Helper()
	var resp struct {
		Job *core.Job `json:"job"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v\nbody: %s", err, rec.Body.String())
	}
	return resp.Job
}

func TestCreateJob(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/jobs", "application/json",
		[]byte(`{"handler_type": "async-continuation"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201\nbody: %s", rec.Code, rec.Body.String())
	}

	job := decodeJob(t, rec)
	if job.ID == "" || !core.IsValidUUIDv7(job.ID) {
		t.Errorf("job id = %q, want a UUIDv7", job.ID)
	}
	if job.Retries != core.DefaultRetries {
		t.Errorf("retries = %d, want %d", job.Retries, core.DefaultRetries)
	}
	if job.State != core.StateAvailable {
		t.Errorf("state = %q, want available", job.State)
	}
	if loc := rec.Header().Get("Location"); loc != "/v1/jobs/"+job.ID {
		t.Errorf("Location = %q", loc)
	}

	select {
	case env := <-env.dispatcher.Jobs():
		if env.JobID != job.ID {
			t.Errorf("dispatched %q, want %q", env.JobID, job.ID)
		}
	default:
		t.Error("job not dispatched on registration")
	}
}

func TestCreateJob_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing handler type", `{}`, http.StatusUnprocessableEntity},
		{"invalid json", `{`, http.StatusBadRequest},
		{"bad id", `{"handler_type": "x", "id": "not-a-uuid"}`, http.StatusUnprocessableEntity},
		{"negative retries", `{"handler_type": "x", "retries": -1}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/v1/jobs", "application/json", []byte(tt.body))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d\nbody: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestGetJob_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/jobs/nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != core.ErrCodeNotFound {
		t.Errorf("error = %+v, want not_found", resp.Error)
	}
}

func TestReportFailure_AppliesRetryDecision(t *testing.T) {
	env := newTestEnv(t)

	deployBody := `
id: order-process
activities:
  - id: chargeCard
    retry:
      retryIntervals: [PT5M, PT10M]
`
	rec := env.do(t, http.MethodPost, "/v1/definitions", "application/yaml", []byte(deployBody))
	if rec.Code != http.StatusCreated {
		t.Fatalf("deploy status = %d\nbody: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/v1/jobs", "application/json", []byte(`{
		"handler_type": "async-continuation",
		"process_definition_id": "order-process",
		"activity_id": "chargeCard"
	}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	jobID := decodeJob(t, rec).ID

	rec = env.do(t, http.MethodPost, "/v1/jobs/"+jobID+"/failure", "application/json",
		[]byte(`{"message": "card declined"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("failure status = %d\nbody: %s", rec.Code, rec.Body.String())
	}

	job := decodeJob(t, rec)
	if job.Retries != 1 {
		t.Errorf("retries = %d, want 1 (list of 2 initialized, then decremented)", job.Retries)
	}
	if job.State != core.StateRetryable {
		t.Errorf("state = %q, want retryable", job.State)
	}
	if job.FailureMessage != "card declined" || job.FailureRef == "" {
		t.Errorf("failure cause not recorded: %+v", job)
	}
}

func TestReportFailure_VanishedJobAcknowledged(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/jobs/"+core.NewUUIDv7()+"/failure", "application/json",
		[]byte(`{"message": "boom"}`))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202\nbody: %s", rec.Code, rec.Body.String())
	}
}

func TestDeployDefinition_Invalid(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/definitions", "application/yaml",
		[]byte("activities:\n  - id: a\n"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422\nbody: %s", rec.Code, rec.Body.String())
	}
}

func TestDeployDefinition_RedeployInvalidatesCache(t *testing.T) {
	env := newTestEnv(t)

	v1 := `
id: order-process
activities:
  - id: chargeCard
    retry:
      retryIntervals: [PT5M]
`
	v2 := strings.Replace(v1, "PT5M", "PT30M", 1)

	if rec := env.do(t, http.MethodPost, "/v1/definitions", "application/yaml", []byte(v1)); rec.Code != http.StatusCreated {
		t.Fatalf("deploy v1 status = %d", rec.Code)
	}

	// Register a job and fail it once so the cache compiles v1.
	rec := env.do(t, http.MethodPost, "/v1/jobs", "application/json", []byte(`{
		"handler_type": "async-continuation",
		"process_definition_id": "order-process",
		"activity_id": "chargeCard"
	}`))
	jobID := decodeJob(t, rec).ID
	env.do(t, http.MethodPost, "/v1/jobs/"+jobID+"/failure", "application/json", []byte(`{"message": "x"}`))

	if rec := env.do(t, http.MethodPost, "/v1/definitions", "application/yaml", []byte(v2)); rec.Code != http.StatusCreated {
		t.Fatalf("deploy v2 status = %d", rec.Code)
	}

	record, err := env.store.GetDefinition(context.Background(), "order-process")
	if err != nil {
		t.Fatalf("GetDefinition error = %v", err)
	}
	if !strings.Contains(record.Source, "PT30M") {
		t.Errorf("stored source not updated:\n%s", record.Source)
	}
}

func TestPutAndGetExecution(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/v1/executions/exec-1", "application/json",
		[]byte(`{"variables": {"retryPlan": "R3/PT10M"}}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d\nbody: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/v1/executions/exec-1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var resp struct {
		Execution *state.ExecutionRecord `json:"execution"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Execution.Variables["retryPlan"] != "R3/PT10M" {
		t.Errorf("variables = %v", resp.Execution.Variables)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "ok" || resp["store"] != "memory" {
		t.Errorf("health = %v", resp)
	}
}
