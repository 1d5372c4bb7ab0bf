package state

import (
	"context"

	"github.com/procflow/retryd/internal/core"
)

// JobRecord represents a job stored in the state store.
type JobRecord struct {
	PK                  string `dynamodbav:"PK"`
	SK                  string `dynamodbav:"SK"`
	ID                  string `dynamodbav:"id"`
	HandlerType         string `dynamodbav:"handler_type"`
	State               string `dynamodbav:"state"`
	ProcessDefinitionID string `dynamodbav:"process_definition_id,omitempty"`
	ActivityID          string `dynamodbav:"activity_id,omitempty"`
	ExecutionID         string `dynamodbav:"execution_id,omitempty"`
	Retries             int    `dynamodbav:"retries"`
	LockOwner           string `dynamodbav:"lock_owner,omitempty"`
	LockExpiresAt       string `dynamodbav:"lock_expires_at,omitempty"`
	FailureRef          string `dynamodbav:"failure_ref,omitempty"`
	FailureMessage      string `dynamodbav:"failure_message,omitempty"`
	CreatedAt           string `dynamodbav:"created_at"`
	DueAt               string `dynamodbav:"due_at,omitempty"`
	Payload             string `dynamodbav:"payload,omitempty"`
}

// FailureRecord is the persisted cause of one job failure. The job references
// it by Ref; the detail blob (typically a stacktrace) never travels on the
// job itself.
type FailureRecord struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	Ref        string `dynamodbav:"ref"`
	JobID      string `dynamodbav:"job_id"`
	Message    string `dynamodbav:"message"`
	Detail     string `dynamodbav:"detail,omitempty"`
	RecordedAt string `dynamodbav:"recorded_at"`
}

// ExecutionRecord is the execution context a retry-cycle expression is
// evaluated against.
type ExecutionRecord struct {
	PK                  string            `dynamodbav:"PK"`
	SK                  string            `dynamodbav:"SK"`
	ID                  string            `dynamodbav:"id"`
	ProcessDefinitionID string            `dynamodbav:"process_definition_id,omitempty"`
	Variables           map[string]string `dynamodbav:"variables,omitempty"`
}

// DefinitionRecord is a deployed process definition. Source is the YAML
// deployment document; the procdef cache parses it on demand.
type DefinitionRecord struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	ID         string `dynamodbav:"id"`
	Name       string `dynamodbav:"name,omitempty"`
	Version    int    `dynamodbav:"version"`
	Source     string `dynamodbav:"source"`
	DeployedAt string `dynamodbav:"deployed_at"`
}

// Store defines the interface for the external state store. GetJob,
// GetExecution and GetDefinition return a not_found engine error when the
// item does not exist.
type Store interface {
	// Job operations
	PutJob(ctx context.Context, record *JobRecord) error
	GetJob(ctx context.Context, jobID string) (*JobRecord, error)
	UpdateJob(ctx context.Context, jobID, newState string, updates map[string]any) error
	DeleteJob(ctx context.Context, jobID string) error

	// Failure cause operations
	PutFailure(ctx context.Context, record *FailureRecord) error
	GetFailure(ctx context.Context, ref string) (*FailureRecord, error)

	// Execution context operations
	PutExecution(ctx context.Context, record *ExecutionRecord) error
	GetExecution(ctx context.Context, executionID string) (*ExecutionRecord, error)

	// Process definition operations
	PutDefinition(ctx context.Context, record *DefinitionRecord) error
	GetDefinition(ctx context.Context, definitionID string) (*DefinitionRecord, error)
	DeleteDefinition(ctx context.Context, definitionID string) error

	// Due-retry index operations
	AddRetrySchedule(ctx context.Context, jobID string, dueAtMs int64) error
	GetDueRetryJobs(ctx context.Context, nowMs int64) ([]string, error)
	RemoveRetrySchedule(ctx context.Context, jobID string) error

	// Health check
	Ping(ctx context.Context) error

	// Close the store
	Close() error
}

// RecordToJob converts a JobRecord to a core.Job.
func RecordToJob(r *JobRecord) *core.Job {
	return &core.Job{
		ID:                  r.ID,
		HandlerType:         r.HandlerType,
		State:               r.State,
		ProcessDefinitionID: r.ProcessDefinitionID,
		ActivityID:          r.ActivityID,
		ExecutionID:         r.ExecutionID,
		Retries:             r.Retries,
		LockOwner:           r.LockOwner,
		LockExpiresAt:       r.LockExpiresAt,
		FailureRef:          r.FailureRef,
		FailureMessage:      r.FailureMessage,
		CreatedAt:           r.CreatedAt,
		DueAt:               r.DueAt,
		Payload:             r.Payload,
	}
}

// JobToRecord converts a core.Job to a JobRecord for storage.
func JobToRecord(job *core.Job) *JobRecord {
	return &JobRecord{
		PK:                  jobPK(job.ID),
		SK:                  "JOB",
		ID:                  job.ID,
		HandlerType:         job.HandlerType,
		State:               job.State,
		ProcessDefinitionID: job.ProcessDefinitionID,
		ActivityID:          job.ActivityID,
		ExecutionID:         job.ExecutionID,
		Retries:             job.Retries,
		LockOwner:           job.LockOwner,
		LockExpiresAt:       job.LockExpiresAt,
		FailureRef:          job.FailureRef,
		FailureMessage:      job.FailureMessage,
		CreatedAt:           job.CreatedAt,
		DueAt:               job.DueAt,
		Payload:             job.Payload,
	}
}

func jobPK(jobID string) string        { return "JOB#" + jobID }
func failurePK(ref string) string      { return "FAILURE#" + ref }
func executionPK(id string) string     { return "EXECUTION#" + id }
func definitionPK(id string) string    { return "DEFINITION#" + id }
func retrySchedulePK(id string) string { return "RETRY#" + id }
