// Package dispatch hands re-eligible jobs to the worker-facing work queue.
package dispatch

import (
	"context"

	"github.com/procflow/retryd/internal/core"
)

// Dispatcher delivers a job to whatever executes it. The scheduler calls it
// once per due job after the job's state has been updated.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *core.Job) error
	Close() error
}

// Envelope is the wire form of a dispatched job. Workers receive it as the
// message body; the full job record stays in the state store.
type Envelope struct {
	JobID               string `json:"job_id"`
	HandlerType         string `json:"handler_type"`
	ProcessDefinitionID string `json:"process_definition_id,omitempty"`
	ActivityID          string `json:"activity_id,omitempty"`
	ExecutionID         string `json:"execution_id,omitempty"`
	Retries             int    `json:"retries"`
	Payload             string `json:"payload,omitempty"`
	DispatchedAt        string `json:"dispatched_at"`
}

// NewEnvelope builds the dispatch envelope for a job.
func NewEnvelope(job *core.Job) *Envelope {
	return &Envelope{
		JobID:               job.ID,
		HandlerType:         job.HandlerType,
		ProcessDefinitionID: job.ProcessDefinitionID,
		ActivityID:          job.ActivityID,
		ExecutionID:         job.ExecutionID,
		Retries:             job.Retries,
		Payload:             job.Payload,
		DispatchedAt:        core.NowFormatted(),
	}
}
