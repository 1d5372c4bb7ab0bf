package state

import (
	"context"
	"sort"
	"sync"

	"github.com/procflow/retryd/internal/core"
)

// MemoryStore implements the Store interface in memory. It backs local
// development (RETRYD_STORE=memory) and package tests; it is not meant for
// multi-process deployments.
type MemoryStore struct {
	mu          sync.RWMutex
	jobs        map[string]*JobRecord
	failures    map[string]*FailureRecord
	executions  map[string]*ExecutionRecord
	definitions map[string]*DefinitionRecord
	retryDue    map[string]int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:        make(map[string]*JobRecord),
		failures:    make(map[string]*FailureRecord),
		executions:  make(map[string]*ExecutionRecord),
		definitions: make(map[string]*DefinitionRecord),
		retryDue:    make(map[string]int64),
	}
}

// PutJob stores a job record.
func (s *MemoryStore) PutJob(ctx context.Context, record *JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *record
	cp.PK = jobPK(record.ID)
	cp.SK = "JOB"
	s.jobs[record.ID] = &cp
	return nil
}

// GetJob retrieves a job by ID.
func (s *MemoryStore) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.jobs[jobID]
	if !ok {
		return nil, core.NewNotFoundError("Job", jobID)
	}
	cp := *record
	return &cp, nil
}

// UpdateJob updates a job's state and additional fields.
func (s *MemoryStore) UpdateJob(ctx context.Context, jobID, newState string, updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.jobs[jobID]
	if !ok {
		return core.NewNotFoundError("Job", jobID)
	}

	record.State = newState
	for key, value := range updates {
		switch key {
		case "retries":
			if n, ok := value.(int); ok {
				record.Retries = n
			}
		case "lock_owner":
			record.LockOwner = asString(value)
		case "lock_expires_at":
			record.LockExpiresAt = asString(value)
		case "failure_ref":
			record.FailureRef = asString(value)
		case "failure_message":
			record.FailureMessage = asString(value)
		case "due_at":
			record.DueAt = asString(value)
		}
	}
	return nil
}

// DeleteJob removes a job.
func (s *MemoryStore) DeleteJob(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
	return nil
}

// PutFailure stores a failure cause record.
func (s *MemoryStore) PutFailure(ctx context.Context, record *FailureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *record
	cp.PK = failurePK(record.Ref)
	cp.SK = "FAILURE"
	s.failures[record.Ref] = &cp
	return nil
}

// GetFailure retrieves a failure cause by ref.
func (s *MemoryStore) GetFailure(ctx context.Context, ref string) (*FailureRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.failures[ref]
	if !ok {
		return nil, core.NewNotFoundError("Failure", ref)
	}
	cp := *record
	return &cp, nil
}

// PutExecution stores an execution record.
func (s *MemoryStore) PutExecution(ctx context.Context, record *ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *record
	cp.PK = executionPK(record.ID)
	cp.SK = "EXECUTION"
	s.executions[record.ID] = &cp
	return nil
}

// GetExecution retrieves an execution by ID.
func (s *MemoryStore) GetExecution(ctx context.Context, executionID string) (*ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.executions[executionID]
	if !ok {
		return nil, core.NewNotFoundError("Execution", executionID)
	}
	cp := *record
	return &cp, nil
}

// PutDefinition stores a process definition record.
func (s *MemoryStore) PutDefinition(ctx context.Context, record *DefinitionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *record
	cp.PK = definitionPK(record.ID)
	cp.SK = "DEFINITION"
	s.definitions[record.ID] = &cp
	return nil
}

// GetDefinition retrieves a process definition by ID.
func (s *MemoryStore) GetDefinition(ctx context.Context, definitionID string) (*DefinitionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.definitions[definitionID]
	if !ok {
		return nil, core.NewNotFoundError("ProcessDefinition", definitionID)
	}
	cp := *record
	return &cp, nil
}

// DeleteDefinition removes a process definition.
func (s *MemoryStore) DeleteDefinition(ctx context.Context, definitionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.definitions, definitionID)
	return nil
}

// AddRetrySchedule adds a job to the due-retry index.
func (s *MemoryStore) AddRetrySchedule(ctx context.Context, jobID string, dueAtMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retryDue[jobID] = dueAtMs
	return nil
}

// GetDueRetryJobs returns retry-scheduled jobs that are due, oldest first.
func (s *MemoryStore) GetDueRetryJobs(ctx context.Context, nowMs int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var jobIDs []string
	for jobID, dueAtMs := range s.retryDue {
		if dueAtMs <= nowMs {
			jobIDs = append(jobIDs, jobID)
		}
	}
	sort.Slice(jobIDs, func(i, j int) bool {
		if s.retryDue[jobIDs[i]] != s.retryDue[jobIDs[j]] {
			return s.retryDue[jobIDs[i]] < s.retryDue[jobIDs[j]]
		}
		return jobIDs[i] < jobIDs[j]
	})
	return jobIDs, nil
}

// RemoveRetrySchedule removes a job from the due-retry index.
func (s *MemoryStore) RemoveRetrySchedule(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.retryDue, jobID)
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close clears the store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = make(map[string]*JobRecord)
	s.failures = make(map[string]*FailureRecord)
	s.executions = make(map[string]*ExecutionRecord)
	s.definitions = make(map[string]*DefinitionRecord)
	s.retryDue = make(map[string]int64)
	return nil
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
