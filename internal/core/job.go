package core

import "time"

const (
	EngineVersion = "0.3.0"
	TimeFormat    = "2006-01-02T15:04:05.000Z"
)

// FormatTime formats a time as ISO 8601 UTC with millisecond precision.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// NowFormatted returns the current time formatted as ISO 8601 UTC.
func NowFormatted() string {
	return FormatTime(time.Now())
}

// Job handler types. The timer and async-continuation handlers are the ones
// whose activities may carry a retry configuration; every other handler type
// falls through to the global retry cycle, if one is configured.
const (
	HandlerTimerTransition             = "timer-transition"
	HandlerTimerIntermediateTransition = "timer-intermediate-transition"
	HandlerTimerStartEvent             = "timer-start-event"
	HandlerTimerStartEventSubprocess   = "timer-start-event-subprocess"
	HandlerAsyncContinuation           = "async-continuation"
)

var retryConfigurableHandlers = map[string]bool{
	HandlerTimerTransition:             true,
	HandlerTimerIntermediateTransition: true,
	HandlerTimerStartEvent:             true,
	HandlerTimerStartEventSubprocess:   true,
	HandlerAsyncContinuation:           true,
}

// IsRetryConfigurableHandler reports whether jobs of this handler type can
// have an activity-level retry configuration.
func IsRetryConfigurableHandler(handlerType string) bool {
	return retryConfigurableHandlers[handlerType]
}

// DefaultRetries is the retry budget a job starts with when no configuration
// initializes it.
const DefaultRetries = 3

// Job is a unit of deferred work owned by the process engine. The retry
// strategy is the only writer of Retries, LockOwner, LockExpiresAt,
// FailureRef and FailureMessage after creation.
type Job struct {
	ID                  string `json:"id"`
	HandlerType         string `json:"handler_type"`
	State               string `json:"state"`
	ProcessDefinitionID string `json:"process_definition_id,omitempty"`
	ActivityID          string `json:"activity_id,omitempty"`
	ExecutionID         string `json:"execution_id,omitempty"`
	Retries             int    `json:"retries"`
	LockOwner           string `json:"lock_owner,omitempty"`
	LockExpiresAt       string `json:"lock_expires_at,omitempty"`
	FailureRef          string `json:"failure_ref,omitempty"`
	FailureMessage      string `json:"failure_message,omitempty"`
	CreatedAt           string `json:"created_at"`
	DueAt               string `json:"due_at,omitempty"`
	Payload             string `json:"payload,omitempty"`
}

// Failure is the cause reported alongside a job failure. Detail is an opaque
// blob (typically a stacktrace) persisted separately and referenced from the
// job by id.
type Failure struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// IsFirstExecution reports whether this failure is the job's first. The only
// signal is the absence of a recorded failure cause: only a never-executed
// job can be without one, because a successful execution deletes the job.
// A cleared cause on a job that did fail before would be misread as a first
// execution; callers must not try to strengthen this heuristic.
func (j *Job) IsFirstExecution() bool {
	return j.FailureRef == "" && j.FailureMessage == ""
}
