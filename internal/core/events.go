package core

import "time"

// Event types emitted by the retry strategy.
const (
	EventRetryScheduled     = "job.retry_scheduled"
	EventFallbackApplied    = "job.fallback_applied"
	EventRetriesInitialized = "job.retries_initialized"
	EventRetriesExhausted   = "job.retries_exhausted"
	EventJobDispatched      = "job.dispatched"
)

// RetryEvent describes one retry decision applied to a job.
type RetryEvent struct {
	EventType   string `json:"event"`
	JobID       string `json:"job_id"`
	HandlerType string `json:"handler_type,omitempty"`
	Retries     int    `json:"retries"`
	DueAt       string `json:"due_at,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Timestamp   string `json:"timestamp"`
}

// NewRetryEvent creates a retry event stamped with the current time.
func NewRetryEvent(eventType string, job *Job) *RetryEvent {
	return &RetryEvent{
		EventType:   eventType,
		JobID:       job.ID,
		HandlerType: job.HandlerType,
		Retries:     job.Retries,
		Timestamp:   FormatTime(time.Now()),
	}
}

// EventPublisher is the sink for retry events. Publishers must not block the
// retry decision; none of their return values feed back into it.
type EventPublisher interface {
	PublishRetryEvent(event *RetryEvent) error
	Close() error
}

// EventSubscriber allows observers to follow retry decisions.
type EventSubscriber interface {
	// SubscribeJob subscribes to events for a specific job.
	SubscribeJob(jobID string) (<-chan *RetryEvent, func(), error)
	// SubscribeAll subscribes to all events.
	SubscribeAll() (<-chan *RetryEvent, func(), error)
}
