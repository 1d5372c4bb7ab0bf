package dispatch

import (
	"context"

	"github.com/procflow/retryd/internal/core"
	"github.com/procflow/retryd/internal/metrics"
)

// MemoryDispatcher delivers envelopes on an in-process channel. Used in
// memory-store mode and in tests; workers in the same process consume from
// Jobs().
type MemoryDispatcher struct {
	jobs chan *Envelope
}

// NewMemoryDispatcher creates a memory dispatcher with the given buffer.
func NewMemoryDispatcher(buffer int) *MemoryDispatcher {
	return &MemoryDispatcher{jobs: make(chan *Envelope, buffer)}
}

// Dispatch enqueues the job's envelope. Blocks when the buffer is full so a
// slow consumer exerts backpressure on the scheduler.
func (d *MemoryDispatcher) Dispatch(ctx context.Context, job *core.Job) error {
	select {
	case d.jobs <- NewEnvelope(job):
		metrics.JobsDispatched.Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jobs returns the channel consumers receive dispatched envelopes on.
func (d *MemoryDispatcher) Jobs() <-chan *Envelope { return d.jobs }

// Close closes the envelope channel.
func (d *MemoryDispatcher) Close() error {
	close(d.jobs)
	return nil
}
