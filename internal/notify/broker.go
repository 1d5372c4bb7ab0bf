// Package notify fans retry events out to in-process subscribers and carries
// the acquisition wake signal between the retry strategy and the scheduler.
package notify

import (
	"log/slog"
	"sync"

	"github.com/procflow/retryd/internal/core"
)

// subscription represents a single subscriber channel with its filter.
type subscription struct {
	ch     chan *core.RetryEvent
	filter func(*core.RetryEvent) bool
}

// Broker implements core.EventPublisher and core.EventSubscriber using
// in-memory fan-out, and exposes a coalescing wake channel that the
// orchestrator signals after every applied decision.
type Broker struct {
	mu   sync.RWMutex
	subs map[*subscription]struct{}
	wake chan struct{}
	done chan struct{}
}

// NewBroker creates a new in-memory Broker.
func NewBroker() *Broker {
	return &Broker{
		subs: make(map[*subscription]struct{}),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// PublishRetryEvent publishes a retry event to all matching subscribers.
func (b *Broker) PublishRetryEvent(event *core.RetryEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if sub.filter == nil || sub.filter(event) {
			select {
			case sub.ch <- event:
			default:
				slog.Warn("dropping event, subscriber channel full",
					"job_id", event.JobID, "event", event.EventType)
			}
		}
	}
	return nil
}

// WakeAcquisition signals any waiting scheduler/poller that a retry decision
// was applied. Signals coalesce; the send never blocks.
func (b *Broker) WakeAcquisition() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// AcquisitionWake returns the channel the scheduler waits on.
func (b *Broker) AcquisitionWake() <-chan struct{} {
	return b.wake
}

// SubscribeJob subscribes to events for a specific job.
func (b *Broker) SubscribeJob(jobID string) (<-chan *core.RetryEvent, func(), error) {
	return b.subscribe(func(e *core.RetryEvent) bool {
		return e.JobID == jobID
	})
}

// SubscribeAll subscribes to all events.
func (b *Broker) SubscribeAll() (<-chan *core.RetryEvent, func(), error) {
	return b.subscribe(nil)
}

func (b *Broker) subscribe(filter func(*core.RetryEvent) bool) (<-chan *core.RetryEvent, func(), error) {
	ch := make(chan *core.RetryEvent, 64)
	sub := &subscription{ch: ch, filter: filter}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
		close(ch)
	}

	return ch, unsubscribe, nil
}

// Close shuts down the broker and removes all subscriptions.
func (b *Broker) Close() error {
	close(b.done)
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		close(sub.ch)
	}
	b.subs = make(map[*subscription]struct{})
	return nil
}
