// Package scheduler runs the background loops that promote due retries back
// into execution.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/procflow/retryd/internal/core"
	"github.com/procflow/retryd/internal/dispatch"
	"github.com/procflow/retryd/internal/state"
)

const promoteBatchTimeout = 10 * time.Second

// Waker exposes the wake channel retry decisions signal on, so promotion can
// react immediately instead of waiting out the tick.
type Waker interface {
	AcquisitionWake() <-chan struct{}
}

// Scheduler promotes retry-scheduled jobs whose due time has passed: the job
// goes back to available and its envelope is handed to the dispatcher.
type Scheduler struct {
	store      state.Store
	dispatcher dispatch.Dispatcher
	publisher  core.EventPublisher
	waker      Waker
	logger     *slog.Logger
	interval   time.Duration
	now        func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a Scheduler. interval bounds how long a due job can wait when
// no wake signal arrives.
func New(store state.Store, dispatcher dispatch.Dispatcher, publisher core.EventPublisher, waker Waker, logger *slog.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &Scheduler{
		store:      store,
		dispatcher: dispatcher,
		publisher:  publisher,
		waker:      waker,
		logger:     logger,
		interval:   interval,
		now:        time.Now,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins the promotion loop.
func (s *Scheduler) Start() {
	go s.runLoop()
}

// Stop signals the loop to exit and waits for it to drain.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
}

func (s *Scheduler) runLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		case <-s.waker.AcquisitionWake():
		}

		ctx, cancel := context.WithTimeout(context.Background(), promoteBatchTimeout)
		if err := s.PromoteDueRetries(ctx); err != nil {
			s.logger.Error("retry promotion failed", "error", err)
		}
		cancel()
	}
}

// PromoteDueRetries moves every due retry-scheduled job back to available and
// dispatches it. Jobs that were exhausted or removed since scheduling are
// dropped from the schedule without dispatch.
func (s *Scheduler) PromoteDueRetries(ctx context.Context) error {
	due, err := s.store.GetDueRetryJobs(ctx, s.now().UnixMilli())
	if err != nil {
		return err
	}

	for _, jobID := range due {
		if err := s.promote(ctx, jobID); err != nil {
			s.logger.Error("promote retry failed", "job_id", jobID, "error", err)
		}
	}
	return nil
}

func (s *Scheduler) promote(ctx context.Context, jobID string) error {
	record, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		if core.ErrorCode(err) == core.ErrCodeNotFound {
			// Deleted since scheduling: clean up and move on.
			return s.store.RemoveRetrySchedule(ctx, jobID)
		}
		return err
	}

	job := state.RecordToJob(record)
	if job.State != core.StateRetryable || job.Retries == 0 {
		return s.store.RemoveRetrySchedule(ctx, jobID)
	}

	updates := map[string]any{
		"lock_owner":      "",
		"lock_expires_at": "",
		"due_at":          "",
	}
	if err := s.store.UpdateJob(ctx, jobID, core.StateAvailable, updates); err != nil {
		return err
	}
	if err := s.store.RemoveRetrySchedule(ctx, jobID); err != nil {
		return err
	}

	job.State = core.StateAvailable
	job.LockOwner = ""
	job.LockExpiresAt = ""
	job.DueAt = ""

	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		return err
	}

	s.publisher.PublishRetryEvent(core.NewRetryEvent(core.EventJobDispatched, job))
	s.logger.Debug("due retry promoted", "job_id", jobID, "retries", job.Retries)
	return nil
}
