// Package retry implements the retry scheduling strategy: given a job that
// has just failed, decide how many attempts remain and when the job becomes
// eligible for re-execution. The decision is total: configuration and
// evaluation problems degrade to the standard strategy, they never abort
// failure processing.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/procflow/retryd/internal/core"
	"github.com/procflow/retryd/internal/expr"
	"github.com/procflow/retryd/internal/metrics"
	"github.com/procflow/retryd/internal/procdef"
	"github.com/procflow/retryd/internal/state"
)

// AcquisitionNotifier wakes whatever is waiting to hand re-eligible jobs to
// the worker pool.
type AcquisitionNotifier interface {
	WakeAcquisition()
}

// Handler drives the per-failure retry state machine. One invocation handles
// exactly one job inside the caller's unit of work; the caller holds the
// job's lock for the duration of the call.
type Handler struct {
	store       state.Store
	cache       *procdef.Cache
	evaluator   expr.Evaluator
	publisher   core.EventPublisher
	notifier    AcquisitionNotifier
	logger      *slog.Logger
	globalCycle string
	now         func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithGlobalCycle sets the process-engine-wide fallback retry cycle
// expression, used when a failing job has no activity-level configuration.
func WithGlobalCycle(expression string) Option {
	return func(h *Handler) { h.globalCycle = expression }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// NewHandler creates a retry Handler.
func NewHandler(store state.Store, cache *procdef.Cache, evaluator expr.Evaluator, publisher core.EventPublisher, notifier AcquisitionNotifier, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		store:     store,
		cache:     cache,
		evaluator: evaluator,
		publisher: publisher,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleFailure processes one job failure. It always produces a decision:
// the only returned errors are state-store write failures, which the
// surrounding unit of work turns into a transaction abort. A vanished job is
// a logged no-op.
func (h *Handler) HandleFailure(ctx context.Context, jobID string, cause *core.Failure) error {
	start := time.Now()
	defer func() {
		metrics.DecisionDuration.Observe(time.Since(start).Seconds())
	}()

	record, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		if core.ErrorCode(err) == core.ErrCodeNotFound {
			h.logger.Debug("failed job not found", "job_id", jobID)
			metrics.FailedJobsNotFound.Inc()
			return nil
		}
		return err
	}
	job := state.RecordToJob(record)

	activity := h.currentActivity(ctx, job)

	var decision *Decision
	if activity == nil && h.globalCycle == "" {
		h.logger.Debug("no retry configuration, using standard strategy", "job_id", job.ID)
		metrics.FallbacksApplied.WithLabelValues(core.ErrCodeUnresolvedConfiguration).Inc()
		decision = standardDecision()
	} else {
		decision, err = h.resolveCustom(ctx, job, activity)
		if err != nil {
			reason := core.ErrorCode(err)
			if reason == "" {
				reason = core.ErrCodeInternalError
			}
			h.logger.Warn("custom retry strategy failed, falling back to standard",
				"job_id", job.ID, "reason", reason, "error", err)
			metrics.FallbacksApplied.WithLabelValues(reason).Inc()
			decision = standardDecision()
		}
	}

	return h.apply(ctx, job, cause, decision)
}

// currentActivity resolves the activity a job is associated with. Handler
// types outside the retry-configurable set have no activity; lookup failures
// are logged and treated the same way so the decision can still be produced.
func (h *Handler) currentActivity(ctx context.Context, job *core.Job) *procdef.Activity {
	if !core.IsRetryConfigurableHandler(job.HandlerType) {
		return nil
	}
	if job.ProcessDefinitionID == "" || job.ActivityID == "" {
		return nil
	}

	activity, err := h.cache.FindActivity(ctx, job.ProcessDefinitionID, job.ActivityID)
	if err != nil {
		h.logger.Warn("activity lookup failed",
			"job_id", job.ID,
			"process_definition_id", job.ProcessDefinitionID,
			"activity_id", job.ActivityID,
			"error", err)
		return nil
	}
	return activity
}

// apply performs the per-failure mutation: record the cause, initialize and
// decrement the retry counter, write the lock decision, publish, notify,
// log. Standard and custom decisions go through this one function so the two
// paths cannot diverge in which side effects they perform.
func (h *Handler) apply(ctx context.Context, job *core.Job, cause *core.Failure, decision *Decision) error {
	now := h.now()
	updates := make(map[string]any)

	if cause != nil && (cause.Message != "" || cause.Detail != "") {
		ref := core.NewUUIDv7()
		err := h.store.PutFailure(ctx, &state.FailureRecord{
			Ref:        ref,
			JobID:      job.ID,
			Message:    cause.Message,
			Detail:     cause.Detail,
			RecordedAt: core.FormatTime(now),
		})
		if err != nil {
			return err
		}
		job.FailureRef = ref
		job.FailureMessage = cause.Message
		updates["failure_ref"] = ref
		updates["failure_message"] = cause.Message
	}

	retries := job.Retries
	if decision.InitializeRetries != nil {
		retries = *decision.InitializeRetries
		h.logger.Debug("initializing retries from configuration", "job_id", job.ID, "retries", retries)
		metrics.RetriesInitialized.Inc()
	} else {
		h.logger.Debug("decrementing retries", "job_id", job.ID)
	}
	if retries > 0 {
		retries--
	}
	job.Retries = retries
	updates["retries"] = retries

	var dueAt string
	if decision.DueAt != nil {
		dueAt = core.FormatTime(*decision.DueAt)
		updates["lock_expires_at"] = dueAt
		updates["due_at"] = dueAt
	} else {
		updates["lock_owner"] = ""
		updates["lock_expires_at"] = ""
		updates["due_at"] = ""
	}
	job.LockExpiresAt = dueAt
	job.DueAt = dueAt

	newState := core.StateAvailable
	switch {
	case retries == 0:
		newState = core.StateExhausted
	case decision.DueAt != nil:
		newState = core.StateRetryable
	}
	job.State = newState

	if err := h.store.UpdateJob(ctx, job.ID, newState, updates); err != nil {
		return err
	}

	if retries > 0 && decision.DueAt != nil {
		if err := h.store.AddRetrySchedule(ctx, job.ID, decision.DueAt.UnixMilli()); err != nil {
			return err
		}
	} else {
		if err := h.store.RemoveRetrySchedule(ctx, job.ID); err != nil {
			return err
		}
	}

	metrics.RetriesScheduled.WithLabelValues(decision.Strategy).Inc()

	eventType := core.EventRetryScheduled
	if decision.Strategy == StrategyStandard {
		eventType = core.EventFallbackApplied
	}
	event := core.NewRetryEvent(eventType, job)
	event.DueAt = dueAt
	h.publisher.PublishRetryEvent(event)

	if retries == 0 {
		metrics.RetriesExhausted.Inc()
		h.publisher.PublishRetryEvent(core.NewRetryEvent(core.EventRetriesExhausted, job))
	}

	h.notifier.WakeAcquisition()

	h.logger.Info("retry decision applied",
		"job_id", job.ID,
		"strategy", decision.Strategy,
		"retries", retries,
		"due_at", dueAt,
		"state", newState)
	return nil
}
