package retry

import (
	"context"

	"github.com/procflow/retryd/internal/core"
	"github.com/procflow/retryd/internal/expr"
	"github.com/procflow/retryd/internal/procdef"
)

// resolveCustom produces the configured retry decision for a failing job.
// Every failure mode comes back as an engine error (malformed_cycle,
// evaluation_failure, unresolved_configuration); the orchestrator converts
// all of them into the standard decision.
func (h *Handler) resolveCustom(ctx context.Context, job *core.Job, activity *procdef.Activity) (*Decision, error) {
	var cycleExpr string
	var intervals []string

	if activity != nil {
		cfg := activity.RetryConfig
		if cfg == nil {
			return nil, core.NewUnresolvedConfigurationError(job.ID)
		}
		switch {
		case cfg.HasIntervals():
			intervals = cfg.Intervals
		case cfg.Expression != "":
			resolved, err := h.evaluateCycleExpression(ctx, job, cfg.Expression)
			if err != nil {
				return nil, err
			}
			if core.HasIntervalList(resolved) {
				intervals = core.SplitRetryIntervals(resolved)
			} else {
				cycleExpr = resolved
			}
		}
	} else {
		// No activity: the process-wide cycle applies. It is always a scalar
		// expression, never an interval list.
		cycleExpr = h.globalCycle
	}

	if cycleExpr == "" && len(intervals) == 0 {
		return nil, core.NewUnresolvedConfigurationError(job.ID)
	}

	first := job.IsFirstExecution()
	decision := &Decision{Strategy: StrategyCustom}

	var cycle *core.DurationCycle
	if len(intervals) > 0 {
		retries := job.Retries
		if first {
			retries = len(intervals)
			decision.InitializeRetries = &retries
		}
		parsed, err := core.ParseCycle(core.SelectRetryInterval(intervals, retries))
		if err != nil {
			return nil, err
		}
		cycle = parsed
	} else {
		parsed, err := core.ParseCycle(cycleExpr)
		if err != nil {
			return nil, err
		}
		cycle = parsed
		if first {
			// A per-activity retry budget overrides whatever counter the job
			// carries, exactly once, on the first observed failure.
			times := parsed.Repeat
			decision.InitializeRetries = &times
		}
	}

	due := cycle.DueAfter(h.now())
	decision.DueAt = &due
	return decision, nil
}

// evaluateCycleExpression resolves an activity retry-cycle expression against
// the failing job's execution context.
func (h *Handler) evaluateCycleExpression(ctx context.Context, job *core.Job, expression string) (string, error) {
	var scope expr.Scope

	if job.ExecutionID != "" {
		record, err := h.store.GetExecution(ctx, job.ExecutionID)
		if err != nil {
			// Evaluation proceeds without a scope; a pure literal still
			// resolves.
			h.logger.Debug("execution context unavailable",
				"job_id", job.ID, "execution_id", job.ExecutionID, "error", err)
		} else {
			scope = executionScope(record.Variables)
		}
	}

	value, err := h.evaluator.Evaluate(ctx, expression, scope)
	if err != nil {
		return "", core.NewEvaluationFailureError(expression, err)
	}
	if value == "" {
		return "", core.NewUnresolvedConfigurationError(job.ID)
	}
	return value, nil
}

func executionScope(variables map[string]string) expr.Scope {
	scope := make(expr.MapScope, len(variables))
	for name, value := range variables {
		scope[name] = value
	}
	return scope
}
