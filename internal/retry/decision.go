package retry

import "time"

// Strategy names, used as metric labels and event reasons.
const (
	StrategyCustom   = "custom"
	StrategyStandard = "standard"
)

// Decision is the outcome of resolving a retry strategy for one failure.
// The custom resolver returns it as a value; resolution failures are ordinary
// errors the orchestrator converts into the standard decision, so the
// degradation path is visible in the types instead of hiding behind a broad
// recover.
type Decision struct {
	Strategy string

	// InitializeRetries, when set, overwrites the job's retry counter before
	// the decrement. Only ever set on a job's first execution failure.
	InitializeRetries *int

	// DueAt, when set, is the future lock expiration: the instant the job
	// becomes eligible for re-execution. Nil releases the lock instead, which
	// makes the job immediately re-eligible.
	DueAt *time.Time
}

// standardDecision is the minimal always-available decision: unlock and
// decrement. It reads and writes only fields every job carries, so applying
// it cannot fail for configuration reasons.
func standardDecision() *Decision {
	return &Decision{Strategy: StrategyStandard}
}
