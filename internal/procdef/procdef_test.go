package procdef

import (
	"context"
	"testing"

	"github.com/procflow/retryd/internal/core"
	"github.com/procflow/retryd/internal/state"
)

const sampleDefinition = `
id: order-process
name: Order Process
version: 2
activities:
  - id: reserveStock
    type: serviceTask
    retry:
      retryCycle: R3/PT10M
  - id: chargeCard
    type: serviceTask
    retry:
      retryIntervals: [PT5M, PT10M, PT20M]
  - id: shipOrder
    type: serviceTask
`

func TestParse(t *testing.T) {
	def, err := Parse([]byte(sampleDefinition))
	if err != nil {
		t.Fatalf("Parse error = %v", err)
	}
	if def.ID != "order-process" || def.Version != 2 {
		t.Errorf("definition = %+v", def)
	}

	reserve := def.FindActivity("reserveStock")
	if reserve == nil || reserve.RetryConfig == nil {
		t.Fatal("reserveStock missing retry config")
	}
	if reserve.RetryConfig.HasIntervals() {
		t.Error("reserveStock should carry an expression, not intervals")
	}
	if reserve.RetryConfig.Expression != "R3/PT10M" {
		t.Errorf("expression = %q", reserve.RetryConfig.Expression)
	}

	charge := def.FindActivity("chargeCard")
	if charge == nil || !charge.RetryConfig.HasIntervals() {
		t.Fatal("chargeCard missing interval list")
	}
	if len(charge.RetryConfig.Intervals) != 3 {
		t.Errorf("intervals = %v", charge.RetryConfig.Intervals)
	}

	if ship := def.FindActivity("shipOrder"); ship == nil || ship.RetryConfig != nil {
		t.Error("shipOrder should have no retry config")
	}
	if def.FindActivity("unknown") != nil {
		t.Error("unknown activity should be nil")
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"missing id", "name: nameless"},
		{"activity without id", "id: p1\nactivities:\n  - name: anon"},
		{"duplicate activity", "id: p1\nactivities:\n  - id: a\n  - id: a"},
		{"both intervals and cycle", "id: p1\nactivities:\n  - id: a\n    retry:\n      retryCycle: PT5M\n      retryIntervals: [PT5M]"},
		{"not yaml", ":\n::::"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.source))
			if core.ErrorCode(err) != core.ErrCodeValidationError {
				t.Errorf("Parse error = %v, want validation_error", err)
			}
		})
	}
}

func TestCache_ReadThroughAndInvalidate(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	cache := NewCache(store)

	if _, err := cache.Get(ctx, "order-process"); core.ErrorCode(err) != core.ErrCodeNotFound {
		t.Fatalf("Get(missing) error = %v, want not_found", err)
	}

	store.PutDefinition(ctx, &state.DefinitionRecord{
		ID:     "order-process",
		Source: sampleDefinition,
	})

	activity, err := cache.FindActivity(ctx, "order-process", "reserveStock")
	if err != nil {
		t.Fatalf("FindActivity error = %v", err)
	}
	if activity == nil || activity.RetryConfig.Expression != "R3/PT10M" {
		t.Fatalf("activity = %+v", activity)
	}

	// A redeployment is invisible until the entry is invalidated.
	store.PutDefinition(ctx, &state.DefinitionRecord{
		ID:     "order-process",
		Source: "id: order-process\nactivities:\n  - id: reserveStock\n    retry:\n      retryCycle: R5/PT1M\n",
	})
	activity, _ = cache.FindActivity(ctx, "order-process", "reserveStock")
	if activity.RetryConfig.Expression != "R3/PT10M" {
		t.Errorf("cached expression = %q, want stale R3/PT10M", activity.RetryConfig.Expression)
	}

	cache.Invalidate("order-process")
	activity, _ = cache.FindActivity(ctx, "order-process", "reserveStock")
	if activity.RetryConfig.Expression != "R5/PT1M" {
		t.Errorf("reloaded expression = %q, want R5/PT1M", activity.RetryConfig.Expression)
	}
}
