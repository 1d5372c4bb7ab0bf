// Package procdef holds the compiled process-definition model the retry
// strategy consults: activities and their retry configuration, served from a
// read-through cache over the state store.
package procdef

import (
	"fmt"

	"github.com/goccy/go-yaml"

	"github.com/procflow/retryd/internal/core"
)

// RetryConfig is the retry configuration attached to an activity. Exactly one
// of Intervals and Expression is set: Intervals is a pre-parsed ordered list
// of retry-cycle entries, Expression is evaluated against the failing job's
// execution context at decision time. Immutable once the definition is
// compiled.
type RetryConfig struct {
	Intervals  []string `yaml:"retryIntervals,omitempty"`
	Expression string   `yaml:"retryCycle,omitempty"`
}

// HasIntervals reports whether the configuration carries an explicit
// interval list.
func (c *RetryConfig) HasIntervals() bool {
	return c != nil && len(c.Intervals) > 0
}

// Activity is a node in a process model.
type Activity struct {
	ID          string       `yaml:"id"`
	Name        string       `yaml:"name,omitempty"`
	Type        string       `yaml:"type,omitempty"`
	RetryConfig *RetryConfig `yaml:"retry,omitempty"`
}

// Definition is a compiled process definition.
type Definition struct {
	ID         string      `yaml:"id"`
	Name       string      `yaml:"name,omitempty"`
	Version    int         `yaml:"version,omitempty"`
	Activities []*Activity `yaml:"activities,omitempty"`

	byID map[string]*Activity
}

// FindActivity returns the activity with the given id, or nil.
func (d *Definition) FindActivity(activityID string) *Activity {
	if d == nil {
		return nil
	}
	return d.byID[activityID]
}

// Parse compiles a YAML deployment document into a Definition. Interval
// lists and cycle expressions are validated for shape only; expressions are
// resolved at failure time because they may reference execution variables.
func Parse(source []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(source, &def); err != nil {
		return nil, core.NewValidationError(fmt.Sprintf("invalid process definition: %v", err), nil)
	}
	if def.ID == "" {
		return nil, core.NewValidationError("process definition requires an id", nil)
	}

	def.byID = make(map[string]*Activity, len(def.Activities))
	for _, activity := range def.Activities {
		if activity.ID == "" {
			return nil, core.NewValidationError("activity requires an id", map[string]any{
				"definition_id": def.ID,
			})
		}
		if _, dup := def.byID[activity.ID]; dup {
			return nil, core.NewValidationError("duplicate activity id", map[string]any{
				"definition_id": def.ID,
				"activity_id":   activity.ID,
			})
		}
		if cfg := activity.RetryConfig; cfg != nil {
			if cfg.HasIntervals() && cfg.Expression != "" {
				return nil, core.NewValidationError("activity retry config cannot set both retryIntervals and retryCycle", map[string]any{
					"definition_id": def.ID,
					"activity_id":   activity.ID,
				})
			}
		}
		def.byID[activity.ID] = activity
	}

	return &def, nil
}
