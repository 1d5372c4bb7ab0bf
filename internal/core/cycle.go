package core

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var repeatingCyclePattern = regexp.MustCompile(`^R(\d+)/(.+)$`)

// DurationCycle is the parsed form of a single retry-cycle expression: either
// a fixed interval with a repeat count ("R3/PT10M", "PT5M") or a cron
// schedule whose next firing is computed relative to "now".
type DurationCycle struct {
	// Repeat is the total number of occurrences encoded in the expression.
	// It seeds the job's retry counter on first failure. Plain durations and
	// cron schedules carry an implicit repeat of 1.
	Repeat   int
	Interval time.Duration
	schedule cron.Schedule
}

// ParseCycle parses a retry-cycle expression. The recognized grammar is an
// ISO 8601 duration literal, a bounded repeating interval "Rn/<duration>",
// or a standard cron spec.
func ParseCycle(expr string) (*DurationCycle, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, NewMalformedCycleError(expr, "empty expression")
	}

	if m := repeatingCyclePattern.FindStringSubmatch(expr); m != nil {
		repeat, err := strconv.Atoi(m[1])
		if err != nil || repeat < 1 {
			return nil, NewMalformedCycleError(expr, "repeat count must be a positive integer")
		}
		interval, err := ParseISODuration(m[2])
		if err != nil {
			return nil, NewMalformedCycleError(expr, err.Error())
		}
		return &DurationCycle{Repeat: repeat, Interval: interval}, nil
	}

	if strings.HasPrefix(expr, "P") {
		interval, err := ParseISODuration(expr)
		if err != nil {
			return nil, NewMalformedCycleError(expr, err.Error())
		}
		return &DurationCycle{Repeat: 1, Interval: interval}, nil
	}

	// An unbounded "R/..." spec carries no retry budget; reject it rather
	// than guess one.
	if strings.HasPrefix(expr, "R") {
		return nil, NewMalformedCycleError(expr, "repeating interval requires an explicit count")
	}

	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, NewMalformedCycleError(expr, err.Error())
	}
	return &DurationCycle{Repeat: 1, schedule: schedule}, nil
}

// DueAfter returns the next occurrence of the cycle relative to now.
func (c *DurationCycle) DueAfter(now time.Time) time.Time {
	if c.schedule != nil {
		return c.schedule.Next(now)
	}
	return now.Add(c.Interval)
}

// IsCron reports whether the cycle is driven by a cron schedule rather than
// a fixed interval.
func (c *DurationCycle) IsCron() bool {
	return c.schedule != nil
}
