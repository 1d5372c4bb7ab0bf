package core

import "strings"

// HasIntervalList reports whether a retry-cycle expression is a
// comma-separated interval list rather than a single cycle.
func HasIntervalList(expr string) bool {
	return strings.Contains(expr, ",")
}

// SplitRetryIntervals splits a comma-separated retry-cycle expression into
// its interval entries. Entries are trimmed; empty entries are dropped.
func SplitRetryIntervals(expr string) []string {
	parts := strings.Split(expr, ",")
	intervals := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			intervals = append(intervals, p)
		}
	}
	return intervals
}

// SelectRetryInterval picks the interval for the current attempt out of an
// ordered list. The first failure consumes intervals[0], the second
// intervals[1], and so on; once the job has failed more often than there are
// configured intervals, the last one repeats.
//
// The caller initializes retries to len(intervals) on the first failure, so
// the attempt index is len(intervals) - retries.
func SelectRetryInterval(intervals []string, retries int) string {
	if len(intervals) == 0 {
		return ""
	}
	if retries >= 1 && len(intervals) >= retries {
		return intervals[len(intervals)-retries]
	}
	return intervals[len(intervals)-1]
}
