package core

import (
	"testing"
	"time"
)

func TestParseCycle_RepeatingInterval(t *testing.T) {
	tests := []struct {
		input        string
		wantRepeat   int
		wantInterval time.Duration
	}{
		{"R3/PT10M", 3, 10 * time.Minute},
		{"R1/PT5S", 1, 5 * time.Second},
		{"R5/PT1H30M", 5, 90 * time.Minute},
		{"R10/P1D", 10, 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cycle, err := ParseCycle(tt.input)
			if err != nil {
				t.Fatalf("ParseCycle(%q) error = %v", tt.input, err)
			}
			if cycle.Repeat != tt.wantRepeat {
				t.Errorf("Repeat = %d, want %d", cycle.Repeat, tt.wantRepeat)
			}
			if cycle.Interval != tt.wantInterval {
				t.Errorf("Interval = %v, want %v", cycle.Interval, tt.wantInterval)
			}
			if cycle.IsCron() {
				t.Errorf("IsCron() = true for interval cycle")
			}
		})
	}
}

func TestParseCycle_PlainDuration(t *testing.T) {
	cycle, err := ParseCycle("PT5M")
	if err != nil {
		t.Fatalf("ParseCycle(PT5M) error = %v", err)
	}
	if cycle.Repeat != 1 {
		t.Errorf("Repeat = %d, want 1", cycle.Repeat)
	}
	if cycle.Interval != 5*time.Minute {
		t.Errorf("Interval = %v, want 5m", cycle.Interval)
	}
}

func TestParseCycle_Cron(t *testing.T) {
	cycle, err := ParseCycle("*/5 * * * *")
	if err != nil {
		t.Fatalf("ParseCycle(cron) error = %v", err)
	}
	if !cycle.IsCron() {
		t.Fatal("IsCron() = false, want true")
	}
	if cycle.Repeat != 1 {
		t.Errorf("Repeat = %d, want 1", cycle.Repeat)
	}

	now := time.Date(2026, 3, 1, 12, 2, 30, 0, time.UTC)
	due := cycle.DueAfter(now)
	want := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	if !due.Equal(want) {
		t.Errorf("DueAfter = %v, want %v", due, want)
	}
}

func TestParseCycle_Malformed(t *testing.T) {
	tests := []string{
		"",
		"R/PT10M",    // unbounded repeat
		"R0/PT10M",   // zero repeat
		"R3/",        // missing interval
		"R3/10m",     // not ISO 8601
		"PT",         // zero duration
		"ten minutes",
		"R3PT10M",    // missing separator
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := ParseCycle(input)
			if err == nil {
				t.Fatalf("ParseCycle(%q) = nil error, want malformed_cycle", input)
			}
			if ErrorCode(err) != ErrCodeMalformedCycle {
				t.Errorf("error code = %q, want %q", ErrorCode(err), ErrCodeMalformedCycle)
			}
		})
	}
}

func TestDueAfter_FixedInterval(t *testing.T) {
	cycle, err := ParseCycle("R3/PT10M")
	if err != nil {
		t.Fatalf("ParseCycle error = %v", err)
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	due := cycle.DueAfter(now)
	if want := now.Add(10 * time.Minute); !due.Equal(want) {
		t.Errorf("DueAfter = %v, want %v", due, want)
	}

	// Resolving the same expression at the same instant is deterministic.
	again, _ := ParseCycle("R3/PT10M")
	if d2 := again.DueAfter(now); !d2.Equal(due) {
		t.Errorf("second resolution = %v, want %v", d2, due)
	}
}
