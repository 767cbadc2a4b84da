package checker

import (
	"fmt"
	"time"

	"github.com/saaga0h/teferi-timeline/e2e/internal/scenario"
)

// CheckSlots compares the listed slots with the expectations and returns a
// description of every mismatch
func CheckSlots(expected scenario.Expectations, observed []scenario.ObservedSlot) []string {
	var failures []string

	if expected.SlotCount != nil && len(observed) != *expected.SlotCount {
		failures = append(failures, fmt.Sprintf("expected %d slots, got %d", *expected.SlotCount, len(observed)))
	}

	for i, want := range expected.Slots {
		if i >= len(observed) {
			failures = append(failures, fmt.Sprintf("slot %d: missing", i))
			continue
		}
		got := observed[i]

		if want.Category != "" && got.Category != want.Category {
			failures = append(failures, fmt.Sprintf("slot %d: category %q, want %q", i, got.Category, want.Category))
		}
		if want.NotCategory != "" && got.Category == want.NotCategory {
			failures = append(failures, fmt.Sprintf("slot %d: category must not be %q", i, want.NotCategory))
		}
		if want.Activity != "" && got.Activity != want.Activity {
			failures = append(failures, fmt.Sprintf("slot %d: activity %q, want %q", i, got.Activity, want.Activity))
		}
		if want.MinDuration > 0 {
			duration := time.Duration(got.DurationSeconds) * time.Second
			if duration < want.MinDuration {
				failures = append(failures, fmt.Sprintf("slot %d: duration %s, want at least %s", i, duration, want.MinDuration))
			}
		}
	}

	return failures
}
