package reporter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/saaga0h/teferi-timeline/e2e/internal/scenario"
)

// SaveSummary saves a JSON summary of test results
func SaveSummary(result *scenario.TestResult, filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// FormatResult renders a result as a short human readable report
func FormatResult(result *scenario.TestResult) string {
	var b strings.Builder

	status := "PASS"
	if !result.Passed {
		status = "FAIL"
	}
	fmt.Fprintf(&b, "%s %s (%d slots)\n", status, result.Scenario, len(result.Slots))

	for _, slot := range result.Slots {
		activity := slot.Activity
		if activity == "" {
			activity = "-"
		}
		fmt.Fprintf(&b, "  %s  %-10s %-6s %6dm\n",
			slot.StartTime.Format("15:04"), slot.Category, activity, slot.DurationSeconds/60)
	}
	for _, failure := range result.Failures {
		fmt.Fprintf(&b, "  ! %s\n", failure)
	}

	return b.String()
}
