package taskrunner

import (
	"fmt"
	"strings"
	"time"
)

// RenderSummaryLine returns the summary line printed after multi-package runs.
func RenderSummaryLine(outcome Outcome) string {
	packageCount := len(outcome.Results)
	if packageCount <= 1 {
		return ""
	}

	parts := []string{
		fmt.Sprintf("Summary: total.packages=%d", packageCount),
		fmt.Sprintf("succeeded=%d", outcome.Succeeded()),
		fmt.Sprintf("failed=%d", outcome.Failed()),
	}

	failedNames := make([]string, 0, outcome.Failed())
	for _, result := range outcome.Results {
		if result.Err != nil {
			failedNames = append(failedNames, result.Name)
		}
	}
	if len(failedNames) > 0 {
		parts = append(parts, fmt.Sprintf("failed.packages=%s", strings.Join(failedNames, ",")))
	}

	parts = append(parts, fmt.Sprintf("duration_human=%s", outcome.Duration.Round(time.Millisecond)))
	parts = append(parts, fmt.Sprintf("duration_ms=%d", outcome.Duration.Milliseconds()))

	return strings.Join(parts, " ")
}
