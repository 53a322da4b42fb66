package report

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// VerboseEnv is the environment variable enabling verbose per-test
// reporting. Any value other than empty, "0" and "false" enables it.
const VerboseEnv = "REPROVE_VERBOSE"

// VerboseEnabled reports whether verbose per-test reporting is on.
func VerboseEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(VerboseEnv)))
	return v != "" && v != "0" && v != "false"
}

// PassLine renders the per-test pass summary emitted in verbose mode.
// The format is stable: external scripts pattern-match on it.
func PassLine(n int) string {
	return fmt.Sprintf("Passed %d test(s)", n)
}

// RenderSummary renders the final run summary: aggregate pass percentage,
// the distinct test categories exercised, and every failure with its error
// type, message and originating location.
func RenderSummary(snap Snapshot, categories []string) string {
	total := len(snap.Tests)
	failedTests := make(map[string]bool, len(snap.Errors))
	for _, e := range snap.Errors {
		failedTests[e.Test] = true
	}
	failed := len(failedTests)
	passed := total - failed
	if passed < 0 {
		passed = 0
	}

	percentage := 100.0
	if total > 0 {
		percentage = float64(passed) / float64(total) * 100
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d test(s) run, %d passed, %d failed (%.1f%% pass rate)\n",
		total, passed, failed, percentage)

	if len(categories) > 0 {
		distinct := distinctSorted(categories)
		fmt.Fprintf(&b, "categories exercised: %s\n", strings.Join(distinct, ", "))
	}

	for _, e := range snap.Errors {
		fmt.Fprintf(&b, "  %s\n", e)
	}

	return b.String()
}

func distinctSorted(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
