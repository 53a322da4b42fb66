package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reprove/internal/history"
	"github.com/roach88/reprove/internal/report"
)

func seedHistory(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := history.Open(path)
	require.NoError(t, err)
	defer db.Close()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	run := history.Run{
		ID:         "run-0001",
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
		Total:      3,
		Failed:     1,
		PassRate:   2.0 / 3.0 * 100,
	}
	failures := []report.TestError{{
		Test:   "Arith.positive_sum",
		Reason: report.Failure{Kind: report.FailureAssertion, Message: "-1 + 0 is not positive"},
	}}
	require.NoError(t, db.RecordRun(context.Background(), run, failures))
	return path
}

func TestHistoryCommand(t *testing.T) {
	path := seedHistory(t)

	out, err := runCommand(t, "history", path)
	require.NoError(t, err)
	assert.Contains(t, out, "run-0001")
	assert.Contains(t, out, "3 test(s), 1 failed (66.7% pass rate)")
	assert.NotContains(t, out, "positive_sum")
}

func TestHistoryCommandWithFailures(t *testing.T) {
	path := seedHistory(t)

	out, err := runCommand(t, "history", path, "--failures")
	require.NoError(t, err)
	assert.Contains(t, out, "Arith.positive_sum")
	assert.Contains(t, out, "not positive")
}

func TestHistoryCommandJSON(t *testing.T) {
	path := seedHistory(t)

	out, err := runCommand(t, "--format", "json", "history", path)
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   []HistoryRun `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "run-0001", resp.Data[0].ID)
	assert.Equal(t, 3, resp.Data[0].Total)
}

func TestHistoryCommandMissingDB(t *testing.T) {
	_, err := runCommand(t, "history", filepath.Join(t.TempDir(), "nope.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
