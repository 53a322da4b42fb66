package report

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorStartedUpdatesCurrentAndTests(t *testing.T) {
	a := NewAggregator()
	defer a.Stop()

	a.Send(Started{Test: "MyMod.first"})
	a.Send(Started{Test: "MyMod.second"})

	snap := a.Status()
	assert.Equal(t, "MyMod.second", snap.Current)
	assert.Equal(t, []string{"MyMod.second", "MyMod.first"}, snap.Tests,
		"tests are most recent first")
	assert.Empty(t, snap.Errors)
}

func TestAggregatorErrorAttachesToCurrentTest(t *testing.T) {
	a := NewAggregator()
	defer a.Stop()

	a.Send(Started{Test: "MyMod.p"})
	a.Send(ErrorReported{Reason: Failure{Kind: FailureAssertion, Message: "boom"}})

	snap := a.Status()
	require.Len(t, snap.Errors, 1)
	assert.Equal(t, "MyMod.p", snap.Errors[0].Test)
	assert.Equal(t, "boom", snap.Errors[0].Reason.Message)
}

func TestAggregatorFailedKeepsExplicitTest(t *testing.T) {
	a := NewAggregator()
	defer a.Stop()

	a.Send(Started{Test: "MyMod.running"})
	a.Send(Failed{Test: "MyMod.other", Reason: Failure{Kind: FailureAssertion, Message: "nope"}})

	snap := a.Status()
	require.Len(t, snap.Errors, 1)
	assert.Equal(t, "MyMod.other", snap.Errors[0].Test)
}

// A snapshot taken after Send returns must include that message, every
// time, not just when the collector happens to drain first.
func TestAggregatorStatusSeesCompletedSends(t *testing.T) {
	a := NewAggregator()
	defer a.Stop()

	for i := 0; i < 200; i++ {
		name := fmt.Sprintf("Mod.p%d", i)
		a.Send(Started{Test: name})
		snap := a.Status()
		require.Equal(t, name, snap.Current, "iteration %d", i)
		require.Len(t, snap.Tests, i+1, "iteration %d", i)
	}
}

func TestAggregatorSendAfterStopIsSilent(t *testing.T) {
	a := NewAggregator()
	a.Send(Started{Test: "MyMod.p"})
	a.Stop()

	// Must not panic, must not mutate
	a.Send(Started{Test: "MyMod.late"})
	a.Send(ErrorReported{Reason: Failure{Message: "late"}})

	snap := a.Status()
	assert.Equal(t, []string{"MyMod.p"}, snap.Tests)
	assert.Empty(t, snap.Errors)
}

func TestAggregatorStopIdempotent(t *testing.T) {
	a := NewAggregator()
	a.Stop()
	a.Stop()
}

func TestAggregatorConcurrentSenders(t *testing.T) {
	a := NewAggregator()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("Mod.p%d", i)
			a.Send(Started{Test: name})
			if i%5 == 0 {
				a.Send(Failed{Test: name, Reason: Failure{Kind: FailureAssertion, Message: "bad"}})
			}
		}(i)
	}
	wg.Wait()
	a.Stop()

	snap := a.Status()
	assert.Len(t, snap.Tests, n)
	assert.Len(t, snap.Errors, n/5)
}

func TestFailureReportDistinguishesWorkerDeath(t *testing.T) {
	direct := Failure{Kind: FailureAssertion, Type: "ErrNotPositive", Message: "0 + -1", Location: "MyMod.positive_sum"}
	assert.Equal(t, "exception was raised: ErrNotPositive: 0 + -1 (at MyMod.positive_sum)", direct.Report())

	worker := Failure{Kind: FailureWorkerPanic, Message: "index out of range"}
	assert.Equal(t, "worker died with reason: index out of range", worker.Report())
}

func TestPassLineFormatStable(t *testing.T) {
	assert.Equal(t, "Passed 100 test(s)", PassLine(100))
	assert.Equal(t, "Passed 1 test(s)", PassLine(1))
}

func TestVerboseEnabled(t *testing.T) {
	t.Setenv(VerboseEnv, "")
	assert.False(t, VerboseEnabled())

	t.Setenv(VerboseEnv, "0")
	assert.False(t, VerboseEnabled())

	t.Setenv(VerboseEnv, "false")
	assert.False(t, VerboseEnabled())

	t.Setenv(VerboseEnv, "1")
	assert.True(t, VerboseEnabled())

	t.Setenv(VerboseEnv, "true")
	assert.True(t, VerboseEnabled())
}

func TestRenderSummary(t *testing.T) {
	snap := Snapshot{
		Tests: []string{"MyMod.b", "MyMod.a"},
		Errors: []TestError{
			{Test: "MyMod.b", Reason: Failure{Kind: FailureAssertion, Type: "ErrSum", Message: "not positive"}},
		},
	}

	out := RenderSummary(snap, []string{"arith", "lists", "arith"})

	assert.Contains(t, out, "2 test(s) run, 1 passed, 1 failed (50.0% pass rate)")
	assert.Contains(t, out, "categories exercised: arith, lists")
	assert.Contains(t, out, "exception was raised: ErrSum: not positive")
}

func TestRenderSummaryEmptyRun(t *testing.T) {
	out := RenderSummary(Snapshot{}, nil)
	assert.Contains(t, out, "0 test(s) run, 0 passed, 0 failed (100.0% pass rate)")
}
