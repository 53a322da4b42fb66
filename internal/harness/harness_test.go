package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reprove/internal/engine"
	"github.com/roach88/reprove/internal/history"
	"github.com/roach88/reprove/internal/replay"
	"github.com/roach88/reprove/internal/store"
	"github.com/roach88/reprove/internal/testutil"
	"github.com/roach88/reprove/internal/witness"
)

// positiveSum fails: a+b > 0 does not hold for all int64 pairs.
func positiveSum() engine.Property {
	id := witness.NewID("Arith", "positive_sum")
	return engine.Property{
		ID:         id,
		Categories: []string{"arith"},
		Arity:      2,
		Prop: prop.ForAll(
			func(a, b int64) bool { return a+b > 0 },
			gen.Int64(),
			gen.Int64(),
		),
		Check: func(args []witness.Value) error {
			a, aok := args[0].(witness.Int)
			b, bok := args[1].(witness.Int)
			if !aok || !bok {
				return &engine.StaleWitnessError{ID: id, Reason: "expected two integers"}
			}
			if int64(a)+int64(b) > 0 {
				return nil
			}
			return fmt.Errorf("%d + %d is not positive", a, b)
		},
	}
}

// lenNonNeg passes on every input.
func lenNonNeg() engine.Property {
	return engine.Property{
		ID:         witness.NewID("Strings", "len_nonneg"),
		Categories: []string{"strings"},
		Arity:      1,
		Prop: prop.ForAll(
			func(s string) bool { return len(s) >= 0 },
			gen.AnyString(),
		),
		Check: func(args []witness.Value) error { return nil },
	}
}

func baseConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		StorePath:   filepath.Join(dir, "counterexamples.json"),
		Seed:        1234,
		MinTests:    30,
		Parallelism: 1,
	}
}

// A failing property on an empty store persists its shrunk witness, and a
// later lookup on the written file finds it.
func TestRunStoresNewCounterexample(t *testing.T) {
	cfg := baseConfig(t)
	p := positiveSum()

	rep, err := Run(context.Background(), cfg, []engine.Property{p})
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Total)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 0, rep.Passed)
	require.Contains(t, rep.Cycles, p.ID.String())
	cycle := rep.Cycles[p.ID.String()]
	assert.Equal(t, replay.OutcomeStored, cycle.Outcome)
	assert.False(t, cycle.Replayed)

	st, err := store.Load(cfg.StorePath)
	require.NoError(t, err)
	entry, found := st.Lookup(p.ID)
	require.True(t, found, "witness must survive the flush")
	require.Len(t, entry.Args, 2)
	a := entry.Args[0].(witness.Int)
	b := entry.Args[1].(witness.Int)
	assert.LessOrEqual(t, int64(a)+int64(b), int64(0))
}

// A stored witness for a now-passing property is cleared and the run
// reports a clean pass.
func TestRunClearsFixedCounterexample(t *testing.T) {
	cfg := baseConfig(t)

	fixed := engine.Property{
		ID:         witness.NewID("Arith", "positive_sum"),
		Categories: []string{"arith"},
		Arity:      2,
		Prop: prop.ForAll(
			func(a, b int64) bool { return true },
			gen.Int64(),
			gen.Int64(),
		),
		Check: func(args []witness.Value) error { return nil },
	}

	seed := store.New()
	seed.Put(fixed.ID, store.Entry{Args: []witness.Value{witness.Int(-5), witness.Int(-5)}})
	require.NoError(t, seed.Flush(cfg.StorePath))

	rep, err := Run(context.Background(), cfg, []engine.Property{fixed})
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Total)
	assert.Equal(t, 0, rep.Failed)
	assert.Equal(t, 1, rep.Passed)
	assert.Empty(t, rep.Snapshot.Errors)
	cycle := rep.Cycles[fixed.ID.String()]
	assert.Equal(t, replay.OutcomeCleared, cycle.Outcome)
	assert.True(t, cycle.Replayed)

	st, err := store.Load(cfg.StorePath)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Len(), "cleared witness must not survive the flush")
}

func TestRunReplaysBeforeExploring(t *testing.T) {
	cfg := baseConfig(t)
	p := positiveSum()

	seed := store.New()
	seed.Put(p.ID, store.Entry{Args: []witness.Value{witness.Int(-7), witness.Int(0)}})
	require.NoError(t, seed.Flush(cfg.StorePath))

	rep, err := Run(context.Background(), cfg, []engine.Property{p})
	require.NoError(t, err)

	cycle := rep.Cycles[p.ID.String()]
	assert.Equal(t, replay.OutcomeReStored, cycle.Outcome)
	assert.True(t, cycle.Replayed)
	assert.Equal(t, 1, rep.Failed)
}

func TestRunRecoversWorkerPanic(t *testing.T) {
	cfg := baseConfig(t)

	id := witness.NewID("Panics", "boom")
	p := engine.Property{
		ID:    id,
		Arity: 1,
		Check: func(args []witness.Value) error { panic("boom") },
	}
	seed := store.New()
	seed.Put(id, store.Entry{Args: []witness.Value{witness.Int(1)}})
	require.NoError(t, seed.Flush(cfg.StorePath))

	rep, err := Run(context.Background(), cfg, []engine.Property{p})
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Failed)
	require.Len(t, rep.Snapshot.Errors, 1)
	failure := rep.Snapshot.Errors[0]
	assert.Equal(t, id.String(), failure.Test)
	assert.Contains(t, failure.Reason.Report(), "worker died")
	assert.Contains(t, failure.Reason.Message, "boom")
}

func TestRunParallel(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Parallelism = 4

	props := []engine.Property{positiveSum(), lenNonNeg()}
	rep, err := Run(context.Background(), cfg, props)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Total)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 1, rep.Passed)
	assert.Contains(t, rep.Summary, "2 test(s) run")
	assert.Contains(t, rep.Summary, "categories exercised: arith, strings")
}

func TestRunCancelledSkipsRemaining(t *testing.T) {
	cfg := baseConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := Run(ctx, cfg, []engine.Property{positiveSum(), lenNonNeg()})
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Total)
}

func TestRunCorruptStoreWarnsAndContinues(t *testing.T) {
	cfg := baseConfig(t)
	require.NoError(t, os.WriteFile(cfg.StorePath, []byte("{not json"), 0o644))

	rep, err := Run(context.Background(), cfg, []engine.Property{lenNonNeg()})
	require.NoError(t, err)

	require.Error(t, rep.StoreWarning)
	assert.True(t, store.IsCorruptStore(rep.StoreWarning))
	assert.Equal(t, 1, rep.Passed)
}

func TestRunVerboseOutput(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Verbose = true
	var buf bytes.Buffer
	cfg.Out = &buf

	_, err := Run(context.Background(), cfg, []engine.Property{lenNonNeg()})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Passed 1 test(s)")
	assert.Contains(t, out, "1 test(s) run, 1 passed, 0 failed (100.0% pass rate)")
}

func TestRunRecordsHistory(t *testing.T) {
	cfg := baseConfig(t)
	cfg.HistoryPath = filepath.Join(t.TempDir(), "history.db")
	cfg.Tokens = testutil.NewFixedTokenSource("run-0001")
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cfg.Now = testutil.NewDeterministicClock(base, time.Second).Now

	rep, err := Run(context.Background(), cfg, []engine.Property{positiveSum(), lenNonNeg()})
	require.NoError(t, err)
	assert.Equal(t, "run-0001", rep.RunID)

	db, err := history.Open(cfg.HistoryPath)
	require.NoError(t, err)
	defer db.Close()

	runs, err := db.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-0001", runs[0].ID)
	assert.Equal(t, 2, runs[0].Total)
	assert.Equal(t, 1, runs[0].Failed)
	assert.InDelta(t, 50.0, runs[0].PassRate, 0.001)
	assert.True(t, runs[0].StartedAt.Equal(base))

	failures, err := db.Failures(context.Background(), "run-0001")
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "Arith.positive_sum", failures[0].Test)
}

func TestRunRequiresStorePath(t *testing.T) {
	_, err := Run(context.Background(), Config{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store path")
}
