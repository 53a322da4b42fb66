// Package harness runs a batch of properties end to end: load the
// counterexample store, replay-then-explore each property through the
// controller, aggregate results, flush the store and record the run.
//
// Properties run on a bounded worker pool. A panicking property is
// recovered and reported as a worker death; it never takes the run down.
package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/reprove/internal/engine"
	"github.com/roach88/reprove/internal/history"
	"github.com/roach88/reprove/internal/replay"
	"github.com/roach88/reprove/internal/report"
	"github.com/roach88/reprove/internal/store"
)

// TokenSource mints run identifiers. The default mints a UUIDv7 per run so
// history rows sort chronologically by id.
type TokenSource interface {
	Token() string
}

type uuidTokenSource struct{}

func (uuidTokenSource) Token() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Config configures a harness run.
type Config struct {
	// StorePath is the counterexample file. Required.
	StorePath string

	// HistoryPath is the run-history database. Empty disables recording.
	HistoryPath string

	// Parallelism bounds concurrent property workers. Zero or negative
	// means 1 (serial).
	Parallelism int

	// Seed fixes the engine's random source. Zero seeds from the clock.
	Seed int64

	// MinTests is the number of random cases per property. Zero uses the
	// engine default.
	MinTests int

	// KeepStored leaves a still-failing stored witness untouched instead
	// of refreshing it with the replayed one.
	KeepStored bool

	// Verbose enables per-property pass lines on Out. When unset it
	// falls back to the REPROVE_VERBOSE environment variable.
	Verbose bool

	// Out receives verbose output and the final summary. Nil discards.
	Out io.Writer

	Logger *slog.Logger

	// Now supplies timestamps for history rows. Nil uses time.Now.
	Now    func() time.Time
	Tokens TokenSource
}

func (c *Config) applyDefaults() {
	if c.Parallelism < 1 {
		c.Parallelism = 1
	}
	if c.Out == nil {
		c.Out = io.Discard
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Tokens == nil {
		c.Tokens = uuidTokenSource{}
	}
}

// RunReport is the outcome of one harness run.
type RunReport struct {
	// RunID is the token minted for this run.
	RunID string

	// Cycles maps property identity to its controller cycle result.
	Cycles map[string]replay.CycleResult

	// Snapshot is the aggregator's final state.
	Snapshot report.Snapshot

	// Summary is the rendered run summary.
	Summary string

	Total  int
	Passed int
	Failed int

	// StoreWarning is set when the counterexample file was corrupt and
	// the run continued on an empty store.
	StoreWarning error
}

// Run executes all properties and returns the run report. The returned
// error covers harness failures (store flush, history recording); property
// failures are reported through the RunReport, not the error.
//
// On context cancellation remaining properties are skipped, but the store
// is still flushed so witnesses found before the cancel survive.
func Run(ctx context.Context, cfg Config, props []engine.Property) (*RunReport, error) {
	cfg.applyDefaults()
	if cfg.StorePath == "" {
		return nil, fmt.Errorf("harness: store path is required")
	}

	st, loadErr := store.Load(cfg.StorePath)
	if loadErr != nil {
		if !store.IsCorruptStore(loadErr) {
			return nil, fmt.Errorf("harness: load store: %w", loadErr)
		}
		// Corrupt store: warn and explore fresh rather than refuse to run.
		cfg.Logger.Warn("counterexample store corrupt, starting empty",
			"path", cfg.StorePath, "err", loadErr)
	}

	engOpts := []engine.Option{engine.WithLogger(cfg.Logger)}
	if cfg.Seed != 0 {
		engOpts = append(engOpts, engine.WithSeed(cfg.Seed))
	}
	if cfg.MinTests > 0 {
		engOpts = append(engOpts, engine.WithMinTests(cfg.MinTests))
	}
	eng := engine.NewGopterEngine(engOpts...)

	ctrlOpts := []replay.ControllerOption{replay.WithLogger(cfg.Logger)}
	if cfg.KeepStored {
		ctrlOpts = append(ctrlOpts, replay.KeepStored())
	}
	ctrl := replay.NewController(st, eng, ctrlOpts...)

	agg := report.NewAggregator()
	run := newRunState(ctrl, agg, cfg)
	started := cfg.Now()
	run.runAll(ctx, props)
	agg.Stop()
	finished := cfg.Now()

	snap := agg.Status()
	rep := &RunReport{
		RunID:        run.token,
		Cycles:       run.cycles,
		Snapshot:     snap,
		Total:        len(snap.Tests),
		StoreWarning: loadErr,
	}
	failed := make(map[string]bool, len(snap.Errors))
	for _, e := range snap.Errors {
		failed[e.Test] = true
	}
	rep.Failed = len(failed)
	rep.Passed = rep.Total - rep.Failed
	rep.Summary = report.RenderSummary(snap, run.categories)

	if cfg.Verbose || report.VerboseEnabled() {
		fmt.Fprintln(cfg.Out, report.PassLine(rep.Passed))
	}
	fmt.Fprint(cfg.Out, rep.Summary)

	if err := st.Flush(cfg.StorePath); err != nil {
		return rep, fmt.Errorf("harness: flush store: %w", err)
	}

	if cfg.HistoryPath != "" {
		if err := run.record(ctx, cfg.HistoryPath, rep, started, finished); err != nil {
			return rep, fmt.Errorf("harness: record history: %w", err)
		}
	}

	return rep, nil
}

// runState is per-run mutable state shared by the workers.
type runState struct {
	ctrl  *replay.Controller
	agg   *report.Aggregator
	cfg   Config
	token string

	mu         sync.Mutex
	cycles     map[string]replay.CycleResult
	categories []string
}

func newRunState(ctrl *replay.Controller, agg *report.Aggregator, cfg Config) *runState {
	return &runState{
		ctrl:   ctrl,
		agg:    agg,
		cfg:    cfg,
		token:  cfg.Tokens.Token(),
		cycles: make(map[string]replay.CycleResult),
	}
}

// runAll feeds properties to a bounded worker pool. Cancellation stops the
// feed; in-flight properties finish.
func (r *runState) runAll(ctx context.Context, props []engine.Property) {
	work := make(chan engine.Property)
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Parallelism; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range work {
				r.runOne(p)
			}
		}()
	}

feed:
	for _, p := range props {
		if ctx.Err() != nil {
			r.cfg.Logger.Warn("run cancelled, skipping remaining properties",
				"err", ctx.Err())
			break
		}
		select {
		case work <- p:
		case <-ctx.Done():
			r.cfg.Logger.Warn("run cancelled, skipping remaining properties",
				"err", ctx.Err())
			break feed
		}
	}
	close(work)
	wg.Wait()
}

// runOne executes a single property cycle, translating its outcome into
// aggregator messages. Panics are recovered as worker deaths.
func (r *runState) runOne(p engine.Property) {
	id := p.ID.String()
	r.agg.Send(report.Started{Test: id})

	defer func() {
		if rec := recover(); rec != nil {
			r.cfg.Logger.Error("property worker panicked",
				"property", id, "panic", rec, "stack", string(debug.Stack()))
			r.agg.Send(report.Failed{
				Test: id,
				Reason: report.Failure{
					Kind:    report.FailureWorkerPanic,
					Message: fmt.Sprint(rec),
				},
			})
		}
	}()

	res := r.ctrl.RunProperty(p)

	r.mu.Lock()
	r.cycles[id] = res
	r.categories = append(r.categories, p.Categories...)
	r.mu.Unlock()

	switch res.Outcome {
	case replay.OutcomeStored, replay.OutcomeReStored:
		msg := "property falsified"
		if res.Result.Err != nil {
			msg = res.Result.Err.Error()
		}
		if len(res.Result.Args) > 0 {
			msg = fmt.Sprintf("%s (witness: %s)", msg, replay.Witnesses(res.Result.Args))
		}
		r.agg.Send(report.Failed{
			Test:   id,
			Reason: report.Failure{Kind: report.FailureAssertion, Message: msg},
		})

	case replay.OutcomeErrored:
		msg := "engine error"
		if res.Result.Err != nil {
			msg = res.Result.Err.Error()
		}
		r.agg.Send(report.Failed{
			Test:   id,
			Reason: report.Failure{Kind: report.FailureAssertion, Type: "EngineError", Message: msg},
		})

	default:
		if r.cfg.Verbose || report.VerboseEnabled() {
			fmt.Fprintf(r.cfg.Out, "%s: %s\n", id, res.Outcome)
		}
	}
}

// record persists the run in the history database.
func (r *runState) record(ctx context.Context, path string, rep *RunReport, started, finished time.Time) error {
	db, err := history.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	run := history.Run{
		ID:         rep.RunID,
		StartedAt:  started,
		FinishedAt: finished,
		Total:      rep.Total,
		Failed:     rep.Failed,
	}
	if rep.Total > 0 {
		run.PassRate = float64(rep.Passed) / float64(rep.Total) * 100
	} else {
		run.PassRate = 100
	}

	return db.RecordRun(ctx, run, rep.Snapshot.Errors)
}
