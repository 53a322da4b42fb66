// Package replay orchestrates the counterexample-first evaluation of a
// property: a stored witness is always tried before random exploration, so
// a regression is caught on its very first re-run and a fixed bug purges
// its witness automatically.
package replay

import (
	"errors"
	"io"
	"log/slog"

	"github.com/roach88/reprove/internal/engine"
	"github.com/roach88/reprove/internal/store"
	"github.com/roach88/reprove/internal/witness"
)

// Outcome is the terminal state of one controller cycle. The controller
// never loops: any retrying beyond the engine's own shrink search is the
// engine's business.
type Outcome int

const (
	// OutcomePassed: no stored witness, fresh run passed. Store untouched.
	OutcomePassed Outcome = iota + 1
	// OutcomeStored: fresh run failed, minimal witness persisted.
	OutcomeStored
	// OutcomeCleared: stored witness no longer fails, entry removed.
	OutcomeCleared
	// OutcomeReStored: stored witness still fails, entry kept (refreshed
	// to the most recently confirmed minimal witness).
	OutcomeReStored
	// OutcomeErrored: the engine itself broke; store untouched.
	OutcomeErrored
)

func (o Outcome) String() string {
	switch o {
	case OutcomePassed:
		return "passed"
	case OutcomeStored:
		return "stored"
	case OutcomeCleared:
		return "cleared"
	case OutcomeReStored:
		return "re-stored"
	case OutcomeErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// CycleResult reports one controller cycle: the terminal outcome plus the
// engine result that produced it.
type CycleResult struct {
	Outcome  Outcome
	Replayed bool // a stored witness was tried first
	Result   engine.Result
}

// Controller wires the counterexample store to the property engine.
type Controller struct {
	store  *store.Store
	engine engine.Engine
	logger *slog.Logger

	// keepStored disables refreshing a still-failing entry with the
	// replayed witness. The default policy stores the most recently
	// confirmed minimal witness.
	keepStored bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// KeepStored leaves a still-failing stored entry untouched instead of
// refreshing it on replay.
func KeepStored() ControllerOption {
	return func(c *Controller) { c.keepStored = true }
}

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = logger }
}

// NewController creates a controller over the given store and engine.
func NewController(st *store.Store, eng engine.Engine, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:  st,
		engine: eng,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunProperty executes one cycle for p:
//
//  1. Lookup: no stored entry -> fresh run.
//  2. Replay: stored witness passes -> remove entry (Cleared);
//     still fails -> keep entry (ReStored);
//     stale -> log and fall through to a fresh run.
//  3. FreshRun: failure is shrunk by the engine and persisted (Stored);
//     a pass leaves the store untouched (Passed).
func (c *Controller) RunProperty(p engine.Property) CycleResult {
	entry, found := c.store.Lookup(p.ID)
	if !found {
		return c.freshRun(p, false)
	}

	res := c.engine.Replay(p, entry.Args)
	switch res.Status {
	case engine.StatusPassed:
		c.store.Remove(p.ID)
		c.logger.Info("stored counterexample no longer fails, cleared",
			"property", p.ID.String())
		return CycleResult{Outcome: OutcomeCleared, Replayed: true, Result: res}

	case engine.StatusFailed:
		if !c.keepStored {
			c.store.Put(p.ID, store.Entry{Args: res.Args, Seed: entry.Seed})
		}
		c.logger.Info("stored counterexample still fails",
			"property", p.ID.String(), "err", res.Err)
		return CycleResult{Outcome: OutcomeReStored, Replayed: true, Result: res}

	default:
		var stale *engine.StaleWitnessError
		if errors.As(res.Err, &stale) {
			// Fail closed: a stale witness is not a property failure.
			// Report it, then explore fresh rather than crash the run.
			c.logger.Warn("stored witness is stale, running fresh",
				"property", p.ID.String(), "reason", stale.Reason)
			return c.freshRun(p, true)
		}
		return CycleResult{Outcome: OutcomeErrored, Replayed: true, Result: res}
	}
}

func (c *Controller) freshRun(p engine.Property, replayed bool) CycleResult {
	res := c.engine.FreshRun(p)
	switch res.Status {
	case engine.StatusPassed:
		return CycleResult{Outcome: OutcomePassed, Replayed: replayed, Result: res}

	case engine.StatusFailed:
		if len(res.Args) > 0 {
			c.store.Put(p.ID, store.Entry{Args: res.Args})
			c.logger.Info("new counterexample stored",
				"property", p.ID.String(), "shrinks", res.Shrinks)
		} else {
			// Failure found but the witness is not storable; the run
			// still reports the failure.
			c.logger.Warn("failure witness not storable, nothing persisted",
				"property", p.ID.String(), "err", res.Err)
		}
		return CycleResult{Outcome: OutcomeStored, Replayed: replayed, Result: res}

	default:
		return CycleResult{Outcome: OutcomeErrored, Replayed: replayed, Result: res}
	}
}

// Store exposes the controller's store for end-of-run flushing.
func (c *Controller) Store() *store.Store {
	return c.store
}

// Witnesses formats stored args for log output.
func Witnesses(args []witness.Value) string {
	parts := make([]byte, 0, 64)
	for i, a := range args {
		if i > 0 {
			parts = append(parts, ',', ' ')
		}
		data, err := witness.MarshalCanonical(a)
		if err != nil {
			parts = append(parts, '?')
			continue
		}
		parts = append(parts, data...)
	}
	return string(parts)
}
