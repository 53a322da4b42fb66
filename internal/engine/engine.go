// Package engine wraps the property engine behind a small boundary the
// replay controller can drive.
//
// The engine itself - random generation, the shrink search - is gopter.
// This package adapts its two entry points to the harness's needs: a fresh
// randomized run that reports the post-shrink falsifying input, and a
// deterministic replay of a previously stored witness that skips random
// generation entirely.
package engine

import (
	"fmt"

	"github.com/leanovate/gopter"

	"github.com/roach88/reprove/internal/witness"
)

// Status classifies the outcome of one property evaluation.
type Status int

const (
	// StatusPassed means the property held on every evaluated input.
	StatusPassed Status = iota + 1
	// StatusFailed means a falsifying input was found (or replayed).
	StatusFailed
	// StatusErrored means the evaluation itself broke: generator
	// exhaustion, a stale witness, or an engine error.
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusErrored:
		return "errored"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is the outcome of one property evaluation.
type Result struct {
	Status Status

	// Args holds the falsifying input after shrinking, convertible back
	// into the property's Check function. Empty unless Status is
	// StatusFailed.
	Args []witness.Value

	// Shrinks counts shrink steps the engine performed across arguments.
	Shrinks int

	// Succeeded counts passing evaluations (for verbose reporting).
	Succeeded int

	// Err carries the failure reason or engine error, when any.
	Err error
}

// Property is one declarative property under test.
//
// Prop is the randomized path: callers build it with gopter's prop.ForAll
// over their generators. Check is the deterministic path: it evaluates the
// predicate on explicit witness values and is used to replay stored
// counterexamples. Both must evaluate the same predicate.
type Property struct {
	ID         witness.ID
	Categories []string

	Prop  gopter.Prop
	Check func(args []witness.Value) error
	Arity int
}

// Engine runs properties. Implementations must be safe for concurrent use
// by independent property invocations.
type Engine interface {
	// FreshRun evaluates the property on randomly generated inputs,
	// shrinking any failure to a minimal witness.
	FreshRun(p Property) Result

	// Replay evaluates the property on a stored witness, skipping random
	// generation. A witness that no longer fits the property shape yields
	// StatusErrored with a StaleWitnessError.
	Replay(p Property, args []witness.Value) Result
}

// StaleWitnessError reports a stored witness that is no longer valid for
// the current property shape (for example, the input type changed). It is
// distinct from a genuine property failure: the caller logs it and falls
// through to a fresh run rather than crashing.
type StaleWitnessError struct {
	ID     witness.ID
	Reason string
}

func (e *StaleWitnessError) Error() string {
	return fmt.Sprintf("stale witness for %s: %s", e.ID, e.Reason)
}
