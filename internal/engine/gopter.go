package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/leanovate/gopter"

	"github.com/roach88/reprove/internal/witness"
)

// GopterEngine drives properties through gopter. The generation/shrink loop
// within a single invocation is sequential; distinct invocations may run
// concurrently since each Check gets its own parameter copy.
type GopterEngine struct {
	seed     int64
	minTests int
	logger   *slog.Logger
}

// Option configures a GopterEngine.
type Option func(*GopterEngine)

// WithSeed fixes the generation seed for reproducible runs. Zero keeps
// gopter's time-based default.
func WithSeed(seed int64) Option {
	return func(e *GopterEngine) { e.seed = seed }
}

// WithMinTests overrides the number of successful evaluations required for
// a pass (gopter's default is 100).
func WithMinTests(n int) Option {
	return func(e *GopterEngine) { e.minTests = n }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *GopterEngine) { e.logger = logger }
}

// NewGopterEngine creates an engine with the given options.
func NewGopterEngine(opts ...Option) *GopterEngine {
	e := &GopterEngine{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FreshRun evaluates p on random inputs. On failure the reported Args are
// the post-shrink minimal values, converted to storable witness values.
func (e *GopterEngine) FreshRun(p Property) Result {
	if p.Prop == nil {
		return Result{Status: StatusErrored, Err: fmt.Errorf("property %s has no randomized form", p.ID)}
	}

	params := e.testParameters()
	res := p.Prop.Check(params)

	switch res.Status {
	case gopter.TestPassed, gopter.TestProved:
		return Result{Status: StatusPassed, Succeeded: res.Succeeded}

	case gopter.TestFailed:
		args, shrinks, err := convertArgs(res.Args)
		if err != nil {
			// The witness cannot be stored (e.g. a float-typed
			// generator); the failure itself still stands.
			e.logger.Warn("failing input is not storable",
				"property", p.ID.String(), "err", err)
			return Result{Status: StatusFailed, Shrinks: shrinks, Succeeded: res.Succeeded, Err: err}
		}
		return Result{Status: StatusFailed, Args: args, Shrinks: shrinks, Succeeded: res.Succeeded}

	case gopter.TestError:
		return Result{Status: StatusErrored, Succeeded: res.Succeeded, Err: res.Error}

	case gopter.TestExhausted:
		return Result{Status: StatusErrored, Succeeded: res.Succeeded,
			Err: fmt.Errorf("property %s: generators exhausted before %d successful tests", p.ID, params.MinSuccessfulTests)}

	default:
		return Result{Status: StatusErrored, Err: fmt.Errorf("property %s: unexpected engine status %v", p.ID, res.Status)}
	}
}

// Replay evaluates p's deterministic predicate on stored witness values.
func (e *GopterEngine) Replay(p Property, args []witness.Value) Result {
	if p.Check == nil {
		return Result{Status: StatusErrored, Err: &StaleWitnessError{ID: p.ID, Reason: "property has no replay form"}}
	}
	if p.Arity > 0 && len(args) != p.Arity {
		return Result{Status: StatusErrored, Err: &StaleWitnessError{
			ID:     p.ID,
			Reason: fmt.Sprintf("stored witness has %d values, property takes %d", len(args), p.Arity),
		}}
	}

	err := p.Check(args)
	if err == nil {
		return Result{Status: StatusPassed, Succeeded: 1}
	}

	var stale *StaleWitnessError
	if errors.As(err, &stale) {
		return Result{Status: StatusErrored, Err: err}
	}
	return Result{Status: StatusFailed, Args: args, Err: err}
}

func (e *GopterEngine) testParameters() *gopter.TestParameters {
	var params *gopter.TestParameters
	if e.seed != 0 {
		params = gopter.DefaultTestParametersWithSeed(e.seed)
	} else {
		params = gopter.DefaultTestParameters()
	}
	if e.minTests > 0 {
		params.MinSuccessfulTests = e.minTests
	}
	return params
}

// convertArgs turns gopter's post-shrink argument list into witness values.
// Shrink counts are summed across arguments even when conversion fails.
func convertArgs(propArgs gopter.PropArgs) ([]witness.Value, int, error) {
	shrinks := 0
	args := make([]witness.Value, 0, len(propArgs))
	var convErr error
	for i, pa := range propArgs {
		shrinks += pa.Shrinks
		if convErr != nil {
			continue
		}
		v, err := witness.FromGo(pa.Arg)
		if err != nil {
			convErr = fmt.Errorf("argument %d: %w", i, err)
			continue
		}
		args = append(args, v)
	}
	if convErr != nil {
		return nil, shrinks, convErr
	}
	return args, shrinks, nil
}
