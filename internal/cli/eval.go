package cli

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/roach88/reprove/internal/instrument"
	"github.com/roach88/reprove/internal/witness"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	Policy       string
	Instrumented bool // rewrite before evaluating
}

// EvalResult is the eval command's payload.
type EvalResult struct {
	Target string `json:"target"`
	Value  string `json:"value"`
	Yields int64  `json:"yields"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <modules-dir> <Module.func> [args...]",
		Short: "Evaluate a module function",
		Long: `Compile CUE module definitions and evaluate one function.

Arguments parse as integers, booleans, "null", or fall back to strings.
With --instrumented the module is rewritten first and the number of
yield points hit during evaluation is reported.`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, args[0], args[1], args[2:], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Policy, "policy", "p", "", "instrumentation policy YAML")
	cmd.Flags().BoolVar(&opts.Instrumented, "instrumented", false, "instrument before evaluating")

	return cmd
}

func runEval(opts *EvalOptions, modulesDir, target string, rawArgs []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	id, err := witness.ParseID(target)
	if err != nil {
		_ = formatter.Error(ErrCodeEvalFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "parsing target", err)
	}

	loaded, loadErr := loadModules(formatter, modulesDir)
	if loadErr != nil {
		return loadErr
	}

	var mod *instrument.Module
	for i := range loaded.Modules {
		if loaded.Modules[i].Name == id.Module {
			mod = &loaded.Modules[i]
			break
		}
	}
	if mod == nil {
		msg := fmt.Sprintf("module %s not found in %s", id.Module, modulesDir)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	args := make([]witness.Value, len(rawArgs))
	for i, raw := range rawArgs {
		args[i] = parseArg(raw)
	}

	var yields atomic.Int64
	run := *mod
	if opts.Instrumented {
		policy := instrument.DefaultPolicy()
		if opts.Policy != "" {
			p, err := instrument.LoadPolicy(opts.Policy)
			if err != nil {
				_ = formatter.Error(ErrCodeBadPolicy, err.Error(), nil)
				return WrapExitError(ExitCommandError, "loading policy", err)
			}
			policy = p
		}
		rewritten, diags := instrument.Instrument(run, policy)
		run = rewritten
		for _, d := range diags {
			formatter.VerboseLog("skipped: %s", d)
		}
	}

	// Cross-module calls resolve against the sibling modules in the same
	// directory.
	env := instrument.Env{
		Funcs: hostBindings(loaded.Modules, id.Module, &yields),
		Yield: func() { yields.Add(1) },
	}

	ev := instrument.NewEvaluator(run, env)
	value, err := ev.CallFunc(id.Name, args)
	if err != nil {
		_ = formatter.Error(ErrCodeEvalFailed, err.Error(), nil)
		return WrapExitError(ExitFailure, "evaluation failed", err)
	}

	data, err := witness.MarshalCanonical(value)
	if err != nil {
		_ = formatter.Error(ErrCodeEvalFailed, err.Error(), nil)
		return WrapExitError(ExitFailure, "rendering result", err)
	}

	result := &EvalResult{Target: target, Value: string(data), Yields: yields.Load()}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "%s = %s\n", target, result.Value)
	if opts.Instrumented {
		fmt.Fprintf(formatter.Writer, "yield points hit: %d\n", result.Yields)
	}
	return nil
}

// hostBindings exposes every loaded sibling module as a host function table,
// so cross-module calls evaluate instead of failing on a missing binding.
func hostBindings(modules []instrument.Module, self string, yields *atomic.Int64) map[instrument.Ref]instrument.HostFunc {
	funcs := make(map[instrument.Ref]instrument.HostFunc)
	for i := range modules {
		mod := modules[i]
		if mod.Name == self {
			continue
		}
		env := instrument.Env{Funcs: funcs, Yield: func() { yields.Add(1) }}
		ev := instrument.NewEvaluator(mod, env)
		for _, f := range mod.Funcs {
			name := f.Name
			funcs[instrument.Ref{Module: mod.Name, Func: f.Name, Arity: f.Arity()}] =
				func(args []witness.Value) (witness.Value, error) {
					return ev.CallFunc(name, args)
				}
		}
	}
	return funcs
}

// parseArg turns a command line argument into a witness value: int, bool,
// null, then string.
func parseArg(raw string) witness.Value {
	if raw == "null" {
		return witness.Null{}
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return witness.Int(n)
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return witness.Bool(b)
	}
	return witness.String(raw)
}
