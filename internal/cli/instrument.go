package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/reprove/internal/compiler"
	"github.com/roach88/reprove/internal/instrument"
)

// InstrumentOptions holds flags for the instrument command.
type InstrumentOptions struct {
	*RootOptions
	Policy string // policy YAML path
	Output string // output file path
}

// InstrumentedModule is one module after rewriting, rendered for output.
type InstrumentedModule struct {
	Name     string `json:"name"`
	Rendered string `json:"rendered"`
}

// InstrumentResult is the instrument command's payload.
type InstrumentResult struct {
	Modules     []InstrumentedModule `json:"modules"`
	Diagnostics []string             `json:"diagnostics,omitempty"`
}

// NewInstrumentCommand creates the instrument command.
func NewInstrumentCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InstrumentOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "instrument <modules-dir>",
		Short: "Insert scheduling yields before call sites",
		Long: `Compile CUE module definitions and rewrite them so every
instrumentable call site is preceded by a sched.yield() call.

Call sites in scheduling-neutral contexts (guards) are skipped and
reported as diagnostics; the rewrite itself never fails a module.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstrument(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Policy, "policy", "p", "", "instrumentation policy YAML")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runInstrument(opts *InstrumentOptions, modulesDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	policy := instrument.DefaultPolicy()
	if opts.Policy != "" {
		p, err := instrument.LoadPolicy(opts.Policy)
		if err != nil {
			_ = formatter.Error(ErrCodeBadPolicy, err.Error(), nil)
			return WrapExitError(ExitCommandError, "loading policy", err)
		}
		policy = p
	}

	loaded, errs := loadModules(formatter, modulesDir)
	if errs != nil {
		return errs
	}

	result := &InstrumentResult{}
	var rendered []string
	for _, mod := range loaded.Modules {
		formatter.VerboseLog("Instrumenting module: %s", mod.Name)
		out, diags := instrument.Instrument(mod, policy)
		text := instrument.Render(out)
		rendered = append(rendered, text)
		result.Modules = append(result.Modules, InstrumentedModule{
			Name:     out.Name,
			Rendered: text,
		})
		for _, d := range diags {
			result.Diagnostics = append(result.Diagnostics, d.String())
		}
	}

	if opts.Output != "" {
		text := strings.Join(rendered, "\n")
		if err := os.WriteFile(opts.Output, []byte(text), 0644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Instrumented %d module(s)\n\n", len(result.Modules))
	for _, m := range result.Modules {
		fmt.Fprintln(formatter.Writer, m.Rendered)
	}
	if len(result.Diagnostics) > 0 {
		fmt.Fprintf(formatter.Writer, "%d call site(s) skipped:\n", len(result.Diagnostics))
		for _, d := range result.Diagnostics {
			fmt.Fprintf(formatter.Writer, "  %s\n", d)
		}
	}
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "Wrote instrumented modules to %s\n", opts.Output)
	}

	return nil
}

// loadModules loads CUE modules and reports load errors uniformly. Returns
// a non-nil error when loading failed; modules that compiled cleanly are
// only used when every module compiled.
func loadModules(formatter *OutputFormatter, dir string) (*compiler.LoadResult, error) {
	loaded, loadErrs := compiler.LoadModules(dir)
	if loaded == nil && len(loadErrs) > 0 {
		_ = formatter.Error(ErrCodeNotFound, loadErrs[0].Error(), nil)
		return nil, WrapExitError(ExitCommandError, "loading modules", loadErrs[0])
	}
	if len(loadErrs) > 0 {
		for _, err := range loadErrs {
			_ = formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		}
		return nil, NewExitError(ExitCommandError,
			fmt.Sprintf("compilation failed with %d error(s)", len(loadErrs)))
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, dir)
	return loaded, nil
}
