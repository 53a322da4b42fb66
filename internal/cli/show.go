package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/reprove/internal/replay"
	"github.com/roach88/reprove/internal/store"
)

// StoredWitness is one persisted counterexample, rendered for output.
type StoredWitness struct {
	Property string `json:"property"`
	Args     string `json:"args"`
	Seed     int64  `json:"seed,omitempty"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "show <store-file>",
		Short:         "List persisted counterexamples",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runShow(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := store.Load(path)
	if err != nil {
		_ = formatter.Error(ErrCodeCorruptStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "loading counterexample file", err)
	}

	snapshot := st.Snapshot()
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	witnesses := make([]StoredWitness, 0, len(keys))
	for _, k := range keys {
		entry := snapshot[k]
		witnesses = append(witnesses, StoredWitness{
			Property: k,
			Args:     replay.Witnesses(entry.Args),
			Seed:     entry.Seed,
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(witnesses)
	}

	if len(witnesses) == 0 {
		fmt.Fprintln(formatter.Writer, "no counterexamples stored")
		return nil
	}
	fmt.Fprintf(formatter.Writer, "%d counterexample(s):\n", len(witnesses))
	for _, w := range witnesses {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", w.Property, w.Args)
	}
	return nil
}

// NewCleanCommand creates the clean command.
func NewCleanCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "clean <store-file>",
		Short:         "Remove all persisted counterexamples",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runClean(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	// Clean drops every entry regardless of content, so a corrupt file is
	// not an error here.
	st, err := store.Load(path)
	if err != nil && !store.IsCorruptStore(err) {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "loading counterexample file", err)
	}

	removed := st.Len()
	if err := st.Clean(path); err != nil {
		_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "cleaning counterexample file", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]int{"removed": removed})
	}
	fmt.Fprintf(formatter.Writer, "✓ Removed %d counterexample(s)\n", removed)
	return nil
}
