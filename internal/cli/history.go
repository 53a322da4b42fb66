package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/reprove/internal/history"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit    int
	Failures bool // list failures per run
}

// HistoryRun is one recorded run, rendered for output.
type HistoryRun struct {
	ID         string   `json:"id"`
	StartedAt  string   `json:"started_at"`
	FinishedAt string   `json:"finished_at"`
	Total      int      `json:"total"`
	Failed     int      `json:"failed"`
	PassRate   float64  `json:"pass_rate"`
	Failures   []string `json:"failures,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "history <db-file>",
		Short:         "List recorded test runs",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 10, "maximum runs to list")
	cmd.Flags().BoolVar(&opts.Failures, "failures", false, "include per-run failures")

	return cmd
}

func runHistory(opts *HistoryOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		msg := fmt.Sprintf("history database not found: %s", path)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	db, err := history.Open(path)
	if err != nil {
		_ = formatter.Error(ErrCodeHistory, err.Error(), nil)
		return WrapExitError(ExitCommandError, "opening history database", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	runs, err := db.RecentRuns(ctx, opts.Limit)
	if err != nil {
		_ = formatter.Error(ErrCodeHistory, err.Error(), nil)
		return WrapExitError(ExitCommandError, "listing runs", err)
	}

	out := make([]HistoryRun, 0, len(runs))
	for _, r := range runs {
		hr := HistoryRun{
			ID:         r.ID,
			StartedAt:  r.StartedAt.Format(time.RFC3339),
			FinishedAt: r.FinishedAt.Format(time.RFC3339),
			Total:      r.Total,
			Failed:     r.Failed,
			PassRate:   r.PassRate,
		}
		if opts.Failures {
			failures, err := db.Failures(ctx, r.ID)
			if err != nil {
				_ = formatter.Error(ErrCodeHistory, err.Error(), nil)
				return WrapExitError(ExitCommandError, "listing failures", err)
			}
			for _, f := range failures {
				hr.Failures = append(hr.Failures, f.String())
			}
		}
		out = append(out, hr)
	}

	if formatter.Format == "json" {
		return formatter.Success(out)
	}

	if len(out) == 0 {
		fmt.Fprintln(formatter.Writer, "no runs recorded")
		return nil
	}
	for _, r := range out {
		fmt.Fprintf(formatter.Writer, "%s  %s  %d test(s), %d failed (%.1f%% pass rate)\n",
			r.ID, r.StartedAt, r.Total, r.Failed, r.PassRate)
		for _, f := range r.Failures {
			fmt.Fprintf(formatter.Writer, "    %s\n", f)
		}
	}
	return nil
}
