package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexshd/sir"
	"github.com/alexshd/sir/internal/report"
	"github.com/alexshd/sir/internal/store"
)

// RunsOptions holds flags for the runs commands.
type RunsOptions struct {
	*RootOptions
	Database string
	Output   string
}

// NewRunsCommand creates the runs command group.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect archived runs",
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")

	list := &cobra.Command{
		Use:           "list",
		Short:         "List archived runs, newest first",
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	show := &cobra.Command{
		Use:           "show <run-id>",
		Short:         "Print an archived run",
		Args:          usageArgs(cobra.ExactArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showRun(cmd.Context(), opts, args[0], cmd.OutOrStdout())
		},
	}
	show.Flags().StringVarP(&opts.Output, "output", "o", "", "write output to file instead of stdout")

	del := &cobra.Command{
		Use:           "delete <run-id>",
		Short:         "Remove an archived run",
		Args:          usageArgs(cobra.ExactArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return deleteRun(cmd.Context(), opts, args[0])
		},
	}

	cmd.AddCommand(list, show, del)
	return cmd
}

func (o *RunsOptions) open() (*store.Store, error) {
	if o.Database == "" {
		return nil, NewExitError(ExitCommandError, "required flag \"db\" not set")
	}
	st, err := store.Open(o.Database)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "failed to open database", err)
	}
	return st, nil
}

// RunJSON is the JSON shape of an archived run header.
type RunJSON struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Scheme    string    `json:"scheme"`
	Samples   int       `json:"samples"`
	CreatedAt time.Time `json:"created_at"`
}

func listRuns(ctx context.Context, opts *RunsOptions, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := opts.open()
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.List(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list runs", err)
	}
	opts.logger().Debug("runs listed", "count", len(runs), "db", opts.Database)

	switch opts.Format {
	case "json":
		out := make([]RunJSON, len(runs))
		for i, r := range runs {
			out[i] = RunJSON{ID: r.ID, Name: r.Name, Scheme: string(r.Scheme), Samples: r.Samples, CreatedAt: r.CreatedAt.UTC()}
		}
		return report.WriteJSON(w, out)
	case "text":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tSCHEME\tSAMPLES\tCREATED")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.ID, r.Name, r.Scheme, r.Samples, r.CreatedAt.Format(time.RFC3339))
		}
		return tw.Flush()
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("format %q is not supported by runs list", opts.Format))
}

func showRun(ctx context.Context, opts *RunsOptions, id string, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := opts.open()
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.Get(ctx, id)
	if err != nil {
		return classify("failed to load run", err)
	}
	series, err := st.Series(ctx, id)
	if err != nil {
		return classify("failed to load run", err)
	}

	p := report.Projection{
		RunID:   run.ID,
		Name:    run.Name,
		Config:  report.NewConfigJSON(run.Config),
		Summary: report.NewSummaryJSON(sir.Summarize(run.Config, series)),
	}
	if run.Capacity != nil {
		cr, err := sir.AssessCapacity(series, *run.Capacity)
		if err != nil {
			return classify("invalid capacity", err)
		}
		p.Capacity = &cr
	}

	w, closeOut, err := openOutput(opts.Output, stdout)
	if err != nil {
		return err
	}
	if err := writeProjection(w, opts.Format, p, series); err != nil {
		closeOut()
		return WrapExitError(ExitFailure, "failed to write output", err)
	}
	if err := closeOut(); err != nil {
		return WrapExitError(ExitFailure, "failed to write output", err)
	}
	return nil
}

func deleteRun(ctx context.Context, opts *RunsOptions, id string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := opts.open()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Delete(ctx, id); err != nil {
		return classify("failed to delete run", err)
	}
	opts.logger().Info("run deleted", "id", id)
	return nil
}
