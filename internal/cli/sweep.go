package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexshd/sir"
	"github.com/alexshd/sir/internal/report"
	"github.com/alexshd/sir/internal/scenario"
)

// SweepOptions holds flags for the sweep command.
type SweepOptions struct {
	*RootOptions
	Scenario ScenarioFlags
	Sweep    sir.SweepConfig
	Output   string
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SweepOptions{RootOptions: rootOpts, Sweep: sir.DefaultSweepConfig()}

	cmd := &cobra.Command{
		Use:   "sweep [scenario.yaml]",
		Short: "Scan the transmission rate and locate the epidemic threshold",
		Long: `Run the scenario once per beta value and report where outbreaks begin.

Every field except beta comes from the scenario and flag overrides.

Example:
  sir sweep --min-beta 0.05 --max-beta 0.5 --step-beta 0.01
  sir sweep examples/city/city.yaml --workers 4 --format csv`,
		Args:          usageArgs(cobra.MaximumNArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := loadScenario(args, &opts.Scenario, cmd.Flags())
			if err != nil {
				return err
			}
			return runSweep(cmd.Context(), opts, sc, cmd.OutOrStdout())
		},
	}

	opts.Scenario.register(cmd.Flags())
	cmd.Flags().Float64Var(&opts.Sweep.MinBeta, "min-beta", opts.Sweep.MinBeta, "first beta value")
	cmd.Flags().Float64Var(&opts.Sweep.MaxBeta, "max-beta", opts.Sweep.MaxBeta, "last beta value (inclusive)")
	cmd.Flags().Float64Var(&opts.Sweep.StepBeta, "step-beta", opts.Sweep.StepBeta, "beta increment")
	cmd.Flags().IntVar(&opts.Sweep.Workers, "workers", 0, "concurrent simulations (0 = GOMAXPROCS)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write output to file instead of stdout")

	return cmd
}

func runSweep(ctx context.Context, opts *SweepOptions, sc *scenario.Scenario, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := opts.logger().With("scenario", sc.Name)

	base, err := sc.Config()
	if err != nil {
		return classify("invalid scenario", err)
	}

	log.Debug("sweep starting",
		"min_beta", opts.Sweep.MinBeta,
		"max_beta", opts.Sweep.MaxBeta,
		"step_beta", opts.Sweep.StepBeta,
		"workers", opts.Sweep.Workers,
	)
	start := time.Now()
	res, err := sir.Sweep(ctx, base, opts.Sweep)
	if err != nil {
		return classify("sweep failed", err)
	}
	log.Info("sweep complete", "points", len(res.Points), "threshold", res.Threshold, "elapsed", time.Since(start))

	w, closeOut, err := openOutput(opts.Output, stdout)
	if err != nil {
		return err
	}
	if err := writeSweep(w, opts.Format, base, res); err != nil {
		closeOut()
		return WrapExitError(ExitFailure, "failed to write output", err)
	}
	if err := closeOut(); err != nil {
		return WrapExitError(ExitFailure, "failed to write output", err)
	}
	return nil
}

func writeSweep(w io.Writer, format string, base sir.Config, res sir.SweepResult) error {
	switch format {
	case "json":
		return report.WriteJSON(w, report.NewSweepJSON(base, res))
	case "csv":
		return report.WriteSweepCSV(w, res)
	case "text":
		return report.WriteSweepText(w, res)
	}
	return fmt.Errorf("unsupported format %q", format)
}
