package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/alexshd/sir"
	"github.com/alexshd/sir/internal/report"
	"github.com/alexshd/sir/internal/scenario"
	"github.com/alexshd/sir/internal/store"
)

// ScenarioFlags are the per-field overrides shared by run and sweep.
// A flag only replaces the scenario value when it was set explicitly.
type ScenarioFlags struct {
	Population   float64
	Infected     float64
	Recovered    float64
	Beta         float64
	Gamma        float64
	Fatality     float64
	Days         float64
	DT           float64
	Scheme       string
	Beds         float64
	Hospitalized float64
}

func (f *ScenarioFlags) register(fs *pflag.FlagSet) {
	fs.Float64Var(&f.Population, "population", 0, "total population N")
	fs.Float64Var(&f.Infected, "infected", 0, "initially infected")
	fs.Float64Var(&f.Recovered, "recovered", 0, "initially removed")
	fs.Float64Var(&f.Beta, "beta", 0, "transmission rate")
	fs.Float64Var(&f.Gamma, "gamma", 0, "recovery rate")
	fs.Float64Var(&f.Fatality, "fatality", 0, "fraction of removals that die")
	fs.Float64Var(&f.Days, "days", 0, "projection horizon in days")
	fs.Float64Var(&f.DT, "dt", 0, "integration step in days")
	fs.StringVar(&f.Scheme, "scheme", "", "integration scheme (euler|rk4)")
	fs.Float64Var(&f.Beds, "beds", 0, "available hospital beds")
	fs.Float64Var(&f.Hospitalized, "hospitalization", 0, "fraction of infected needing a bed")
}

// apply copies changed flags onto sc.
func (f *ScenarioFlags) apply(fs *pflag.FlagSet, sc *scenario.Scenario) {
	if fs.Changed("population") {
		sc.Population = f.Population
	}
	if fs.Changed("infected") {
		sc.Initial.Infected = f.Infected
	}
	if fs.Changed("recovered") {
		sc.Initial.Recovered = f.Recovered
	}
	if fs.Changed("population") || fs.Changed("infected") || fs.Changed("recovered") {
		// Recompute S from the new partition.
		sc.Initial.Susceptible = nil
	}
	if fs.Changed("beta") {
		sc.Beta = f.Beta
		sc.ContactRate, sc.TransmissionProbability = 0, 0
	}
	if fs.Changed("gamma") {
		sc.Gamma = f.Gamma
		sc.InfectiousDays = 0
	}
	if fs.Changed("fatality") {
		sc.Fatality = f.Fatality
	}
	if fs.Changed("days") {
		sc.Days = f.Days
	}
	if fs.Changed("dt") {
		dt := f.DT
		sc.DT = &dt
	}
	if fs.Changed("scheme") {
		sc.Scheme = f.Scheme
	}
	if fs.Changed("beds") || fs.Changed("hospitalization") {
		if sc.Capacity == nil {
			sc.Capacity = &scenario.Capacity{}
		}
		if fs.Changed("beds") {
			sc.Capacity.Beds = f.Beds
		}
		if fs.Changed("hospitalization") {
			sc.Capacity.HospitalizationRate = f.Hospitalized
		}
	}
}

// loadScenario reads the optional scenario argument and applies overrides.
func loadScenario(args []string, flags *ScenarioFlags, fs *pflag.FlagSet) (*scenario.Scenario, error) {
	sc := scenario.Default()
	if len(args) == 1 {
		var err error
		sc, err = scenario.Load(args[0])
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load scenario", err)
		}
	}
	flags.apply(fs, sc)
	return sc, nil
}

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Scenario ScenarioFlags
	Output   string
	Database string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [scenario.yaml]",
		Short: "Integrate one scenario",
		Long: `Integrate one scenario and print the projection.

Without a scenario file the built-in reference outbreak is used.
Text output is a summary; json adds every sample; csv streams samples.

Example:
  sir run examples/city/city.yaml --format csv --output city.csv
  sir run --beta 0.5 --gamma 0.2 --days 120 --db runs.db`,
		Args:          usageArgs(cobra.MaximumNArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := loadScenario(args, &opts.Scenario, cmd.Flags())
			if err != nil {
				return err
			}
			return runProjection(cmd.Context(), opts, sc, cmd.OutOrStdout())
		},
	}

	opts.Scenario.register(cmd.Flags())
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write output to file instead of stdout")
	cmd.Flags().StringVar(&opts.Database, "db", "", "archive the run in this SQLite database")

	return cmd
}

func runProjection(ctx context.Context, opts *RunOptions, sc *scenario.Scenario, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := opts.logger().With("scenario", sc.Name)

	cfg, err := sc.Config()
	if err != nil {
		return classify("invalid scenario", err)
	}
	capCfg, hasBeds, err := sc.CapacityConfig()
	if err != nil {
		return classify("invalid capacity", err)
	}

	sim, err := sir.Simulate(cfg)
	if err != nil {
		return classify("invalid scenario", err)
	}
	log.Debug("simulation configured",
		"population", cfg.Population,
		"beta", cfg.Beta,
		"gamma", cfg.Gamma,
		"r0", cfg.BasicReproduction(),
		"scheme", cfg.Scheme,
		"samples", sim.Len(),
	)

	start := time.Now()
	series := sim.Collect()
	log.Info("projection complete", "samples", len(series), "elapsed", time.Since(start))

	p := report.Projection{
		Name:    sc.Name,
		Config:  report.NewConfigJSON(cfg),
		Summary: report.NewSummaryJSON(sir.Summarize(cfg, series)),
	}
	if hasBeds {
		cr, err := sir.AssessCapacity(series, capCfg)
		if err != nil {
			return classify("invalid capacity", err)
		}
		p.Capacity = &cr
		if cr.FirstBreach >= 0 {
			log.Warn("bed capacity exceeded", "day", cr.FirstBreach, "days_over", cr.TimeOverCapacity, "peak_demand", cr.PeakDemand)
		}
	}

	if opts.Database != "" {
		var beds *sir.CapacityConfig
		if hasBeds {
			beds = &capCfg
		}
		id, err := archive(ctx, opts.Database, sc.Name, cfg, beds, series)
		if err != nil {
			return err
		}
		p.RunID = id
		log.Info("run archived", "id", id, "db", opts.Database)
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

func archive(ctx context.Context, path, name string, cfg sir.Config, beds *sir.CapacityConfig, series sir.Series) (string, error) {
	st, err := store.Open(path)
	if err != nil {
		return "", WrapExitError(ExitFailure, "failed to open database", err)
	}
	defer st.Close()

	id, err := st.Save(ctx, name, cfg, beds, series.All())
	if err != nil {
		return "", WrapExitError(ExitFailure, "failed to archive run", err)
	}
	return id, nil
}

func writeProjection(w io.Writer, format string, p report.Projection, series sir.Series) error {
	switch format {
	case "json":
		p.Samples = report.NewSamplesJSON(series)
		return report.WriteJSON(w, p)
	case "csv":
		return report.WriteCSV(w, series.All())
	case "text":
		return report.WriteText(w, p)
	}
	return fmt.Errorf("unsupported format %q", format)
}
