package sir

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// SweepConfig controls a transmission sweep over beta.
type SweepConfig struct {
	MinBeta  float64 // First beta value
	MaxBeta  float64 // Last beta value (inclusive)
	StepBeta float64 // Beta increment
	Workers  int     // Concurrent simulations (0 = GOMAXPROCS)
}

// DefaultSweepConfig scans beta from 0.05 to 1.0.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		MinBeta:  0.05,
		MaxBeta:  1.0,
		StepBeta: 0.05,
		Workers:  0,
	}
}

// SweepPoint is the outcome of one beta value.
type SweepPoint struct {
	Beta              float64
	BasicReproduction float64
	Outbreak          bool
	PeakTime          float64
	PeakInfected      float64
	AttackRate        float64
}

// SweepResult holds all points ordered by beta.
type SweepResult struct {
	Points []SweepPoint

	// Threshold is the first swept beta that produced an outbreak,
	// or 0 if none did.
	Threshold float64

	// CriticalBeta is the analytic threshold gamma * N / S0.
	CriticalBeta float64
}

// MaxSweepPoints caps the number of beta values in one sweep.
const MaxSweepPoints = 100_000

// betas expands the sweep grid.
func (sc SweepConfig) betas() ([]float64, error) {
	switch {
	case math.IsNaN(sc.MinBeta) || sc.MinBeta <= 0:
		return nil, invalid("min_beta", sc.MinBeta, "must be > 0")
	case math.IsNaN(sc.MaxBeta) || math.IsInf(sc.MaxBeta, 0) || sc.MaxBeta < sc.MinBeta:
		return nil, invalid("max_beta", sc.MaxBeta, fmt.Sprintf("must be >= min_beta (%g)", sc.MinBeta))
	case math.IsNaN(sc.StepBeta) || sc.StepBeta <= 0:
		return nil, invalid("step_beta", sc.StepBeta, "must be > 0")
	case sc.Workers < 0:
		return nil, invalid("workers", float64(sc.Workers), "must be >= 0")
	}

	span := (sc.MaxBeta - sc.MinBeta) / sc.StepBeta
	if span > MaxSweepPoints-1 {
		return nil, invalid("step_beta", sc.StepBeta, fmt.Sprintf("grid exceeds %d points", MaxSweepPoints))
	}
	n := int(math.Floor(span+1e-9)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = sc.MinBeta + float64(i)*sc.StepBeta
	}
	return out, nil
}

// Sweep runs base once per beta on the grid. Everything except Beta is
// taken from base. Runs execute concurrently; the result is ordered.
func Sweep(ctx context.Context, base Config, sc SweepConfig) (SweepResult, error) {
	betas, err := sc.betas()
	if err != nil {
		return SweepResult{}, err
	}
	// Validate the shared fields once. The largest beta is the one the
	// step bound can reject.
	stiffest := base
	stiffest.Beta = betas[len(betas)-1]
	if err := stiffest.Validate(); err != nil {
		return SweepResult{}, err
	}

	workers := sc.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	points := make([]SweepPoint, len(betas))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, beta := range betas {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cfg := base
			cfg.Beta = beta
			sim, err := Simulate(cfg)
			if err != nil {
				return fmt.Errorf("beta=%g: %w", beta, err)
			}
			sum := Summarize(cfg, sim.Collect())
			points[i] = SweepPoint{
				Beta:              beta,
				BasicReproduction: sum.BasicReproduction,
				Outbreak:          sum.Outbreak,
				PeakTime:          sum.PeakTime,
				PeakInfected:      sum.PeakInfected,
				AttackRate:        sum.AttackRate,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return SweepResult{}, err
	}

	res := SweepResult{Points: points}
	if base.Initial.S > 0 {
		res.CriticalBeta = base.Gamma * base.Population / base.Initial.S
	}
	for _, p := range points {
		if p.Outbreak {
			res.Threshold = p.Beta
			break
		}
	}
	return res, nil
}
