package sir

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestSweep_FindsThreshold(t *testing.T) {
	base := DefaultConfig()
	sc := DefaultSweepConfig()
	sc.Workers = 4

	res, err := Sweep(context.Background(), base, sc)
	if err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}

	if len(res.Points) != 20 {
		t.Fatalf("Expected 20 points (0.05..1.00), got %d", len(res.Points))
	}
	for i := 1; i < len(res.Points); i++ {
		if res.Points[i].Beta <= res.Points[i-1].Beta {
			t.Fatalf("Points not ordered by beta at %d", i)
		}
	}

	// gamma*N/S0 = 0.1001: beta=0.10 is just below, 0.15 the first above.
	if math.Abs(res.CriticalBeta-0.1*1000/999) > 1e-12 {
		t.Errorf("CriticalBeta = %g", res.CriticalBeta)
	}
	if math.Abs(res.Threshold-0.15) > 1e-9 {
		t.Errorf("Expected threshold 0.15, got %g", res.Threshold)
	}

	for _, p := range res.Points {
		if p.Outbreak != (p.Beta > res.CriticalBeta) {
			t.Errorf("beta=%.2f: outbreak=%v inconsistent with critical beta %.4f", p.Beta, p.Outbreak, res.CriticalBeta)
		}
	}

	t.Logf("Threshold: beta=%.2f (analytic %.4f)", res.Threshold, res.CriticalBeta)
}

func TestSweep_PeakGrowsWithBeta(t *testing.T) {
	sc := SweepConfig{MinBeta: 0.2, MaxBeta: 0.8, StepBeta: 0.1, Workers: 2}
	base := DefaultConfig()
	base.End = 200

	res, err := Sweep(context.Background(), base, sc)
	if err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	for i := 1; i < len(res.Points); i++ {
		prev, cur := res.Points[i-1], res.Points[i]
		if cur.PeakInfected <= prev.PeakInfected {
			t.Errorf("Peak did not grow: beta %.1f→%.1f, %.1f→%.1f", prev.Beta, cur.Beta, prev.PeakInfected, cur.PeakInfected)
		}
		if cur.AttackRate <= prev.AttackRate {
			t.Errorf("Attack rate did not grow: beta %.1f→%.1f", prev.Beta, cur.Beta)
		}
	}
}

func TestSweep_MatchesSequential(t *testing.T) {
	base := DefaultConfig()
	sc := SweepConfig{MinBeta: 0.1, MaxBeta: 0.5, StepBeta: 0.1, Workers: 3}

	res, err := Sweep(context.Background(), base, sc)
	if err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	for _, p := range res.Points {
		cfg := base
		cfg.Beta = p.Beta
		sim, err := Simulate(cfg)
		if err != nil {
			t.Fatalf("Simulate() failed: %v", err)
		}
		want := Summarize(cfg, sim.Collect())
		if p.PeakInfected != want.PeakInfected || p.AttackRate != want.AttackRate {
			t.Errorf("beta=%.1f: concurrent %+v differs from sequential %+v", p.Beta, p, want)
		}
	}
}

func TestSweep_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		sc   SweepConfig
		base func(*Config)
	}{
		{"zero_min", SweepConfig{MinBeta: 0, MaxBeta: 1, StepBeta: 0.1}, nil},
		{"max_below_min", SweepConfig{MinBeta: 0.5, MaxBeta: 0.1, StepBeta: 0.1}, nil},
		{"zero_step", SweepConfig{MinBeta: 0.1, MaxBeta: 1, StepBeta: 0}, nil},
		{"negative_workers", SweepConfig{MinBeta: 0.1, MaxBeta: 1, StepBeta: 0.1, Workers: -1}, nil},
		{"bad_base", DefaultSweepConfig(), func(c *Config) { c.Population = 0 }},
		{"tiny_step", SweepConfig{MinBeta: 0.1, MaxBeta: 1, StepBeta: 1e-300}, nil},
		{"too_many_points", SweepConfig{MinBeta: 0.1, MaxBeta: 1, StepBeta: 1e-6}, nil},
		{"max_beta_too_stiff", SweepConfig{MinBeta: 0.5, MaxBeta: 2, StepBeta: 0.5}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := DefaultConfig()
			if tt.base != nil {
				tt.base(&base)
			}
			if _, err := Sweep(context.Background(), base, tt.sc); !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("Expected ErrInvalidParameter, got %v", err)
			}
		})
	}
}

func TestSweep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Sweep(ctx, DefaultConfig(), DefaultSweepConfig())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
