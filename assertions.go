package sir

import (
	"testing"
)

// AssertionConfig contains tolerances for epidemic properties.
type AssertionConfig struct {
	// Relative tolerance for S+I+R = N
	ConservationTolerance float64

	// Absolute slack allowed on monotonic compartments (rounding noise)
	MonotoneSlack float64
}

// DefaultAssertionConfig returns tolerances suited to float64 runs.
func DefaultAssertionConfig() AssertionConfig {
	return AssertionConfig{
		ConservationTolerance: 1e-6,
		MonotoneSlack:         1e-9,
	}
}

// AssertConservation verifies S(t)+I(t)+R(t) = N at every sample.
func AssertConservation(t *testing.T, series Series, n float64, cfg AssertionConfig) {
	t.Helper()

	if worst := series.MaxConservationError(n); worst > cfg.ConservationTolerance {
		t.Errorf("Population not conserved: max |S+I+R-N|/N = %.3e (tolerance %.1e)",
			worst, cfg.ConservationTolerance)
		return
	}
	t.Logf("✓ Conservation: S+I+R = %.0f over %d samples", n, len(series))
}

// AssertMonotone verifies S never increases and R never decreases.
func AssertMonotone(t *testing.T, series Series, cfg AssertionConfig) {
	t.Helper()

	for i := 1; i < len(series); i++ {
		prev, cur := series[i-1], series[i]
		if cur.S > prev.S+cfg.MonotoneSlack {
			t.Errorf("S increased at t=%g: %.6f → %.6f", cur.T, prev.S, cur.S)
			return
		}
		if cur.R < prev.R-cfg.MonotoneSlack {
			t.Errorf("R decreased at t=%g: %.6f → %.6f", cur.T, prev.R, cur.R)
			return
		}
		if cur.Deceased < prev.Deceased-cfg.MonotoneSlack {
			t.Errorf("Deceased decreased at t=%g: %.6f → %.6f", cur.T, prev.Deceased, cur.Deceased)
			return
		}
	}
}

// AssertNoOutbreak verifies a run without initial infection stays put.
func AssertNoOutbreak(t *testing.T, series Series) {
	t.Helper()

	if len(series) == 0 {
		t.Errorf("Empty series")
		return
	}
	s0 := series[0].S
	for _, x := range series {
		if x.I != 0 || x.S != s0 {
			t.Errorf("State moved without infection at t=%g: S=%g I=%g", x.T, x.S, x.I)
			return
		}
	}
}

// AssertThreshold verifies the initial direction of I matches the
// epidemic threshold: I rises when beta*S0/N > gamma and falls when
// beta*S0/N < gamma.
func AssertThreshold(t *testing.T, cfg Config, series Series) {
	t.Helper()

	if len(series) < 2 {
		t.Fatalf("Need at least 2 samples, got %d", len(series))
	}
	force := cfg.Beta * cfg.Initial.S / cfg.Population
	delta := series[1].I - series[0].I

	switch {
	case force > cfg.Gamma && delta <= 0:
		t.Errorf("Expected I to rise (beta*S0/N=%.4f > gamma=%.4f), got ΔI=%.6f", force, cfg.Gamma, delta)
	case force < cfg.Gamma && delta >= 0:
		t.Errorf("Expected I to fall (beta*S0/N=%.4f < gamma=%.4f), got ΔI=%.6f", force, cfg.Gamma, delta)
	default:
		t.Logf("✓ Threshold: beta*S0/N=%.4f, gamma=%.4f, ΔI=%.6f", force, cfg.Gamma, delta)
	}
}

// AssertEpidemic runs all curve assertions with default tolerances.
func AssertEpidemic(t *testing.T, cfg Config, series Series) {
	t.Helper()

	ac := DefaultAssertionConfig()

	t.Run("Conservation", func(t *testing.T) {
		AssertConservation(t, series, cfg.Population, ac)
	})

	t.Run("Monotone", func(t *testing.T) {
		AssertMonotone(t, series, ac)
	})

	t.Run("Threshold", func(t *testing.T) {
		if cfg.Initial.I == 0 {
			AssertNoOutbreak(t, series)
			return
		}
		AssertThreshold(t, cfg, series)
	})
}
