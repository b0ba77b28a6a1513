package sir

import "math"

// Summary describes the shape of one epidemic curve.
type Summary struct {
	BasicReproduction     float64 // R0 = beta / gamma
	EffectiveReproduction float64 // Re(t0) = R0 * S0 / N
	HerdImmunity          float64 // 1 - 1/R0, or 0 when R0 <= 1
	Outbreak              bool    // dI/dt > 0 at t0

	PeakTime     float64
	PeakInfected float64

	FinalSusceptible float64
	FinalInfected    float64
	FinalRemoved     float64
	FinalDeceased    float64

	// AttackRate is the share of the population removed during the run.
	AttackRate float64
}

// Summarize computes the outbreak summary of series under cfg.
func Summarize(cfg Config, series Series) Summary {
	r0 := cfg.BasicReproduction()
	sum := Summary{
		BasicReproduction:     r0,
		EffectiveReproduction: r0 * cfg.Initial.S / cfg.Population,
		Outbreak:              cfg.Beta*cfg.Initial.S/cfg.Population > cfg.Gamma && cfg.Initial.I > 0,
	}
	if r0 > 1 {
		sum.HerdImmunity = 1 - 1/r0
	}
	if len(series) == 0 {
		return sum
	}

	peak := series.Peak()
	sum.PeakTime, sum.PeakInfected = peak.T, peak.I

	last := series.Final()
	sum.FinalSusceptible = last.S
	sum.FinalInfected = last.I
	sum.FinalRemoved = last.R
	sum.FinalDeceased = last.Deceased
	sum.AttackRate = (last.R - series[0].R) / cfg.Population
	return sum
}

// Peak returns the first sample with the largest I.
func (s Series) Peak() Sample {
	if len(s) == 0 {
		return Sample{}
	}
	best := s[0]
	for _, x := range s[1:] {
		if x.I > best.I {
			best = x
		}
	}
	return best
}

// Final returns the last sample.
func (s Series) Final() Sample {
	if len(s) == 0 {
		return Sample{}
	}
	return s[len(s)-1]
}

// Infected returns the I trajectory.
func (s Series) Infected() []float64 {
	out := make([]float64, len(s))
	for i, x := range s {
		out[i] = x.I
	}
	return out
}

// EffectiveReproduction returns Re(t) = R0 * S(t) / N for every sample.
// The epidemic grows while Re > 1.
func (s Series) EffectiveReproduction(cfg Config) []float64 {
	r0 := cfg.BasicReproduction()
	out := make([]float64, len(s))
	for i, x := range s {
		out[i] = r0 * x.S / cfg.Population
	}
	return out
}

// MaxConservationError returns the largest |S+I+R-N| / N over the series.
func (s Series) MaxConservationError(n float64) float64 {
	var worst float64
	for _, x := range s {
		if e := math.Abs(x.S+x.I+x.R-n) / n; e > worst {
			worst = e
		}
	}
	return worst
}

// FinalSize returns the attack rate over an unbounded horizon: the
// fraction x of N removed after t0, from the final-size relation
//
//	1 - r0 - x = s0 * exp(-R0 * x)
//
// with s0, r0 the initial fractions. Solved by fixed-point iteration from
// x = 1 - r0, which converges monotonically to the largest root.
func FinalSize(cfg Config) (float64, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	if cfg.Initial.I == 0 {
		return 0, nil
	}
	r0 := cfg.BasicReproduction()
	s0 := cfg.Initial.S / cfg.Population
	removed := cfg.Initial.R / cfg.Population

	x := 1 - removed
	for n := 0; n < 100000; n++ {
		next := 1 - removed - s0*math.Exp(-r0*x)
		if math.Abs(next-x) < 1e-12 {
			return next, nil
		}
		x = next
	}
	return x, nil
}
