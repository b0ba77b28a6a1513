package sir

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParameter is returned (wrapped in a *ParameterError) when a run
// configuration is out of range or inconsistent. Check with errors.Is.
var ErrInvalidParameter = errors.New("invalid parameter")

// ParameterError names the offending field of a rejected Config.
type ParameterError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%g: %s", e.Field, e.Value, e.Reason)
}

func (e *ParameterError) Unwrap() error {
	return ErrInvalidParameter
}

func invalid(field string, value float64, reason string) error {
	return &ParameterError{Field: field, Value: value, Reason: reason}
}

// SumTolerance is the relative tolerance for S0+I0+R0 = N.
const SumTolerance = 1e-6

// MaxSteps caps the number of integration steps in one run.
const MaxSteps = 10_000_000

// maxRateStep bounds beta*dt and gamma*dt. The slack absorbs rounding in
// grids such as a beta sweep that lands on 1.0000000000000002.
const maxRateStep = 1 + 1e-9

// Scheme selects the fixed-step explicit integration method.
type Scheme string

const (
	// Euler is the forward Euler method. It is first order. Validate
	// bounds beta*dt and gamma*dt by 1, which keeps S and I non-negative
	// and S non-increasing.
	Euler Scheme = "euler"
	// RK4 is the classical fourth-order Runge-Kutta method. The same step
	// bound applies.
	RK4 Scheme = "rk4"
)

// ParseScheme maps a name to a Scheme. The empty string selects Euler.
func ParseScheme(name string) (Scheme, error) {
	switch Scheme(name) {
	case "", Euler:
		return Euler, nil
	case RK4:
		return RK4, nil
	}
	return "", fmt.Errorf("%w: unknown scheme %q (want euler or rk4)", ErrInvalidParameter, name)
}

// State is a population partition.
type State struct {
	S float64 // Susceptible
	I float64 // Infected
	R float64 // Removed (recovered or deceased)
}

// Total returns S+I+R.
func (s State) Total() float64 {
	return s.S + s.I + s.R
}

// Config fully describes one simulation run.
type Config struct {
	Population float64 // N, constant for the run
	Initial    State   // S0, I0, R0 at Start

	Beta  float64 // Transmission coefficient (contact rate × infection probability)
	Gamma float64 // Recovery coefficient (1 / mean infectious days)

	// Fatality is the fraction of removals that are deaths, in [0, 1).
	// It only splits R into Recovered and Deceased.
	Fatality        float64
	InitialDeceased float64 // Part of Initial.R already deceased

	Start float64 // t0 (days)
	End   float64 // tmax (days)
	Step  float64 // dt (days)

	Scheme Scheme // Empty means Euler
}

// DefaultConfig returns a small reference outbreak: one case in a town
// of 1000 with R0 = 4, followed for 50 days on a daily Euler grid.
func DefaultConfig() Config {
	return Config{
		Population: 1000,
		Initial:    State{S: 999, I: 1, R: 0},
		Beta:       0.4,
		Gamma:      0.1,
		Start:      0,
		End:        50,
		Step:       1,
		Scheme:     Euler,
	}
}

// BasicReproduction returns R0 = beta / gamma.
func (c Config) BasicReproduction() float64 {
	return c.Beta / c.Gamma
}

// Steps returns the number of integration steps on the grid.
// The sample count is Steps()+1.
func (c Config) Steps() int {
	return int(math.Floor((c.End-c.Start)/c.Step + 1e-9))
}

// Validate checks every field before any integration happens.
func (c Config) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"population", c.Population},
		{"beta", c.Beta},
		{"gamma", c.Gamma},
		{"dt", c.Step},
		{"t0", c.Start},
		{"tmax", c.End},
		{"s0", c.Initial.S},
		{"i0", c.Initial.I},
		{"r0", c.Initial.R},
		{"fatality", c.Fatality},
		{"d0", c.InitialDeceased},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return invalid(f.name, f.value, "must be finite")
		}
	}

	switch {
	case c.Population <= 0:
		return invalid("population", c.Population, "must be > 0")
	case c.Beta <= 0:
		return invalid("beta", c.Beta, "must be > 0")
	case c.Gamma <= 0:
		return invalid("gamma", c.Gamma, "must be > 0")
	case c.Step <= 0:
		return invalid("dt", c.Step, "must be > 0")
	case c.End < c.Start:
		return invalid("tmax", c.End, fmt.Sprintf("must be >= t0 (%g)", c.Start))
	case (c.End-c.Start)/c.Step > MaxSteps:
		return invalid("dt", c.Step, fmt.Sprintf("grid over [%g, %g] exceeds %d steps", c.Start, c.End, MaxSteps))
	case c.Beta*c.Step > maxRateStep:
		return invalid("dt", c.Step, fmt.Sprintf("beta*dt = %g must be <= 1", c.Beta*c.Step))
	case c.Gamma*c.Step > maxRateStep:
		return invalid("dt", c.Step, fmt.Sprintf("gamma*dt = %g must be <= 1", c.Gamma*c.Step))
	case c.Initial.S < 0:
		return invalid("s0", c.Initial.S, "must be >= 0")
	case c.Initial.I < 0:
		return invalid("i0", c.Initial.I, "must be >= 0")
	case c.Initial.R < 0:
		return invalid("r0", c.Initial.R, "must be >= 0")
	}

	if diff := math.Abs(c.Initial.Total() - c.Population); diff > SumTolerance*c.Population {
		return invalid("s0+i0+r0", c.Initial.Total(), fmt.Sprintf("must equal population %g", c.Population))
	}

	switch {
	case c.Fatality < 0 || c.Fatality >= 1:
		return invalid("fatality", c.Fatality, "must be in [0, 1)")
	case c.InitialDeceased < 0 || c.InitialDeceased > c.Initial.R:
		return invalid("d0", c.InitialDeceased, fmt.Sprintf("must be in [0, r0=%g]", c.Initial.R))
	}

	if _, err := ParseScheme(string(c.Scheme)); err != nil {
		return err
	}
	return nil
}
