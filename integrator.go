package sir

import (
	"iter"
	"slices"
)

// Sample is one point of the time series.
type Sample struct {
	Step     int     // Grid index k
	T        float64 // t0 + k*dt
	S        float64 // Susceptible
	I        float64 // Infected
	R        float64 // Removed
	Deceased float64 // Deceased part of R
}

// Recovered returns the non-fatal part of R.
func (s Sample) Recovered() float64 {
	return s.R - s.Deceased
}

// State returns the partition at this sample.
func (s Sample) State() State {
	return State{S: s.S, I: s.I, R: s.R}
}

// Series is a materialised time series, ordered by Step.
type Series []Sample

// All yields the samples in order.
func (s Series) All() iter.Seq[Sample] {
	return slices.Values(s)
}

// Simulation is a validated run. Its sequence can be ranged over any
// number of times; every pass recomputes from t0.
type Simulation struct {
	cfg Config
}

// Simulate validates cfg and returns a Simulation ready to iterate.
func Simulate(cfg Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Scheme == "" {
		cfg.Scheme = Euler
	}
	return &Simulation{cfg: cfg}, nil
}

// Integrate is the minimal entry point: forward Euler, no fatality split.
func Integrate(n, s0, i0, r0, beta, gamma, t0, tmax, dt float64) (iter.Seq[Sample], error) {
	sim, err := Simulate(Config{
		Population: n,
		Initial:    State{S: s0, I: i0, R: r0},
		Beta:       beta,
		Gamma:      gamma,
		Start:      t0,
		End:        tmax,
		Step:       dt,
		Scheme:     Euler,
	})
	if err != nil {
		return nil, err
	}
	return sim.Samples(), nil
}

// Config returns the validated configuration.
func (sim *Simulation) Config() Config {
	return sim.cfg
}

// Len returns the number of samples the sequence yields.
func (sim *Simulation) Len() int {
	return sim.cfg.Steps() + 1
}

// Samples returns the lazy sample sequence from t0 to tmax.
func (sim *Simulation) Samples() iter.Seq[Sample] {
	cfg := sim.cfg
	m := rates{
		beta:     cfg.Beta,
		gamma:    cfg.Gamma,
		fatality: cfg.Fatality,
		invN:     1 / cfg.Population,
	}
	step := m.euler
	if cfg.Scheme == RK4 {
		step = m.rk4
	}
	steps := cfg.Steps()

	return func(yield func(Sample) bool) {
		x := vec{cfg.Initial.S, cfg.Initial.I, cfg.Initial.R, cfg.InitialDeceased}
		for k := 0; ; k++ {
			if !yield(x.sample(k, cfg.Start+float64(k)*cfg.Step)) {
				return
			}
			if k == steps {
				return
			}
			x = step(x, cfg.Step)
		}
	}
}

// Collect runs the whole sequence into a Series.
func (sim *Simulation) Collect() Series {
	out := make(Series, 0, sim.Len())
	for s := range sim.Samples() {
		out = append(out, s)
	}
	return out
}

// vec holds S, I, R, D.
type vec [4]float64

func (x vec) sample(k int, t float64) Sample {
	return Sample{Step: k, T: t, S: x[0], I: x[1], R: x[2], Deceased: x[3]}
}

// axpy returns x + a*y.
func (x vec) axpy(a float64, y vec) vec {
	return vec{x[0] + a*y[0], x[1] + a*y[1], x[2] + a*y[2], x[3] + a*y[3]}
}

type rates struct {
	beta, gamma, fatality, invN float64
}

// deriv evaluates the right-hand side. The S, I, R components sum to zero.
func (m rates) deriv(x vec) vec {
	infection := m.beta * x[0] * x[1] * m.invN
	removal := m.gamma * x[1]
	return vec{-infection, infection - removal, removal, m.fatality * removal}
}

func (m rates) euler(x vec, dt float64) vec {
	return x.axpy(dt, m.deriv(x))
}

func (m rates) rk4(x vec, dt float64) vec {
	k1 := m.deriv(x)
	k2 := m.deriv(x.axpy(dt/2, k1))
	k3 := m.deriv(x.axpy(dt/2, k2))
	k4 := m.deriv(x.axpy(dt, k3))

	var out vec
	for i := range out {
		out[i] = x[i] + dt/6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}
	return out
}
