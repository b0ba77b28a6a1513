// Package sir projects epidemic curves with the SIR compartmental model.
//
// # Overview
//
// A homogeneously mixed population of fixed size N is split into three
// compartments:
//
//   - S: Susceptible, can catch the disease
//   - I: Infected, can pass it on
//   - R: Removed, recovered with immunity or deceased
//
// The compartments evolve by three coupled rate equations:
//
//	dS/dt = -β·S·I/N
//	dI/dt =  β·S·I/N - γ·I
//	dR/dt =  γ·I
//
// Where:
//   - β (beta): transmission coefficient, contacts per day × infection probability
//   - γ (gamma): recovery coefficient, 1 / mean infectious days
//
// The three derivatives sum to zero, so S+I+R = N for the whole run.
//
// # Quick Start
//
//	cfg := sir.DefaultConfig() // N=1000, I0=1, β=0.4, γ=0.1, 50 days
//
//	sim, err := sir.Simulate(cfg)
//	if err != nil {
//	    log.Fatal(err) // errors.Is(err, sir.ErrInvalidParameter)
//	}
//
//	for s := range sim.Samples() {
//	    fmt.Printf("day %3.0f  S=%7.1f  I=%7.1f  R=%7.1f\n", s.T, s.S, s.I, s.R)
//	}
//
// Samples is lazy: breaking out of the loop stops the computation, and
// ranging again restarts from t0.
//
// # Integration
//
// Integration is fixed-step and explicit. [Euler] is the default; [RK4]
// trades four derivative evaluations per step for fourth-order accuracy.
// Sample k sits at t0 + k·dt; a trailing partial step is never taken.
// Validate requires β·dt ≤ 1 and γ·dt ≤ 1, which keeps every compartment
// non-negative, and caps a run at [MaxSteps] steps.
//
// # The Epidemic Threshold
//
// I grows at t0 exactly when
//
//	β·S0/N > γ
//
// which is Re(t0) = R0·S0/N > 1 with R0 = β/γ. Once enough people are
// removed that Re(t) drops below 1 the curve peaks. The population share
// that must be immune for that is the herd immunity threshold 1 - 1/R0.
//
// [Sweep] scans β and reports the first value that produces an outbreak.
//
// # Deaths and Beds
//
// Config.Fatality splits removals into recoveries and deaths
// (dD/dt = fatality·γ·I). [AssessCapacity] checks the infected curve
// against a hospital bed count with hysteresis, so a curve hovering at
// the limit does not flap in and out of OVER_CAPACITY.
//
// # Testing
//
//	func TestMyScenario(t *testing.T) {
//	    sim, _ := sir.Simulate(cfg)
//	    sir.AssertEpidemic(t, cfg, sim.Collect())
//	}
package sir
