// Package scenario loads projection scenarios from YAML files.
package scenario

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/alexshd/sir"
)

// Scenario is the on-disk description of a projection.
//
// Transmission can be given directly (beta) or as contact_rate ×
// transmission_probability. Recovery can be given directly (gamma) or as
// infectious_days, with gamma = 1 / infectious_days.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	Population float64 `yaml:"population"`
	Initial    Initial `yaml:"initial"`

	Beta                    float64 `yaml:"beta,omitempty"`
	ContactRate             float64 `yaml:"contact_rate,omitempty"`
	TransmissionProbability float64 `yaml:"transmission_probability,omitempty"`

	Gamma          float64 `yaml:"gamma,omitempty"`
	InfectiousDays float64 `yaml:"infectious_days,omitempty"`

	Fatality float64 `yaml:"fatality,omitempty"`

	Start  float64  `yaml:"start,omitempty"`
	Days   float64  `yaml:"days"`
	DT     *float64 `yaml:"dt,omitempty"` // nil means 1 day
	Scheme string   `yaml:"scheme,omitempty"`

	Capacity *Capacity `yaml:"capacity,omitempty"`
}

// Initial holds the starting partition. A nil Susceptible means
// population - infected - recovered.
type Initial struct {
	Susceptible *float64 `yaml:"susceptible,omitempty"`
	Infected    float64  `yaml:"infected"`
	Recovered   float64  `yaml:"recovered,omitempty"`
	Deceased    float64  `yaml:"deceased,omitempty"`
}

// Capacity describes the bed line the projection is checked against.
type Capacity struct {
	Beds                float64 `yaml:"beds"`
	HospitalizationRate float64 `yaml:"hospitalization_rate,omitempty"`
	WarningRatio        float64 `yaml:"warning_ratio,omitempty"`
	ExitRatio           float64 `yaml:"exit_ratio,omitempty"`
}

// Default returns the reference scenario matching sir.DefaultConfig.
func Default() *Scenario {
	cfg := sir.DefaultConfig()
	return &Scenario{
		Name:       "default",
		Population: cfg.Population,
		Initial:    Initial{Infected: cfg.Initial.I, Recovered: cfg.Initial.R},
		Beta:       cfg.Beta,
		Gamma:      cfg.Gamma,
		Days:       cfg.End - cfg.Start,
		DT:         &cfg.Step,
		Scheme:     string(cfg.Scheme),
	}
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	sc, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes a scenario, rejecting unknown fields.
func Parse(r io.Reader) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("empty scenario")
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if sc.Name == "" {
		sc.Name = "unnamed"
	}
	return &sc, nil
}

// TransmissionRate resolves beta.
func (s *Scenario) TransmissionRate() (float64, error) {
	switch {
	case s.Beta != 0 && (s.ContactRate != 0 || s.TransmissionProbability != 0):
		return 0, fmt.Errorf("%w: set either beta or contact_rate/transmission_probability, not both", sir.ErrInvalidParameter)
	case s.Beta != 0:
		return s.Beta, nil
	case s.ContactRate != 0 || s.TransmissionProbability != 0:
		if s.TransmissionProbability < 0 || s.TransmissionProbability > 1 {
			return 0, &sir.ParameterError{Field: "transmission_probability", Value: s.TransmissionProbability, Reason: "must be in [0, 1]"}
		}
		return s.ContactRate * s.TransmissionProbability, nil
	}
	return 0, &sir.ParameterError{Field: "beta", Reason: "missing (set beta or contact_rate and transmission_probability)"}
}

// RecoveryRate resolves gamma.
func (s *Scenario) RecoveryRate() (float64, error) {
	switch {
	case s.Gamma != 0 && s.InfectiousDays != 0:
		return 0, fmt.Errorf("%w: set either gamma or infectious_days, not both", sir.ErrInvalidParameter)
	case s.Gamma != 0:
		return s.Gamma, nil
	case s.InfectiousDays > 0:
		return 1 / s.InfectiousDays, nil
	case s.InfectiousDays < 0:
		return 0, &sir.ParameterError{Field: "infectious_days", Value: s.InfectiousDays, Reason: "must be > 0"}
	}
	return 0, &sir.ParameterError{Field: "gamma", Reason: "missing (set gamma or infectious_days)"}
}

// Config converts the scenario into a validated sir.Config.
func (s *Scenario) Config() (sir.Config, error) {
	beta, err := s.TransmissionRate()
	if err != nil {
		return sir.Config{}, err
	}
	gamma, err := s.RecoveryRate()
	if err != nil {
		return sir.Config{}, err
	}
	scheme, err := sir.ParseScheme(s.Scheme)
	if err != nil {
		return sir.Config{}, err
	}

	dt := 1.0
	if s.DT != nil {
		dt = *s.DT
	}

	susceptible := s.Population - s.Initial.Infected - s.Initial.Recovered
	if s.Initial.Susceptible != nil {
		susceptible = *s.Initial.Susceptible
	}

	cfg := sir.Config{
		Population:      s.Population,
		Initial:         sir.State{S: susceptible, I: s.Initial.Infected, R: s.Initial.Recovered},
		Beta:            beta,
		Gamma:           gamma,
		Fatality:        s.Fatality,
		InitialDeceased: s.Initial.Deceased,
		Start:           s.Start,
		End:             s.Start + s.Days,
		Step:            dt,
		Scheme:          scheme,
	}
	if err := cfg.Validate(); err != nil {
		return sir.Config{}, err
	}
	return cfg, nil
}

// CapacityConfig returns the bed settings, or false if none are set.
func (s *Scenario) CapacityConfig() (sir.CapacityConfig, bool, error) {
	if s.Capacity == nil || s.Capacity.Beds == 0 {
		return sir.CapacityConfig{}, false, nil
	}
	cc := sir.DefaultCapacityConfig(s.Capacity.Beds)
	if s.Capacity.HospitalizationRate != 0 {
		cc.HospitalizationRate = s.Capacity.HospitalizationRate
	}
	if s.Capacity.WarningRatio != 0 {
		cc.WarningRatio = s.Capacity.WarningRatio
	}
	if s.Capacity.ExitRatio != 0 {
		cc.ExitRatio = s.Capacity.ExitRatio
	}
	if err := cc.Validate(); err != nil {
		return sir.CapacityConfig{}, false, err
	}
	return cc, true, nil
}
