package scenario

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexshd/sir"
)

func TestLoad_City(t *testing.T) {
	sc, err := Load("testdata/city.yaml")
	require.NoError(t, err)

	assert.Equal(t, "city", sc.Name)
	assert.Equal(t, 900000.0, sc.Population)

	cfg, err := sc.Config()
	require.NoError(t, err)

	assert.InDelta(t, 0.3, cfg.Beta, 1e-12)
	assert.InDelta(t, 0.25, cfg.Gamma, 1e-12)
	assert.Equal(t, 894900.0, cfg.Initial.S)
	assert.Equal(t, 5100.0, cfg.Initial.I)
	assert.Equal(t, 0.04, cfg.Fatality)
	assert.Equal(t, 360.0, cfg.End)
	assert.Equal(t, 0.01, cfg.Step)
	assert.Equal(t, sir.Euler, cfg.Scheme)

	cc, ok, err := sc.CapacityConfig()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5623.0, cc.Beds)
	assert.Equal(t, 1.0, cc.HospitalizationRate)
}

func TestLoad_UnknownField(t *testing.T) {
	_, err := Load("testdata/typo.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gama")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("testdata/nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	require.Error(t, err)
}

func TestParse_DefaultsName(t *testing.T) {
	sc, err := Parse(strings.NewReader("population: 10\ninitial: {infected: 1}\nbeta: 1\ngamma: 0.5\ndays: 5\n"))
	require.NoError(t, err)
	assert.Equal(t, "unnamed", sc.Name)
}

func TestDefault_MatchesLibraryDefault(t *testing.T) {
	cfg, err := Default().Config()
	require.NoError(t, err)
	assert.Equal(t, sir.DefaultConfig(), cfg)
}

func TestConfig_ExplicitSusceptible(t *testing.T) {
	s := 900.0
	sc := Default()
	sc.Initial.Susceptible = &s

	_, err := sc.Config()
	require.Error(t, err)
	assert.True(t, errors.Is(err, sir.ErrInvalidParameter), "partition not summing to N must be invalid")

	s = 999
	_, err = sc.Config()
	require.NoError(t, err)
}

func TestConfig_RateResolution(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Scenario)
		wantErr bool
		beta    float64
		gamma   float64
	}{
		{"direct", func(s *Scenario) {}, false, 0.4, 0.1},
		{"contacts", func(s *Scenario) { s.Beta = 0; s.ContactRate = 2; s.TransmissionProbability = 0.25 }, false, 0.5, 0.1},
		{"infectious_days", func(s *Scenario) { s.Gamma = 0; s.InfectiousDays = 5 }, false, 0.4, 0.2},
		{"both_beta_forms", func(s *Scenario) { s.ContactRate = 2; s.TransmissionProbability = 0.2 }, true, 0, 0},
		{"both_gamma_forms", func(s *Scenario) { s.InfectiousDays = 5 }, true, 0, 0},
		{"missing_beta", func(s *Scenario) { s.Beta = 0 }, true, 0, 0},
		{"missing_gamma", func(s *Scenario) { s.Gamma = 0 }, true, 0, 0},
		{"probability_above_one", func(s *Scenario) { s.Beta = 0; s.ContactRate = 1; s.TransmissionProbability = 2 }, true, 0, 0},
		{"negative_days", func(s *Scenario) { s.Gamma = 0; s.InfectiousDays = -1 }, true, 0, 0},
		{"bad_scheme", func(s *Scenario) { s.Scheme = "leapfrog" }, true, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := Default()
			tt.mutate(sc)

			cfg, err := sc.Config()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, sir.ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.beta, cfg.Beta, 1e-12)
			assert.InDelta(t, tt.gamma, cfg.Gamma, 1e-12)
		})
	}
}

func TestCapacityConfig(t *testing.T) {
	sc := Default()
	_, ok, err := sc.CapacityConfig()
	require.NoError(t, err)
	assert.False(t, ok)

	sc.Capacity = &Capacity{Beds: 50, HospitalizationRate: 0.1, WarningRatio: 0.9, ExitRatio: 0.5}
	cc, ok, err := sc.CapacityConfig()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sir.CapacityConfig{Beds: 50, HospitalizationRate: 0.1, WarningRatio: 0.9, ExitRatio: 0.5}, cc)

	sc.Capacity.HospitalizationRate = 3
	_, _, err = sc.CapacityConfig()
	assert.ErrorIs(t, err, sir.ErrInvalidParameter)
}
