package sir

import (
	"fmt"
	"math"
)

// CapacityStatus is the bed-occupancy state at one sample.
type CapacityStatus string

const (
	CapacityWithin  CapacityStatus = "WITHIN"        // Demand comfortably below beds
	CapacityWarning CapacityStatus = "WARNING"       // Occupancy at or above WarningRatio
	CapacityOver    CapacityStatus = "OVER_CAPACITY" // Demand exceeds beds
)

// CapacityConfig describes the hospital system a projection is checked against.
type CapacityConfig struct {
	Beds                float64 // Total beds available
	HospitalizationRate float64 // Fraction of infected needing a bed
	WarningRatio        float64 // Occupancy that raises WARNING (default 0.8)

	// ExitRatio is the occupancy that must be undershot before an
	// OVER_CAPACITY state clears (default 0.7). Prevents flapping when
	// demand hovers around the bed count.
	ExitRatio float64
}

// DefaultCapacityConfig returns ratios suited to daily samples.
func DefaultCapacityConfig(beds float64) CapacityConfig {
	return CapacityConfig{
		Beds:                beds,
		HospitalizationRate: 1,
		WarningRatio:        0.8,
		ExitRatio:           0.7,
	}
}

// Validate rejects unusable capacity settings.
func (c CapacityConfig) Validate() error {
	switch {
	case math.IsNaN(c.Beds) || math.IsInf(c.Beds, 0) || c.Beds <= 0:
		return invalid("beds", c.Beds, "must be finite and > 0")
	case math.IsNaN(c.HospitalizationRate) || c.HospitalizationRate <= 0 || c.HospitalizationRate > 1:
		return invalid("hospitalization_rate", c.HospitalizationRate, "must be in (0, 1]")
	case math.IsNaN(c.WarningRatio) || c.WarningRatio <= 0 || c.WarningRatio > 1:
		return invalid("warning_ratio", c.WarningRatio, "must be in (0, 1]")
	case math.IsNaN(c.ExitRatio) || c.ExitRatio <= 0 || c.ExitRatio > 1:
		return invalid("exit_ratio", c.ExitRatio, "must be in (0, 1]")
	}
	return nil
}

// CapacityEvent records a status change.
type CapacityEvent struct {
	T         float64        `json:"t"`
	Status    CapacityStatus `json:"status"`
	Demand    float64        `json:"demand"`    // Beds needed
	Occupancy float64        `json:"occupancy"` // Demand / Beds
	Reason    string         `json:"reason"`
}

// CapacityMonitor tracks occupancy sample by sample with hysteresis.
type CapacityMonitor struct {
	cfg    CapacityConfig
	status CapacityStatus

	lastT     float64
	started   bool
	overTime  float64
	breaches  int
	firstOver float64
}

// NewCapacityMonitor creates a monitor in the WITHIN state.
func NewCapacityMonitor(cfg CapacityConfig) *CapacityMonitor {
	return &CapacityMonitor{cfg: cfg, status: CapacityWithin, firstOver: -1}
}

// Status returns the current state.
func (m *CapacityMonitor) Status() CapacityStatus {
	return m.status
}

// Observe feeds one sample and returns the resulting status.
// The returned event's Reason is empty when the status did not change.
func (m *CapacityMonitor) Observe(s Sample) CapacityEvent {
	demand := s.I * m.cfg.HospitalizationRate
	occupancy := demand / m.cfg.Beds

	// Time over capacity accrues for the interval ending at this sample.
	if m.started && m.status == CapacityOver {
		m.overTime += s.T - m.lastT
	}
	m.lastT, m.started = s.T, true

	next := m.status
	switch {
	case demand > m.cfg.Beds:
		next = CapacityOver
	case m.status == CapacityOver && occupancy >= m.cfg.ExitRatio:
		// Hysteresis: stay over until demand falls clearly below the beds.
	case occupancy >= m.cfg.WarningRatio:
		next = CapacityWarning
	default:
		next = CapacityWithin
	}

	ev := CapacityEvent{T: s.T, Status: next, Demand: demand, Occupancy: occupancy}
	if next != m.status {
		ev.Reason = fmt.Sprintf("%s -> %s at t=%g (occupancy %.1f%%)", m.status, next, s.T, occupancy*100)
		if next == CapacityOver {
			m.breaches++
			if m.firstOver < 0 {
				m.firstOver = s.T
			}
		}
		m.status = next
	}
	return ev
}

// CapacityReport summarises a projection against the bed count.
type CapacityReport struct {
	Beds             float64         `json:"beds"`
	FirstBreach      float64         `json:"first_breach"`       // t of first OVER_CAPACITY, -1 if never
	Breaches         int             `json:"breaches"`           // Number of entries into OVER_CAPACITY
	TimeOverCapacity float64         `json:"time_over_capacity"` // Days spent OVER_CAPACITY
	PeakDemand       float64         `json:"peak_demand"`
	PeakOccupancy    float64         `json:"peak_occupancy"`
	Transitions      []CapacityEvent `json:"transitions"`
}

// AssessCapacity runs a CapacityMonitor over series.
func AssessCapacity(series Series, cfg CapacityConfig) (CapacityReport, error) {
	if err := cfg.Validate(); err != nil {
		return CapacityReport{}, err
	}

	m := NewCapacityMonitor(cfg)
	rep := CapacityReport{Beds: cfg.Beds}
	for _, s := range series {
		ev := m.Observe(s)
		if ev.Demand > rep.PeakDemand {
			rep.PeakDemand, rep.PeakOccupancy = ev.Demand, ev.Occupancy
		}
		if ev.Reason != "" {
			rep.Transitions = append(rep.Transitions, ev)
		}
	}
	rep.FirstBreach = m.firstOver
	rep.Breaches = m.breaches
	rep.TimeOverCapacity = m.overTime
	return rep, nil
}
