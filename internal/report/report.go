// Package report renders projections as CSV, JSON or a text summary.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strconv"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/alexshd/sir"
)

// Header is the CSV column order.
var Header = []string{"step", "t", "susceptible", "infected", "removed", "recovered", "deceased"}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteCSV streams samples as CSV, one row per sample.
func WriteCSV(w io.Writer, samples iter.Seq[sir.Sample]) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	row := make([]string, len(Header))
	for s := range samples {
		row[0] = strconv.Itoa(s.Step)
		row[1] = formatFloat(s.T)
		row[2] = formatFloat(s.S)
		row[3] = formatFloat(s.I)
		row[4] = formatFloat(s.R)
		row[5] = formatFloat(s.Recovered())
		row[6] = formatFloat(s.Deceased)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", s.Step, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Projection is the JSON document for one run.
type Projection struct {
	RunID    string              `json:"run_id,omitempty"`
	Name     string              `json:"name"`
	Config   ConfigJSON          `json:"config"`
	Summary  SummaryJSON         `json:"summary"`
	Capacity *sir.CapacityReport `json:"capacity,omitempty"`
	Samples  []SampleJSON        `json:"samples,omitempty"`
}

// ConfigJSON is the JSON shape of sir.Config.
type ConfigJSON struct {
	Population      float64 `json:"population"`
	S0              float64 `json:"s0"`
	I0              float64 `json:"i0"`
	R0              float64 `json:"r0"`
	Beta            float64 `json:"beta"`
	Gamma           float64 `json:"gamma"`
	Fatality        float64 `json:"fatality"`
	InitialDeceased float64 `json:"d0"`
	Start           float64 `json:"t0"`
	End             float64 `json:"tmax"`
	Step            float64 `json:"dt"`
	Scheme          string  `json:"scheme"`
}

// NewConfigJSON converts cfg.
func NewConfigJSON(cfg sir.Config) ConfigJSON {
	return ConfigJSON{
		Population:      cfg.Population,
		S0:              cfg.Initial.S,
		I0:              cfg.Initial.I,
		R0:              cfg.Initial.R,
		Beta:            cfg.Beta,
		Gamma:           cfg.Gamma,
		Fatality:        cfg.Fatality,
		InitialDeceased: cfg.InitialDeceased,
		Start:           cfg.Start,
		End:             cfg.End,
		Step:            cfg.Step,
		Scheme:          string(cfg.Scheme),
	}
}

// SirConfig converts back to sir.Config.
func (c ConfigJSON) SirConfig() sir.Config {
	return sir.Config{
		Population:      c.Population,
		Initial:         sir.State{S: c.S0, I: c.I0, R: c.R0},
		Beta:            c.Beta,
		Gamma:           c.Gamma,
		Fatality:        c.Fatality,
		InitialDeceased: c.InitialDeceased,
		Start:           c.Start,
		End:             c.End,
		Step:            c.Step,
		Scheme:          sir.Scheme(c.Scheme),
	}
}

// SummaryJSON is the JSON shape of sir.Summary.
type SummaryJSON struct {
	BasicReproduction     float64 `json:"basic_reproduction"`
	EffectiveReproduction float64 `json:"effective_reproduction"`
	HerdImmunity          float64 `json:"herd_immunity"`
	Outbreak              bool    `json:"outbreak"`
	PeakTime              float64 `json:"peak_time"`
	PeakInfected          float64 `json:"peak_infected"`
	FinalSusceptible      float64 `json:"final_susceptible"`
	FinalInfected         float64 `json:"final_infected"`
	FinalRemoved          float64 `json:"final_removed"`
	FinalDeceased         float64 `json:"final_deceased"`
	AttackRate            float64 `json:"attack_rate"`
}

// NewSummaryJSON converts sum.
func NewSummaryJSON(sum sir.Summary) SummaryJSON {
	return SummaryJSON(sum)
}

// SampleJSON is the JSON shape of sir.Sample.
type SampleJSON struct {
	Step     int     `json:"step"`
	T        float64 `json:"t"`
	S        float64 `json:"s"`
	I        float64 `json:"i"`
	R        float64 `json:"r"`
	Deceased float64 `json:"d"`
}

// NewSamplesJSON converts a series.
func NewSamplesJSON(series sir.Series) []SampleJSON {
	out := make([]SampleJSON, len(series))
	for i, s := range series {
		out[i] = SampleJSON(s)
	}
	return out
}

// WriteJSON encodes v with indentation.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// WriteText prints a human-readable projection summary.
func WriteText(w io.Writer, p Projection) error {
	pr := message.NewPrinter(language.English)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	c, s := p.Config, p.Summary
	lines := []string{
		pr.Sprintf("Scenario:\t%s", p.Name),
		pr.Sprintf("Population:\t%.0f", c.Population),
		pr.Sprintf("Initial S/I/R:\t%.0f / %.0f / %.0f", c.S0, c.I0, c.R0),
		pr.Sprintf("beta / gamma:\t%.4f / %.4f (%s, dt=%g)", c.Beta, c.Gamma, c.Scheme, c.Step),
		pr.Sprintf("R0:\t%.2f (herd immunity %.1f%%)", s.BasicReproduction, s.HerdImmunity*100),
		pr.Sprintf("Outbreak:\t%v (Re(t0) = %.2f)", s.Outbreak, s.EffectiveReproduction),
		pr.Sprintf("Peak:\tday %.1f, %.0f infected", s.PeakTime, s.PeakInfected),
		pr.Sprintf("Final S/I/R:\t%.0f / %.0f / %.0f", s.FinalSusceptible, s.FinalInfected, s.FinalRemoved),
		pr.Sprintf("Deceased:\t%.0f", s.FinalDeceased),
		pr.Sprintf("Attack rate:\t%.1f%%", s.AttackRate*100),
	}
	if p.RunID != "" {
		lines = append([]string{pr.Sprintf("Run:\t%s", p.RunID)}, lines...)
	}
	if cr := p.Capacity; cr != nil {
		lines = append(lines, pr.Sprintf("Beds:\t%.0f (peak demand %.0f, %.0f%%)", cr.Beds, cr.PeakDemand, cr.PeakOccupancy*100))
		if cr.FirstBreach >= 0 {
			lines = append(lines, pr.Sprintf("Over capacity:\tfrom day %.1f, %.1f days total", cr.FirstBreach, cr.TimeOverCapacity))
		} else {
			lines = append(lines, "Over capacity:\tnever")
		}
	}

	for _, l := range lines {
		if _, err := fmt.Fprintln(tw, l); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// WriteSweepText prints one line per sweep point.
func WriteSweepText(w io.Writer, res sir.SweepResult) error {
	pr := message.NewPrinter(language.English)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintln(tw, "beta\tR0\toutbreak\tpeak day\tpeak infected\tattack rate\t")
	for _, p := range res.Points {
		pr.Fprintf(tw, "%.3f\t%.2f\t%v\t%.1f\t%.0f\t%.1f%%\t\n",
			p.Beta, p.BasicReproduction, p.Outbreak, p.PeakTime, p.PeakInfected, p.AttackRate*100)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if res.Threshold > 0 {
		_, err := fmt.Fprintf(w, "First outbreak at beta=%.3f (analytic threshold %.4f)\n", res.Threshold, res.CriticalBeta)
		return err
	}
	_, err := fmt.Fprintf(w, "No outbreak in range (analytic threshold %.4f)\n", res.CriticalBeta)
	return err
}

// SweepHeader is the CSV column order for sweeps.
var SweepHeader = []string{"beta", "r0", "outbreak", "peak_t", "peak_infected", "attack_rate"}

// WriteSweepCSV writes one row per sweep point.
func WriteSweepCSV(w io.Writer, res sir.SweepResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SweepHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range res.Points {
		row := []string{
			formatFloat(p.Beta),
			formatFloat(p.BasicReproduction),
			strconv.FormatBool(p.Outbreak),
			formatFloat(p.PeakTime),
			formatFloat(p.PeakInfected),
			formatFloat(p.AttackRate),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SweepJSON is the JSON document for a sweep.
type SweepJSON struct {
	Base         ConfigJSON       `json:"base"`
	Threshold    float64          `json:"threshold"`
	CriticalBeta float64          `json:"critical_beta"`
	Points       []SweepPointJSON `json:"points"`
}

// SweepPointJSON is the JSON shape of sir.SweepPoint.
type SweepPointJSON struct {
	Beta              float64 `json:"beta"`
	BasicReproduction float64 `json:"basic_reproduction"`
	Outbreak          bool    `json:"outbreak"`
	PeakTime          float64 `json:"peak_time"`
	PeakInfected      float64 `json:"peak_infected"`
	AttackRate        float64 `json:"attack_rate"`
}

// NewSweepJSON converts a sweep result run from base.
func NewSweepJSON(base sir.Config, res sir.SweepResult) SweepJSON {
	out := SweepJSON{
		Base:         NewConfigJSON(base),
		Threshold:    res.Threshold,
		CriticalBeta: res.CriticalBeta,
		Points:       make([]SweepPointJSON, len(res.Points)),
	}
	for i, p := range res.Points {
		out.Points[i] = SweepPointJSON(p)
	}
	return out
}
