// Package discrepancy detects the six trait/state conflict patterns (D1..D6).
//
// Every detector is an independent predicate: any number of them may fire for
// the same input. Traits whose percentile was defaulted never satisfy a trait
// condition, so sparse data cannot produce a discrepancy by assumption.
package discrepancy

import (
	"sort"

	"github.com/HendryAvila/miso/internal/normalize"
	"github.com/HendryAvila/miso/internal/norms"
	"github.com/HendryAvila/miso/internal/scoring"
)

// Basis records whether a discrepancy rests on measured or inferred traits.
type Basis string

const (
	BasisMeasured Basis = "measured"
	BasisInferred Basis = "inferred"
)

// Discrepancy is one detected conflict pattern.
type Discrepancy struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Severity       norms.Severity     `json:"severity"`
	Priority       int                `json:"priority"`
	Interpretation string             `json:"interpretation"`
	Basis          Basis              `json:"basis"`
	Evidence       map[string]float64 `json:"evidence,omitempty"`
}

// Critical reports whether d requires immediate attention.
func (d Discrepancy) Critical() bool { return d.Severity == norms.SeverityCritical }

// Input is everything the detectors look at.
type Input struct {
	Traits normalize.TraitPercentiles
	// Strengths holds measured strength percentiles only.
	Strengths map[string]float64
	Deltas    scoring.Deltas
	Screening normalize.ScreeningScores
}

// Report is the discrepancy section of an analysis.
type Report struct {
	Items       []Discrepancy `json:"items"`
	Top         *Discrepancy  `json:"top,omitempty"`
	HasCritical bool          `json:"has_critical"`
}

// Detector runs D1..D6 against one set of tables.
type Detector struct {
	defs map[string]norms.DiscrepancyDef
	thr  norms.DiscrepancyThresholds
}

// New creates a Detector.
func New(tables *norms.Tables) *Detector {
	return &Detector{defs: tables.Discrepancies, thr: tables.Calibration.Discrepancy}
}

type detector func(d *Detector, in Input) (*Discrepancy, bool)

var detectors = []detector{
	(*Detector).situationalCrisis,
	(*Detector).traitCompensation,
	(*Detector).repressiveCoping,
	(*Detector).strengthParadox,
	(*Detector).regulationInconsistency,
	(*Detector).interpersonalOverextension,
}

// Detect returns every discrepancy whose predicate holds, unordered.
func (d *Detector) Detect(in Input) []Discrepancy {
	var out []Discrepancy
	for _, fn := range detectors {
		if disc, ok := fn(d, in); ok {
			out = append(out, *disc)
		}
	}
	return out
}

// Analyze detects and prioritizes in one step.
func (d *Detector) Analyze(in Input) Report {
	items := Prioritize(d.Detect(in))
	r := Report{Items: items, HasCritical: HasCritical(items)}
	if top, ok := Top(items); ok {
		r.Top = &top
	}
	return r
}

// Prioritize sorts by severity (highest first), then priority, then ID.
// The input slice is not modified.
func Prioritize(items []Discrepancy) []Discrepancy {
	out := append([]Discrepancy(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := out[i].Severity.Rank(), out[j].Severity.Rank()
		if si != sj {
			return si > sj
		}
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Top returns the highest-priority discrepancy.
func Top(items []Discrepancy) (Discrepancy, bool) {
	if len(items) == 0 {
		return Discrepancy{}, false
	}
	return Prioritize(items)[0], true
}

// HasCritical reports whether any discrepancy is critical.
func HasCritical(items []Discrepancy) bool {
	for _, d := range items {
		if d.Critical() {
			return true
		}
	}
	return false
}

func (d *Detector) build(id string, evidence map[string]float64, traits normalize.TraitPercentiles, used ...norms.Trait) *Discrepancy {
	def := d.defs[id]
	basis := BasisMeasured
	for _, t := range used {
		if traits.Source(t) == normalize.MBTIInferred {
			basis = BasisInferred
		}
	}
	return &Discrepancy{
		ID:             id,
		Name:           def.Name,
		Severity:       def.Severity,
		Priority:       def.Priority,
		Interpretation: def.Interpretation,
		Basis:          basis,
		Evidence:       evidence,
	}
}

// trait returns the percentile of t when it is known (measured or inferred).
func trait(in Input, t norms.Trait) (float64, bool) {
	if !in.Traits.Known(t) {
		return 0, false
	}
	return in.Traits.Value(t), true
}

// D1: low neuroticism but depression far above prediction.
func (d *Detector) situationalCrisis(in Input) (*Discrepancy, bool) {
	n, ok := trait(in, norms.Neuroticism)
	if !ok || n > d.thr.LowNeuroticism {
		return nil, false
	}
	dDelta := in.Deltas.Of(norms.Depression)
	if dDelta <= d.thr.DepressionDelta && in.Deltas.Sum <= d.thr.AggregateDelta {
		return nil, false
	}
	disc := d.build("D1", map[string]float64{
		"neuroticism":      n,
		"depression_delta": dDelta,
		"delta_sum":        in.Deltas.Sum,
	}, in.Traits, norms.Neuroticism)
	if in.Screening.Severity(norms.Depression).Rank() >= norms.SeveritySevere.Rank() {
		disc.Severity = norms.SeverityCritical
	}
	return disc, true
}

// D2: very high neuroticism with distress at or below prediction.
func (d *Detector) traitCompensation(in Input) (*Discrepancy, bool) {
	n, ok := trait(in, norms.Neuroticism)
	if !ok || n < d.thr.VeryHighNeuroticism {
		return nil, false
	}
	if in.Deltas.Sum > d.thr.CompensationSum || in.Deltas.AnyFlag(scoring.Elevated) {
		return nil, false
	}
	return d.build("D2", map[string]float64{
		"neuroticism": n,
		"delta_sum":   in.Deltas.Sum,
	}, in.Traits, norms.Neuroticism), true
}

// D3: distress far below what a vulnerable profile predicts.
func (d *Detector) repressiveCoping(in Input) (*Discrepancy, bool) {
	n, ok := trait(in, norms.Neuroticism)
	if !ok || n < d.thr.RepressiveMinN {
		return nil, false
	}
	if in.Deltas.Sum >= d.thr.RepressiveSum {
		return nil, false
	}
	return d.build("D3", map[string]float64{
		"neuroticism": n,
		"delta_sum":   in.Deltas.Sum,
	}, in.Traits, norms.Neuroticism), true
}

// D4: high hope or zest coexisting with elevated depression.
func (d *Detector) strengthParadox(in Input) (*Discrepancy, bool) {
	var (
		name string
		best float64
	)
	for _, s := range []string{"hope", "zest"} {
		if p, ok := in.Strengths[s]; ok && p >= d.thr.HighStrength && p > best {
			name, best = s, p
		}
	}
	if name == "" {
		return nil, false
	}
	dDelta := in.Deltas.Of(norms.Depression)
	if dDelta <= d.thr.ParadoxDelta {
		return nil, false
	}
	if in.Screening.Severity(norms.Depression).Rank() < norms.SeverityModerateBand.Rank() {
		return nil, false
	}
	return d.build("D4", map[string]float64{
		name:               best,
		"depression_delta": dDelta,
	}, in.Traits), true
}

// D5: conscientiousness and self-regulation strength at opposite extremes.
func (d *Detector) regulationInconsistency(in Input) (*Discrepancy, bool) {
	c, ok := trait(in, norms.Conscientiousness)
	if !ok {
		return nil, false
	}
	sr, ok := in.Strengths["self_regulation"]
	if !ok {
		return nil, false
	}
	hi, lo := d.thr.RegulationHigh, d.thr.RegulationLow
	if !(c >= hi && sr <= lo) && !(c <= lo && sr >= hi) {
		return nil, false
	}
	return d.build("D5", map[string]float64{
		"conscientiousness": c,
		"self_regulation":   sr,
	}, in.Traits, norms.Conscientiousness), true
}

// D6: highly agreeable and kind, yet stress above prediction.
func (d *Detector) interpersonalOverextension(in Input) (*Discrepancy, bool) {
	a, ok := trait(in, norms.Agreeableness)
	if !ok || a < d.thr.HighAgreeableness {
		return nil, false
	}
	evidence := map[string]float64{"agreeableness": a}
	if k, ok := in.Strengths["kindness"]; ok {
		if k < d.thr.HighKindness {
			return nil, false
		}
		evidence["kindness"] = k
	}
	sDelta := in.Deltas.Of(norms.Stress)
	if sDelta <= d.thr.StressDelta {
		return nil, false
	}
	evidence["stress_delta"] = sDelta
	return d.build("D6", evidence, in.Traits, norms.Agreeableness), true
}
