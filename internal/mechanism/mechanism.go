// Package mechanism finds the trait -> process -> symptom pathways that are
// active for a set of percentiles, and the character strengths that buffer
// them.
package mechanism

import (
	"math"
	"sort"

	"github.com/HendryAvila/miso/internal/normalize"
	"github.com/HendryAvila/miso/internal/norms"
)

// amplifyBoost is added to the activation of a pathway whose amplification
// condition (low control) holds.
const amplifyBoost = 0.25

// minActivation is the activation of a trait exactly at its threshold; an
// active pathway never reports zero.
const minActivation = 0.05

// Source says what triggered a pathway.
type Source string

const (
	SourceTrait     Source = "trait"
	SourceScreening Source = "screening"
)

// Pathway is an active pathway.
type Pathway struct {
	Name       string               `json:"name"`
	Process    string               `json:"process"`
	Source     Source               `json:"source"`
	Trait      norms.Trait          `json:"trait,omitempty"`
	Percentile float64              `json:"percentile,omitempty"`
	Provenance normalize.Provenance `json:"provenance,omitempty"`
	Activation float64              `json:"activation"`
	Amplified  bool                 `json:"amplified,omitempty"`
	Symptoms   []norms.Subscale     `json:"symptoms"`
	BufferedBy []string             `json:"buffered_by,omitempty"`
}

// Compensation is an active buffering strength.
type Compensation struct {
	Strength   string   `json:"strength"`
	Percentile float64  `json:"percentile"`
	Fit        float64  `json:"fit"`
	Buffers    []string `json:"buffers"`
}

// Result lists the active pathways and compensations.
type Result struct {
	Pathways      []Pathway      `json:"pathways"`
	Compensations []Compensation `json:"compensations"`
}

// Active reports whether the named pathway is active.
func (r Result) Active(name string) (Pathway, bool) {
	for _, p := range r.Pathways {
		if p.Name == name {
			return p, true
		}
	}
	return Pathway{}, false
}

// Input is what the analyzer reads.
type Input struct {
	Traits normalize.TraitPercentiles
	// Strengths holds measured strength percentiles.
	Strengths map[string]float64
	// Control is the self-regulation composite; nil when not computable.
	Control *float64
}

// Analyzer evaluates pathway and compensation definitions.
type Analyzer struct {
	pathways      []norms.Pathway
	compensations []norms.Compensation
}

// New creates an Analyzer.
func New(tables *norms.Tables) *Analyzer {
	return &Analyzer{pathways: tables.Pathways, compensations: tables.Compensations}
}

// Analyze evaluates trait-driven pathways. Defaulted traits never activate
// a pathway.
func (a *Analyzer) Analyze(in Input) Result {
	var active []Pathway
	for _, def := range a.pathways {
		if !holds(in.Traits, def.Trigger) {
			continue
		}
		if def.Requires != nil && !holds(in.Traits, *def.Requires) {
			continue
		}
		p := in.Traits.Value(def.Trigger.Trait)
		pw := Pathway{
			Name:       def.Name,
			Process:    def.Process,
			Source:     SourceTrait,
			Trait:      def.Trigger.Trait,
			Percentile: p,
			Provenance: in.Traits.Source(def.Trigger.Trait),
			Activation: activation(p, def.Trigger),
			Symptoms:   def.Symptoms,
		}
		if def.AmplifyBelowControl != 0 && in.Control != nil && *in.Control < def.AmplifyBelowControl {
			pw.Activation = round2(math.Min(1, pw.Activation+amplifyBoost))
			pw.Amplified = true
		}
		active = append(active, pw)
	}
	return a.withCompensations(active, in.Strengths)
}

// AnalyzeLite derives symptom-level pathways from elevated screening
// subscales when no trait data is available. Activation follows severity.
func (a *Analyzer) AnalyzeLite(screening normalize.ScreeningScores, strengths map[string]float64) Result {
	var active []Pathway
	for _, def := range a.pathways {
		best := -1
		for _, sub := range def.Symptoms {
			if r := screening.Severity(sub).Rank(); r > best {
				best = r
			}
		}
		if best < norms.SeverityModerateBand.Rank() {
			continue
		}
		active = append(active, Pathway{
			Name:       def.Name,
			Process:    def.Process,
			Source:     SourceScreening,
			Activation: round2(float64(best) / float64(norms.SeverityExtremelySevere.Rank())),
			Symptoms:   def.Symptoms,
		})
	}
	return a.withCompensations(active, strengths)
}

func (a *Analyzer) withCompensations(active []Pathway, strengths map[string]float64) Result {
	index := make(map[string]int, len(active))
	for i, p := range active {
		index[p.Name] = i
	}

	var comps []Compensation
	for _, def := range a.compensations {
		pct, ok := strengths[def.Strength]
		if !ok || pct < def.MinPercentile {
			continue
		}
		var buffers []string
		for _, name := range def.Buffers {
			if i, ok := index[name]; ok {
				buffers = append(buffers, name)
				active[i].BufferedBy = append(active[i].BufferedBy, def.Strength)
			}
		}
		if len(buffers) == 0 {
			continue
		}
		comps = append(comps, Compensation{
			Strength:   def.Strength,
			Percentile: pct,
			Fit:        round2(pct / 100),
			Buffers:    buffers,
		})
	}

	sort.SliceStable(active, func(i, j int) bool { return active[i].Activation > active[j].Activation })
	sort.SliceStable(comps, func(i, j int) bool { return comps[i].Fit > comps[j].Fit })
	return Result{Pathways: active, Compensations: comps}
}

func holds(traits normalize.TraitPercentiles, c norms.Condition) bool {
	if !traits.Known(c.Trait) {
		return false
	}
	p := traits.Value(c.Trait)
	if c.Direction == norms.DirectionLow {
		return p <= c.Threshold
	}
	return p >= c.Threshold
}

// activation is the distance past the threshold over the remaining range,
// floored at minActivation.
func activation(p float64, c norms.Condition) float64 {
	var v float64
	if c.Direction == norms.DirectionLow {
		if c.Threshold <= 0 {
			return 1
		}
		v = (c.Threshold - p) / c.Threshold
	} else {
		if c.Threshold >= 100 {
			return 1
		}
		v = (p - c.Threshold) / (100 - c.Threshold)
	}
	return round2(math.Max(minActivation, math.Min(1, v)))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
