// Package scoring combines normalized percentiles into the vulnerability (BVS)
// and resilience (RCS) composites, predicts expected DASS-21 scores from them,
// and measures the residual between predicted and observed screening.
//
// All coefficients come from the calibration block of the norm tables.
package scoring

import (
	"maps"
	"math"
	"slices"

	"github.com/HendryAvila/miso/internal/normalize"
	"github.com/HendryAvila/miso/internal/norms"
)

// ScreeningMax is the upper bound of every DASS-21 subscale on the 0-42 scale.
const ScreeningMax = 42.0

// Interpretations of the aggregate delta.
const (
	AcuteStressor    = "Acute stressor"
	RepressiveCoping = "Repressive coping"
	Consistent       = "Consistent with trait profile"
)

// FlagDirection marks a subscale whose delta crossed its own threshold.
type FlagDirection string

const (
	Elevated   FlagDirection = "elevated"
	Suppressed FlagDirection = "suppressed"
)

// Composite is the pair of BVS and RCS.
type Composite struct {
	BVS float64 `json:"bvs"`
	RCS float64 `json:"rcs"`
}

// Prediction is the model-expected DASS-21 score per subscale.
type Prediction map[norms.Subscale]float64

// SubscaleDelta is actual minus predicted for one subscale.
type SubscaleDelta struct {
	Actual    float64       `json:"actual"`
	Predicted float64       `json:"predicted"`
	Delta     float64       `json:"delta"`
	Flag      FlagDirection `json:"flag,omitempty"`
}

// Deltas is the full residual analysis.
type Deltas struct {
	Subscales      map[norms.Subscale]SubscaleDelta `json:"subscales"`
	Sum            float64                          `json:"sum"`
	Interpretation string                           `json:"interpretation"`
}

// Of returns the delta of a subscale.
func (d Deltas) Of(sub norms.Subscale) float64 { return d.Subscales[sub].Delta }

// Flagged reports whether sub was flagged in direction dir.
func (d Deltas) Flagged(sub norms.Subscale, dir FlagDirection) bool {
	return d.Subscales[sub].Flag == dir
}

// AnyFlag reports whether any subscale was flagged in direction dir.
func (d Deltas) AnyFlag(dir FlagDirection) bool {
	for _, sd := range d.Subscales {
		if sd.Flag == dir {
			return true
		}
	}
	return false
}

// Scorer computes composites against one calibration.
type Scorer struct {
	cal norms.Calibration
}

// New creates a Scorer from validated tables.
func New(tables *norms.Tables) *Scorer {
	return &Scorer{cal: tables.Calibration}
}

// centered maps a percentile onto [-1, 1] around the population midpoint.
func centered(p float64) float64 {
	return (p - normalize.NeutralPercentile) / normalize.NeutralPercentile
}

// CalculateBVS returns the weighted vulnerability composite. Missing traits
// are treated as 50 and contribute nothing.
func (s *Scorer) CalculateBVS(traits map[norms.Trait]float64) float64 {
	var sum float64
	for _, t := range norms.Traits {
		p, ok := traits[t]
		if !ok {
			continue
		}
		sum += s.cal.BVSWeights[t] * centered(p)
	}
	return round4(sum)
}

// CalculateRCS returns the weighted resilience composite over whichever
// strengths are present, summed in key order so equal inputs give equal bits, plus the structured bonus when typeCode's fourth
// letter is J. An empty strengths map and no type code yield 0.
func (s *Scorer) CalculateRCS(strengths map[string]float64, typeCode string) float64 {
	var sum float64
	for _, name := range slices.Sorted(maps.Keys(s.cal.RCSWeights)) {
		p, ok := strengths[name]
		if !ok {
			continue
		}
		sum += s.cal.RCSWeights[name] * centered(p)
	}
	if typeCode != "" && normalize.StructuredPole(typeCode) {
		sum += s.cal.StructuredBonus
	}
	return round4(sum)
}

// PredictDASS applies the per-subscale regression and clamps to [0, 42].
func (s *Scorer) PredictDASS(c Composite) Prediction {
	out := make(Prediction, len(norms.Subscales))
	for _, sub := range norms.Subscales {
		r := s.cal.Prediction[sub]
		v := r.Intercept + r.Vulnerability*c.BVS + r.Resilience*c.RCS
		out[sub] = round2(clamp(v, 0, ScreeningMax))
	}
	return out
}

// CalculateDelta returns actual minus predicted.
func CalculateDelta(actual, predicted float64) float64 {
	return round2(actual - predicted)
}

// CalculateAllDeltas computes per-subscale deltas, flags subscales that cross
// their own thresholds, and interprets the aggregate sum.
func (s *Scorer) CalculateAllDeltas(actual map[norms.Subscale]float64, predicted Prediction) Deltas {
	out := Deltas{Subscales: make(map[norms.Subscale]SubscaleDelta, len(norms.Subscales))}
	for _, sub := range norms.Subscales {
		sd := SubscaleDelta{
			Actual:    actual[sub],
			Predicted: predicted[sub],
			Delta:     CalculateDelta(actual[sub], predicted[sub]),
		}
		thr := s.cal.Delta.Subscale[sub]
		switch {
		case sd.Delta > thr:
			sd.Flag = Elevated
		case sd.Delta < -thr:
			sd.Flag = Suppressed
		}
		out.Subscales[sub] = sd
		out.Sum += sd.Delta
	}
	out.Sum = round2(out.Sum)
	out.Interpretation = s.interpret(out.Sum)
	return out
}

func (s *Scorer) interpret(sum float64) string {
	switch {
	case sum > s.cal.Delta.Aggregate:
		return AcuteStressor
	case sum < -s.cal.Delta.Aggregate:
		return RepressiveCoping
	default:
		return Consistent
	}
}

// CalculateControlComposite returns the weighted self-regulation composite.
// Only the strengths and traits supplied contribute; pass known traits only.
func (s *Scorer) CalculateControlComposite(strengths map[string]float64, traits map[norms.Trait]float64) float64 {
	var sum float64
	for _, name := range slices.Sorted(maps.Keys(s.cal.Control.Strengths)) {
		if p, ok := strengths[name]; ok {
			sum += s.cal.Control.Strengths[name] * centered(p)
		}
	}
	for _, t := range norms.Traits {
		w, weighted := s.cal.Control.Traits[t]
		if p, ok := traits[t]; ok && weighted {
			sum += w * centered(p)
		}
	}
	return round4(sum)
}

// LowControl reports whether a control composite is below the low cut.
func (s *Scorer) LowControl(control float64) bool {
	return control < s.cal.Control.LowBelow
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
