// Package normalize converts raw instrument scores into Z-scores, percentiles
// and qualitative categories against the population norms in a norms.Tables.
//
// Validation never aborts normalization: out-of-range or malformed values are
// collected into a Validation and excluded, and every valid field is still
// normalized.
package normalize

import (
	"fmt"
	"math"

	"github.com/HendryAvila/miso/internal/norms"
)

// ZClip bounds every Z-score.
const ZClip = 3.5

// Category is the qualitative band of a percentile.
type Category string

const (
	VeryLow  Category = "VERY_LOW"
	Low      Category = "LOW"
	Average  Category = "AVERAGE"
	High     Category = "HIGH"
	VeryHigh Category = "VERY_HIGH"
)

// Score is a normalized value. It is never mutated after construction.
type Score struct {
	Raw        float64  `json:"raw"`
	ZScore     float64  `json:"z_score"`
	Percentile float64  `json:"percentile"`
	Category   Category `json:"category"`
}

// Validation collects input problems without failing the run.
type Validation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

func (v *Validation) addf(format string, args ...any) {
	v.Valid = false
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Merge appends other's errors into v.
func (v Validation) Merge(other Validation) Validation {
	out := Validation{Valid: v.Valid && other.Valid}
	out.Errors = append(append([]string(nil), v.Errors...), other.Errors...)
	return out
}

// Normalizer normalizes raw scores against a fixed set of tables.
type Normalizer struct {
	tables *norms.Tables
}

// New creates a Normalizer. tables must be validated (see norms.Load).
func New(tables *norms.Tables) *Normalizer {
	return &Normalizer{tables: tables}
}

// RawToZScore returns (raw - mean) / sd clipped to ±ZClip. A zero or
// negative sd carries no discrimination and yields 0.
func RawToZScore(raw float64, scale norms.Scale) float64 {
	if scale.SD <= 0 || math.IsNaN(raw) {
		return 0
	}
	z := (raw - scale.Mean) / scale.SD
	return clamp(z, -ZClip, ZClip)
}

// ZScoreToPercentile returns the standard normal CDF of z as a percentile
// in [0, 100], rounded to two decimals.
func ZScoreToPercentile(z float64) float64 {
	if math.IsNaN(z) {
		return 50
	}
	p := 50 * (1 + math.Erf(z/math.Sqrt2))
	return clamp(round2(p), 0, 100)
}

// CategoryFor maps a percentile onto its qualitative band.
func CategoryFor(percentile float64, bands norms.CategoryBands) Category {
	switch {
	case percentile < bands.VeryLow:
		return VeryLow
	case percentile < bands.Low:
		return Low
	case percentile < bands.Average:
		return Average
	case percentile < bands.High:
		return High
	default:
		return VeryHigh
	}
}

// Normalize builds a Score for raw against scale.
func (n *Normalizer) Normalize(raw float64, scale norms.Scale) Score {
	z := RawToZScore(raw, scale)
	p := ZScoreToPercentile(z)
	return Score{
		Raw:        raw,
		ZScore:     round4(z),
		Percentile: p,
		Category:   CategoryFor(p, n.tables.Categories),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
