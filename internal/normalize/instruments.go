package normalize

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/HendryAvila/miso/internal/norms"
)

// averageCeiling is the largest value read as a 1-5 item average; anything
// above it is read as an item sum.
const averageCeiling = 5

var traitAliases = map[string]norms.Trait{
	"n": norms.Neuroticism, "neuroticism": norms.Neuroticism,
	"e": norms.Extraversion, "extraversion": norms.Extraversion,
	"o": norms.Openness, "openness": norms.Openness,
	"a": norms.Agreeableness, "agreeableness": norms.Agreeableness,
	"c": norms.Conscientiousness, "conscientiousness": norms.Conscientiousness,
}

// ParseTrait resolves a trait key given as a letter or full name.
func ParseTrait(key string) (norms.Trait, bool) {
	t, ok := traitAliases[strings.ToLower(strings.TrimSpace(key))]
	return t, ok
}

// ScreeningRaw is a DASS-21 administration on the 0-42 scale. The three
// subscales are present together or the screening counts as absent.
type ScreeningRaw struct {
	D *float64 `json:"D,omitempty"`
	A *float64 `json:"A,omitempty"`
	S *float64 `json:"S,omitempty"`
}

// NewScreeningRaw builds a complete ScreeningRaw.
func NewScreeningRaw(d, a, s float64) *ScreeningRaw {
	return &ScreeningRaw{D: &d, A: &a, S: &s}
}

// Get returns the raw value for a subscale.
func (r ScreeningRaw) Get(sub norms.Subscale) *float64 {
	switch sub {
	case norms.Depression:
		return r.D
	case norms.Anxiety:
		return r.A
	case norms.Stress:
		return r.S
	}
	return nil
}

// ScreeningScore is a normalized DASS subscale with its severity band.
type ScreeningScore struct {
	Score
	Severity norms.ScreeningSeverity `json:"severity"`
}

// ScreeningScores holds all three normalized subscales.
type ScreeningScores map[norms.Subscale]ScreeningScore

// Raw returns the raw score of a subscale (0 when absent).
func (s ScreeningScores) Raw(sub norms.Subscale) float64 { return s[sub].Raw }

// Severity returns the severity band of a subscale.
func (s ScreeningScores) Severity(sub norms.Subscale) norms.ScreeningSeverity {
	return s[sub].Severity
}

// Worst returns the most severe band across subscales.
func (s ScreeningScores) Worst() norms.ScreeningSeverity {
	worst := norms.SeverityNormal
	for _, sub := range norms.Subscales {
		if sc, ok := s[sub]; ok && sc.Severity.Rank() > worst.Rank() {
			worst = sc.Severity
		}
	}
	return worst
}

// Critical reports whether the screening warrants immediate action:
// depression at SEVERE or above, or any subscale EXTREMELY_SEVERE.
func (s ScreeningScores) Critical() bool {
	if s.Severity(norms.Depression).Rank() >= norms.SeveritySevere.Rank() {
		return true
	}
	return s.Worst() == norms.SeverityExtremelySevere
}

// Big5 normalizes Big Five scores. Each value may be a 1-5 item average or a
// raw item sum; values above 5 are read as sums and divided by the domain's
// item count before normalization.
func (n *Normalizer) Big5(raw map[string]float64) (map[norms.Trait]Score, Validation) {
	v := Validation{Valid: true}
	out := make(map[norms.Trait]Score, len(raw))

	for _, key := range sortedKeys(raw) {
		value := raw[key]
		trait, ok := ParseTrait(key)
		if !ok {
			v.addf("big5: unknown trait %q", key)
			continue
		}
		if _, dup := out[trait]; dup {
			v.addf("big5: trait %s given more than once", trait)
			continue
		}
		scale := n.tables.Big5[trait]
		avg, err := big5Average(value, scale)
		if err != "" {
			v.addf("big5.%s: %s", trait, err)
			continue
		}
		s := n.Normalize(avg, scale)
		s.Raw = value
		out[trait] = s
	}
	return out, v
}

func big5Average(value float64, scale norms.Scale) (float64, string) {
	if !finite(value) {
		return 0, "value is not a finite number"
	}
	if value <= averageCeiling {
		if value < scale.Min {
			return 0, fmt.Sprintf("average %v below minimum %v", value, scale.Min)
		}
		return value, ""
	}
	lo := scale.Min * float64(scale.Items)
	hi := scale.Max * float64(scale.Items)
	if value > hi {
		return 0, fmt.Sprintf("sum %v above maximum %v for %d items", value, hi, scale.Items)
	}
	if value < lo {
		return 0, fmt.Sprintf("sum %v below minimum %v for %d items", value, lo, scale.Items)
	}
	return value / float64(scale.Items), ""
}

// DASS21 normalizes a screening administration. If any subscale is missing or
// invalid the whole screening is rejected (nil) and the reasons are returned.
func (n *Normalizer) DASS21(raw *ScreeningRaw) (ScreeningScores, Validation) {
	v := Validation{Valid: true}
	if raw == nil {
		return nil, v
	}
	values := make(map[norms.Subscale]float64, len(norms.Subscales))
	for _, sub := range norms.Subscales {
		p := raw.Get(sub)
		if p == nil {
			v.addf("dass21.%s: missing; all three subscales are required", sub)
			continue
		}
		scale := n.tables.DASS21[sub]
		switch {
		case !finite(*p):
			v.addf("dass21.%s: value is not a finite number", sub)
		case *p != math.Trunc(*p):
			v.addf("dass21.%s: %v is not a whole number", sub, *p)
		case *p < scale.Min || *p > scale.Max:
			v.addf("dass21.%s: %v outside [%v, %v]", sub, *p, scale.Min, scale.Max)
		default:
			values[sub] = *p
		}
	}
	if !v.Valid {
		return nil, v
	}

	out := make(ScreeningScores, len(values))
	for sub, value := range values {
		scale := n.tables.DASS21[sub]
		out[sub] = ScreeningScore{
			Score:    n.Normalize(value, scale.Scale),
			Severity: scale.Severity.Level(value),
		}
	}
	return out, v
}

// VIA normalizes character-strength raw sums. Unknown strengths and
// out-of-range values are reported and skipped.
func (n *Normalizer) VIA(raw map[string]float64) (map[string]Score, Validation) {
	v := Validation{Valid: true}
	out := make(map[string]Score, len(raw))
	for _, key := range sortedKeys(raw) {
		value := raw[key]
		name := strings.ToLower(strings.TrimSpace(key))
		scale, ok := n.tables.VIA[name]
		if !ok {
			v.addf("via: unknown strength %q", key)
			continue
		}
		if !finite(value) {
			v.addf("via.%s: value is not a finite number", name)
			continue
		}
		if value < scale.Min || value > scale.Max {
			v.addf("via.%s: %v outside [%v, %v]", name, value, scale.Min, scale.Max)
			continue
		}
		out[name] = n.Normalize(value, scale)
	}
	return out, v
}

// StrengthPercentiles extracts the percentile of each normalized strength.
func StrengthPercentiles(scores map[string]Score) map[string]float64 {
	out := make(map[string]float64, len(scores))
	for k, s := range scores {
		out[k] = s.Percentile
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
