// Package profile classifies Big Five percentiles into one of the eight named
// risk profiles and derives a screening-only pattern when traits are absent.
package profile

import (
	"github.com/HendryAvila/miso/internal/normalize"
	"github.com/HendryAvila/miso/internal/norms"
)

// Mode says which classification path produced a Result.
type Mode string

const (
	ModeFull Mode = "FULL"
	ModeLite Mode = "LITE"
	ModeNone Mode = "NONE"
)

// Screening-only patterns.
const (
	DepressionDominant = "DEPRESSION_DOMINANT"
	AnxietyDominant    = "ANXIETY_DOMINANT"
	StressDominant     = "STRESS_DOMINANT"
	MixedDistress      = "MIXED_DISTRESS"
	NoElevation        = "NO_ELEVATION"
)

var dominantPattern = map[norms.Subscale]string{
	norms.Depression: DepressionDominant,
	norms.Anxiety:    AnxietyDominant,
	norms.Stress:     StressDominant,
}

var patternNames = map[string]string{
	DepressionDominant: "Depression-dominant distress",
	AnxietyDominant:    "Anxiety-dominant distress",
	StressDominant:     "Stress-dominant distress",
	MixedDistress:      "Mixed distress",
	NoElevation:        "No elevated distress",
}

// Result is the profile section of an analysis.
type Result struct {
	Mode      Mode            `json:"mode"`
	Code      string          `json:"code,omitempty"`
	Name      string          `json:"name,omitempty"`
	Mechanism string          `json:"mechanism,omitempty"`
	RiskLevel norms.RiskLevel `json:"risk_level,omitempty"`
	// Pattern is set in LITE mode only.
	Pattern string `json:"pattern,omitempty"`
	// Elevated lists the subscales at MODERATE or above (LITE mode).
	Elevated []norms.Subscale `json:"elevated,omitempty"`
}

// Classifier applies the ordered profile rules.
type Classifier struct {
	tables *norms.Tables
}

// New creates a Classifier.
func New(tables *norms.Tables) *Classifier {
	return &Classifier{tables: tables}
}

type rule struct {
	code  string
	match func(high, low func(norms.Trait) bool) bool
}

// rules are checked in order; the most specific multi-trait patterns come
// first and B8 always matches.
var rules = []rule{
	{"B1", func(high, low func(norms.Trait) bool) bool {
		return high(norms.Neuroticism) && low(norms.Extraversion)
	}},
	{"B2", func(high, low func(norms.Trait) bool) bool {
		return high(norms.Neuroticism) && high(norms.Conscientiousness)
	}},
	{"B3", func(high, low func(norms.Trait) bool) bool {
		return high(norms.Neuroticism) && low(norms.Conscientiousness)
	}},
	{"B4", func(high, low func(norms.Trait) bool) bool {
		return high(norms.Neuroticism)
	}},
	{"B5", func(high, low func(norms.Trait) bool) bool {
		return low(norms.Extraversion) && low(norms.Agreeableness)
	}},
	{"B6", func(high, low func(norms.Trait) bool) bool {
		return low(norms.Conscientiousness)
	}},
	{"B7", func(high, low func(norms.Trait) bool) bool {
		return low(norms.Neuroticism) && (high(norms.Extraversion) || high(norms.Conscientiousness))
	}},
	{"B8", func(high, low func(norms.Trait) bool) bool { return true }},
}

// Classify returns the first profile whose rule matches. Missing traits are
// read as 50. The function is total.
func (c *Classifier) Classify(traits map[norms.Trait]float64) norms.Profile {
	cuts := c.tables.Calibration.Classifier
	value := func(t norms.Trait) float64 {
		if p, ok := traits[t]; ok {
			return p
		}
		return normalize.NeutralPercentile
	}
	high := func(t norms.Trait) bool { return value(t) >= cuts.High }
	low := func(t norms.Trait) bool { return value(t) <= cuts.Low }

	for _, r := range rules {
		if r.match(high, low) {
			return c.tables.Profiles[r.code]
		}
	}
	return c.tables.Profiles["B8"]
}

// Full classifies complete trait data.
func (c *Classifier) Full(traits normalize.TraitPercentiles) Result {
	p := c.Classify(traits.Values())
	return Result{
		Mode:      ModeFull,
		Code:      p.Code,
		Name:      p.Name,
		Mechanism: p.Mechanism,
		RiskLevel: p.RiskLevel,
	}
}

// Lite derives the screening-only pattern: the subscale with the strictly
// highest elevated severity dominates, ties at the top are mixed.
func (c *Classifier) Lite(screening normalize.ScreeningScores) Result {
	var (
		elevated []norms.Subscale
		top      norms.Subscale
		topRank  = -1
		tied     bool
	)
	for _, sub := range norms.Subscales {
		r := screening.Severity(sub).Rank()
		if r < norms.SeverityModerateBand.Rank() {
			continue
		}
		elevated = append(elevated, sub)
		switch {
		case r > topRank:
			top, topRank, tied = sub, r, false
		case r == topRank:
			tied = true
		}
	}

	pattern := NoElevation
	switch {
	case len(elevated) == 0:
	case tied:
		pattern = MixedDistress
	default:
		pattern = dominantPattern[top]
	}
	return Result{
		Mode:      ModeLite,
		Name:      patternNames[pattern],
		Pattern:   pattern,
		RiskLevel: RiskFromSeverity(screening.Worst()),
		Elevated:  elevated,
	}
}

// None is the profile of an analysis without a valid screening.
func None() Result {
	return Result{Mode: ModeNone}
}

// RiskFromSeverity maps the worst screening band onto a risk level.
func RiskFromSeverity(s norms.ScreeningSeverity) norms.RiskLevel {
	switch s {
	case norms.SeverityExtremelySevere:
		return norms.RiskHigh
	case norms.SeveritySevere:
		return norms.RiskElevated
	case norms.SeverityModerateBand:
		return norms.RiskModerate
	default:
		return norms.RiskLow
	}
}
