package normalize

import (
	"regexp"
	"strings"

	"github.com/HendryAvila/miso/internal/norms"
)

// Provenance tells downstream stages where a trait percentile came from.
type Provenance string

const (
	Measured     Provenance = "measured"
	MBTIInferred Provenance = "mbti_inferred"
	Defaulted    Provenance = "defaulted"
)

// NeutralPercentile is the population midpoint used for defaulted traits.
const NeutralPercentile = 50.0

// TraitPercentile is a trait percentile with its provenance.
type TraitPercentile struct {
	Percentile float64    `json:"percentile"`
	Source     Provenance `json:"source"`
}

// TraitPercentiles is a complete set of Big Five percentiles. Every trait is
// present once built by MergeTraits; defaulted entries are flagged.
type TraitPercentiles map[norms.Trait]TraitPercentile

// Value returns the percentile of t, or NeutralPercentile when absent.
func (tp TraitPercentiles) Value(t norms.Trait) float64 {
	if p, ok := tp[t]; ok {
		return p.Percentile
	}
	return NeutralPercentile
}

// Known reports whether t was measured or inferred (not defaulted).
func (tp TraitPercentiles) Known(t norms.Trait) bool {
	p, ok := tp[t]
	return ok && p.Source != Defaulted
}

// Source returns the provenance of t (Defaulted when absent).
func (tp TraitPercentiles) Source(t norms.Trait) Provenance {
	if p, ok := tp[t]; ok {
		return p.Source
	}
	return Defaulted
}

// Values flattens the percentiles into a plain map.
func (tp TraitPercentiles) Values() map[norms.Trait]float64 {
	out := make(map[norms.Trait]float64, len(norms.Traits))
	for _, t := range norms.Traits {
		out[t] = tp.Value(t)
	}
	return out
}

// AnyMeasured reports whether at least one trait was measured directly.
func (tp TraitPercentiles) AnyMeasured() bool {
	for _, p := range tp {
		if p.Source == Measured {
			return true
		}
	}
	return false
}

var typeCodePattern = regexp.MustCompile(`^([EI])([NS])([FT])([JP])(?:-([AT]))?$`)

// Priors are the trait percentile estimates derived from a type code.
type Priors struct {
	Code        string                  `json:"code"`
	Identity    string                  `json:"identity,omitempty"`
	Percentiles map[norms.Trait]float64 `json:"percentiles"`
}

// parseTypeCode splits a type code into its canonical four letters and the
// optional identity suffix.
func parseTypeCode(code string) (letters, identity string, ok bool) {
	m := typeCodePattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(code)))
	if m == nil {
		return "", "", false
	}
	return m[1] + m[2] + m[3] + m[4], m[5], true
}

// MBTIToBig5Priors returns trait priors for a four-letter type code, or nil
// when the code is not one of the sixteen legal combinations. Neuroticism is
// only inferred when an -A/-T identity suffix is given.
func (n *Normalizer) MBTIToBig5Priors(code string) *Priors {
	letters, identity, ok := parseTypeCode(code)
	if !ok {
		return nil
	}
	p := &Priors{
		Code:        letters,
		Identity:    identity,
		Percentiles: make(map[norms.Trait]float64, len(norms.Traits)),
	}
	for _, r := range letters {
		prior, ok := n.tables.MBTI.Letters[string(r)]
		if !ok {
			continue
		}
		p.Percentiles[prior.Trait] = prior.Percentile
	}
	if identity != "" {
		if v, ok := n.tables.MBTI.Identity[identity]; ok {
			p.Percentiles[norms.Neuroticism] = v
		}
	}
	return p
}

// TypeProfile is the qualitative annotation of a type code.
type TypeProfile struct {
	Code               string          `json:"code,omitempty"`
	Known              bool            `json:"known"`
	RiskLevel          norms.RiskLevel `json:"risk_level"`
	CommunicationStyle string          `json:"communication_style"`
	// Structured is true for the J pole of the fourth letter.
	Structured bool `json:"structured"`
}

// TypeProfile resolves a type code's risk level and communication style.
// Unknown or malformed codes resolve to the neutral default.
func (n *Normalizer) TypeProfile(code string) TypeProfile {
	letters, _, ok := parseTypeCode(code)
	if !ok {
		d := n.tables.MBTI.Default
		return TypeProfile{RiskLevel: d.RiskLevel, CommunicationStyle: d.CommunicationStyle}
	}
	tag, known := n.tables.TypeTag(letters)
	return TypeProfile{
		Code:               letters,
		Known:              known,
		RiskLevel:          tag.RiskLevel,
		CommunicationStyle: tag.CommunicationStyle,
		Structured:         letters[3] == 'J',
	}
}

// StructuredPole reports whether a valid type code has J as its fourth letter.
func StructuredPole(code string) bool {
	letters, _, ok := parseTypeCode(code)
	return ok && letters[3] == 'J'
}

// MergeTraits builds a complete TraitPercentiles: measured scores win, type
// code priors fill what is absent, and anything left is defaulted to 50.
func MergeTraits(measured map[norms.Trait]Score, priors *Priors) TraitPercentiles {
	out := make(TraitPercentiles, len(norms.Traits))
	for _, t := range norms.Traits {
		if s, ok := measured[t]; ok {
			out[t] = TraitPercentile{Percentile: s.Percentile, Source: Measured}
			continue
		}
		if priors != nil {
			if v, ok := priors.Percentiles[t]; ok {
				out[t] = TraitPercentile{Percentile: v, Source: MBTIInferred}
				continue
			}
		}
		out[t] = TraitPercentile{Percentile: NeutralPercentile, Source: Defaulted}
	}
	return out
}

// DASSSeverity returns the severity band of a raw subscale score.
func (n *Normalizer) DASSSeverity(sub norms.Subscale, raw float64) norms.ScreeningSeverity {
	return n.tables.DASS21[sub].Severity.Level(raw)
}
