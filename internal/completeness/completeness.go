// Package completeness decides how much of the analysis can run for the
// input groups that survived validation.
package completeness

import "math"

// Level is the ordered completeness enum NONE < MINIMAL < FULL.
type Level string

const (
	None    Level = "NONE"
	Minimal Level = "MINIMAL"
	Full    Level = "FULL"
)

var levelRank = map[Level]int{None: 0, Minimal: 1, Full: 2}

// Rank returns the ordinal of l.
func (l Level) Rank() int { return levelRank[l] }

// AtLeast reports whether l is at or above floor.
func (l Level) AtLeast(floor Level) bool { return l.Rank() >= floor.Rank() }

// Input group names.
const (
	GroupDASS21 = "dass21"
	GroupBig5   = "big5"
	GroupVIA    = "via"
	GroupMBTI   = "mbti"
)

var groupOrder = []string{GroupDASS21, GroupBig5, GroupVIA, GroupMBTI}

var groupWeight = map[string]float64{
	GroupDASS21: 0.4,
	GroupBig5:   0.3,
	GroupVIA:    0.2,
	GroupMBTI:   0.1,
}

var groupNeed = map[string]string{
	GroupDASS21: "DASS-21 screening (all three subscales) is required for any analysis",
	GroupBig5:   "Big Five trait scores enable the full profile, composites and discrepancy analysis",
	GroupVIA:    "VIA character strengths enable resilience scoring and compensation analysis",
	GroupMBTI:   "a four-letter type code refines communication style and trait priors",
}

// Groups records which validated input groups are present.
type Groups struct {
	Screening bool
	Traits    bool
	Strengths bool
	// TypeCode is true only for a valid four-letter code.
	TypeCode bool
}

func (g Groups) has(name string) bool {
	switch name {
	case GroupDASS21:
		return g.Screening
	case GroupBig5:
		return g.Traits
	case GroupVIA:
		return g.Strengths
	case GroupMBTI:
		return g.TypeCode
	}
	return false
}

// Result is the completeness section of an analysis.
type Result struct {
	Level      Level    `json:"level"`
	Present    []string `json:"present"`
	Missing    []string `json:"missing"`
	Confidence float64  `json:"confidence"`
	// TraitsInferred is true when FULL rests on type code priors only.
	TraitsInferred bool `json:"traits_inferred,omitempty"`
}

// DataNeeded explains each missing group.
func (r Result) DataNeeded() []string {
	out := make([]string, 0, len(r.Missing))
	for _, g := range r.Missing {
		out = append(out, groupNeed[g])
	}
	return out
}

// Assess is a total function over the present groups. Without a screening
// the level is NONE; screening plus measured traits or a valid type code is
// FULL; any other screening combination is MINIMAL.
func Assess(g Groups) Result {
	r := Result{Present: []string{}, Missing: []string{}}
	for _, name := range groupOrder {
		if g.has(name) {
			r.Present = append(r.Present, name)
		} else {
			r.Missing = append(r.Missing, name)
		}
	}

	switch {
	case !g.Screening:
		r.Level = None
		return r
	case g.Traits || g.TypeCode:
		r.Level = Full
		r.TraitsInferred = !g.Traits
	default:
		r.Level = Minimal
	}

	var c float64
	for _, name := range r.Present {
		c += groupWeight[name]
	}
	r.Confidence = math.Round(c*100) / 100
	return r
}
