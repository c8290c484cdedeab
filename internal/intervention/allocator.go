// Package intervention selects, tiers and ranks interventions from the
// content library.
//
// Candidates come from discrepancies, active pathways, the profile's risk
// level, screening severity, buffering and signature strengths, the type
// code's risk level and, in LITE mode, the screening pattern. Every candidate
// is hydrated from the library; one that cannot be resolved is dropped.
package intervention

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/HendryAvila/miso/internal/discrepancy"
	"github.com/HendryAvila/miso/internal/mechanism"
	"github.com/HendryAvila/miso/internal/normalize"
	"github.com/HendryAvila/miso/internal/norms"
	"github.com/HendryAvila/miso/internal/profile"
)

// Signature strengths are the highest measured strengths at or above this
// percentile; at most signatureCount of them seed candidates.
const (
	signaturePercentile = 75.0
	signatureCount      = 3
)

// Tier is a plan horizon.
type Tier string

const (
	Immediate Tier = "immediate"
	ShortTerm Tier = "short_term"
	LongTerm  Tier = "long_term"
)

// Tiers lists the plan horizons in order.
var Tiers = []Tier{Immediate, ShortTerm, LongTerm}

var severityWeight = map[norms.Severity]float64{
	norms.SeverityCritical: 1,
	norms.SeverityHigh:     0.75,
	norms.SeverityModerate: 0.5,
	norms.SeverityLow:      0.25,
}

var screeningWeight = map[norms.ScreeningSeverity]float64{
	norms.SeverityExtremelySevere: 1,
	norms.SeveritySevere:          0.75,
	norms.SeverityModerateBand:    0.5,
	norms.SeverityMild:            0.25,
}

var riskWeight = map[norms.RiskLevel]float64{
	norms.RiskHigh:     0.75,
	norms.RiskElevated: 0.5,
	norms.RiskModerate: 0.25,
	norms.RiskLow:      0,
}

// pathwaySeverity is the severity weight of a pathway-linked candidate.
const pathwaySeverity = 0.5

// Entry is one planned intervention.
type Entry struct {
	Type     string             `json:"type"`
	Priority int                `json:"priority"`
	Score    float64            `json:"score"`
	Reasons  []string           `json:"reasons"`
	Details  norms.Intervention `json:"details"`
}

// Plan is the tiered intervention plan.
type Plan struct {
	Immediate          []Entry `json:"immediate"`
	ShortTerm          []Entry `json:"short_term"`
	LongTerm           []Entry `json:"long_term"`
	FirstAid           []Entry `json:"first_aid"`
	CommunicationStyle string  `json:"communication_style,omitempty"`
}

// Tier returns the entries of one horizon.
func (p Plan) Tier(t Tier) []Entry {
	switch t {
	case Immediate:
		return p.Immediate
	case ShortTerm:
		return p.ShortTerm
	default:
		return p.LongTerm
	}
}

// Len is the number of tiered entries (first aid excluded).
func (p Plan) Len() int { return len(p.Immediate) + len(p.ShortTerm) + len(p.LongTerm) }

// EmptyPlan returns a plan whose lists are non-nil and empty.
func EmptyPlan() Plan {
	return Plan{Immediate: []Entry{}, ShortTerm: []Entry{}, LongTerm: []Entry{}, FirstAid: []Entry{}}
}

// Input is everything the allocator considers.
type Input struct {
	Profile       profile.Result
	Discrepancies []discrepancy.Discrepancy
	Mechanisms    mechanism.Result
	Screening     normalize.ScreeningScores
	// Strengths holds measured strength percentiles.
	Strengths map[string]float64
	// Type is nil when no type code was supplied.
	Type *normalize.TypeProfile
}

// Allocator turns analysis findings into a plan.
type Allocator struct {
	lib     *norms.Library
	weights norms.AllocationWeights
	logger  *slog.Logger
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithLogger sets the logger used for dropped candidates.
func WithLogger(l *slog.Logger) Option {
	return func(a *Allocator) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an Allocator over the tables' library.
func New(tables *norms.Tables, opts ...Option) *Allocator {
	a := &Allocator{
		lib:     tables.Library,
		weights: tables.Calibration.Allocation,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type candidate struct {
	id       string
	severity float64
	fit      float64
	critical bool
	pathway  bool
	reasons  []string
}

type candidates struct {
	byID  map[string]*candidate
	order []string
}

func (c *candidates) add(ids []string, severity, fit float64, critical, pathway bool, reason string) {
	for _, id := range ids {
		cand, ok := c.byID[id]
		if !ok {
			cand = &candidate{id: id}
			c.byID[id] = cand
			c.order = append(c.order, id)
		}
		cand.severity = math.Max(cand.severity, severity)
		cand.fit = math.Max(cand.fit, fit)
		cand.critical = cand.critical || critical
		cand.pathway = cand.pathway || pathway
		cand.reasons = append(cand.reasons, reason)
	}
}

// Allocate builds the plan.
func (a *Allocator) Allocate(in Input) Plan {
	plan := EmptyPlan()
	if in.Type != nil {
		plan.CommunicationStyle = in.Type.CommunicationStyle
	}

	cands := a.collect(in)
	for _, id := range cands.order {
		c := cands.byID[id]
		details, ok := a.lib.Lookup(id)
		if !ok {
			a.logger.Debug("dropping unknown intervention candidate", "type", id, "reasons", c.reasons)
			continue
		}
		e := Entry{
			Type:    id,
			Score:   round3(a.weights.Severity*c.severity + a.weights.Fit*c.fit),
			Reasons: c.reasons,
			Details: details,
		}
		switch {
		case c.critical:
			plan.Immediate = append(plan.Immediate, e)
		case c.pathway:
			plan.ShortTerm = append(plan.ShortTerm, e)
		default:
			plan.LongTerm = append(plan.LongTerm, e)
		}
	}
	rank(plan.Immediate)
	rank(plan.ShortTerm)
	rank(plan.LongTerm)

	if in.Screening.Critical() || discrepancy.HasCritical(in.Discrepancies) {
		plan.FirstAid = a.firstAid()
	}
	return plan
}

func (a *Allocator) collect(in Input) *candidates {
	m := a.lib.Mappings
	c := &candidates{byID: make(map[string]*candidate)}

	for _, d := range in.Discrepancies {
		c.add(m.Discrepancy[d.ID], severityWeight[d.Severity], 0, d.Critical(), false,
			fmt.Sprintf("discrepancy %s (%s)", d.ID, d.Name))
	}

	for _, p := range in.Mechanisms.Pathways {
		c.add(m.Pathway[p.Name], pathwaySeverity, p.Activation, false, true,
			fmt.Sprintf("active pathway %s", p.Name))
	}

	if in.Profile.RiskLevel != "" {
		label := in.Profile.Code
		if in.Profile.Mode == profile.ModeLite {
			label = in.Profile.Pattern
		}
		c.add(m.RiskLevel[in.Profile.RiskLevel], riskWeight[in.Profile.RiskLevel], 0, false, false,
			fmt.Sprintf("profile %s risk %s", label, in.Profile.RiskLevel))
	}

	// In LITE mode the screening is the pathway source, so a screening
	// candidate is pathway-linked when an active pathway names its subscale.
	// Otherwise only trait-driven pathway candidates are.
	lite := in.Profile.Mode == profile.ModeLite
	linked := symptomSubscales(in.Mechanisms)

	for _, sub := range norms.Subscales {
		sc, ok := in.Screening[sub]
		if !ok {
			continue
		}
		ids := m.Severity[sub][sc.Severity]
		if len(ids) == 0 {
			continue
		}
		critical := sc.Severity == norms.SeverityExtremelySevere ||
			(sub == norms.Depression && sc.Severity.Rank() >= norms.SeveritySevere.Rank())
		c.add(ids, screeningWeight[sc.Severity], 0, critical, lite && linked[sub],
			fmt.Sprintf("screening %s %s", sub, sc.Severity))
	}

	for _, comp := range in.Mechanisms.Compensations {
		c.add(m.Strength[comp.Strength], 0, comp.Fit, false, false,
			fmt.Sprintf("compensating strength %s", comp.Strength))
	}
	for _, s := range signatureStrengths(in.Strengths) {
		c.add(m.Strength[s], 0, in.Strengths[s]/100, false, false,
			fmt.Sprintf("signature strength %s", s))
	}

	if in.Type != nil && in.Type.Known {
		c.add(m.TypeRisk[in.Type.RiskLevel], riskWeight[in.Type.RiskLevel], 0, false, false,
			fmt.Sprintf("type %s risk %s", in.Type.Code, in.Type.RiskLevel))
	}

	if in.Profile.Mode == profile.ModeLite && in.Profile.Pattern != "" {
		c.add(m.LitePattern[in.Profile.Pattern], riskWeight[in.Profile.RiskLevel], 0, false,
			elevatedLinked(in.Screening, linked),
			fmt.Sprintf("screening pattern %s", in.Profile.Pattern))
	}
	return c
}

// symptomSubscales is the set of subscales named by active pathways.
func symptomSubscales(r mechanism.Result) map[norms.Subscale]bool {
	out := make(map[norms.Subscale]bool)
	for _, p := range r.Pathways {
		for _, sub := range p.Symptoms {
			out[sub] = true
		}
	}
	return out
}

// elevatedLinked reports whether an elevated subscale is named by an active
// pathway.
func elevatedLinked(screening normalize.ScreeningScores, linked map[norms.Subscale]bool) bool {
	for _, sub := range norms.Subscales {
		if linked[sub] && screening.Severity(sub).Rank() >= norms.SeverityModerateBand.Rank() {
			return true
		}
	}
	return false
}

func (a *Allocator) firstAid() []Entry {
	out := make([]Entry, 0, len(a.lib.FirstAid))
	for _, id := range a.lib.FirstAid {
		details, ok := a.lib.Lookup(id)
		if !ok {
			a.logger.Debug("dropping unknown first aid entry", "type", id)
			continue
		}
		out = append(out, Entry{
			Type:     id,
			Priority: len(out) + 1,
			Score:    1,
			Reasons:  []string{"critical screening result"},
			Details:  details,
		})
	}
	return out
}

// rank sorts by score (highest first) then type, and numbers priorities.
func rank(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Type < entries[j].Type
	})
	for i := range entries {
		entries[i].Priority = i + 1
	}
}

func signatureStrengths(strengths map[string]float64) []string {
	var out []string
	for name, p := range strengths {
		if p >= signaturePercentile {
			out = append(out, name)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if strengths[out[i]] != strengths[out[j]] {
			return strengths[out[i]] > strengths[out[j]]
		}
		return out[i] < out[j]
	})
	if len(out) > signatureCount {
		out = out[:signatureCount]
	}
	return out
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
