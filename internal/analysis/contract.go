package analysis

import (
	"time"

	"github.com/HendryAvila/miso/internal/completeness"
	"github.com/HendryAvila/miso/internal/discrepancy"
	"github.com/HendryAvila/miso/internal/intervention"
	"github.com/HendryAvila/miso/internal/mechanism"
	"github.com/HendryAvila/miso/internal/normalize"
	"github.com/HendryAvila/miso/internal/norms"
	"github.com/HendryAvila/miso/internal/profile"
	"github.com/HendryAvila/miso/internal/scoring"
	"github.com/HendryAvila/miso/internal/temporal"
)

// Inputs are a user's current raw scores. Every group is optional; absence
// is meaningful and drives the completeness level.
type Inputs struct {
	DASS21 *normalize.ScreeningRaw `json:"dass21_raw,omitempty"`
	Big5   map[string]float64      `json:"big5_raw,omitempty"`
	VIA    map[string]float64      `json:"via_raw,omitempty"`
	MBTI   string                  `json:"mbti,omitempty"`
}

// ScreeningEntry is one historical DASS-21 administration.
type ScreeningEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	RawScores normalize.ScreeningRaw `json:"raw_scores"`
}

// TraitEntry is one historical Big Five administration.
type TraitEntry struct {
	Timestamp time.Time          `json:"timestamp"`
	RawScores map[string]float64 `json:"raw_scores"`
}

// History is a read-only snapshot of timestamped administrations, used only
// for trends. Callers include the current administration when it should count
// as the latest point.
type History struct {
	DASS21 []ScreeningEntry `json:"dass21,omitempty"`
	Big5   []TraitEntry     `json:"big5,omitempty"`
}

// Scores is the trait-derived scoring section (FULL only).
type Scores struct {
	Big5        map[norms.Trait]normalize.Score `json:"big5,omitempty"`
	Traits      normalize.TraitPercentiles      `json:"trait_percentiles"`
	DASS21      normalize.ScreeningScores       `json:"dass21"`
	BVS         float64                         `json:"bvs"`
	RCS         float64                         `json:"rcs"`
	Predicted   scoring.Prediction              `json:"predicted_dass21"`
	Deltas      scoring.Deltas                  `json:"deltas"`
	Control     *float64                        `json:"control_composite,omitempty"`
	TypeProfile *normalize.TypeProfile          `json:"type_profile,omitempty"`
}

// VIAAnalysis summarizes the character-strengths inventory.
type VIAAnalysis struct {
	Scores    map[string]normalize.Score `json:"scores"`
	Signature []string                   `json:"signature"`
	Lowest    []string                   `json:"lowest"`
}

// Scientific carries the mechanistic detail behind the result.
type Scientific struct {
	Screening  normalize.ScreeningScores `json:"screening"`
	Mechanisms mechanism.Result          `json:"mechanisms"`
	Validation normalize.Validation      `json:"validation"`
}

// Summary is a plain-language digest for downstream consumers.
type Summary struct {
	Text        string   `json:"text"`
	KeyFindings []string `json:"key_findings"`
	DataNeeded  []string `json:"data_needed"`
}

// Result is the analysis envelope. Optional sections are nil when their
// prerequisites were not met; they are never filled with placeholders.
type Result struct {
	Version            string              `json:"version"`
	NormsVersion       string              `json:"norms_version"`
	Timestamp          time.Time           `json:"timestamp"`
	UserID             string              `json:"user_id"`
	Completeness       completeness.Result `json:"completeness"`
	Profile            profile.Result      `json:"profile"`
	Scores             *Scores             `json:"scores,omitempty"`
	Discrepancies      *discrepancy.Report `json:"discrepancies,omitempty"`
	VIAAnalysis        *VIAAnalysis        `json:"via_analysis,omitempty"`
	Interventions      intervention.Plan   `json:"interventions"`
	Temporal           temporal.Result     `json:"temporal"`
	ScientificAnalysis *Scientific         `json:"scientific_analysis,omitempty"`
	Summary            Summary             `json:"summary"`
	// Validation lists every rejected input, whatever the level.
	Validation normalize.Validation `json:"validation"`
}

// Level is shorthand for the completeness level.
func (r *Result) Level() completeness.Level { return r.Completeness.Level }
