// Package norms holds the static reference data used by the analysis engine:
// population norms per scale, severity cut-points, calibration coefficients,
// classifier profiles, discrepancy definitions, causal pathways and the
// intervention library.
//
// Tables are loaded once at startup from YAML (embedded by default), validated,
// and treated as read-only for the lifetime of the process. There is exactly one
// source of truth: if the embedded tables fail validation, MustDefault panics.
package norms

import (
	"embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed norms.yaml interventions.yaml
var defaultFS embed.FS

// Trait is a Big Five domain key.
type Trait string

const (
	Neuroticism       Trait = "N"
	Extraversion      Trait = "E"
	Openness          Trait = "O"
	Agreeableness     Trait = "A"
	Conscientiousness Trait = "C"
)

// Traits lists the Big Five domains in canonical order.
var Traits = []Trait{Neuroticism, Extraversion, Openness, Agreeableness, Conscientiousness}

// Subscale is a DASS-21 subscale key.
type Subscale string

const (
	Depression Subscale = "D"
	Anxiety    Subscale = "A"
	Stress     Subscale = "S"
)

// Subscales lists the DASS-21 subscales in canonical order.
var Subscales = []Subscale{Depression, Anxiety, Stress}

// Severity orders discrepancy and risk severities.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityModerate Severity = "MODERATE"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityModerate: 2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the ordinal of s (0 for unknown values).
func (s Severity) Rank() int { return severityRank[s] }

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool { return severityRank[s] > 0 }

// RiskLevel annotates profiles and personality types.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskElevated RiskLevel = "ELEVATED"
	RiskHigh     RiskLevel = "HIGH"
)

var validRiskLevels = map[RiskLevel]bool{
	RiskLow:      true,
	RiskModerate: true,
	RiskElevated: true,
	RiskHigh:     true,
}

// Scale holds population norms for a single scale.
type Scale struct {
	Name        string  `yaml:"name" json:"name"`
	Mean        float64 `yaml:"mean" json:"mean"`
	SD          float64 `yaml:"sd" json:"sd"`
	Min         float64 `yaml:"min" json:"min"`
	Max         float64 `yaml:"max" json:"max"`
	Items       int     `yaml:"items,omitempty" json:"items,omitempty"`
	Reliability float64 `yaml:"reliability,omitempty" json:"reliability,omitempty"`
}

// SeverityCutoffs are the minimum raw scores for each DASS severity band.
// Anything below Mild is NORMAL.
type SeverityCutoffs struct {
	Mild            float64 `yaml:"mild" json:"mild"`
	Moderate        float64 `yaml:"moderate" json:"moderate"`
	Severe          float64 `yaml:"severe" json:"severe"`
	ExtremelySevere float64 `yaml:"extremely_severe" json:"extremely_severe"`
}

// DASSScale is a DASS-21 subscale norm with its severity cut-points.
type DASSScale struct {
	Scale    `yaml:",inline"`
	Severity SeverityCutoffs `yaml:"severity" json:"severity"`
}

// ScreeningSeverity is a DASS-21 severity band.
type ScreeningSeverity string

const (
	SeverityNormal          ScreeningSeverity = "NORMAL"
	SeverityMild            ScreeningSeverity = "MILD"
	SeverityModerateBand    ScreeningSeverity = "MODERATE"
	SeveritySevere          ScreeningSeverity = "SEVERE"
	SeverityExtremelySevere ScreeningSeverity = "EXTREMELY_SEVERE"
)

var screeningRank = map[ScreeningSeverity]int{
	SeverityNormal:          0,
	SeverityMild:            1,
	SeverityModerateBand:    2,
	SeveritySevere:          3,
	SeverityExtremelySevere: 4,
}

// Rank returns the ordinal of s (NORMAL is 0, unknown values are -1).
func (s ScreeningSeverity) Rank() int {
	r, ok := screeningRank[s]
	if !ok {
		return -1
	}
	return r
}

// Level returns the severity band for a raw subscale score.
func (c SeverityCutoffs) Level(raw float64) ScreeningSeverity {
	switch {
	case raw >= c.ExtremelySevere:
		return SeverityExtremelySevere
	case raw >= c.Severe:
		return SeveritySevere
	case raw >= c.Moderate:
		return SeverityModerateBand
	case raw >= c.Mild:
		return SeverityMild
	default:
		return SeverityNormal
	}
}

// CategoryBands are the exclusive upper percentile bounds of the
// qualitative categories. Percentiles at or above High are VERY_HIGH.
type CategoryBands struct {
	VeryLow float64 `yaml:"very_low" json:"very_low"`
	Low     float64 `yaml:"low" json:"low"`
	Average float64 `yaml:"average" json:"average"`
	High    float64 `yaml:"high" json:"high"`
}

// LetterPrior maps one MBTI letter to a trait percentile prior.
type LetterPrior struct {
	Trait      Trait   `yaml:"trait" json:"trait"`
	Percentile float64 `yaml:"percentile" json:"percentile"`
}

// TypeTag is the qualitative annotation of a personality type code.
type TypeTag struct {
	RiskLevel          RiskLevel `yaml:"risk_level" json:"risk_level"`
	CommunicationStyle string    `yaml:"communication_style" json:"communication_style"`
}

// MBTITable holds letter priors and per-code tags.
type MBTITable struct {
	Letters  map[string]LetterPrior `yaml:"letters" json:"letters"`
	Identity map[string]float64     `yaml:"identity" json:"identity"`
	Types    map[string]TypeTag     `yaml:"types" json:"types"`
	Default  TypeTag                `yaml:"default" json:"default"`
}

// Profile is a named Big Five risk profile (B1..B8).
type Profile struct {
	Code      string    `yaml:"-" json:"code"`
	Name      string    `yaml:"name" json:"name"`
	Mechanism string    `yaml:"mechanism" json:"mechanism"`
	RiskLevel RiskLevel `yaml:"risk_level" json:"risk_level"`
}

// DiscrepancyDef describes one of the D1..D6 conflict patterns.
type DiscrepancyDef struct {
	ID             string   `yaml:"-" json:"id"`
	Name           string   `yaml:"name" json:"name"`
	Severity       Severity `yaml:"severity" json:"severity"`
	Priority       int      `yaml:"priority" json:"priority"`
	Interpretation string   `yaml:"interpretation" json:"interpretation"`
}

// Direction says whether a pathway fires on high or low trait values.
type Direction string

const (
	DirectionHigh Direction = "high"
	DirectionLow  Direction = "low"
)

// Condition is a single trait threshold.
type Condition struct {
	Trait     Trait     `yaml:"trait" json:"trait"`
	Direction Direction `yaml:"direction" json:"direction"`
	Threshold float64   `yaml:"threshold" json:"threshold"`
}

// Pathway is a trait -> process -> symptom chain.
type Pathway struct {
	Name     string     `yaml:"name" json:"name"`
	Process  string     `yaml:"process" json:"process"`
	Trigger  Condition  `yaml:"trigger" json:"trigger"`
	Requires *Condition `yaml:"requires,omitempty" json:"requires,omitempty"`
	Symptoms []Subscale `yaml:"symptoms" json:"symptoms"`
	// AmplifyBelowControl boosts activation when the control composite
	// is below this value. Zero disables amplification.
	AmplifyBelowControl float64 `yaml:"amplify_below_control,omitempty" json:"amplify_below_control,omitempty"`
}

// Compensation is a strength that buffers one or more pathways.
type Compensation struct {
	Strength      string   `yaml:"strength" json:"strength"`
	MinPercentile float64  `yaml:"min_percentile" json:"min_percentile"`
	Buffers       []string `yaml:"buffers" json:"buffers"`
}

// Tables is the complete, validated reference data set.
type Tables struct {
	Version       string                    `yaml:"version" json:"version"`
	Big5          map[Trait]Scale           `yaml:"big5" json:"big5"`
	DASS21        map[Subscale]DASSScale    `yaml:"dass21" json:"dass21"`
	VIA           map[string]Scale          `yaml:"via" json:"via"`
	Categories    CategoryBands             `yaml:"categories" json:"categories"`
	MBTI          MBTITable                 `yaml:"mbti" json:"mbti"`
	Calibration   Calibration               `yaml:"calibration" json:"calibration"`
	Profiles      map[string]Profile        `yaml:"profiles" json:"profiles"`
	Discrepancies map[string]DiscrepancyDef `yaml:"discrepancies" json:"discrepancies"`
	Pathways      []Pathway                 `yaml:"pathways" json:"pathways"`
	Compensations []Compensation            `yaml:"compensations" json:"compensations"`

	Library *Library `yaml:"-" json:"-"`
}

// Load parses and validates norm tables and the intervention library.
func Load(normsData, libraryData []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(normsData, &t); err != nil {
		return nil, fmt.Errorf("norms: parse tables: %w", err)
	}
	lib, err := LoadLibrary(libraryData)
	if err != nil {
		return nil, err
	}
	t.Library = lib

	for code, p := range t.Profiles {
		p.Code = code
		t.Profiles[code] = p
	}
	for id, d := range t.Discrepancies {
		d.ID = id
		t.Discrepancies[id] = d
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Default returns the embedded tables.
func Default() (*Tables, error) {
	normsData, err := defaultFS.ReadFile("norms.yaml")
	if err != nil {
		return nil, fmt.Errorf("norms: read embedded tables: %w", err)
	}
	libData, err := defaultFS.ReadFile("interventions.yaml")
	if err != nil {
		return nil, fmt.Errorf("norms: read embedded library: %w", err)
	}
	return Load(normsData, libData)
}

// MustDefault returns the embedded tables and panics if they are invalid.
// Call it once at process start.
func MustDefault() *Tables {
	t, err := Default()
	if err != nil {
		panic(err)
	}
	return t
}

// LoadFiles loads tables from disk. An empty path falls back to the embedded
// copy of that file only; a path that is set but unreadable is an error.
func LoadFiles(normsPath, libraryPath string) (*Tables, error) {
	normsData, err := readOrEmbedded(normsPath, "norms.yaml")
	if err != nil {
		return nil, err
	}
	libData, err := readOrEmbedded(libraryPath, "interventions.yaml")
	if err != nil {
		return nil, err
	}
	return Load(normsData, libData)
}

func readOrEmbedded(path, name string) ([]byte, error) {
	if path == "" {
		return defaultFS.ReadFile(name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("norms: read %s: %w", path, err)
	}
	return data, nil
}

// ProfileCodes returns the profile codes sorted (B1..B8).
func (t *Tables) ProfileCodes() []string {
	codes := make([]string, 0, len(t.Profiles))
	for c := range t.Profiles {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// StrengthKeys returns the VIA strength keys sorted.
func (t *Tables) StrengthKeys() []string {
	keys := make([]string, 0, len(t.VIA))
	for k := range t.VIA {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TypeTag returns the tag for an MBTI code, or the neutral default.
// The boolean reports whether the code was known.
func (t *Tables) TypeTag(code string) (TypeTag, bool) {
	tag, ok := t.MBTI.Types[strings.ToUpper(code)]
	if !ok {
		return t.MBTI.Default, false
	}
	return tag, true
}
