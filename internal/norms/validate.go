package norms

import (
	"fmt"
	"regexp"
	"sort"
)

var (
	profileCodes     = []string{"B1", "B2", "B3", "B4", "B5", "B6", "B7", "B8"}
	discrepancyCodes = []string{"D1", "D2", "D3", "D4", "D5", "D6"}
	mbtiLetters      = []string{"E", "I", "N", "S", "F", "T", "J", "P"}
	mbtiCodePattern  = regexp.MustCompile(`^[EI][NS][FT][JP]$`)
)

// Validate checks the tables for internal consistency. Any failure here is a
// programming or packaging error and should stop the process at startup.
func (t *Tables) Validate() error {
	if t.Version == "" {
		return fmt.Errorf("norms: version is required")
	}
	checks := []func() error{
		t.validateBig5,
		t.validateDASS,
		t.validateVIA,
		t.validateCategories,
		t.validateMBTI,
		t.validateCalibration,
		t.validateProfiles,
		t.validateDiscrepancies,
		t.validatePathways,
		t.validateLibraryKeys,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func validateScale(label string, s Scale) error {
	if s.SD <= 0 {
		return fmt.Errorf("norms: %s: sd must be positive, got %v", label, s.SD)
	}
	if s.Max <= s.Min {
		return fmt.Errorf("norms: %s: max %v must exceed min %v", label, s.Max, s.Min)
	}
	if s.Mean < s.Min || s.Mean > s.Max {
		return fmt.Errorf("norms: %s: mean %v outside [%v, %v]", label, s.Mean, s.Min, s.Max)
	}
	return nil
}

func (t *Tables) validateBig5() error {
	for _, tr := range Traits {
		s, ok := t.Big5[tr]
		if !ok {
			return fmt.Errorf("norms: big5: missing trait %q", tr)
		}
		if err := validateScale("big5."+string(tr), s); err != nil {
			return err
		}
		if s.Items <= 0 {
			return fmt.Errorf("norms: big5.%s: items must be positive", tr)
		}
	}
	return nil
}

func (t *Tables) validateDASS() error {
	for _, sub := range Subscales {
		s, ok := t.DASS21[sub]
		if !ok {
			return fmt.Errorf("norms: dass21: missing subscale %q", sub)
		}
		if err := validateScale("dass21."+string(sub), s.Scale); err != nil {
			return err
		}
		if s.Reliability <= 0 || s.Reliability >= 1 {
			return fmt.Errorf("norms: dass21.%s: reliability must be in (0,1), got %v", sub, s.Reliability)
		}
		c := s.Severity
		if !(c.Mild > 0 && c.Mild < c.Moderate && c.Moderate < c.Severe && c.Severe < c.ExtremelySevere && c.ExtremelySevere <= s.Max) {
			return fmt.Errorf("norms: dass21.%s: severity cut-points must ascend within (0, max]", sub)
		}
	}
	return nil
}

func (t *Tables) validateVIA() error {
	if len(t.VIA) == 0 {
		return fmt.Errorf("norms: via: no strengths")
	}
	for _, k := range t.StrengthKeys() {
		if err := validateScale("via."+k, t.VIA[k]); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tables) validateCategories() error {
	c := t.Categories
	if !(c.VeryLow > 0 && c.VeryLow < c.Low && c.Low < c.Average && c.Average < c.High && c.High < 100) {
		return fmt.Errorf("norms: categories: bands must ascend within (0, 100)")
	}
	return nil
}

func (t *Tables) validateMBTI() error {
	for _, l := range mbtiLetters {
		p, ok := t.MBTI.Letters[l]
		if !ok {
			return fmt.Errorf("norms: mbti: missing letter prior %q", l)
		}
		if _, ok := t.Big5[p.Trait]; !ok {
			return fmt.Errorf("norms: mbti: letter %q maps to unknown trait %q", l, p.Trait)
		}
		if p.Percentile < 0 || p.Percentile > 100 {
			return fmt.Errorf("norms: mbti: letter %q percentile %v outside [0,100]", l, p.Percentile)
		}
	}
	for code, tag := range t.MBTI.Types {
		if !mbtiCodePattern.MatchString(code) {
			return fmt.Errorf("norms: mbti: invalid type code %q", code)
		}
		if !validRiskLevels[tag.RiskLevel] {
			return fmt.Errorf("norms: mbti: type %q has invalid risk level %q", code, tag.RiskLevel)
		}
	}
	if len(t.MBTI.Types) != 16 {
		return fmt.Errorf("norms: mbti: expected 16 type codes, got %d", len(t.MBTI.Types))
	}
	if !validRiskLevels[t.MBTI.Default.RiskLevel] {
		return fmt.Errorf("norms: mbti: default has invalid risk level %q", t.MBTI.Default.RiskLevel)
	}
	return nil
}

func (t *Tables) validateCalibration() error {
	c := t.Calibration
	for tr := range c.BVSWeights {
		if _, ok := t.Big5[tr]; !ok {
			return fmt.Errorf("norms: calibration.bvs_weights: unknown trait %q", tr)
		}
	}
	for k := range c.RCSWeights {
		if _, ok := t.VIA[k]; !ok {
			return fmt.Errorf("norms: calibration.rcs_weights: unknown strength %q", k)
		}
	}
	for k := range c.Control.Strengths {
		if _, ok := t.VIA[k]; !ok {
			return fmt.Errorf("norms: calibration.control: unknown strength %q", k)
		}
	}
	for _, sub := range Subscales {
		if _, ok := c.Prediction[sub]; !ok {
			return fmt.Errorf("norms: calibration.prediction: missing subscale %q", sub)
		}
		if c.Delta.Subscale[sub] <= 0 {
			return fmt.Errorf("norms: calibration.delta: subscale %q threshold must be positive", sub)
		}
	}
	if c.Delta.Aggregate <= 0 {
		return fmt.Errorf("norms: calibration.delta: aggregate threshold must be positive")
	}
	if !(c.Classifier.Low > 0 && c.Classifier.Low < c.Classifier.High && c.Classifier.High < 100) {
		return fmt.Errorf("norms: calibration.classifier: need 0 < low < high < 100")
	}
	for _, tr := range Traits {
		if c.Stability[tr] <= 0 {
			return fmt.Errorf("norms: calibration.stability: trait %q threshold must be positive", tr)
		}
	}
	if c.Allocation.Severity+c.Allocation.Fit <= 0 {
		return fmt.Errorf("norms: calibration.allocation: weights must sum to a positive value")
	}
	if c.Temporal.Z <= 0 {
		return fmt.Errorf("norms: calibration.temporal: z must be positive")
	}
	return nil
}

func (t *Tables) validateProfiles() error {
	for _, code := range profileCodes {
		p, ok := t.Profiles[code]
		if !ok {
			return fmt.Errorf("norms: profiles: missing %s", code)
		}
		if p.Name == "" {
			return fmt.Errorf("norms: profiles.%s: name is required", code)
		}
		if !validRiskLevels[p.RiskLevel] {
			return fmt.Errorf("norms: profiles.%s: invalid risk level %q", code, p.RiskLevel)
		}
	}
	if len(t.Profiles) != len(profileCodes) {
		return fmt.Errorf("norms: profiles: expected %d profiles, got %d", len(profileCodes), len(t.Profiles))
	}
	return nil
}

func (t *Tables) validateDiscrepancies() error {
	for _, id := range discrepancyCodes {
		d, ok := t.Discrepancies[id]
		if !ok {
			return fmt.Errorf("norms: discrepancies: missing %s", id)
		}
		if !d.Severity.Valid() {
			return fmt.Errorf("norms: discrepancies.%s: invalid severity %q", id, d.Severity)
		}
		if d.Priority <= 0 {
			return fmt.Errorf("norms: discrepancies.%s: priority must be positive", id)
		}
	}
	return nil
}

func validCondition(c Condition) bool {
	return (c.Direction == DirectionHigh || c.Direction == DirectionLow) && c.Threshold > 0 && c.Threshold < 100
}

func (t *Tables) validatePathways() error {
	names := make(map[string]bool, len(t.Pathways))
	for _, p := range t.Pathways {
		if p.Name == "" || names[p.Name] {
			return fmt.Errorf("norms: pathways: missing or duplicate name %q", p.Name)
		}
		names[p.Name] = true
		if _, ok := t.Big5[p.Trigger.Trait]; !ok || !validCondition(p.Trigger) {
			return fmt.Errorf("norms: pathways.%s: invalid trigger", p.Name)
		}
		if p.Requires != nil {
			if _, ok := t.Big5[p.Requires.Trait]; !ok || !validCondition(*p.Requires) {
				return fmt.Errorf("norms: pathways.%s: invalid requires", p.Name)
			}
		}
		if len(p.Symptoms) == 0 {
			return fmt.Errorf("norms: pathways.%s: no symptoms", p.Name)
		}
		for _, s := range p.Symptoms {
			if _, ok := t.DASS21[s]; !ok {
				return fmt.Errorf("norms: pathways.%s: unknown symptom %q", p.Name, s)
			}
		}
	}
	for _, c := range t.Compensations {
		if _, ok := t.VIA[c.Strength]; !ok {
			return fmt.Errorf("norms: compensations: unknown strength %q", c.Strength)
		}
		for _, b := range c.Buffers {
			if !names[b] {
				return fmt.Errorf("norms: compensations.%s: unknown pathway %q", c.Strength, b)
			}
		}
	}
	return nil
}

// validateLibraryKeys checks that library mapping keys refer to entities
// defined in the tables.
func (t *Tables) validateLibraryKeys() error {
	if t.Library == nil {
		return fmt.Errorf("norms: intervention library is missing")
	}
	m := t.Library.Mappings
	for _, id := range sortedKeys(m.Discrepancy) {
		if _, ok := t.Discrepancies[id]; !ok {
			return fmt.Errorf("norms: library mapping for unknown discrepancy %q", id)
		}
	}
	pathways := make(map[string]bool, len(t.Pathways))
	for _, p := range t.Pathways {
		pathways[p.Name] = true
	}
	for _, name := range sortedKeys(m.Pathway) {
		if !pathways[name] {
			return fmt.Errorf("norms: library mapping for unknown pathway %q", name)
		}
	}
	for _, s := range sortedKeys(m.Strength) {
		if _, ok := t.VIA[s]; !ok {
			return fmt.Errorf("norms: library mapping for unknown strength %q", s)
		}
	}
	for sub := range m.Severity {
		if _, ok := t.DASS21[sub]; !ok {
			return fmt.Errorf("norms: library severity mapping for unknown subscale %q", sub)
		}
	}
	return nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
