package norms

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Category is the discriminator of an intervention entry.
type Category string

const (
	CategoryCrisis        Category = "crisis"
	CategoryPsychotherapy Category = "psychotherapy"
	CategorySkill         Category = "skill"
	CategoryLifestyle     Category = "lifestyle"
	CategoryStrengthBased Category = "strength_based"
)

// CrisisDetails apply to crisis and first-aid interventions.
type CrisisDetails struct {
	Contacts       []string `yaml:"contacts" json:"contacts"`
	ResponseWindow string   `yaml:"response_window" json:"response_window"`
}

// PsychotherapyDetails apply to structured therapy protocols.
type PsychotherapyDetails struct {
	Modality string `yaml:"modality" json:"modality"`
	Sessions string `yaml:"sessions" json:"sessions"`
}

// SkillDetails apply to self-guided skills practice.
type SkillDetails struct {
	PracticeMinutes int    `yaml:"practice_minutes" json:"practice_minutes"`
	Frequency       string `yaml:"frequency" json:"frequency"`
}

// LifestyleDetails apply to behavioral lifestyle changes.
type LifestyleDetails struct {
	Frequency string `yaml:"frequency" json:"frequency"`
	Target    string `yaml:"target" json:"target"`
}

// StrengthDetails apply to strength-based interventions.
type StrengthDetails struct {
	Strength string `yaml:"strength" json:"strength"`
}

// Intervention is one library entry. Exactly one category block is set and
// it matches Category; Validate enforces this at load time.
type Intervention struct {
	ID            string   `yaml:"-" json:"id"`
	Category      Category `yaml:"category" json:"category"`
	Name          string   `yaml:"name" json:"name"`
	Description   string   `yaml:"description" json:"description"`
	Steps         []string `yaml:"steps" json:"steps"`
	EvidenceLevel string   `yaml:"evidence_level" json:"evidence_level"`
	EffectSize    float64  `yaml:"effect_size" json:"effect_size"`

	Crisis        *CrisisDetails        `yaml:"crisis,omitempty" json:"crisis,omitempty"`
	Psychotherapy *PsychotherapyDetails `yaml:"psychotherapy,omitempty" json:"psychotherapy,omitempty"`
	Skill         *SkillDetails         `yaml:"skill,omitempty" json:"skill,omitempty"`
	Lifestyle     *LifestyleDetails     `yaml:"lifestyle,omitempty" json:"lifestyle,omitempty"`
	StrengthBased *StrengthDetails      `yaml:"strength_based,omitempty" json:"strength_based,omitempty"`
}

// Mappings key candidate intervention IDs by their triggering signal.
type Mappings struct {
	Discrepancy map[string][]string                         `yaml:"discrepancy" json:"discrepancy"`
	Pathway     map[string][]string                         `yaml:"pathway" json:"pathway"`
	RiskLevel   map[RiskLevel][]string                      `yaml:"risk_level" json:"risk_level"`
	Severity    map[Subscale]map[ScreeningSeverity][]string `yaml:"severity" json:"severity"`
	Strength    map[string][]string                         `yaml:"strength" json:"strength"`
	TypeRisk    map[RiskLevel][]string                      `yaml:"type_risk" json:"type_risk"`
	LitePattern map[string][]string                         `yaml:"lite_pattern" json:"lite_pattern"`
}

// Library is the intervention content library.
type Library struct {
	Version       string                  `yaml:"version" json:"version"`
	Interventions map[string]Intervention `yaml:"interventions" json:"interventions"`
	Mappings      Mappings                `yaml:"mappings" json:"mappings"`
	FirstAid      []string                `yaml:"first_aid" json:"first_aid"`
}

// LoadLibrary parses and validates an intervention library.
func LoadLibrary(data []byte) (*Library, error) {
	var lib Library
	if err := yaml.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("norms: parse library: %w", err)
	}
	for id, iv := range lib.Interventions {
		iv.ID = id
		lib.Interventions[id] = iv
	}
	if err := lib.Validate(); err != nil {
		return nil, err
	}
	return &lib, nil
}

// Lookup returns the intervention with the given ID.
func (l *Library) Lookup(id string) (Intervention, bool) {
	iv, ok := l.Interventions[id]
	return iv, ok
}

// IDs returns all intervention IDs sorted.
func (l *Library) IDs() []string {
	ids := make([]string, 0, len(l.Interventions))
	for id := range l.Interventions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks every entry's common fields and category block.
func (l *Library) Validate() error {
	if l.Version == "" {
		return fmt.Errorf("norms: library: version is required")
	}
	if len(l.Interventions) == 0 {
		return fmt.Errorf("norms: library: no interventions")
	}
	for _, id := range l.IDs() {
		if err := l.Interventions[id].validate(); err != nil {
			return fmt.Errorf("norms: library: intervention %q: %w", id, err)
		}
	}
	if len(l.FirstAid) == 0 {
		return fmt.Errorf("norms: library: first_aid list is empty")
	}
	for _, ref := range l.references() {
		if _, ok := l.Interventions[ref.id]; !ok {
			return fmt.Errorf("norms: library: %s references unknown intervention %q", ref.from, ref.id)
		}
	}
	return nil
}

type libraryRef struct {
	from string
	id   string
}

// references flattens every mapping and the first-aid list into (source, id) pairs.
func (l *Library) references() []libraryRef {
	var refs []libraryRef
	add := func(from string, ids []string) {
		for _, id := range ids {
			refs = append(refs, libraryRef{from: from, id: id})
		}
	}
	add("first_aid", l.FirstAid)
	for k, ids := range l.Mappings.Discrepancy {
		add("mappings.discrepancy."+k, ids)
	}
	for k, ids := range l.Mappings.Pathway {
		add("mappings.pathway."+k, ids)
	}
	for k, ids := range l.Mappings.RiskLevel {
		add("mappings.risk_level."+string(k), ids)
	}
	for sub, levels := range l.Mappings.Severity {
		for lvl, ids := range levels {
			add("mappings.severity."+string(sub)+"."+string(lvl), ids)
		}
	}
	for k, ids := range l.Mappings.Strength {
		add("mappings.strength."+k, ids)
	}
	for k, ids := range l.Mappings.TypeRisk {
		add("mappings.type_risk."+string(k), ids)
	}
	for k, ids := range l.Mappings.LitePattern {
		add("mappings.lite_pattern."+k, ids)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].from != refs[j].from {
			return refs[i].from < refs[j].from
		}
		return refs[i].id < refs[j].id
	})
	return refs
}

func (iv Intervention) validate() error {
	if iv.Name == "" {
		return fmt.Errorf("name is required")
	}
	if iv.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(iv.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	switch iv.EvidenceLevel {
	case "A", "B", "C":
	default:
		return fmt.Errorf("evidence_level %q must be A, B or C", iv.EvidenceLevel)
	}
	if iv.EffectSize < 0 {
		return fmt.Errorf("effect_size %v must not be negative", iv.EffectSize)
	}

	blocks := map[Category]bool{
		CategoryCrisis:        iv.Crisis != nil,
		CategoryPsychotherapy: iv.Psychotherapy != nil,
		CategorySkill:         iv.Skill != nil,
		CategoryLifestyle:     iv.Lifestyle != nil,
		CategoryStrengthBased: iv.StrengthBased != nil,
	}
	set, ok := blocks[iv.Category]
	if !ok {
		return fmt.Errorf("unknown category %q", iv.Category)
	}
	if !set {
		return fmt.Errorf("category %q requires a %q block", iv.Category, iv.Category)
	}
	for c, present := range blocks {
		if present && c != iv.Category {
			return fmt.Errorf("unexpected %q block for category %q", c, iv.Category)
		}
	}

	switch iv.Category {
	case CategoryCrisis:
		if len(iv.Crisis.Contacts) == 0 {
			return fmt.Errorf("crisis block requires contacts")
		}
	case CategoryPsychotherapy:
		if iv.Psychotherapy.Modality == "" {
			return fmt.Errorf("psychotherapy block requires modality")
		}
	case CategorySkill:
		if iv.Skill.Frequency == "" {
			return fmt.Errorf("skill block requires frequency")
		}
	case CategoryLifestyle:
		if iv.Lifestyle.Frequency == "" {
			return fmt.Errorf("lifestyle block requires frequency")
		}
	case CategoryStrengthBased:
		if iv.StrengthBased.Strength == "" {
			return fmt.Errorf("strength_based block requires strength")
		}
	}
	return nil
}
