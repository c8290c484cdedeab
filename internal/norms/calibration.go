package norms

// Calibration groups every tunable coefficient and threshold used by the
// scoring, classification, discrepancy and temporal stages. None of these
// values is clinically validated; they live in the tables so they can be
// reviewed and versioned with the norms.
type Calibration struct {
	BVSWeights      map[Trait]float64       `yaml:"bvs_weights" json:"bvs_weights"`
	RCSWeights      map[string]float64      `yaml:"rcs_weights" json:"rcs_weights"`
	StructuredBonus float64                 `yaml:"structured_bonus" json:"structured_bonus"`
	Control         ControlWeights          `yaml:"control" json:"control"`
	Prediction      map[Subscale]Regression `yaml:"prediction" json:"prediction"`
	Delta           DeltaThresholds         `yaml:"delta" json:"delta"`
	Classifier      ClassifierCuts          `yaml:"classifier" json:"classifier"`
	Discrepancy     DiscrepancyThresholds   `yaml:"discrepancy" json:"discrepancy"`
	Stability       map[Trait]float64       `yaml:"stability" json:"stability"`
	Allocation      AllocationWeights       `yaml:"allocation" json:"allocation"`
	Temporal        TemporalSettings        `yaml:"temporal" json:"temporal"`
}

// ControlWeights weights the self-regulation composite.
type ControlWeights struct {
	Strengths map[string]float64 `yaml:"strengths" json:"strengths"`
	Traits    map[Trait]float64  `yaml:"traits" json:"traits"`
	// LowBelow marks the composite value under which control is "low".
	LowBelow float64 `yaml:"low_below" json:"low_below"`
}

// Regression is intercept + βv·BVS + βr·RCS.
type Regression struct {
	Intercept     float64 `yaml:"intercept" json:"intercept"`
	Vulnerability float64 `yaml:"vulnerability" json:"vulnerability"`
	Resilience    float64 `yaml:"resilience" json:"resilience"`
}

// DeltaThresholds drive the delta interpretation.
type DeltaThresholds struct {
	Aggregate float64              `yaml:"aggregate" json:"aggregate"`
	Subscale  map[Subscale]float64 `yaml:"subscale" json:"subscale"`
}

// ClassifierCuts are the "high" and "low" percentile cut-points.
type ClassifierCuts struct {
	High float64 `yaml:"high" json:"high"`
	Low  float64 `yaml:"low" json:"low"`
}

// DiscrepancyThresholds parameterize D1..D6.
type DiscrepancyThresholds struct {
	LowNeuroticism      float64 `yaml:"low_neuroticism" json:"low_neuroticism"`
	DepressionDelta     float64 `yaml:"depression_delta" json:"depression_delta"`
	AggregateDelta      float64 `yaml:"aggregate_delta" json:"aggregate_delta"`
	VeryHighNeuroticism float64 `yaml:"very_high_neuroticism" json:"very_high_neuroticism"`
	CompensationSum     float64 `yaml:"compensation_sum" json:"compensation_sum"`
	RepressiveSum       float64 `yaml:"repressive_sum" json:"repressive_sum"`
	RepressiveMinN      float64 `yaml:"repressive_min_neuroticism" json:"repressive_min_neuroticism"`
	HighStrength        float64 `yaml:"high_strength" json:"high_strength"`
	ParadoxDelta        float64 `yaml:"paradox_delta" json:"paradox_delta"`
	RegulationHigh      float64 `yaml:"regulation_high" json:"regulation_high"`
	RegulationLow       float64 `yaml:"regulation_low" json:"regulation_low"`
	HighAgreeableness   float64 `yaml:"high_agreeableness" json:"high_agreeableness"`
	HighKindness        float64 `yaml:"high_kindness" json:"high_kindness"`
	StressDelta         float64 `yaml:"stress_delta" json:"stress_delta"`
}

// AllocationWeights blend severity and fit into a candidate's score.
type AllocationWeights struct {
	Severity float64 `yaml:"severity" json:"severity"`
	Fit      float64 `yaml:"fit" json:"fit"`
}

// TemporalSettings configure reliable change analysis.
type TemporalSettings struct {
	// Z is the two-tailed critical value used for the reliable change index.
	Z float64 `yaml:"z" json:"z"`
	// SlopeMinPoints is the minimum number of administrations for a slope.
	SlopeMinPoints int `yaml:"slope_min_points" json:"slope_min_points"`
}
