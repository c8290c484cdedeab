package discrepancy

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/HendryAvila/miso/internal/normalize"
	"github.com/HendryAvila/miso/internal/norms"
	"github.com/HendryAvila/miso/internal/scoring"
)

func newDetector(t *testing.T) *Detector {
	t.Helper()
	return New(norms.MustDefault())
}

// measured builds trait percentiles where the given traits are measured and
// the rest defaulted.
func measured(values map[norms.Trait]float64) normalize.TraitPercentiles {
	tp := normalize.MergeTraits(nil, nil)
	for t, v := range values {
		tp[t] = normalize.TraitPercentile{Percentile: v, Source: normalize.Measured}
	}
	return tp
}

func deltas(d, a, s float64) scoring.Deltas {
	out := scoring.Deltas{Subscales: map[norms.Subscale]scoring.SubscaleDelta{
		norms.Depression: {Delta: d},
		norms.Anxiety:    {Delta: a},
		norms.Stress:     {Delta: s},
	}}
	out.Sum = d + a + s
	thr := norms.MustDefault().Calibration.Delta.Subscale
	for sub, sd := range out.Subscales {
		switch {
		case sd.Delta > thr[sub]:
			sd.Flag = scoring.Elevated
		case sd.Delta < -thr[sub]:
			sd.Flag = scoring.Suppressed
		}
		out.Subscales[sub] = sd
	}
	return out
}

func screening(t *testing.T, d, a, s float64) normalize.ScreeningScores {
	t.Helper()
	scores, v := normalize.New(norms.MustDefault()).DASS21(normalize.NewScreeningRaw(d, a, s))
	if !v.Valid {
		t.Fatalf("DASS21 errors: %v", v.Errors)
	}
	return scores
}

func ids(items []Discrepancy) []string {
	var out []string
	for _, d := range items {
		out = append(out, d.ID)
	}
	return out
}

// --- Individual detectors ---

func TestDetect_D1SituationalCrisis(t *testing.T) {
	d := newDetector(t)
	in := Input{
		Traits:    measured(map[norms.Trait]float64{norms.Neuroticism: 20}),
		Deltas:    deltas(14, 2, 1),
		Screening: screening(t, 18, 4, 8),
	}
	got := d.Detect(in)
	if diff := cmp.Diff([]string{"D1"}, ids(got)); diff != "" {
		t.Fatalf("Detect mismatch (-want +got):\n%s", diff)
	}
	if got[0].Severity != norms.SeverityHigh {
		t.Errorf("D1 severity = %s, want %s for moderate depression", got[0].Severity, norms.SeverityHigh)
	}
	if got[0].Basis != BasisMeasured {
		t.Errorf("D1 basis = %s, want %s", got[0].Basis, BasisMeasured)
	}
}

func TestDetect_D1CriticalOnSevereDepression(t *testing.T) {
	d := newDetector(t)
	in := Input{
		Traits:    measured(map[norms.Trait]float64{norms.Neuroticism: 20}),
		Deltas:    deltas(20, 2, 1),
		Screening: screening(t, 26, 4, 8),
	}
	r := d.Analyze(in)
	if !r.HasCritical {
		t.Fatal("expected a critical discrepancy")
	}
	if r.Top == nil || r.Top.ID != "D1" || r.Top.Severity != norms.SeverityCritical {
		t.Errorf("Top = %+v, want critical D1", r.Top)
	}
}

func TestDetect_DefaultedTraitNeverFires(t *testing.T) {
	d := newDetector(t)
	// Neuroticism is defaulted to 50; nothing trait-based may fire even
	// with a large depression delta.
	in := Input{
		Traits:    normalize.MergeTraits(nil, nil),
		Deltas:    deltas(25, 10, 12),
		Screening: screening(t, 30, 14, 20),
	}
	if got := d.Detect(in); len(got) != 0 {
		t.Errorf("Detect(defaulted traits) = %v, want none", ids(got))
	}
}

func TestDetect_InferredTraitMarksBasis(t *testing.T) {
	d := newDetector(t)
	tp := normalize.MergeTraits(nil, nil)
	tp[norms.Agreeableness] = normalize.TraitPercentile{Percentile: 75, Source: normalize.MBTIInferred}
	in := Input{
		Traits:    tp,
		Deltas:    deltas(0, 0, 12),
		Screening: screening(t, 4, 2, 22),
	}
	got := d.Detect(in)
	if diff := cmp.Diff([]string{"D6"}, ids(got)); diff != "" {
		t.Fatalf("Detect mismatch (-want +got):\n%s", diff)
	}
	if got[0].Basis != BasisInferred {
		t.Errorf("D6 basis = %s, want %s", got[0].Basis, BasisInferred)
	}
}

func TestDetect_D2TraitCompensation(t *testing.T) {
	d := newDetector(t)
	in := Input{
		Traits:    measured(map[norms.Trait]float64{norms.Neuroticism: 90}),
		Deltas:    deltas(-4, -2, -3),
		Screening: screening(t, 6, 2, 8),
	}
	if diff := cmp.Diff([]string{"D2"}, ids(d.Detect(in))); diff != "" {
		t.Errorf("Detect mismatch (-want +got):\n%s", diff)
	}
}

func TestDetect_D3RepressiveCoping(t *testing.T) {
	d := newDetector(t)
	in := Input{
		Traits:    measured(map[norms.Trait]float64{norms.Neuroticism: 60}),
		Deltas:    deltas(-8, -5, -6),
		Screening: screening(t, 0, 0, 0),
	}
	if diff := cmp.Diff([]string{"D3"}, ids(d.Detect(in))); diff != "" {
		t.Errorf("Detect mismatch (-want +got):\n%s", diff)
	}
}

func TestDetect_D4StrengthParadox(t *testing.T) {
	d := newDetector(t)
	in := Input{
		Traits:    measured(nil),
		Strengths: map[string]float64{"hope": 80},
		Deltas:    deltas(8, 0, 0),
		Screening: screening(t, 16, 2, 8),
	}
	got := d.Detect(in)
	if diff := cmp.Diff([]string{"D4"}, ids(got)); diff != "" {
		t.Fatalf("Detect mismatch (-want +got):\n%s", diff)
	}
	if got[0].Evidence["hope"] != 80 {
		t.Errorf("evidence = %v, want hope 80", got[0].Evidence)
	}
}

func TestDetect_D5RegulationInconsistency(t *testing.T) {
	d := newDetector(t)
	in := Input{
		Traits:    measured(map[norms.Trait]float64{norms.Conscientiousness: 85}),
		Strengths: map[string]float64{"self_regulation": 15},
		Deltas:    deltas(0, 0, 0),
		Screening: screening(t, 4, 2, 8),
	}
	if diff := cmp.Diff([]string{"D5"}, ids(d.Detect(in))); diff != "" {
		t.Errorf("Detect mismatch (-want +got):\n%s", diff)
	}
}

func TestDetect_D6RequiresKindnessWhenAdministered(t *testing.T) {
	d := newDetector(t)
	in := Input{
		Traits:    measured(map[norms.Trait]float64{norms.Agreeableness: 80}),
		Strengths: map[string]float64{"kindness": 40},
		Deltas:    deltas(0, 0, 15),
		Screening: screening(t, 4, 2, 24),
	}
	if got := d.Detect(in); len(got) != 0 {
		t.Errorf("Detect(low kindness) = %v, want none", ids(got))
	}
	in.Strengths["kindness"] = 85
	if diff := cmp.Diff([]string{"D6"}, ids(d.Detect(in))); diff != "" {
		t.Errorf("Detect mismatch (-want +got):\n%s", diff)
	}
}

// --- Independence and ordering ---

func TestDetect_IndependentDetectorsFireTogether(t *testing.T) {
	d := newDetector(t)
	in := Input{
		Traits: measured(map[norms.Trait]float64{
			norms.Neuroticism:       20,
			norms.Conscientiousness: 10,
		}),
		Strengths: map[string]float64{"self_regulation": 90},
		Deltas:    deltas(14, 1, 1),
		Screening: screening(t, 18, 4, 8),
	}
	got := ids(Prioritize(d.Detect(in)))
	if diff := cmp.Diff([]string{"D1", "D5"}, got); diff != "" {
		t.Errorf("Detect mismatch (-want +got):\n%s", diff)
	}
}

func TestPrioritize_SeverityThenPriority(t *testing.T) {
	items := []Discrepancy{
		{ID: "D5", Severity: norms.SeverityLow, Priority: 5},
		{ID: "D6", Severity: norms.SeverityModerate, Priority: 4},
		{ID: "D4", Severity: norms.SeverityModerate, Priority: 2},
		{ID: "D1", Severity: norms.SeverityCritical, Priority: 1},
	}
	got := ids(Prioritize(items))
	if diff := cmp.Diff([]string{"D1", "D4", "D6", "D5"}, got); diff != "" {
		t.Errorf("Prioritize mismatch (-want +got):\n%s", diff)
	}
	if items[0].ID != "D5" {
		t.Error("Prioritize must not reorder its input")
	}
}

func TestTop_Empty(t *testing.T) {
	if _, ok := Top(nil); ok {
		t.Error("Top(nil) should report false")
	}
	if HasCritical(nil) {
		t.Error("HasCritical(nil) should be false")
	}
}
