package normalize

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/HendryAvila/miso/internal/norms"
)

func newNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	return New(norms.MustDefault())
}

// --- Core math ---

func TestRawToZScore_AtMeanIsZero(t *testing.T) {
	scale := norms.Scale{Mean: 2.97, SD: 0.81}
	if got := RawToZScore(2.97, scale); got != 0 {
		t.Errorf("RawToZScore(mean) = %v, want 0", got)
	}
}

func TestRawToZScore_ZeroSDIsNoDiscrimination(t *testing.T) {
	scale := norms.Scale{Mean: 3, SD: 0}
	if got := RawToZScore(5, scale); got != 0 {
		t.Errorf("RawToZScore(sd=0) = %v, want 0", got)
	}
}

func TestRawToZScore_Clipped(t *testing.T) {
	scale := norms.Scale{Mean: 0, SD: 1}
	if got := RawToZScore(100, scale); got != ZClip {
		t.Errorf("RawToZScore(100) = %v, want %v", got, ZClip)
	}
	if got := RawToZScore(-100, scale); got != -ZClip {
		t.Errorf("RawToZScore(-100) = %v, want %v", got, -ZClip)
	}
}

func TestZScoreToPercentile_KnownValues(t *testing.T) {
	tests := []struct {
		z    float64
		want float64
	}{
		{0, 50},
		{1, 84.13},
		{-1, 15.87},
		{1.96, 97.5},
		{ZClip, 99.98},
		{-ZClip, 0.02},
	}
	for _, tt := range tests {
		if got := ZScoreToPercentile(tt.z); math.Abs(got-tt.want) > 0.011 {
			t.Errorf("ZScoreToPercentile(%v) = %v, want %v", tt.z, got, tt.want)
		}
	}
}

func TestCategoryFor_Bands(t *testing.T) {
	bands := norms.MustDefault().Categories
	tests := []struct {
		p    float64
		want Category
	}{
		{0, VeryLow},
		{9.99, VeryLow},
		{10, Low},
		{29.99, Low},
		{30, Average},
		{50, Average},
		{70, High},
		{89.99, High},
		{90, VeryHigh},
		{100, VeryHigh},
	}
	for _, tt := range tests {
		if got := CategoryFor(tt.p, bands); got != tt.want {
			t.Errorf("CategoryFor(%v) = %s, want %s", tt.p, got, tt.want)
		}
	}
}

func TestNormalize_BoundsAcrossValidRange(t *testing.T) {
	n := newNormalizer(t)
	for sub, scale := range n.tables.DASS21 {
		for raw := scale.Min; raw <= scale.Max; raw++ {
			s := n.Normalize(raw, scale.Scale)
			if s.ZScore < -ZClip || s.ZScore > ZClip {
				t.Errorf("%s raw %v: z = %v out of bounds", sub, raw, s.ZScore)
			}
			if s.Percentile < 0 || s.Percentile > 100 {
				t.Errorf("%s raw %v: percentile = %v out of bounds", sub, raw, s.Percentile)
			}
		}
	}
}

func TestNormalize_Monotonic(t *testing.T) {
	n := newNormalizer(t)
	for name, scale := range n.tables.VIA {
		prev := -1.0
		for raw := scale.Min; raw <= scale.Max; raw += 0.5 {
			p := n.Normalize(raw, scale).Percentile
			if p < prev {
				t.Fatalf("%s: percentile decreased from %v to %v at raw %v", name, prev, p, raw)
			}
			prev = p
		}
	}
}

// --- Big Five ---

func TestBig5_AverageAndSumDetection(t *testing.T) {
	n := newNormalizer(t)
	scores, v := n.Big5(map[string]float64{"N": 2.97, "conscientiousness": 20})
	if !v.Valid {
		t.Fatalf("Big5 validation errors: %v", v.Errors)
	}
	if got := scores[norms.Neuroticism].Percentile; got != 50 {
		t.Errorf("N percentile = %v, want 50", got)
	}
	c := scores[norms.Conscientiousness]
	if c.Raw != 20 {
		t.Errorf("C raw = %v, want 20 (the submitted sum)", c.Raw)
	}
	// 20 / 9 items = 2.22 average, well below the 3.63 mean.
	if c.Category != VeryLow {
		t.Errorf("C category = %s, want %s", c.Category, VeryLow)
	}
}

func TestBig5_CollectsErrorsAndKeepsValidFields(t *testing.T) {
	n := newNormalizer(t)
	scores, v := n.Big5(map[string]float64{
		"N":      50, // sum above 8*5
		"E":      0.5,
		"O":      3.5,
		"grumpy": 3,
	})
	if v.Valid {
		t.Fatal("expected validation errors")
	}
	if len(v.Errors) != 3 {
		t.Errorf("errors = %v, want 3 entries", v.Errors)
	}
	if _, ok := scores[norms.Openness]; !ok {
		t.Error("valid O should still be normalized")
	}
	if _, ok := scores[norms.Neuroticism]; ok {
		t.Error("invalid N should be excluded")
	}
}

func TestBig5_DuplicateAliasRejected(t *testing.T) {
	n := newNormalizer(t)
	_, v := n.Big5(map[string]float64{"N": 3, "neuroticism": 4})
	if v.Valid {
		t.Fatal("expected duplicate trait error")
	}
}

// --- DASS-21 ---

func TestDASS21_Severity(t *testing.T) {
	n := newNormalizer(t)
	scores, v := n.DASS21(NewScreeningRaw(28, 10, 15))
	if !v.Valid {
		t.Fatalf("DASS21 errors: %v", v.Errors)
	}
	want := map[norms.Subscale]norms.ScreeningSeverity{
		norms.Depression: norms.SeverityExtremelySevere,
		norms.Anxiety:    norms.SeverityModerateBand,
		norms.Stress:     norms.SeverityMild,
	}
	for sub, sev := range want {
		if got := scores.Severity(sub); got != sev {
			t.Errorf("%s severity = %s, want %s", sub, got, sev)
		}
	}
	if !scores.Critical() {
		t.Error("extremely severe depression should be critical")
	}
	if scores.Worst() != norms.SeverityExtremelySevere {
		t.Errorf("Worst() = %s, want %s", scores.Worst(), norms.SeverityExtremelySevere)
	}
}

func TestDASS21_AllOrNothing(t *testing.T) {
	n := newNormalizer(t)
	d, a := 10.0, 8.0
	scores, v := n.DASS21(&ScreeningRaw{D: &d, A: &a})
	if scores != nil {
		t.Errorf("partial screening should be absent, got %v", scores)
	}
	if v.Valid || !strings.Contains(strings.Join(v.Errors, ";"), "dass21.S") {
		t.Errorf("errors = %v, want a missing S error", v.Errors)
	}
}

func TestDASS21_RejectsOutOfRangeAndFractional(t *testing.T) {
	n := newNormalizer(t)
	tests := []*ScreeningRaw{
		NewScreeningRaw(43, 0, 0),
		NewScreeningRaw(-1, 0, 0),
		NewScreeningRaw(10.5, 0, 0),
		NewScreeningRaw(math.NaN(), 0, 0),
	}
	for _, raw := range tests {
		scores, v := n.DASS21(raw)
		if scores != nil || v.Valid {
			t.Errorf("DASS21(D=%v) = %v, %v; want rejection", *raw.D, scores, v)
		}
	}
}

func TestDASS21_NilIsAbsentWithoutErrors(t *testing.T) {
	n := newNormalizer(t)
	scores, v := n.DASS21(nil)
	if scores != nil || !v.Valid {
		t.Errorf("DASS21(nil) = %v, %+v; want nil, valid", scores, v)
	}
}

func TestDASSSeverity(t *testing.T) {
	n := newNormalizer(t)
	if got := n.DASSSeverity(norms.Anxiety, 20); got != norms.SeverityExtremelySevere {
		t.Errorf("DASSSeverity(A, 20) = %s, want %s", got, norms.SeverityExtremelySevere)
	}
	if got := n.DASSSeverity(norms.Stress, 14); got != norms.SeverityNormal {
		t.Errorf("DASSSeverity(S, 14) = %s, want %s", got, norms.SeverityNormal)
	}
}

// --- VIA ---

func TestVIA_SkipsUnknownAndOutOfRange(t *testing.T) {
	n := newNormalizer(t)
	scores, v := n.VIA(map[string]float64{"Hope": 22, "zest": 30, "telepathy": 20})
	if v.Valid || len(v.Errors) != 2 {
		t.Errorf("errors = %v, want 2", v.Errors)
	}
	if _, ok := scores["hope"]; !ok {
		t.Error("hope should be normalized under its canonical key")
	}
	if len(scores) != 1 {
		t.Errorf("len(scores) = %d, want 1", len(scores))
	}
	if got := StrengthPercentiles(scores)["hope"]; got <= 50 {
		t.Errorf("hope percentile = %v, want > 50", got)
	}
}

// --- Validation ---

func TestValidation_Merge(t *testing.T) {
	a := Validation{Valid: true}
	b := Validation{Valid: false, Errors: []string{"x"}}
	got := a.Merge(b)
	if diff := cmp.Diff(Validation{Valid: false, Errors: []string{"x"}}, got); diff != "" {
		t.Errorf("Merge mismatch (-want +got):\n%s", diff)
	}
	if len(a.Errors) != 0 {
		t.Error("Merge must not mutate the receiver")
	}
}

// --- MBTI ---

func TestMBTIToBig5Priors_Invalid(t *testing.T) {
	n := newNormalizer(t)
	for _, code := range []string{"", "XXXX", "INF", "INFPX", "INFP-Q", "ABCD"} {
		if got := n.MBTIToBig5Priors(code); got != nil {
			t.Errorf("MBTIToBig5Priors(%q) = %+v, want nil", code, got)
		}
	}
}

func TestMBTIToBig5Priors_Letters(t *testing.T) {
	n := newNormalizer(t)
	got := n.MBTIToBig5Priors("infp")
	if got == nil {
		t.Fatal("infp should be valid")
	}
	want := map[norms.Trait]float64{
		norms.Extraversion:      30,
		norms.Openness:          70,
		norms.Agreeableness:     65,
		norms.Conscientiousness: 35,
	}
	if diff := cmp.Diff(want, got.Percentiles); diff != "" {
		t.Errorf("priors mismatch (-want +got):\n%s", diff)
	}
	if got.Code != "INFP" {
		t.Errorf("Code = %q, want INFP", got.Code)
	}
}

func TestMBTIToBig5Priors_IdentitySetsNeuroticism(t *testing.T) {
	n := newNormalizer(t)
	got := n.MBTIToBig5Priors("ENTJ-T")
	if got == nil {
		t.Fatal("ENTJ-T should be valid")
	}
	if p := got.Percentiles[norms.Neuroticism]; p != 65 {
		t.Errorf("N prior = %v, want 65", p)
	}
}

func TestTypeProfile(t *testing.T) {
	n := newNormalizer(t)

	tp := n.TypeProfile("isfj")
	if !tp.Known || !tp.Structured || tp.CommunicationStyle != "structured" {
		t.Errorf("TypeProfile(isfj) = %+v", tp)
	}

	tp = n.TypeProfile("nonsense")
	if tp.Known || tp.Structured {
		t.Errorf("TypeProfile(nonsense) = %+v, want neutral default", tp)
	}
	if tp.RiskLevel != norms.RiskModerate {
		t.Errorf("default risk = %s, want %s", tp.RiskLevel, norms.RiskModerate)
	}
}

func TestMergeTraits_Provenance(t *testing.T) {
	n := newNormalizer(t)
	measured, _ := n.Big5(map[string]float64{"E": 3.28})
	priors := n.MBTIToBig5Priors("INFP")

	got := MergeTraits(measured, priors)

	want := map[norms.Trait]Provenance{
		norms.Extraversion:      Measured,
		norms.Openness:          MBTIInferred,
		norms.Agreeableness:     MBTIInferred,
		norms.Conscientiousness: MBTIInferred,
		norms.Neuroticism:       Defaulted,
	}
	for trait, src := range want {
		if got.Source(trait) != src {
			t.Errorf("%s source = %s, want %s", trait, got.Source(trait), src)
		}
	}
	if got.Value(norms.Extraversion) != 50 {
		t.Errorf("E = %v, want measured 50 (not the I prior)", got.Value(norms.Extraversion))
	}
	if got.Known(norms.Neuroticism) {
		t.Error("defaulted N should not be Known")
	}
	if !got.AnyMeasured() {
		t.Error("AnyMeasured should be true")
	}
}
