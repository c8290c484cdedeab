package temporal

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/HendryAvila/miso/internal/norms"
)

var t0 = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

func newAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	return New(norms.MustDefault())
}

func point(daysAfter int, d, a, s float64) ScreeningPoint {
	return ScreeningPoint{
		Timestamp: t0.AddDate(0, 0, daysAfter),
		Scores:    map[norms.Subscale]float64{norms.Depression: d, norms.Anxiety: a, norms.Stress: s},
	}
}

func TestReliableChangeThreshold(t *testing.T) {
	a := newAnalyzer(t)
	want := map[norms.Subscale]float64{
		norms.Depression: 7.43,
		norms.Anxiety:    6.94,
		norms.Stress:     7.36,
	}
	for sub, w := range want {
		if got := a.Threshold(sub); math.Abs(got-w) > 0.01 {
			t.Errorf("Threshold(%s) = %v, want %v", sub, got, w)
		}
	}
}

func TestScreeningTrend_Improving(t *testing.T) {
	a := newAnalyzer(t)
	got := a.ScreeningTrend([]ScreeningPoint{point(0, 20, 18, 22), point(28, 10, 8, 12)})
	if got == nil {
		t.Fatal("trend should be computed for two points")
	}
	if got.Trend != Improving {
		t.Errorf("Trend = %s, want %s", got.Trend, Improving)
	}
	if got.TotalChange != -30 {
		t.Errorf("TotalChange = %v, want -30", got.TotalChange)
	}
	for sub, c := range got.Subscales {
		if !c.Reliable || c.Trend != Improving {
			t.Errorf("%s change = %+v, want reliable improvement", sub, c)
		}
	}
	if got.SlopePer30d != nil {
		t.Error("slope needs at least three points")
	}
}

func TestScreeningTrend_ReversedIsWorsening(t *testing.T) {
	a := newAnalyzer(t)
	got := a.ScreeningTrend([]ScreeningPoint{point(0, 10, 8, 12), point(28, 20, 18, 22)})
	if got.Trend != Worsening {
		t.Errorf("Trend = %s, want %s", got.Trend, Worsening)
	}
}

func TestScreeningTrend_SortsByTimestamp(t *testing.T) {
	a := newAnalyzer(t)
	// Given newest first; ordering must come from the timestamps.
	got := a.ScreeningTrend([]ScreeningPoint{point(28, 10, 8, 12), point(0, 20, 18, 22)})
	if got.Trend != Improving {
		t.Errorf("Trend = %s, want %s", got.Trend, Improving)
	}
	if !got.From.Equal(t0) {
		t.Errorf("From = %v, want %v", got.From, t0)
	}
}

func TestScreeningTrend_SmallChangeIsStable(t *testing.T) {
	a := newAnalyzer(t)
	got := a.ScreeningTrend([]ScreeningPoint{point(0, 12, 8, 14), point(14, 10, 6, 12)})
	if got.Trend != Stable || got.Reliable {
		t.Errorf("Trend = %s (reliable %v), want stable", got.Trend, got.Reliable)
	}
}

func TestScreeningTrend_TooFewPoints(t *testing.T) {
	a := newAnalyzer(t)
	if got := a.ScreeningTrend(nil); got != nil {
		t.Errorf("ScreeningTrend(nil) = %+v, want nil", got)
	}
	if got := a.ScreeningTrend([]ScreeningPoint{point(0, 1, 1, 1)}); got != nil {
		t.Errorf("ScreeningTrend(one) = %+v, want nil", got)
	}
}

func TestScreeningTrend_Slope(t *testing.T) {
	a := newAnalyzer(t)
	got := a.ScreeningTrend([]ScreeningPoint{
		point(0, 20, 10, 20),
		point(30, 17, 9, 19),
		point(60, 14, 8, 18),
	})
	if got.SlopePer30d == nil {
		t.Fatal("slope should be computed with three points")
	}
	if *got.SlopePer30d != -5 {
		t.Errorf("SlopePer30d = %v, want -5", *got.SlopePer30d)
	}
}

func TestTraitStability(t *testing.T) {
	a := newAnalyzer(t)
	got := a.TraitStability([]TraitPoint{
		{Timestamp: t0, Percentiles: map[norms.Trait]float64{norms.Neuroticism: 60, norms.Extraversion: 40}},
		{Timestamp: t0.AddDate(0, 6, 0), Percentiles: map[norms.Trait]float64{norms.Neuroticism: 80, norms.Extraversion: 44}},
	})
	if got == nil {
		t.Fatal("stability should be computed")
	}
	if got.Stable {
		t.Error("N change of 20 should break stability")
	}
	if diff := cmp.Diff([]norms.Trait{norms.Neuroticism}, got.Drifting); diff != "" {
		t.Errorf("Drifting mismatch (-want +got):\n%s", diff)
	}
	if got.Traits[norms.Extraversion].Status != Noise {
		t.Errorf("E status = %s, want %s", got.Traits[norms.Extraversion].Status, Noise)
	}
	if got.Coefficient != 0.88 {
		t.Errorf("Coefficient = %v, want 0.88", got.Coefficient)
	}
}

func TestTraitStability_TooFewPoints(t *testing.T) {
	a := newAnalyzer(t)
	if got := a.TraitStability([]TraitPoint{{Timestamp: t0}}); got != nil {
		t.Errorf("TraitStability(one) = %+v, want nil", got)
	}
}

func TestAnalyze_EmptyHistory(t *testing.T) {
	a := newAnalyzer(t)
	got := a.Analyze(nil, nil)
	if got.DASS21 != nil || got.Big5 != nil {
		t.Errorf("Analyze(nil) = %+v, want both nil", got)
	}
}
