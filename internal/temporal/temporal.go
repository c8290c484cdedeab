// Package temporal classifies screening trends across administrations with a
// reliable change threshold, and checks Big Five stability between the
// earliest and latest trait administrations.
package temporal

import (
	"math"
	"sort"
	"time"

	"github.com/HendryAvila/miso/internal/norms"
)

// Trend is the direction of change. Screening scores are higher-is-worse.
type Trend string

const (
	Improving Trend = "improving"
	Worsening Trend = "worsening"
	Stable    Trend = "stable"
)

// TraitStatus distinguishes real trait change from measurement noise.
type TraitStatus string

const (
	Drift TraitStatus = "drift"
	Noise TraitStatus = "noise"
)

const slopeWindow = 30 * 24 * time.Hour

// ScreeningPoint is one historical DASS-21 administration.
type ScreeningPoint struct {
	Timestamp time.Time                  `json:"timestamp"`
	Scores    map[norms.Subscale]float64 `json:"raw_scores"`
}

// TraitPoint is one historical Big Five administration, as percentiles.
type TraitPoint struct {
	Timestamp   time.Time               `json:"timestamp"`
	Percentiles map[norms.Trait]float64 `json:"percentiles"`
}

// SubscaleChange is the earliest-to-latest change of one subscale.
type SubscaleChange struct {
	Earliest  float64 `json:"earliest"`
	Latest    float64 `json:"latest"`
	Change    float64 `json:"change"`
	Threshold float64 `json:"threshold"`
	Reliable  bool    `json:"reliable"`
	Trend     Trend   `json:"trend"`
}

// ScreeningTrend is the DASS-21 trend analysis.
type ScreeningTrend struct {
	Trend          Trend                             `json:"trend"`
	Reliable       bool                              `json:"reliable"`
	Points         int                               `json:"points"`
	From           time.Time                         `json:"from"`
	To             time.Time                         `json:"to"`
	TotalChange    float64                           `json:"total_change"`
	TotalThreshold float64                           `json:"total_threshold"`
	Subscales      map[norms.Subscale]SubscaleChange `json:"subscales"`
	// SlopePer30d is the least-squares slope of the total score; nil with
	// too few points.
	SlopePer30d *float64 `json:"slope_per_30d,omitempty"`
}

// TraitChange is the change of one trait between two administrations.
type TraitChange struct {
	Earliest  float64     `json:"earliest"`
	Latest    float64     `json:"latest"`
	Change    float64     `json:"change"`
	Threshold float64     `json:"threshold"`
	Status    TraitStatus `json:"status"`
}

// Stability is the Big Five stability analysis.
type Stability struct {
	Stable      bool                        `json:"stable"`
	Coefficient float64                     `json:"coefficient"`
	From        time.Time                   `json:"from"`
	To          time.Time                   `json:"to"`
	Traits      map[norms.Trait]TraitChange `json:"traits"`
	Drifting    []norms.Trait               `json:"drifting,omitempty"`
}

// Result is the temporal section of an analysis. A nil field was not
// computable from the available history.
type Result struct {
	DASS21 *ScreeningTrend `json:"dass21"`
	Big5   *Stability      `json:"big5"`
}

// Analyzer runs temporal analysis against one set of tables.
type Analyzer struct {
	thresholds map[norms.Subscale]float64
	total      float64
	stability  map[norms.Trait]float64
	minPoints  int
}

// New creates an Analyzer and precomputes the reliable change thresholds.
func New(tables *norms.Tables) *Analyzer {
	a := &Analyzer{
		thresholds: make(map[norms.Subscale]float64, len(norms.Subscales)),
		stability:  tables.Calibration.Stability,
		minPoints:  tables.Calibration.Temporal.SlopeMinPoints,
	}
	var sumSq float64
	for _, sub := range norms.Subscales {
		scale := tables.DASS21[sub]
		thr := ReliableChangeThreshold(tables.Calibration.Temporal.Z, scale.SD, scale.Reliability)
		a.thresholds[sub] = thr
		sumSq += thr * thr
	}
	a.total = round2(math.Sqrt(sumSq))
	return a
}

// ReliableChangeThreshold is z · sd · √2 · √(1 − r): the smallest change
// larger than measurement error at the given confidence.
func ReliableChangeThreshold(z, sd, reliability float64) float64 {
	sem := sd * math.Sqrt(1-reliability)
	return round2(z * sem * math.Sqrt2)
}

// Threshold returns the reliable change threshold of a subscale.
func (a *Analyzer) Threshold(sub norms.Subscale) float64 { return a.thresholds[sub] }

// Analyze runs both analyses over a history snapshot.
func (a *Analyzer) Analyze(screening []ScreeningPoint, traits []TraitPoint) Result {
	return Result{
		DASS21: a.ScreeningTrend(screening),
		Big5:   a.TraitStability(traits),
	}
}

// ScreeningTrend compares the earliest and latest administrations. Points are
// ordered by timestamp; equal timestamps keep their given order. It returns
// nil for fewer than two points.
func (a *Analyzer) ScreeningTrend(points []ScreeningPoint) *ScreeningTrend {
	if len(points) < 2 {
		return nil
	}
	sorted := append([]ScreeningPoint(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })
	first, last := sorted[0], sorted[len(sorted)-1]

	out := &ScreeningTrend{
		Points:         len(sorted),
		From:           first.Timestamp,
		To:             last.Timestamp,
		TotalThreshold: a.total,
		Subscales:      make(map[norms.Subscale]SubscaleChange, len(norms.Subscales)),
	}
	for _, sub := range norms.Subscales {
		change := round2(last.Scores[sub] - first.Scores[sub])
		thr := a.thresholds[sub]
		trend := classify(change, thr)
		out.Subscales[sub] = SubscaleChange{
			Earliest:  first.Scores[sub],
			Latest:    last.Scores[sub],
			Change:    change,
			Threshold: thr,
			Reliable:  trend != Stable,
			Trend:     trend,
		}
		out.TotalChange += change
	}
	out.TotalChange = round2(out.TotalChange)
	out.Trend = classify(out.TotalChange, a.total)
	out.Reliable = out.Trend != Stable

	if len(sorted) >= a.minPoints && a.minPoints >= 2 {
		out.SlopePer30d = slope(sorted)
	}
	return out
}

// classify is "higher is worse": a reliable drop is improvement.
func classify(change, threshold float64) Trend {
	switch {
	case change <= -threshold:
		return Improving
	case change >= threshold:
		return Worsening
	default:
		return Stable
	}
}

// slope fits total score against elapsed time by least squares.
func slope(points []ScreeningPoint) *float64 {
	origin := points[0].Timestamp
	var sx, sy, sxx, sxy float64
	n := float64(len(points))
	for _, p := range points {
		x := float64(p.Timestamp.Sub(origin)) / float64(slopeWindow)
		var y float64
		for _, sub := range norms.Subscales {
			y += p.Scores[sub]
		}
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return nil
	}
	v := round2((n*sxy - sx*sy) / den)
	return &v
}

// TraitStability compares the earliest and latest trait administrations. It
// returns nil for fewer than two points. Only traits present in both are
// compared.
func (a *Analyzer) TraitStability(points []TraitPoint) *Stability {
	if len(points) < 2 {
		return nil
	}
	sorted := append([]TraitPoint(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })
	first, last := sorted[0], sorted[len(sorted)-1]

	out := &Stability{
		Stable: true,
		From:   first.Timestamp,
		To:     last.Timestamp,
		Traits: make(map[norms.Trait]TraitChange, len(norms.Traits)),
	}
	var sumAbs float64
	for _, t := range norms.Traits {
		before, ok1 := first.Percentiles[t]
		after, ok2 := last.Percentiles[t]
		if !ok1 || !ok2 {
			continue
		}
		change := round2(after - before)
		thr := a.stability[t]
		status := Noise
		if math.Abs(change) > thr {
			status = Drift
			out.Stable = false
			out.Drifting = append(out.Drifting, t)
		}
		out.Traits[t] = TraitChange{Earliest: before, Latest: after, Change: change, Threshold: thr, Status: status}
		sumAbs += math.Abs(change)
	}
	if len(out.Traits) == 0 {
		return nil
	}
	out.Coefficient = round2(1 - sumAbs/float64(len(out.Traits))/100)
	return out
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
