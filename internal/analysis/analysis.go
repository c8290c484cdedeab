// Package analysis is the single entry point of the engine: it sequences
// normalization, the completeness gate, scoring, classification, discrepancy
// and mechanism analysis, intervention allocation and temporal analysis, and
// assembles the result envelope.
//
// An Engine holds only read-only tables and is safe for concurrent use. It
// performs no I/O; callers load inputs and history and persist results.
package analysis

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
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

// Version is the version of the result envelope.
const Version = "1.0.0"

// viaHighlights is how many strengths are listed as signature and lowest.
const viaHighlights = 5

// ErrInsufficientData is returned by the convenience entry points when the
// inputs do not reach their minimum completeness level.
var ErrInsufficientData = errors.New("analysis: insufficient data")

// Engine runs the full analysis pipeline.
type Engine struct {
	tables     *norms.Tables
	normalizer *normalize.Normalizer
	scorer     *scoring.Scorer
	classifier *profile.Classifier
	detector   *discrepancy.Detector
	mechanisms *mechanism.Analyzer
	allocator  *intervention.Allocator
	temporal   *temporal.Analyzer
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock replaces time.Now for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an Engine over validated tables.
func New(tables *norms.Tables, opts ...Option) *Engine {
	e := &Engine{
		tables: tables,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.normalizer = normalize.New(tables)
	e.scorer = scoring.New(tables)
	e.classifier = profile.New(tables)
	e.detector = discrepancy.New(tables)
	e.mechanisms = mechanism.New(tables)
	e.allocator = intervention.New(tables, intervention.WithLogger(e.logger))
	e.temporal = temporal.New(tables)
	return e
}

// Tables returns the engine's reference tables.
func (e *Engine) Tables() *norms.Tables { return e.tables }

// normalized holds the validated inputs of one run.
type normalized struct {
	screening  normalize.ScreeningScores
	big5       map[norms.Trait]normalize.Score
	via        map[string]normalize.Score
	strengths  map[string]float64
	priors     *normalize.Priors
	typeCode   *normalize.TypeProfile
	validation normalize.Validation
}

func (e *Engine) normalize(in Inputs) normalized {
	var n normalized
	var v normalize.Validation

	n.screening, v = e.normalizer.DASS21(in.DASS21)
	n.validation = v
	if len(in.Big5) > 0 {
		n.big5, v = e.normalizer.Big5(in.Big5)
		n.validation = n.validation.Merge(v)
	}
	if len(in.VIA) > 0 {
		n.via, v = e.normalizer.VIA(in.VIA)
		n.validation = n.validation.Merge(v)
		n.strengths = normalize.StrengthPercentiles(n.via)
	}
	if in.MBTI != "" {
		n.priors = e.normalizer.MBTIToBig5Priors(in.MBTI)
		if n.priors == nil {
			n.validation = n.validation.Merge(normalize.Validation{
				Errors: []string{fmt.Sprintf("mbti: %q is not a valid four-letter type code", in.MBTI)},
			})
		} else {
			tp := e.normalizer.TypeProfile(in.MBTI)
			n.typeCode = &tp
		}
	}
	if n.validation.Errors == nil {
		n.validation.Valid = true
	}
	return n
}

// Analyze runs the pipeline. It always returns a well-formed result; data
// problems surface as validation errors and a lower completeness level.
func (e *Engine) Analyze(in Inputs, userID string, history *History) *Result {
	n := e.normalize(in)
	for _, msg := range n.validation.Errors {
		e.logger.Debug("excluded invalid input", "user", userID, "error", msg)
	}

	comp := completeness.Assess(completeness.Groups{
		Screening: n.screening != nil,
		Traits:    len(n.big5) > 0,
		Strengths: len(n.strengths) > 0,
		TypeCode:  n.priors != nil,
	})
	e.logger.Debug("completeness assessed", "user", userID, "level", comp.Level, "confidence", comp.Confidence)

	r := &Result{
		Version:       Version,
		NormsVersion:  e.tables.Version,
		Timestamp:     e.now().UTC(),
		UserID:        userID,
		Completeness:  comp,
		Interventions: intervention.EmptyPlan(),
		Temporal:      e.analyzeHistory(history),
		Validation:    n.validation,
	}

	switch comp.Level {
	case completeness.None:
		r.Profile = profile.None()
	case completeness.Minimal:
		e.runLite(r, n)
	case completeness.Full:
		e.runFull(r, n, in.MBTI)
	}
	r.Summary = e.summarize(r)
	return r
}

// AnalyzeScreening runs the pipeline on a screening alone. It returns
// ErrInsufficientData when the screening is absent or invalid.
func (e *Engine) AnalyzeScreening(dass *normalize.ScreeningRaw, userID string, history *History) (*Result, error) {
	r := e.Analyze(Inputs{DASS21: dass}, userID, history)
	if !r.Level().AtLeast(completeness.Minimal) {
		if errs := r.ScientificErrors(); len(errs) > 0 {
			return r, fmt.Errorf("%w: a valid screening is required: %s", ErrInsufficientData, strings.Join(errs, "; "))
		}
		return r, fmt.Errorf("%w: a valid screening is required", ErrInsufficientData)
	}
	return r, nil
}

// AnalyzeFull runs the pipeline and requires FULL completeness.
func (e *Engine) AnalyzeFull(in Inputs, userID string, history *History) (*Result, error) {
	r := e.Analyze(in, userID, history)
	if r.Level() != completeness.Full {
		return r, fmt.Errorf("%w: level %s, need %s", ErrInsufficientData, r.Level(), completeness.Full)
	}
	return r, nil
}

// ScientificErrors returns the validation errors of the run.
func (r *Result) ScientificErrors() []string {
	return r.Validation.Errors
}

func (e *Engine) runLite(r *Result, n normalized) {
	r.Profile = e.classifier.Lite(n.screening)
	mech := e.mechanisms.AnalyzeLite(n.screening, n.strengths)
	r.Interventions = e.allocator.Allocate(intervention.Input{
		Profile:    r.Profile,
		Mechanisms: mech,
		Screening:  n.screening,
		Strengths:  n.strengths,
		Type:       n.typeCode,
	})
	r.VIAAnalysis = viaAnalysis(n.via)
	r.ScientificAnalysis = &Scientific{
		Screening:  n.screening,
		Mechanisms: mech,
		Validation: n.validation,
	}
}

func (e *Engine) runFull(r *Result, n normalized, typeCode string) {
	traits := normalize.MergeTraits(n.big5, n.priors)

	composite := scoring.Composite{
		BVS: e.scorer.CalculateBVS(traits.Values()),
		RCS: e.scorer.CalculateRCS(n.strengths, typeCode),
	}
	predicted := e.scorer.PredictDASS(composite)
	actual := make(map[norms.Subscale]float64, len(norms.Subscales))
	for _, sub := range norms.Subscales {
		actual[sub] = n.screening.Raw(sub)
	}
	deltas := e.scorer.CalculateAllDeltas(actual, predicted)

	var control *float64
	known := make(map[norms.Trait]float64)
	for _, t := range norms.Traits {
		if traits.Known(t) {
			known[t] = traits.Value(t)
		}
	}
	if len(known) > 0 || len(n.strengths) > 0 {
		c := e.scorer.CalculateControlComposite(n.strengths, known)
		control = &c
	}

	r.Scores = &Scores{
		Big5:        n.big5,
		Traits:      traits,
		DASS21:      n.screening,
		BVS:         composite.BVS,
		RCS:         composite.RCS,
		Predicted:   predicted,
		Deltas:      deltas,
		Control:     control,
		TypeProfile: n.typeCode,
	}
	r.Profile = e.classifier.Full(traits)

	report := e.detector.Analyze(discrepancy.Input{
		Traits:    traits,
		Strengths: n.strengths,
		Deltas:    deltas,
		Screening: n.screening,
	})
	r.Discrepancies = &report

	mech := e.mechanisms.Analyze(mechanism.Input{
		Traits:    traits,
		Strengths: n.strengths,
		Control:   control,
	})
	r.Interventions = e.allocator.Allocate(intervention.Input{
		Profile:       r.Profile,
		Discrepancies: report.Items,
		Mechanisms:    mech,
		Screening:     n.screening,
		Strengths:     n.strengths,
		Type:          n.typeCode,
	})
	r.VIAAnalysis = viaAnalysis(n.via)
	r.ScientificAnalysis = &Scientific{
		Screening:  n.screening,
		Mechanisms: mech,
		Validation: n.validation,
	}
}

// analyzeHistory normalizes the history snapshot and runs temporal
// analysis. Invalid historical entries are skipped.
func (e *Engine) analyzeHistory(h *History) temporal.Result {
	if h == nil {
		return temporal.Result{}
	}
	var screening []temporal.ScreeningPoint
	for _, entry := range h.DASS21 {
		raw := entry.RawScores
		scores, v := e.normalizer.DASS21(&raw)
		if scores == nil {
			e.logger.Debug("skipping invalid history screening", "timestamp", entry.Timestamp, "errors", v.Errors)
			continue
		}
		p := temporal.ScreeningPoint{Timestamp: entry.Timestamp, Scores: make(map[norms.Subscale]float64, 3)}
		for _, sub := range norms.Subscales {
			p.Scores[sub] = scores.Raw(sub)
		}
		screening = append(screening, p)
	}

	var traits []temporal.TraitPoint
	for _, entry := range h.Big5 {
		scores, v := e.normalizer.Big5(entry.RawScores)
		if len(scores) == 0 {
			e.logger.Debug("skipping invalid history traits", "timestamp", entry.Timestamp, "errors", v.Errors)
			continue
		}
		p := temporal.TraitPoint{Timestamp: entry.Timestamp, Percentiles: make(map[norms.Trait]float64, len(scores))}
		for t, s := range scores {
			p.Percentiles[t] = s.Percentile
		}
		traits = append(traits, p)
	}
	return e.temporal.Analyze(screening, traits)
}

func viaAnalysis(scores map[string]normalize.Score) *VIAAnalysis {
	if len(scores) == 0 {
		return nil
	}
	names := make([]string, 0, len(scores))
	for k := range scores {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := scores[names[i]].Percentile, scores[names[j]].Percentile
		if pi != pj {
			return pi > pj
		}
		return names[i] < names[j]
	})
	n := min(viaHighlights, len(names))
	lowest := make([]string, 0, n)
	for i := len(names) - 1; i >= len(names)-n; i-- {
		lowest = append(lowest, names[i])
	}
	return &VIAAnalysis{
		Scores:    scores,
		Signature: append([]string(nil), names[:n]...),
		Lowest:    lowest,
	}
}
