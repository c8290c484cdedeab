// Package metrics exposes Prometheus collectors for analysis runs.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/HendryAvila/miso/internal/analysis"
	"github.com/HendryAvila/miso/internal/intervention"
)

// Metrics records analysis outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	analyses      *prometheus.CounterVec
	duration      prometheus.Histogram
	discrepancies *prometheus.CounterVec
	interventions *prometheus.CounterVec
	failures      *prometheus.CounterVec
}

// MustNewMetrics constructs and registers the collectors. Registration
// errors other than an identical existing collector panic.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "miso",
			Name:      "analyses_total",
			Help:      "Analyses completed, by completeness level.",
		}, []string{"level"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "miso",
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of one analysis including loads.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		discrepancies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "miso",
			Name:      "discrepancies_total",
			Help:      "Discrepancies detected, by id.",
		}, []string{"id"}),
		interventions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "miso",
			Name:      "interventions_total",
			Help:      "Interventions planned, by tier.",
		}, []string{"tier"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "miso",
			Name:      "analysis_failures_total",
			Help:      "Analyses that could not run, by stage.",
		}, []string{"stage"}),
	}

	m.analyses = register(reg, m.analyses)
	m.duration = register(reg, m.duration)
	m.discrepancies = register(reg, m.discrepancies)
	m.interventions = register(reg, m.interventions)
	m.failures = register(reg, m.failures)
	return m
}

// register reuses an already registered collector of the same shape.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveResult records one completed analysis.
func (m *Metrics) ObserveResult(r *analysis.Result, elapsed time.Duration) {
	if m == nil || r == nil {
		return
	}
	m.analyses.WithLabelValues(string(r.Level())).Inc()
	m.duration.Observe(elapsed.Seconds())
	if r.Discrepancies != nil {
		for _, d := range r.Discrepancies.Items {
			m.discrepancies.WithLabelValues(d.ID).Inc()
		}
	}
	for _, tier := range intervention.Tiers {
		if n := len(r.Interventions.Tier(tier)); n > 0 {
			m.interventions.WithLabelValues(string(tier)).Add(float64(n))
		}
	}
}

// IncFailure counts an analysis that failed at stage.
func (m *Metrics) IncFailure(stage string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(stage).Inc()
}
