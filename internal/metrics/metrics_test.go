package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/HendryAvila/miso/internal/analysis"
	"github.com/HendryAvila/miso/internal/normalize"
	"github.com/HendryAvila/miso/internal/norms"
)

func TestObserveResult(t *testing.T) {
	m := MustNewMetrics(prometheus.NewRegistry())
	e := analysis.New(norms.MustDefault())
	r := e.Analyze(analysis.Inputs{DASS21: normalize.NewScreeningRaw(28, 10, 15)}, "u1", nil)

	m.ObserveResult(r, 5*time.Millisecond)

	if got := testutil.ToFloat64(m.analyses.WithLabelValues("MINIMAL")); got != 1 {
		t.Errorf("analyses_total{level=MINIMAL} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.interventions.WithLabelValues("immediate")); got != float64(len(r.Interventions.Immediate)) {
		t.Errorf("interventions_total{tier=immediate} = %v, want %d", got, len(r.Interventions.Immediate))
	}
	if got := testutil.CollectAndCount(m.duration); got != 1 {
		t.Errorf("duration series = %d, want 1", got)
	}
}

func TestMustNewMetrics_ReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := MustNewMetrics(reg)
	b := MustNewMetrics(reg)
	a.IncFailure("load")
	b.IncFailure("load")
	if got := testutil.ToFloat64(a.failures.WithLabelValues("load")); got != 2 {
		t.Errorf("analysis_failures_total{stage=load} = %v, want 2", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveResult(&analysis.Result{}, time.Second)
	m.IncFailure("load")
}
