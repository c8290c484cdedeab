package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/HendryAvila/miso/internal/analysis"
	"github.com/HendryAvila/miso/internal/completeness"
	"github.com/HendryAvila/miso/internal/metrics"
	"github.com/HendryAvila/miso/internal/normalize"
	"github.com/HendryAvila/miso/internal/norms"
	"github.com/HendryAvila/miso/internal/store"
	"github.com/HendryAvila/miso/internal/temporal"
)

var t0 = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(store.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("store.New() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newService(t *testing.T, repo Repository, opts ...Option) *Service {
	t.Helper()
	return New(analysis.New(norms.MustDefault()), repo, opts...)
}

type failingRepo struct {
	Repository
	err error
}

func (f failingRepo) History(context.Context, string) (*analysis.History, error) {
	return nil, f.err
}

func (f failingRepo) LatestInputs(context.Context, string) (analysis.Inputs, error) {
	return analysis.Inputs{}, nil
}

func TestLoad_InputsAndHistory(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	for i, d := range []float64{24, 16, 8} {
		if _, err := st.RecordAssessment(ctx, "u1", analysis.Inputs{DASS21: normalize.NewScreeningRaw(d, 6, 12)}, t0.AddDate(0, 0, 14*i)); err != nil {
			t.Fatal(err)
		}
	}

	in, h, err := newService(t, st).Load(ctx, "u1")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if in.DASS21 == nil || *in.DASS21.D != 8 {
		t.Errorf("current D = %v, want 8", in.DASS21)
	}
	if len(h.DASS21) != 3 {
		t.Fatalf("len(history) = %d, want 3", len(h.DASS21))
	}
	if got := *h.DASS21[2].RawScores.D; got != 8 {
		t.Errorf("last history D = %v, want the current 8", got)
	}
}

func TestLoad_ErrorIsWrapped(t *testing.T) {
	boom := errors.New("boom")
	reg := prometheus.NewRegistry()
	s := newService(t, failingRepo{err: boom}, WithMetrics(metrics.MustNewMetrics(reg)))

	_, _, err := s.Load(context.Background(), "u1")
	if !errors.Is(err, boom) {
		t.Fatalf("Load() error = %v, want wrapping boom", err)
	}
	if n, err := testutil.GatherAndCount(reg, "miso_analysis_failures_total"); err != nil || n != 1 {
		t.Errorf("failure series = %d (%v), want 1", n, err)
	}
}

func TestAnalyzeUser_StoresResult(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	if _, err := st.RecordAssessment(ctx, "u1", analysis.Inputs{
		DASS21: normalize.NewScreeningRaw(20, 18, 22),
	}, t0); err != nil {
		t.Fatal(err)
	}
	if _, err := st.RecordAssessment(ctx, "u1", analysis.Inputs{
		DASS21: normalize.NewScreeningRaw(10, 8, 12),
		Big5:   map[string]float64{"N": 35, "E": 40, "O": 30, "A": 25, "C": 20},
	}, t0.AddDate(0, 0, 30)); err != nil {
		t.Fatal(err)
	}

	reg := prometheus.NewRegistry()
	out, err := newService(t, st, WithMetrics(metrics.MustNewMetrics(reg))).AnalyzeUser(ctx, "u1")
	if err != nil {
		t.Fatalf("AnalyzeUser() error: %v", err)
	}
	if out.Result.Level() != completeness.Full {
		t.Errorf("Level() = %s, want %s", out.Result.Level(), completeness.Full)
	}
	stored, err := st.GetAnalysis(ctx, out.ID)
	if err != nil {
		t.Fatalf("GetAnalysis() error: %v", err)
	}
	if stored.Profile.Code != out.Result.Profile.Code {
		t.Errorf("stored profile = %s, want %s", stored.Profile.Code, out.Result.Profile.Code)
	}
	if d := out.Result.Temporal.DASS21; d == nil || d.Trend != temporal.Improving {
		t.Errorf("Temporal.DASS21 = %+v, want %s", d, temporal.Improving)
	}
	if n, err := testutil.GatherAndCount(reg, "miso_analyses_total"); err != nil || n != 1 {
		t.Errorf("analyses series = %d (%v), want 1", n, err)
	}
}

func TestAnalyzeUser_RequiresUser(t *testing.T) {
	if _, err := newService(t, newTestStore(t)).AnalyzeUser(context.Background(), ""); err == nil {
		t.Error("AnalyzeUser(\"\") should fail")
	}
}

func TestAnalyzeBatch_OrderAndIsolation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	users := []string{"a", "b", "c", "d", "e"}
	for _, u := range users {
		if _, err := st.RecordAssessment(ctx, u, analysis.Inputs{DASS21: normalize.NewScreeningRaw(10, 8, 12)}, t0); err != nil {
			t.Fatal(err)
		}
	}

	items := newService(t, st, WithParallel(2)).AnalyzeBatch(ctx, append(users, ""))
	if len(items) != len(users)+1 {
		t.Fatalf("len(items) = %d, want %d", len(items), len(users)+1)
	}
	for i, u := range users {
		if items[i].UserID != u || items[i].Err != nil || items[i].Outcome == nil {
			t.Errorf("items[%d] = %+v, want success for %s", i, items[i], u)
		}
	}
	if items[len(users)].Err == nil {
		t.Error("the empty user id should fail without stopping the batch")
	}
}
