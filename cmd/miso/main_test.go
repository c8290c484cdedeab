package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/HendryAvila/miso/internal/analysis"
	"github.com/HendryAvila/miso/internal/completeness"
	"github.com/HendryAvila/miso/internal/metrics"
	"github.com/HendryAvila/miso/internal/norms"
)

// setup writes a config file pointing the store at a temp dir and returns
// its path.
func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "miso.yaml")
	body := "data_dir: " + filepath.Join(dir, "data") + "\nlog_level: error\n"
	if err := os.WriteFile(cfg, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(io.Discard)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version error: %v", err)
	}
	if !strings.HasPrefix(out, "miso v") {
		t.Errorf("version output = %q, want miso v...", out)
	}
}

func TestAnalyze_InputFile(t *testing.T) {
	cfg := setup(t)
	input := writeFile(t, "in.json", `{"dass21_raw": {"D": 28, "A": 10, "S": 15}}`)

	out, err := run(t, "--config", cfg, "analyze", "--input", input)
	if err != nil {
		t.Fatalf("analyze error: %v", err)
	}
	var r analysis.Result
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("output is not a result: %v\n%s", err, out)
	}
	if r.Level() != completeness.Minimal {
		t.Errorf("Level() = %s, want %s", r.Level(), completeness.Minimal)
	}
}

func TestAnalyze_InputWithHistory(t *testing.T) {
	cfg := setup(t)
	input := writeFile(t, "in.json", `{"dass21_raw": {"D": 8, "A": 4, "S": 10}}`)
	history := writeFile(t, "h.json", `{"dass21": [
		{"timestamp": "2026-01-01T00:00:00Z", "raw_scores": {"D": 24, "A": 16, "S": 26}},
		{"timestamp": "2026-02-01T00:00:00Z", "raw_scores": {"D": 8, "A": 4, "S": 10}}
	]}`)

	out, err := run(t, "--config", cfg, "analyze", "-i", input, "--history", history)
	if err != nil {
		t.Fatalf("analyze error: %v", err)
	}
	var r analysis.Result
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatal(err)
	}
	if r.Temporal.DASS21 == nil || r.Temporal.DASS21.Trend != "improving" {
		t.Errorf("Temporal.DASS21 = %+v, want improving", r.Temporal.DASS21)
	}
}

func TestAnalyze_Errors(t *testing.T) {
	cfg := setup(t)
	misspelled := writeFile(t, "bad.json", `{"dass_raw": {"D": 1, "A": 1, "S": 1}}`)
	tests := []struct {
		name string
		args []string
	}{
		{"no source", []string{"analyze"}},
		{"both sources", []string{"analyze", "--input", misspelled, "--user", "u1"}},
		{"unknown field", []string{"analyze", "--input", misspelled}},
		{"missing file", []string{"analyze", "--input", filepath.Join(t.TempDir(), "none.json")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, append([]string{"--config", cfg}, tt.args...)...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestRecordAnalyzeHistory(t *testing.T) {
	cfg := setup(t)
	orig := timeNow
	t.Cleanup(func() { timeNow = orig })
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return now }

	input := writeFile(t, "in.json", `{"dass21_raw": {"D": 10, "A": 8, "S": 12}, "mbti": "INTJ"}`)
	out, err := run(t, "--config", cfg, "record", "--user", "u1", "--input", input, "--at", "2026-03-01T10:00:00Z")
	if err != nil {
		t.Fatalf("record error: %v", err)
	}
	if !strings.Contains(out, "Recorded 2 instrument(s) for u1") {
		t.Errorf("record output = %q", out)
	}

	out, err = run(t, "--config", cfg, "analyze", "--user", "u1")
	if err != nil {
		t.Fatalf("analyze --user error: %v", err)
	}
	if !strings.Contains(out, "u1") || !strings.Contains(out, string(completeness.Full)) {
		t.Errorf("batch output = %q, want a FULL row for u1", out)
	}

	out, err = run(t, "--config", cfg, "history", "--user", "u1")
	if err != nil {
		t.Fatalf("history error: %v", err)
	}
	for _, want := range []string{"ASSESSMENTS (2)", "ANALYSES (1)", "2 hours ago", "mbti"} {
		if !strings.Contains(out, want) {
			t.Errorf("history output missing %q:\n%s", want, out)
		}
	}
}

func TestAnalyzeUsers_EmptyIDFails(t *testing.T) {
	cfg := setup(t)
	out, err := run(t, "--config", cfg, "analyze", "--user", "")
	if err == nil {
		t.Fatal("an empty user id should fail the batch")
	}
	if !strings.Contains(out, "error:") {
		t.Errorf("batch output = %q, want an error row", out)
	}
}

func TestHistory_Empty(t *testing.T) {
	cfg := setup(t)
	out, err := run(t, "--config", cfg, "history", "--user", "nobody")
	if err != nil {
		t.Fatalf("history error: %v", err)
	}
	if !strings.Contains(out, `No history for user "nobody".`) {
		t.Errorf("history output = %q", out)
	}
}

func TestNorms(t *testing.T) {
	cfg := setup(t)

	out, err := run(t, "--config", cfg, "norms", "--format", "json")
	if err != nil {
		t.Fatalf("norms error: %v", err)
	}
	var tables norms.Tables
	if err := json.Unmarshal([]byte(out), &tables); err != nil {
		t.Fatalf("norms output is not JSON: %v", err)
	}
	if tables.Version != norms.MustDefault().Version {
		t.Errorf("Version = %q, want embedded %q", tables.Version, norms.MustDefault().Version)
	}

	out, err = run(t, "--config", cfg, "norms", "--library")
	if err != nil {
		t.Fatalf("norms --library error: %v", err)
	}
	if !strings.Contains(out, "safety_plan") {
		t.Errorf("library YAML should list safety_plan:\n%s", out)
	}

	if _, err := run(t, "--config", cfg, "norms", "--format", "xml"); err == nil {
		t.Error("unknown format should be an error")
	}
}

func TestMetricsMux(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.MustNewMetrics(reg)
	m.IncFailure("load")

	srv := httptest.NewServer(metricsMux(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), `miso_analysis_failures_total{stage="load"} 1`) {
		t.Errorf("metrics body missing failure counter:\n%s", body)
	}
}
