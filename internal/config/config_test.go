package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Parallel != 4 || cfg.HistoryLimit != 50 || cfg.LogLevel != "info" {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
	if cfg.NormsFile != "" {
		t.Errorf("NormsFile = %q, want embedded tables", cfg.NormsFile)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	file := filepath.Join(dir, "miso.yaml")
	body := "data_dir: /var/lib/miso\nparallel: 8\nlog_level: debug\n"
	if err := os.WriteFile(file, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MISO_PARALLEL", "2")
	t.Setenv("MISO_METRICS_ADDR", "127.0.0.1:9464")

	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DataDir != "/var/lib/miso" {
		t.Errorf("DataDir = %q, want /var/lib/miso", cfg.DataDir)
	}
	if cfg.Parallel != 2 {
		t.Errorf("Parallel = %d, want env override 2", cfg.Parallel)
	}
	if cfg.MetricsAddr != "127.0.0.1:9464" {
		t.Errorf("MetricsAddr = %q, want env value", cfg.MetricsAddr)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("Level() = %v, want debug", cfg.Level())
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("an explicit missing file should be an error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"zero parallel", func(c *Config) { c.Parallel = 0 }},
		{"zero history", func(c *Config) { c.HistoryLimit = 0 }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mod(&c)
			if err := c.Validate(); err == nil {
				t.Errorf("Validate(%+v) = nil, want error", c)
			}
		})
	}
}
