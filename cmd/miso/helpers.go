package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/HendryAvila/miso/internal/analysis"
	"github.com/HendryAvila/miso/internal/config"
	"github.com/HendryAvila/miso/internal/norms"
	"github.com/HendryAvila/miso/internal/store"
)

// env is what a one-shot command needs: configuration, a logger and the
// loaded tables.
type env struct {
	cfg    config.Config
	logger *slog.Logger
	tables *norms.Tables
}

func (a *app) load() (*env, error) {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return nil, err
	}
	tables, err := norms.LoadFiles(cfg.NormsFile, cfg.LibraryFile)
	if err != nil {
		return nil, fmt.Errorf("loading norm tables: %w", err)
	}
	return &env{cfg: cfg, logger: a.logger(cfg.Level()), tables: tables}, nil
}

func (e *env) engine() *analysis.Engine {
	return analysis.New(e.tables, analysis.WithLogger(e.logger))
}

func (e *env) openStore() (*store.Store, error) {
	st, err := store.New(store.Config{DataDir: e.cfg.DataDir, HistoryLimit: e.cfg.HistoryLimit})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return st, nil
}

// readJSON decodes a file strictly; unknown fields are errors so that a
// misspelled instrument key is not silently dropped.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
