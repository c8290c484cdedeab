// Package config loads the runtime configuration from defaults, an optional
// miso.yaml file and MISO_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override (MISO_DATA_DIR, ...).
const EnvPrefix = "MISO"

// Config is the runtime configuration.
type Config struct {
	// DataDir holds the SQLite database.
	DataDir string `mapstructure:"data_dir"`
	// NormsFile and LibraryFile override the embedded tables when set.
	NormsFile   string `mapstructure:"norms_file"`
	LibraryFile string `mapstructure:"library_file"`
	LogLevel    string `mapstructure:"log_level"`
	// Parallel bounds concurrent analyses in a batch.
	Parallel int `mapstructure:"parallel"`
	// HistoryLimit caps the administrations loaded per instrument.
	HistoryLimit int `mapstructure:"history_limit"`
	// MetricsAddr, when set, serves Prometheus metrics over HTTP during serve.
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:      filepath.Join(home, ".miso"),
		LogLevel:     "info",
		Parallel:     4,
		HistoryLimit: 50,
	}
}

// Load resolves the configuration. An explicit file must exist; without
// one, miso.yaml is looked up in the working directory and the default data
// directory and skipped when absent.
func Load(file string) (Config, error) {
	def := Default()
	v := viper.New()
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("norms_file", def.NormsFile)
	v.SetDefault("library_file", def.LibraryFile)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("parallel", def.Parallel)
	v.SetDefault("history_limit", def.HistoryLimit)
	v.SetDefault("metrics_addr", def.MetricsAddr)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("miso")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(def.DataDir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: data_dir is required")
	}
	if c.Parallel < 1 {
		return fmt.Errorf("config: parallel must be >= 1, got %d", c.Parallel)
	}
	if c.HistoryLimit < 1 {
		return fmt.Errorf("config: history_limit must be >= 1, got %d", c.HistoryLimit)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps debug|info|warn|error onto a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("config: log_level %q: want debug, info, warn or error", s)
	}
	return l, nil
}

// Level is the configured log level; invalid values fall back to info.
func (c Config) Level() slog.Level {
	l, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}
