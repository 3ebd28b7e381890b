// Package runner holds host-side run configuration: everything around the
// core interpreter (instrumentation destinations, budgets, EOF policy) that
// the CLI resolves before a run starts.
package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// DataDir is the root for run artifacts (trace logs, run index).
	DataDir string `yaml:"data_dir"`

	// MaxCycles caps the run as a safety net; 0 means unbounded.
	MaxCycles uint64 `yaml:"max_cycles"`

	// EOFPolicy is "halt" or "zero".
	EOFPolicy string `yaml:"eof_policy"`

	// Pace is an optional per-cycle delay (e.g. "50ms") for live observing.
	Pace string `yaml:"pace"`

	TraceLog TraceLogSpec `yaml:"trace_log"`
	Index    IndexSpec    `yaml:"index"`
	Observer ObserverSpec `yaml:"observer"`
}

type TraceLogSpec struct {
	Enabled bool `yaml:"enabled"`
	// Dir overrides <data_dir>/traces.
	Dir string `yaml:"dir"`
}

type IndexSpec struct {
	Enabled bool `yaml:"enabled"`
	// Path overrides <data_dir>/runs.db.
	Path string `yaml:"path"`
}

type ObserverSpec struct {
	Enabled bool `yaml:"enabled"`
	// Listen is the HTTP listen address for bootstrap + WS endpoints.
	Listen string `yaml:"listen"`
}

// Load reads the config at path, or returns defaults when path is empty.
func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("velo.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("velo.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		DataDir:   "./data",
		EOFPolicy: "halt",
		Observer:  ObserverSpec{Listen: "127.0.0.1:7321"},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./data"
	}
	if strings.TrimSpace(c.EOFPolicy) == "" {
		c.EOFPolicy = "halt"
	}
	if strings.TrimSpace(c.TraceLog.Dir) == "" {
		c.TraceLog.Dir = filepath.Join(c.DataDir, "traces")
	}
	if strings.TrimSpace(c.Index.Path) == "" {
		c.Index.Path = filepath.Join(c.DataDir, "runs.db")
	}
	if strings.TrimSpace(c.Observer.Listen) == "" {
		c.Observer.Listen = "127.0.0.1:7321"
	}
}

func (c Config) Validate() error {
	switch c.EOFPolicy {
	case "halt", "zero":
	default:
		return fmt.Errorf("eof_policy must be \"halt\" or \"zero\", got %q", c.EOFPolicy)
	}
	if _, err := c.PaceDuration(); err != nil {
		return err
	}
	return nil
}

// PaceDuration parses the pace setting; empty means no pacing.
func (c Config) PaceDuration() (time.Duration, error) {
	if strings.TrimSpace(c.Pace) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Pace)
	if err != nil {
		return 0, fmt.Errorf("pace: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("pace must not be negative")
	}
	return d, nil
}
