// Public domain.

// Package config holds the monitor's configuration.
//
// Configuration is a YAML file decoded over Default().  Unknown keys are
// an error.  Every component receives the values it needs from here; no
// package keeps paths or tolerances of its own beyond its defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/justincely/cosmo/internal/anomaly"
	"github.com/justincely/cosmo/internal/corpus"
	"github.com/justincely/cosmo/internal/flash"
	"github.com/justincely/cosmo/internal/trend"
)

// Config is the whole configuration.
type Config struct {
	Paths      PathsConfig      `yaml:"paths"`
	Walk       WalkConfig       `yaml:"walk"`
	Processing ProcessingConfig `yaml:"processing"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// PathsConfig locates inputs and outputs.  Database is relative to
// MonitorDir unless absolute.
type PathsConfig struct {
	CorpusRoot string `yaml:"corpus_root"`
	LrefDir    string `yaml:"lref_dir"`
	MonitorDir string `yaml:"monitor_dir"`
	Database   string `yaml:"database"`
}

// WalkConfig controls the corpus walk.
type WalkConfig struct {
	Exclude   []string `yaml:"exclude"`
	LeafDepth int      `yaml:"leaf_depth"` // 0 accepts files at any depth
	Dedup     string   `yaml:"dedup"`      // basename, path or exposure
	Workers   int      `yaml:"workers"`    // 0 uses GOMAXPROCS
}

// ProcessingConfig holds measurement constants and tolerances.
type ProcessingConfig struct {
	FrameSize      int            `yaml:"frame_size"`
	DriftTolerance float64        `yaml:"drift_tolerance"`
	Bands          []anomaly.Band `yaml:"bands"`
	PositiveOnly   []string       `yaml:"positive_only"`
}

// Default returns the configuration of the production monitor.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			CorpusRoot: "/smov/cos/Data",
			LrefDir:    "/grp/hst/cdbs/lref",
			MonitorDir: "/grp/hst/cos/Monitors/Shifts",
			Database:   "shifts.db",
		},
		Walk: WalkConfig{
			Exclude:   append([]string(nil), corpus.DefaultExclude...),
			LeafDepth: corpus.DefaultLeafDepth,
			Dedup:     string(corpus.DedupExposure),
		},
		Processing: ProcessingConfig{
			FrameSize:      flash.DefaultFrameSize,
			DriftTolerance: anomaly.DefaultDriftTolerance,
			Bands:          append([]anomaly.Band(nil), anomaly.DefaultBands...),
			PositiveOnly:   append([]string(nil), trend.DefaultPositiveOnly...),
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the configuration at path over the defaults.  An empty path
// gives the defaults.  The environment variable lref, when set, overrides
// paths.lref_dir.  The result is validated.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if err := c.decode(f); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if d := os.Getenv("lref"); d != "" {
		c.Paths.LrefDir = d
	}
	if err := c.Validate(); err != nil {
		if path != "" {
			err = fmt.Errorf("%s: %w", path, err)
		}
		return nil, err
	}
	return c, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks values that would otherwise fail deep in a run.
func (c *Config) Validate() error {
	switch {
	case c.Paths.CorpusRoot == "":
		return errors.New("paths.corpus_root is empty")
	case c.Paths.MonitorDir == "":
		return errors.New("paths.monitor_dir is empty")
	case c.Walk.LeafDepth < 0:
		return fmt.Errorf("walk.leaf_depth %d is negative", c.Walk.LeafDepth)
	case c.Walk.Workers < 0:
		return fmt.Errorf("walk.workers %d is negative", c.Walk.Workers)
	case c.Processing.FrameSize <= 0:
		return fmt.Errorf("processing.frame_size %d is not positive", c.Processing.FrameSize)
	case c.Processing.DriftTolerance <= 0:
		return fmt.Errorf("processing.drift_tolerance %g is not positive", c.Processing.DriftTolerance)
	}
	if _, err := corpus.ParseDedupMode(c.Walk.Dedup); err != nil {
		return fmt.Errorf("walk.dedup: %w", err)
	}
	for _, b := range c.Processing.Bands {
		if b.OptElem == "" {
			return errors.New("processing.bands: band without opt_elem")
		}
		if b.Before.Lo > b.Before.Hi || b.After.Lo > b.After.Hi {
			return fmt.Errorf("processing.bands: %s: empty range", b.OptElem)
		}
		if b.Epoch < 0 {
			return fmt.Errorf("processing.bands: %s: negative epoch", b.OptElem)
		}
	}
	return c.Logging.validate()
}

// Walker returns the corpus walker.
func (c *Config) Walker() corpus.Walker {
	return corpus.Walker{
		Root:      c.Paths.CorpusRoot,
		Exclude:   c.Walk.Exclude,
		LeafDepth: c.Walk.LeafDepth,
	}
}

// DedupMode returns the validated dedup mode.
func (c *Config) DedupMode() corpus.DedupMode {
	m, _ := corpus.ParseDedupMode(c.Walk.Dedup)
	return m
}

// Policy returns the anomaly tolerances.
func (c *Config) Policy() anomaly.Policy {
	return anomaly.Policy{
		DriftTolerance: c.Processing.DriftTolerance,
		Bands:          c.Processing.Bands,
	}
}

// TrendOptions returns the aggregation options.
func (c *Config) TrendOptions() trend.Options {
	return trend.Options{PositiveOnly: c.Processing.PositiveOnly}
}

// Output file names in the monitor directory.
const (
	DriftLogName    = "drift.txt"
	DifferencesName = "shift_data.txt"
	AnomaliesName   = "anomalies.txt"
	TrendsName      = "trends.txt"
	LegacyTableName = "all_shifts.fits"
)

// MonitorPath returns name within the monitor directory.
func (c *Config) MonitorPath(name string) string {
	return filepath.Join(c.Paths.MonitorDir, name)
}

// DatabasePath returns the shift database location.
func (c *Config) DatabasePath() string {
	if filepath.IsAbs(c.Paths.Database) {
		return c.Paths.Database
	}
	return c.MonitorPath(c.Paths.Database)
}
