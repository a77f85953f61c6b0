// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mwiater/microbench/internal/sampler"
	"github.com/mwiater/microbench/internal/stats"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.json"
	// legacyConfigPath is checked when the default path does not exist.
	legacyConfigPath = "microbench.json"

	DefaultIterations   uint64 = 1000
	DefaultRuns                = 10
	DefaultWarmupMillis        = 100
	DefaultTimer               = "auto"
	DefaultFormat              = "json"
	defaultDataDir             = "microbenchData"
	defaultLogFile             = "microbench.log"
)

// Formats lists the supported result file formats.
var Formats = []string{"json", "yaml", "csv"}

// Config represents the top-level application configuration.
type Config struct {
	Iterations   uint64  `json:"iterations,omitempty"`
	Runs         int     `json:"runs,omitempty"`
	PerIteration bool    `json:"perIteration"`
	Divisor      float64 `json:"divisor,omitempty"`
	WarmupMillis int     `json:"warmupMillis"`
	InnerRepeats int     `json:"innerRepeats,omitempty"`
	MaxRuns      int     `json:"maxRuns,omitempty"`
	Timer        string  `json:"timer,omitempty"`
	Format       string  `json:"format,omitempty"`
	DataDir      string  `json:"dataDir,omitempty"`
	LogFile      string  `json:"logFile,omitempty"`
	MetricsFile  string  `json:"metricsFile,omitempty"`
	TraceFile    string  `json:"traceFile,omitempty"`
	BaselinePath string  `json:"baselinePath,omitempty"`
	Alpha        float64 `json:"alpha,omitempty"`
	Debug        bool    `json:"debug"`
	ConfigPath   string  `json:"-"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Iterations:   DefaultIterations,
		Runs:         DefaultRuns,
		WarmupMillis: DefaultWarmupMillis,
		Timer:        DefaultTimer,
		Format:       DefaultFormat,
	}
}

// IterationCount returns the per-attempt iteration count, applying the default.
func (c Config) IterationCount() uint64 {
	if c.Iterations == 0 {
		return DefaultIterations
	}
	return c.Iterations
}

func (c Config) RunCount() int {
	if c.Runs <= 0 {
		return DefaultRuns
	}
	return c.Runs
}

// Thresholds returns the sampler thresholds with any configured overrides.
func (c Config) Thresholds() sampler.Thresholds {
	th := sampler.DefaultThresholds()
	if c.InnerRepeats > 0 {
		th.InnerRepeats = c.InnerRepeats
	}
	if c.MaxRuns > 0 {
		th.MaxRuns = c.MaxRuns
	}
	return th
}

func (c Config) TimerKind() string {
	if t := strings.TrimSpace(c.Timer); t != "" {
		return t
	}
	return DefaultTimer
}

func (c Config) ResultFormat() string {
	if f := strings.ToLower(strings.TrimSpace(c.Format)); f != "" {
		return f
	}
	return DefaultFormat
}

// DataDirPath returns the directory result files are written to.
func (c Config) DataDirPath() string {
	if dir := strings.TrimSpace(c.DataDir); dir != "" {
		return dir
	}
	return defaultDataDir
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := strings.TrimSpace(c.LogFile); path != "" {
		return path
	}
	return defaultLogFile
}

// BaselineDir returns the badger directory for stored baselines.
func (c Config) BaselineDir() string {
	if path := strings.TrimSpace(c.BaselinePath); path != "" {
		return path
	}
	return filepath.Join(c.DataDirPath(), "baseline")
}

// SignificanceLevel returns alpha for baseline comparisons.
func (c Config) SignificanceLevel() float64 {
	if c.Alpha <= 0 || c.Alpha >= 1 {
		return stats.DefaultAlpha
	}
	return c.Alpha
}

// Validate checks the values a flag or file could have set out of range.
func (c Config) Validate() error {
	if c.Iterations == 0 {
		return errors.New("iterations must be >= 1")
	}
	if c.Runs < 1 {
		return fmt.Errorf("runs must be >= 1, got %d", c.Runs)
	}
	if c.Divisor < 0 {
		return fmt.Errorf("divisor must be > 0, got %v", c.Divisor)
	}
	if c.WarmupMillis < 0 {
		return fmt.Errorf("warmupMillis must be >= 0, got %d", c.WarmupMillis)
	}
	format := c.ResultFormat()
	for _, f := range Formats {
		if f == format {
			return nil
		}
	}
	return fmt.Errorf("unsupported result format %q (want one of %s)", format, strings.Join(Formats, ", "))
}

// Load reads the application configuration from the specified path, with
// fallback to a legacy path. A missing default file yields Default().
func Load(path string) (Config, error) {
	explicit := path != ""
	if path == "" {
		path = DefaultConfigPath
	}

	config, err := loadFromPath(path)
	if err == nil {
		config.ConfigPath = path
		return config, nil
	}

	if errors.Is(err, os.ErrNotExist) {
		if explicit {
			return Config{}, fmt.Errorf("no configuration file found at %q", path)
		}
		config, legacyErr := loadFromPath(legacyConfigPath)
		if legacyErr == nil {
			config.ConfigPath = legacyConfigPath
			return config, nil
		}
		if errors.Is(legacyErr, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("could not read config file %q: %w", legacyConfigPath, legacyErr)
	}

	return Config{}, fmt.Errorf("could not read config file %q: %w", path, err)
}

// loadFromPath validates the file against the schema and decodes it over the
// defaults.
func loadFromPath(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := ValidateDocument(data); err != nil {
		return Config{}, err
	}

	config := Default()
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, err
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}
