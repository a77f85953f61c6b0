// internal/appconfig/appconfig_test.go
package appconfig

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

// TestLoad checks that a valid file overrides defaults while leaving unset
// keys at their default values, and that malformed or schema-violating files
// are rejected.
func TestLoad(t *testing.T) {
	dir := t.TempDir()
	valid := writeConfig(t, dir, "valid.json", `{
  "iterations": 250,
  "runs": 4,
  "perIteration": true,
  "timer": "monotonic",
  "format": "yaml",
  "alpha": 0.01
}`)

	cfg, err := Load(valid)
	if err != nil {
		t.Fatalf("Load() with valid config failed: %v", err)
	}
	if cfg.IterationCount() != 250 || cfg.RunCount() != 4 || !cfg.PerIteration {
		t.Fatalf("unexpected sampling config: %+v", cfg)
	}
	if cfg.WarmupMillis != DefaultWarmupMillis {
		t.Fatalf("expected default warmup %d, got %d", DefaultWarmupMillis, cfg.WarmupMillis)
	}
	if cfg.TimerKind() != "monotonic" || cfg.ResultFormat() != "yaml" {
		t.Fatalf("unexpected timer/format: %s/%s", cfg.TimerKind(), cfg.ResultFormat())
	}
	if cfg.SignificanceLevel() != 0.01 {
		t.Fatalf("expected alpha 0.01, got %v", cfg.SignificanceLevel())
	}
	if cfg.ConfigPath != valid {
		t.Fatalf("expected ConfigPath %q, got %q", valid, cfg.ConfigPath)
	}

	invalid := map[string]string{
		"broken json":    `{ "iterations": `,
		"zero runs":      `{ "runs": 0 }`,
		"bad timer":      `{ "timer": "sundial" }`,
		"bad format":     `{ "format": "xml" }`,
		"unknown key":    `{ "hosts": [] }`,
		"negative warm":  `{ "warmupMillis": -5 }`,
		"alpha too big":  `{ "alpha": 1.5 }`,
		"string iters":   `{ "iterations": "many" }`,
		"zero divisor":   `{ "divisor": 0 }`,
		"fractional run": `{ "runs": 2.5 }`,
	}
	for name, body := range invalid {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), "config.json", body)
			if _, err := Load(path); err == nil {
				t.Fatalf("Load() should have rejected %s", body)
			}
		})
	}

	if _, err := Load(filepath.Join(dir, "nonexistent.json")); err == nil {
		t.Fatal("Load() with nonexistent explicit file should have failed")
	}
}

func TestLoadDefaultPathAndFallbacks(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load without any file: %v", err)
	}
	if cfg.ConfigPath != "" || cfg.IterationCount() != DefaultIterations {
		t.Fatalf("expected defaults, got %+v", cfg)
	}

	writeConfig(t, dir, legacyConfigPath, `{ "runs": 7 }`)
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load legacy: %v", err)
	}
	if cfg.RunCount() != 7 || cfg.ConfigPath != legacyConfigPath {
		t.Fatalf("expected legacy config, got %+v", cfg)
	}

	writeConfig(t, dir, DefaultConfigPath, `{ "runs": 3 }`)
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load default: %v", err)
	}
	if cfg.RunCount() != 3 {
		t.Fatalf("default path should win over legacy, got runs=%d", cfg.RunCount())
	}
}

func TestAccessorDefaults(t *testing.T) {
	var cfg Config
	if cfg.DataDirPath() != "microbenchData" {
		t.Fatalf("DataDirPath: %q", cfg.DataDirPath())
	}
	if cfg.LogFilePath() != "microbench.log" {
		t.Fatalf("LogFilePath: %q", cfg.LogFilePath())
	}
	if cfg.BaselineDir() != filepath.Join("microbenchData", "baseline") {
		t.Fatalf("BaselineDir: %q", cfg.BaselineDir())
	}
	th := cfg.Thresholds()
	if th.InnerRepeats != 16 || th.MaxUnstable != 64 || th.MaxRuns != 0 {
		t.Fatalf("unexpected thresholds: %+v", th)
	}

	cfg.InnerRepeats = 4
	cfg.MaxRuns = 50
	th = cfg.Thresholds()
	if th.InnerRepeats != 4 || th.MaxRuns != 50 {
		t.Fatalf("overrides not applied: %+v", th)
	}
}

func TestValidate(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	for name, cfg := range map[string]Config{
		"zero iterations": {Iterations: 0, Runs: 10},
		"zero runs":       {Iterations: 10, Runs: 0},
		"negative runs":   {Iterations: 10, Runs: -3},
	} {
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	bad := Default()
	bad.Format = "xml"
	if err := bad.Validate(); err == nil {
		t.Fatal("expected format error")
	}
	bad = Default()
	bad.Divisor = -1
	if err := bad.Validate(); err == nil {
		t.Fatal("expected divisor error")
	}
}

func TestShowConfig(t *testing.T) {
	var buf bytes.Buffer
	ShowConfig(&buf, Default(), false)
	out := buf.String()
	for _, want := range []string{"No config file loaded", "Iterations:      1000", "Divisor:         per workload", "Timer:           auto", "Iterations:"} {
		if !strings.Contains(out, want) {
			t.Fatalf("ShowConfig output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	cfg := Default()
	cfg.ConfigPath = "config/config.json"
	cfg.MetricsFile = "bench.prom"
	ShowConfig(&buf, cfg, false)
	if !strings.Contains(buf.String(), "Config file: config/config.json") || !strings.Contains(buf.String(), "bench.prom") {
		t.Fatalf("ShowConfig output missing file details:\n%s", buf.String())
	}
}
