package benchmark

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwiater/microbench/internal/appconfig"
	"github.com/mwiater/microbench/internal/sampler"
	"github.com/mwiater/microbench/internal/stats"
	"github.com/mwiater/microbench/internal/timesource"
)

// fixedSource reports a constant duration per attempt and records sleeps.
type fixedSource struct {
	millis     float64
	factor     float64
	slept      []int
	calibrated int
}

func (f *fixedSource) Name() string                                  { return "fixed" }
func (f *fixedSource) Now() timesource.RawTimestamp                  { return 0 }
func (f *fixedSource) ElapsedMillis(timesource.RawTimestamp) float64 { return f.millis }
func (f *fixedSource) SleepMillis(ms int)                            { f.slept = append(f.slept, ms) }
func (f *fixedSource) Calibrate()                                    { f.calibrated++ }
func (f *fixedSource) Factor() float64                               { return f.factor }

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Model:One":       "model_one",
		"  Model Two  ":   "model-two",
		"Model--Three!!":  "model-three",
		"__Mixed__Case__": "mixed__case",
		"sha256-1k":       "sha256-1k",
	}
	for input, expected := range cases {
		if got := Slugify(input); got != expected {
			t.Fatalf("Slugify(%q) = %q, want %q", input, got, expected)
		}
	}
}

func TestRunAppliesDivisor(t *testing.T) {
	src := &fixedSource{millis: 8, factor: 0.001}
	r := NewRunner(src, WithIterations(2), WithRuns(3), WithDivisor(4), WithWarmup(25))

	res, err := r.Run(context.Background(), "fixed", func() {})
	require.NoError(t, err)

	assert.Equal(t, sampler.StateStable, res.State)
	assert.Equal(t, 2.0, res.Summary.Mean)
	assert.Equal(t, 2.0, res.Summary.Median)
	assert.Equal(t, []float64{2, 2, 2}, res.Samples)
	assert.Equal(t, 4.0, res.Divisor)
	assert.Equal(t, "fixed", res.Timer)
	assert.Equal(t, 0.001, res.Factor)
	assert.Equal(t, []int{25}, src.slept)
	assert.GreaterOrEqual(t, src.calibrated, 1)
	_, err = uuid.Parse(res.ID)
	assert.NoError(t, err)
}

func TestRunDivisorIsScaleOfRawSummary(t *testing.T) {
	src := &fixedSource{millis: 3, factor: 0.001}
	raw, err := NewRunner(src, WithIterations(1), WithRuns(2)).Run(context.Background(), "raw", func() {})
	require.NoError(t, err)
	scaled, err := NewRunner(src, WithIterations(1), WithRuns(2), WithDivisor(1000)).Run(context.Background(), "scaled", func() {})
	require.NoError(t, err)
	assert.Equal(t, raw.Summary.Scale(1.0/1000), scaled.Summary)
}

func TestRunRejectsInvalidDivisor(t *testing.T) {
	calls := 0
	for _, d := range []float64{0, -1} {
		_, err := NewRunner(&fixedSource{millis: 1, factor: 1}, WithDivisor(d)).Run(context.Background(), "bad", func() { calls++ })
		assert.ErrorIs(t, err, ErrInvalidDivisor)
	}
	assert.Zero(t, calls)
}

func TestRunPropagatesSamplerErrors(t *testing.T) {
	_, err := NewRunner(&fixedSource{millis: 1, factor: 1}, WithRuns(0)).Run(context.Background(), "bad", func() {})
	assert.ErrorIs(t, err, sampler.ErrInvalidConfig)

	_, err = NewRunner(&fixedSource{millis: timesource.Unmeasurable}).Run(context.Background(), "broken", func() {})
	assert.ErrorIs(t, err, sampler.ErrUnmeasurable)
}

func TestCompareResults(t *testing.T) {
	base := &Result{Samples: []float64{10, 10.2, 9.9, 10.1, 10, 10.3, 9.8, 10.1}}
	cand := &Result{Samples: []float64{5, 5.1, 4.9, 5.05, 5, 5.2, 4.95, 5.1}}
	cmp, err := Compare(base, cand, 0.05)
	require.NoError(t, err)
	assert.Equal(t, stats.VerdictFaster, cmp.Verdict)

	_, err = Compare(nil, cand, 0.05)
	assert.ErrorIs(t, err, stats.ErrNoSamples)
}

func TestMismatch(t *testing.T) {
	base := &Result{Iterations: 1000, Divisor: 1}
	assert.Empty(t, Mismatch(base, &Result{Iterations: 1000, Divisor: 1}))

	candidate := &Result{Iterations: 10, PerIteration: true, Divisor: 2}
	diffs := Mismatch(base, candidate)
	assert.Equal(t, []string{
		"iterations 1000 -> 10",
		"perIteration false -> true",
		"divisor 1 -> 2",
	}, diffs)

	base.Samples = []float64{1, 2, 3}
	candidate.Samples = []float64{1, 2, 3}
	_, err := Compare(base, candidate, 0.05)
	assert.NoError(t, err, "differing settings warn but still compare")
}

func sampleResults(t *testing.T) []*Result {
	t.Helper()
	src := &fixedSource{millis: 1.5, factor: 0.001}
	a, err := NewRunner(src, WithIterations(5), WithRuns(2)).Run(context.Background(), "Alpha:One", func() {})
	require.NoError(t, err)
	b, err := NewRunner(src, WithIterations(5), WithRuns(2), WithDivisor(2)).Run(context.Background(), "beta", func() {})
	require.NoError(t, err)
	return []*Result{a, b}
}

func TestWriteAndReadResults(t *testing.T) {
	results := sampleResults(t)

	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			dir := t.TempDir()
			path, err := WriteResults(dir, format, results)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, "alpha_one-beta-5."+format), path)

			back, err := ReadResults(path)
			require.NoError(t, err)
			require.Len(t, back, 2)
			for i := range results {
				assert.Equal(t, results[i].ID, back[i].ID)
				assert.Equal(t, results[i].Workload, back[i].Workload)
				assert.Equal(t, results[i].State, back[i].State)
				assert.Equal(t, results[i].Summary, back[i].Summary)
				assert.Equal(t, results[i].Samples, back[i].Samples)
				assert.Equal(t, results[i].Elapsed, back[i].Elapsed)
				assert.True(t, results[i].StartedAt.Equal(back[i].StartedAt))
			}
		})
	}
}

func TestWriteResultsCSV(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteResults(dir, "csv", sampleResults(t))
	require.NoError(t, err)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "Alpha:One", rows[1][1])
	assert.Equal(t, "stable", rows[1][3])
	assert.Equal(t, "0.75", rows[2][16], "beta mean is 1.5ms / 2")

	_, err = ReadResults(path)
	assert.Error(t, err)
}

func TestWriteResultsErrors(t *testing.T) {
	_, err := WriteResults(t.TempDir(), "json", nil)
	assert.Error(t, err)
	_, err = WriteResults(t.TempDir(), "xml", []*Result{{Workload: "x"}})
	assert.Error(t, err)
}

func TestRunSuite(t *testing.T) {
	src := &fixedSource{millis: 2, factor: 0.001}
	prevSource := newTimeSource
	newTimeSource = func(timesource.Kind) (timesource.TimeSource, error) { return src, nil }
	t.Cleanup(func() { newTimeSource = prevSource })

	cfg := appconfig.Default()
	cfg.Iterations = 1
	cfg.Runs = 2
	cfg.WarmupMillis = 10
	cfg.DataDir = t.TempDir()

	suite, err := RunSuite(context.Background(), cfg, []string{"noop", "map-insert-1k"})
	require.NoError(t, err)
	require.Len(t, suite.Results, 2)
	assert.Equal(t, "noop", suite.Results[0].Workload)
	assert.Equal(t, 2.0, suite.Results[0].Summary.Mean)
	assert.Equal(t, 1024.0, suite.Results[1].Divisor, "catalogue divisor is used")
	assert.InDelta(t, 2.0/1024, suite.Results[1].Summary.Mean, 1e-15)
	assert.Equal(t, []int{10}, src.slept, "warm-up happens once")
	assert.True(t, strings.HasPrefix(filepath.Base(suite.Path), "noop-map-insert-1k"))
	_, err = os.Stat(suite.Path)
	assert.NoError(t, err)

	cfg.Divisor = 2
	suite, err = RunSuite(context.Background(), cfg, []string{"map-insert-1k"})
	require.NoError(t, err)
	assert.Equal(t, 2.0, suite.Results[0].Divisor, "configured divisor wins")
}

func TestRunSuiteCapsSlowWorkloadIterations(t *testing.T) {
	src := &fixedSource{millis: 2, factor: 0.001}
	prevSource := newTimeSource
	newTimeSource = func(timesource.Kind) (timesource.TimeSource, error) { return src, nil }
	t.Cleanup(func() { newTimeSource = prevSource })

	cfg := appconfig.Default()
	cfg.Runs = 1
	cfg.InnerRepeats = 1
	cfg.WarmupMillis = 0
	cfg.DataDir = t.TempDir()

	suite, err := RunSuite(context.Background(), cfg, []string{"sleep-1ms", "noop"})
	require.NoError(t, err)
	require.Len(t, suite.Results, 2)
	assert.Equal(t, uint64(1), suite.Results[0].Iterations)
	assert.Equal(t, appconfig.DefaultIterations, suite.Results[1].Iterations)
}

func TestRunSuiteRejectsInvalidConfig(t *testing.T) {
	created := false
	prevSource := newTimeSource
	newTimeSource = func(timesource.Kind) (timesource.TimeSource, error) {
		created = true
		return &fixedSource{millis: 1, factor: 0.001}, nil
	}
	t.Cleanup(func() { newTimeSource = prevSource })

	for _, mutate := range []func(*appconfig.Config){
		func(c *appconfig.Config) { c.Iterations = 0 },
		func(c *appconfig.Config) { c.Runs = -3 },
	} {
		cfg := appconfig.Default()
		cfg.DataDir = t.TempDir()
		mutate(&cfg)
		_, err := RunSuite(context.Background(), cfg, []string{"noop"})
		assert.Error(t, err)
	}
	assert.False(t, created, "no time source before validation passes")
}

func TestRunSuiteUnknownWorkload(t *testing.T) {
	cfg := appconfig.Default()
	cfg.DataDir = t.TempDir()
	_, err := RunSuite(context.Background(), cfg, []string{"nope"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}
