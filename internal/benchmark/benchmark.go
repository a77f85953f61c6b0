// internal/benchmark/benchmark.go
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mwiater/microbench/internal/logging"
	"github.com/mwiater/microbench/internal/sampler"
	"github.com/mwiater/microbench/internal/stats"
	"github.com/mwiater/microbench/internal/timesource"
)

const tracerName = "microbench.benchmark"

// ErrInvalidDivisor is returned when a run is configured with a divisor <= 0.
var ErrInvalidDivisor = errors.New("divisor must be > 0")

type runConfig struct {
	iterations   uint64
	runs         int
	divisor      float64
	perIteration bool
	warmupMillis int
	thresholds   sampler.Thresholds
	observer     sampler.Observer
}

// RunOption configures a Runner.
type RunOption func(*runConfig)

// WithIterations sets how many consecutive workload calls one attempt times.
func WithIterations(n uint64) RunOption {
	return func(c *runConfig) { c.iterations = n }
}

// WithRuns sets the initial number of trials per batch.
func WithRuns(n int) RunOption {
	return func(c *runConfig) { c.runs = n }
}

// WithDivisor divides every reported duration by d, typically the number of
// logical operations one workload call performs.
func WithDivisor(d float64) RunOption {
	return func(c *runConfig) { c.divisor = d }
}

// WithPerIteration reports durations per workload call instead of per attempt.
func WithPerIteration(v bool) RunOption {
	return func(c *runConfig) { c.perIteration = v }
}

// WithWarmup sleeps ms milliseconds on the time source before sampling.
func WithWarmup(ms int) RunOption {
	return func(c *runConfig) { c.warmupMillis = ms }
}

func WithThresholds(th sampler.Thresholds) RunOption {
	return func(c *runConfig) { c.thresholds = th }
}

// WithObserver receives every batch evaluation.
func WithObserver(obs sampler.Observer) RunOption {
	return func(c *runConfig) { c.observer = obs }
}

// Runner measures workloads against one time source. Runs on the same Runner
// must not overlap.
type Runner struct {
	source timesource.TimeSource
	cfg    runConfig
}

// NewRunner returns a Runner with 1000 iterations, 10 runs, divisor 1, no
// warm-up and the default sampler thresholds unless overridden.
func NewRunner(source timesource.TimeSource, opts ...RunOption) *Runner {
	cfg := runConfig{
		iterations: 1000,
		runs:       10,
		divisor:    1,
		thresholds: sampler.DefaultThresholds(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Runner{source: source, cfg: cfg}
}

func (r *Runner) Source() timesource.TimeSource { return r.source }

// Run warms up, samples workload until stable (or given up) and returns the
// summary normalised by the divisor.
func (r *Runner) Run(ctx context.Context, name string, workload func()) (*Result, error) {
	if !(r.cfg.divisor > 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidDivisor, r.cfg.divisor)
	}
	if r.source == nil {
		return nil, fmt.Errorf("%w: nil time source", sampler.ErrInvalidConfig)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "benchmark.Runner.Run",
		trace.WithAttributes(
			attribute.String("benchmark.workload", name),
			attribute.String("benchmark.timer", r.source.Name()),
			attribute.Float64("benchmark.divisor", r.cfg.divisor),
		),
	)
	defer span.End()

	s, err := sampler.New(r.source, sampler.Config{
		Iterations:   r.cfg.iterations,
		Runs:         r.cfg.runs,
		PerIteration: r.cfg.perIteration,
		Thresholds:   r.cfg.thresholds,
	}, r.cfg.observer)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid configuration")
		return nil, err
	}

	started := time.Now()
	r.source.Calibrate()
	if r.cfg.warmupMillis > 0 {
		r.source.SleepMillis(r.cfg.warmupMillis)
	}

	sampled, err := s.Sample(ctx, workload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("benchmark %s: %w", name, err)
	}

	k := 1 / r.cfg.divisor
	samples := make([]float64, len(sampled.Samples))
	for i, v := range sampled.Samples {
		samples[i] = v * k
	}

	result := &Result{
		ID:           uuid.NewString(),
		Workload:     name,
		Timer:        r.source.Name(),
		Factor:       r.source.Factor(),
		Iterations:   r.cfg.iterations,
		Runs:         r.cfg.runs,
		Divisor:      r.cfg.divisor,
		PerIteration: r.cfg.perIteration,
		State:        sampled.State,
		Batches:      sampled.Batches,
		FinalRuns:    sampled.Runs,
		Unstable:     sampled.Unstable,
		Dropped:      sampled.Dropped,
		Summary:      sampled.Summary.Scale(k),
		Samples:      samples,
		StartedAt:    started,
		Elapsed:      time.Since(started),
	}

	if result.GivenUp() {
		logging.LogWarning("[BENCHMARK] %s did not stabilise after %d batches; summary may be noisy", name, result.Batches)
	}
	logging.LogMeasurement(name, result.Timer, measurementFields(result))

	span.SetAttributes(
		attribute.String("benchmark.state", result.State.String()),
		attribute.Int("benchmark.batches", result.Batches),
		attribute.Float64("benchmark.mean_ms", result.Summary.Mean),
	)
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func measurementFields(r *Result) map[string]float64 {
	s := r.Summary
	return map[string]float64{
		"min":     s.Min,
		"q1":      s.Q1,
		"median":  s.Median,
		"q3":      s.Q3,
		"max":     s.Max,
		"mean":    s.Mean,
		"stddev":  s.StdDev(),
		"runs":    float64(r.FinalRuns),
		"batches": float64(r.Batches),
	}
}

// Compare tests whether candidate differs from base using their per-trial
// samples. Results measured with different settings are still compared, with
// a warning, since their samples are in different units.
func Compare(base, candidate *Result, alpha float64) (stats.Comparison, error) {
	if base == nil || candidate == nil {
		return stats.Comparison{}, stats.ErrNoSamples
	}
	if diffs := Mismatch(base, candidate); len(diffs) > 0 {
		logging.LogWarning("[BENCHMARK] %s: comparing results measured with different settings (%s)",
			candidate.Workload, strings.Join(diffs, ", "))
	}
	return stats.Compare(base.Samples, candidate.Samples, alpha)
}

// Mismatch lists the settings that change the unit of the samples and differ
// between base and candidate, as "name base -> candidate".
func Mismatch(base, candidate *Result) []string {
	var diffs []string
	if base.Iterations != candidate.Iterations {
		diffs = append(diffs, fmt.Sprintf("iterations %d -> %d", base.Iterations, candidate.Iterations))
	}
	if base.PerIteration != candidate.PerIteration {
		diffs = append(diffs, fmt.Sprintf("perIteration %v -> %v", base.PerIteration, candidate.PerIteration))
	}
	if base.Divisor != candidate.Divisor {
		diffs = append(diffs, fmt.Sprintf("divisor %g -> %g", base.Divisor, candidate.Divisor))
	}
	return diffs
}
