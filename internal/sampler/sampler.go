// Package sampler repeats timed trials of a workload until the resulting
// statistics are stable.
//
// One trial times Iterations consecutive workload calls InnerRepeats times
// and keeps the fastest attempt: interference can only make a run slower, so
// the minimum is the best estimate of the true cost. A batch of Runs trials is
// summarised and evaluated; unstable batches grow the run count and sample
// again, stable batches must repeat StablePasses times in a row before the
// summary is accepted, and after MaxUnstable unstable batches the sampler gives
// up and returns the last summary.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mwiater/microbench/internal/logging"
	"github.com/mwiater/microbench/internal/stats"
	"github.com/mwiater/microbench/internal/timesource"
)

const tracerName = "microbench.sampler"

var (
	// ErrInvalidConfig is returned before any measurement when a precondition
	// does not hold.
	ErrInvalidConfig = errors.New("invalid sampler configuration")
	// ErrUnmeasurable is returned when no trial in a batch could be timed.
	ErrUnmeasurable = errors.New("timer could not measure any trial")
)

// State is a sampler state. Stable and GivenUp are terminal.
type State int

const (
	StateSampling State = iota
	StateEvaluating
	StateStable
	StateGivenUp
)

func (s State) String() string {
	switch s {
	case StateSampling:
		return "sampling"
	case StateEvaluating:
		return "evaluating"
	case StateStable:
		return "stable"
	case StateGivenUp:
		return "given-up"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) Terminal() bool {
	return s == StateStable || s == StateGivenUp
}

// MarshalText lets results carry the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for _, v := range []State{StateSampling, StateEvaluating, StateStable, StateGivenUp} {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown sampler state %q", string(b))
}

// Thresholds are the tunables of the stability loop.
type Thresholds struct {
	InnerRepeats  int     `json:"innerRepeats" yaml:"innerRepeats"`
	MaxDispersion float64 `json:"maxDispersion" yaml:"maxDispersion"`
	Growth        float64 `json:"growth" yaml:"growth"`
	// MaxUnstable is the give-up cap. It counts every unstable batch of the
	// run, not only consecutive ones: a stable batch resets the stable
	// streak but not this count, so a run that flaps between stable and
	// unstable still terminates.
	MaxUnstable      int     `json:"maxUnstable" yaml:"maxUnstable"`
	StablePasses     int     `json:"stablePasses" yaml:"stablePasses"`
	NoiseFloorClocks float64 `json:"noiseFloorClocks" yaml:"noiseFloorClocks"`
	// MaxRuns caps run growth; 0 leaves it unbounded.
	MaxRuns int `json:"maxRuns,omitempty" yaml:"maxRuns,omitempty"`
}

// DefaultThresholds returns 16 inner repeats, a 2.5% dispersion limit, 1.2x
// growth, a 64 batch give-up cap, two stable passes and a one-tick noise floor.
func DefaultThresholds() Thresholds {
	return Thresholds{
		InnerRepeats:     16,
		MaxDispersion:    0.025,
		Growth:           1.2,
		MaxUnstable:      64,
		StablePasses:     2,
		NoiseFloorClocks: 1,
	}
}

// Config describes one sampling run.
type Config struct {
	Iterations   uint64
	Runs         int
	PerIteration bool
	Thresholds   Thresholds
}

func (c Config) Validate() error {
	th := c.Thresholds
	switch {
	case c.Iterations < 1:
		return fmt.Errorf("%w: iterations must be >= 1", ErrInvalidConfig)
	case c.Runs < 1:
		return fmt.Errorf("%w: runs must be >= 1", ErrInvalidConfig)
	case th.InnerRepeats < 1:
		return fmt.Errorf("%w: inner repeats must be >= 1", ErrInvalidConfig)
	case !(th.MaxDispersion > 0):
		return fmt.Errorf("%w: max dispersion must be > 0", ErrInvalidConfig)
	case !(th.Growth > 1):
		return fmt.Errorf("%w: growth must be > 1", ErrInvalidConfig)
	case th.MaxUnstable < 1:
		return fmt.Errorf("%w: max unstable batches must be >= 1", ErrInvalidConfig)
	case th.StablePasses < 1:
		return fmt.Errorf("%w: stable passes must be >= 1", ErrInvalidConfig)
	case th.NoiseFloorClocks < 0:
		return fmt.Errorf("%w: noise floor must be >= 0", ErrInvalidConfig)
	case th.MaxRuns < 0 || (th.MaxRuns > 0 && th.MaxRuns < c.Runs):
		return fmt.Errorf("%w: max runs must be 0 or >= runs", ErrInvalidConfig)
	}
	return nil
}

// Evaluation is reported to the Observer after every batch.
type Evaluation struct {
	Batch        int
	Runs         int
	Trials       int
	Dropped      int
	Summary      stats.Summary
	Dispersion   float64
	Clocks       float64
	Stable       bool
	StableStreak int
	Unstable     int
	Next         State
}

// Observer receives evaluations. It runs between batches, never inside a
// timed region.
type Observer func(Evaluation)

// Result is the outcome of a sampling run.
type Result struct {
	Summary  stats.Summary
	Samples  []float64
	State    State
	Batches  int
	Runs     int
	Unstable int
	Dropped  int
}

// Sampler drives the stability loop for a single workload at a time. It is
// not safe for concurrent use; trials must never overlap.
type Sampler struct {
	source   timesource.TimeSource
	cfg      Config
	observer Observer
}

// New validates cfg and returns a Sampler. A zero Thresholds value is
// replaced by DefaultThresholds.
func New(source timesource.TimeSource, cfg Config, observer Observer) (*Sampler, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: nil time source", ErrInvalidConfig)
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Sampler{source: source, cfg: cfg, observer: observer}, nil
}

func (s *Sampler) Config() Config { return s.cfg }

// Sample runs batches until the summary is stable or the sampler gives up.
// ctx is only consulted between batches.
func (s *Sampler) Sample(ctx context.Context, workload func()) (*Result, error) {
	if workload == nil {
		return nil, fmt.Errorf("%w: nil workload", ErrInvalidConfig)
	}
	th := s.cfg.Thresholds

	ctx, span := otel.Tracer(tracerName).Start(ctx, "sampler.Sample",
		trace.WithAttributes(
			attribute.String("sampler.timer", s.source.Name()),
			attribute.Int64("sampler.iterations", int64(s.cfg.Iterations)),
			attribute.Int("sampler.runs", s.cfg.Runs),
			attribute.Int("sampler.inner_repeats", th.InnerRepeats),
		),
	)
	defer span.End()

	s.source.Calibrate()
	factor := s.source.Factor()

	res := &Result{State: StateSampling}
	runs := s.cfg.Runs
	streak := 0

	for {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "sampling cancelled")
			return nil, err
		}

		samples, dropped := s.batch(runs, workload)
		res.Batches++
		res.Dropped += dropped
		if len(samples) == 0 {
			err := fmt.Errorf("%w: batch %d had %d unmeasurable trials", ErrUnmeasurable, res.Batches, dropped)
			span.RecordError(err)
			span.SetStatus(codes.Error, "unmeasurable")
			return nil, err
		}

		summary, err := stats.Summarize(samples)
		if err != nil {
			return nil, err
		}
		res.State = StateEvaluating
		res.Summary, res.Samples, res.Runs = summary, samples, runs

		ev := Evaluation{
			Batch:      res.Batches,
			Runs:       runs,
			Trials:     len(samples),
			Dropped:    dropped,
			Summary:    summary,
			Dispersion: summary.RelativeDispersion(),
			Clocks:     clocks(summary.Mean, factor),
		}
		ev.Stable = !(ev.Dispersion > th.MaxDispersion && ev.Clocks > th.NoiseFloorClocks)

		if ev.Stable {
			streak++
			if streak >= th.StablePasses {
				res.State = StateStable
			} else {
				res.State = StateSampling
			}
		} else {
			streak = 0
			res.Unstable++
			if res.Unstable >= th.MaxUnstable {
				res.State = StateGivenUp
				logging.LogWarning("[SAMPLER] giving up after %d unstable batches; returning last summary (dispersion %.2f%%, %d runs)",
					res.Unstable, ev.Dispersion*100, runs)
			} else {
				next := grow(runs, th)
				logging.LogEvent("[SAMPLER] unstable batch %d: dispersion %.2f%% > %.2f%%; runs %d -> %d",
					res.Batches, ev.Dispersion*100, th.MaxDispersion*100, runs, next)
				runs = next
				res.State = StateSampling
			}
		}
		ev.StableStreak = streak
		ev.Unstable = res.Unstable
		ev.Next = res.State

		span.AddEvent("evaluation", trace.WithAttributes(
			attribute.Int("batch", ev.Batch),
			attribute.Int("runs", ev.Runs),
			attribute.Float64("dispersion", ev.Dispersion),
			attribute.Float64("mean_ms", summary.Mean),
			attribute.String("next", ev.Next.String()),
		))
		if s.observer != nil {
			s.observer(ev)
		}

		if res.State.Terminal() {
			span.SetAttributes(
				attribute.String("sampler.state", res.State.String()),
				attribute.Int("sampler.batches", res.Batches),
				attribute.Int("sampler.final_runs", res.Runs),
			)
			span.SetStatus(codes.Ok, res.State.String())
			return res, nil
		}
	}
}

// batch runs one set of trials. Trials whose attempts were all unmeasurable
// are dropped and counted.
func (s *Sampler) batch(runs int, workload func()) ([]float64, int) {
	repeats := s.cfg.Thresholds.InnerRepeats
	samples := make([]float64, 0, runs)
	dropped := 0
	for i := 0; i < runs; i++ {
		best := timesource.Unmeasurable
		for k := 0; k < repeats; k++ {
			d := s.attempt(workload)
			if d < 0 {
				continue
			}
			if best < 0 || d < best {
				best = d
			}
		}
		if best < 0 {
			dropped++
			continue
		}
		if s.cfg.PerIteration {
			best /= float64(s.cfg.Iterations)
		}
		samples = append(samples, best)
	}
	return samples, dropped
}

// attempt is the timed region: nothing but the workload runs between the two
// counter reads.
func (s *Sampler) attempt(workload func()) float64 {
	n := s.cfg.Iterations
	start := s.source.Now()
	for j := uint64(0); j < n; j++ {
		workload()
	}
	return s.source.ElapsedMillis(start)
}

func grow(runs int, th Thresholds) int {
	next := int(float64(runs) * th.Growth)
	if next <= runs {
		next = runs + 1
	}
	if th.MaxRuns > 0 && next > th.MaxRuns {
		next = th.MaxRuns
	}
	return next
}

// clocks expresses a mean in raw counter ticks. Without a factor there is no
// noise floor to compare against.
func clocks(meanMillis, factor float64) float64 {
	if factor <= 0 {
		return math.Inf(1)
	}
	return meanMillis / factor
}
