package benchmark

import (
	"context"
	"fmt"
	"strings"

	"github.com/mwiater/microbench/internal/appconfig"
	"github.com/mwiater/microbench/internal/logging"
	"github.com/mwiater/microbench/internal/timesource"
	"github.com/mwiater/microbench/internal/workloads"
)

var (
	newTimeSource  = timesource.New
	lookupWorkload = workloads.Lookup
	writeResultsFn = WriteResults
)

// Suite is the outcome of RunSuite.
type Suite struct {
	Results []*Result
	Path    string
}

// RunSuite measures the named catalogue workloads one after another (all of
// them when names is empty) and writes a results file to the data directory.
// A configured divisor overrides each workload's own divisor.
func RunSuite(ctx context.Context, cfg appconfig.Config, names []string, opts ...RunOption) (*Suite, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if len(names) == 0 {
		names = workloads.Names()
	}

	selected := make([]workloads.Workload, 0, len(names))
	for _, name := range names {
		w, err := lookupWorkload(name)
		if err != nil {
			return nil, err
		}
		selected = append(selected, w)
	}

	kind, err := timesource.ParseKind(cfg.TimerKind())
	if err != nil {
		return nil, err
	}
	source, err := newTimeSource(kind)
	if err != nil {
		return nil, fmt.Errorf("create time source: %w", err)
	}

	logging.LogEvent("[BENCHMARK] running %s with timer %s (%d iterations, %d runs)",
		strings.Join(names, ", "), source.Name(), cfg.IterationCount(), cfg.RunCount())

	suite := &Suite{Results: make([]*Result, 0, len(selected))}
	for i, w := range selected {
		divisor := w.Divisor
		if cfg.Divisor > 0 {
			divisor = cfg.Divisor
		}
		iterations := cfg.IterationCount()
		if w.MaxIterations > 0 && iterations > w.MaxIterations {
			iterations = w.MaxIterations
		}
		runOpts := []RunOption{
			WithIterations(iterations),
			WithRuns(cfg.RunCount()),
			WithDivisor(divisor),
			WithPerIteration(cfg.PerIteration),
			WithThresholds(cfg.Thresholds()),
		}
		// the first workload absorbs the warm-up
		if i == 0 {
			runOpts = append(runOpts, WithWarmup(cfg.WarmupMillis))
		}
		runner := NewRunner(source, append(runOpts, opts...)...)

		result, err := runner.Run(ctx, w.Name, w.Fn)
		if err != nil {
			return suite, err
		}
		suite.Results = append(suite.Results, result)
	}

	path, err := writeResultsFn(cfg.DataDirPath(), cfg.ResultFormat(), suite.Results)
	if err != nil {
		return suite, err
	}
	suite.Path = path
	return suite, nil
}
