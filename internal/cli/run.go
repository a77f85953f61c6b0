// internal/cli/run.go
package microbench

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mwiater/microbench/internal/appconfig"
	"github.com/mwiater/microbench/internal/baseline"
	"github.com/mwiater/microbench/internal/benchmark"
	"github.com/mwiater/microbench/internal/logging"
	"github.com/mwiater/microbench/internal/metrics"
	"github.com/mwiater/microbench/internal/sampler"
)

var (
	compareBaseline bool
	saveBaseline    bool
	runSuite        = benchmark.RunSuite
)

// runCmd implements 'run', which measures catalogue workloads one after
// another and writes a results file.
var runCmd = &cobra.Command{
	Use:   "run [workload...]",
	Short: "Benchmark catalogue workloads (default: all)",
	Long: `The 'run' command measures each named workload until its timings are stable,
prints the summaries and writes them to the data directory. With --baseline each
result is compared against the stored baseline; --save-baseline stores the new
results as the baseline.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if cfg == nil {
			return errors.New("configuration is not initialized")
		}
		return runBenchmarks(cmd, *cfg, args)
	},
}

func init() {
	runCmd.Flags().BoolVar(&compareBaseline, "baseline", false, "compare results against the stored baseline")
	runCmd.Flags().BoolVar(&saveBaseline, "save-baseline", false, "store results as the new baseline")
	rootCmd.AddCommand(runCmd)
}

func runBenchmarks(cmd *cobra.Command, cfg appconfig.Config, names []string) error {
	out := cmd.OutOrStdout()

	var opts []benchmark.RunOption
	if cfg.Debug {
		opts = append(opts, benchmark.WithObserver(debugObserver))
	}

	suite, err := runSuite(cmd.Context(), cfg, names, opts...)
	if suite != nil {
		for _, res := range suite.Results {
			fmt.Fprintln(out, renderResult(res))
		}
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nResults written to %s\n", suite.Path)

	if err := exportMetrics(cfg, suite.Results); err != nil {
		return err
	}
	if compareBaseline || saveBaseline {
		return applyBaseline(cmd, cfg, suite.Results, out)
	}
	return nil
}

func debugObserver(ev sampler.Evaluation) {
	logging.LogEvent("[SAMPLER] batch %d: runs=%d trials=%d dispersion=%.3f%% clocks=%.1f stable=%v next=%s",
		ev.Batch, ev.Runs, ev.Trials, ev.Dispersion*100, ev.Clocks, ev.Stable, ev.Next)
}

func exportMetrics(cfg appconfig.Config, results []*benchmark.Result) error {
	if cfg.MetricsFile == "" {
		return nil
	}
	recorder := metrics.GetInstance()
	for _, res := range results {
		if err := recorder.Record(res); err != nil {
			return err
		}
	}
	return recorder.WriteTextfile(cfg.MetricsFile)
}

func applyBaseline(cmd *cobra.Command, cfg appconfig.Config, results []*benchmark.Result, out io.Writer) error {
	store, err := baseline.Open(cfg.BaselineDir())
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	if compareBaseline {
		fmt.Fprintln(out)
		for _, res := range results {
			cmp, err := store.CompareToBaseline(ctx, res, cfg.SignificanceLevel())
			if errors.Is(err, baseline.ErrNotFound) {
				fmt.Fprintf(out, "%s  %s\n", titleStyle.Render(res.Workload), warnText("no baseline"))
				continue
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderComparison(res.Workload, cmp))
		}
	}
	if saveBaseline {
		for _, res := range results {
			if err := store.Save(ctx, res); err != nil {
				return err
			}
		}
		fmt.Fprintf(out, "Saved %d baseline(s) to %s\n", len(results), cfg.BaselineDir())
	}
	return nil
}
