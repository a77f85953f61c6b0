package appconfig

import (
	"fmt"
	"io"

	"github.com/k0kubun/pp"
)

// ShowConfig prints the effective configuration. Resolved values (defaults
// applied) are listed first, then the raw struct is dumped with pp.
func ShowConfig(out io.Writer, cfg Config, colored bool) {
	if cfg.ConfigPath == "" {
		fmt.Fprintln(out, "No config file loaded (using defaults).")
	} else {
		fmt.Fprintf(out, "Config file: %s\n\n", cfg.ConfigPath)
	}

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintf(out, "  Iterations:      %d\n", cfg.IterationCount())
	fmt.Fprintf(out, "  Runs:            %d\n", cfg.RunCount())
	fmt.Fprintf(out, "  Per Iteration:   %v\n", cfg.PerIteration)
	if cfg.Divisor > 0 {
		fmt.Fprintf(out, "  Divisor:         %g\n", cfg.Divisor)
	} else {
		fmt.Fprintln(out, "  Divisor:         per workload")
	}
	fmt.Fprintf(out, "  Warmup:          %d ms\n", cfg.WarmupMillis)
	fmt.Fprintf(out, "  Timer:           %s\n", cfg.TimerKind())
	fmt.Fprintf(out, "  Format:          %s\n", cfg.ResultFormat())
	fmt.Fprintf(out, "  Data Dir:        %s\n", cfg.DataDirPath())
	fmt.Fprintf(out, "  Log File:        %s\n", cfg.LogFilePath())
	fmt.Fprintf(out, "  Baseline Store:  %s\n", cfg.BaselineDir())
	fmt.Fprintf(out, "  Alpha:           %g\n", cfg.SignificanceLevel())
	if cfg.MetricsFile != "" {
		fmt.Fprintf(out, "  Metrics File:    %s\n", cfg.MetricsFile)
	}
	if cfg.TraceFile != "" {
		fmt.Fprintf(out, "  Trace File:      %s\n", cfg.TraceFile)
	}
	fmt.Fprintf(out, "  Debug:           %v\n", cfg.Debug)

	fmt.Fprintln(out)
	pp.ColoringEnabled = colored
	pp.Fprintln(out, cfg)
}
