// internal/cli/calibrate.go
package microbench

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwiater/microbench/internal/timesource"
)

var (
	recalibrations int
	newTimeSource  = timesource.New
)

// calibrateCmd implements 'calibrate', which reports the selected timer and
// its factor and optionally recalibrates a cycle counter to expose drift.
var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Show the timer backend and its calibration factor",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if cfg == nil {
			return errors.New("configuration is not initialized")
		}
		kind, err := timesource.ParseKind(cfg.TimerKind())
		if err != nil {
			return err
		}
		src, err := newTimeSource(kind)
		if err != nil {
			return err
		}
		return runCalibrate(cmd, src, recalibrations)
	},
}

func init() {
	calibrateCmd.Flags().IntVar(&recalibrations, "recalibrate", 0, "re-estimate the factor this many times and report drift")
	rootCmd.AddCommand(calibrateCmd)
}

func runCalibrate(cmd *cobra.Command, src timesource.TimeSource, n int) error {
	out := cmd.OutOrStdout()
	src.Calibrate()
	factor := src.Factor()

	fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Timer: "), titleStyle.Render(src.Name()))
	if factor <= 0 {
		fmt.Fprintln(out, warnText("calibration failed: the timer cannot measure on this machine"))
		return nil
	}
	fmt.Fprintf(out, "%s %.9g ms/tick (%.4g ticks/µs)\n", labelStyle.Render("Factor:"), factor, 1e-3/factor)

	if n <= 0 {
		return nil
	}
	rc, ok := src.(timesource.Recalibrator)
	if !ok {
		fmt.Fprintf(out, "%s reports its own frequency; nothing to recalibrate\n", src.Name())
		return nil
	}
	for i := 1; i <= n; i++ {
		r := rc.Recalibrate()
		line := fmt.Sprintf("  #%d estimate %.9g  factor %.9g  change %.3f%%", i, r.Estimate, r.Factor, r.Change*100)
		if r.Drifted {
			line += " " + warnText("drift")
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
