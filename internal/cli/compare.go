// internal/cli/compare.go
package microbench

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mwiater/microbench/internal/benchmark"
)

// compareCmd implements 'compare', which tests every workload present in both
// result files for a significant difference.
var compareCmd = &cobra.Command{
	Use:   "compare <base> <candidate>",
	Short: "Compare two result files workload by workload",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if cfg == nil {
			return errors.New("configuration is not initialized")
		}
		base, err := benchmark.ReadResults(args[0])
		if err != nil {
			return err
		}
		candidate, err := benchmark.ReadResults(args[1])
		if err != nil {
			return err
		}
		return runCompare(cmd, base, candidate, cfg.SignificanceLevel())
	},
}

func init() {
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, base, candidate []*benchmark.Result, alpha float64) error {
	out := cmd.OutOrStdout()
	byName := make(map[string]*benchmark.Result, len(candidate))
	for _, r := range candidate {
		byName[r.Workload] = r
	}

	matched := 0
	for _, b := range base {
		c, ok := byName[b.Workload]
		if !ok {
			fmt.Fprintf(out, "%s  %s\n", titleStyle.Render(b.Workload), warnText("missing from candidate"))
			continue
		}
		cmp, err := benchmark.Compare(b, c, alpha)
		if err != nil {
			return fmt.Errorf("compare %s: %w", b.Workload, err)
		}
		fmt.Fprintln(out, renderComparison(b.Workload, cmp))
		if diffs := benchmark.Mismatch(b, c); len(diffs) > 0 {
			fmt.Fprintln(out, boxStyle.Render(warnText("settings differ: "+strings.Join(diffs, ", "))))
		}
		matched++
	}
	if matched == 0 {
		return errors.New("no workloads in common")
	}
	return nil
}
