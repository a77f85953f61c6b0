// internal/cli/list.go
package microbench

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mwiater/microbench/internal/workloads"
)

// listCmd implements 'list', which prints the workload catalogue. Its
// 'commands' subcommand prints the command tree.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the built-in workloads",
	Run: func(cmd *cobra.Command, args []string) {
		listWorkloads(cmd.OutOrStdout(), workloads.All())
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func listWorkloads(out io.Writer, all []workloads.Workload) {
	width := 0
	for _, w := range all {
		if len(w.Name) > width {
			width = len(w.Name)
		}
	}
	fmt.Fprintln(out, "Workloads:")
	for _, w := range all {
		line := fmt.Sprintf("%s%s%s", w.Name, strings.Repeat(" ", width-len(w.Name)+2), w.Description)
		if w.Divisor != 1 {
			line += labelStyle.Render(fmt.Sprintf(" (divisor %g)", w.Divisor))
		}
		if w.MaxIterations > 0 {
			line += labelStyle.Render(fmt.Sprintf(" (at most %d iterations)", w.MaxIterations))
		}
		fmt.Fprintf(out, "  %s\n", line)
	}
}
