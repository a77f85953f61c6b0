package microbench

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/mwiater/microbench/internal/benchmark"
	"github.com/mwiater/microbench/internal/sampler"
	"github.com/mwiater/microbench/internal/stats"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	boxStyle   = lipgloss.NewStyle().PaddingLeft(2)

	warnText = color.New(color.FgYellow).SprintFunc()
	goodText = color.New(color.FgGreen).SprintFunc()
	badText  = color.New(color.FgRed).SprintFunc()
)

func renderState(s sampler.State) string {
	if s == sampler.StateGivenUp {
		return warnText(s.String())
	}
	return goodText(s.String())
}

// renderResult prints the workload header and its summary line, with the
// mean also in raw timer ticks.
func renderResult(r *benchmark.Result) string {
	header := titleStyle.Render(r.Workload) + " " + labelStyle.Render(fmt.Sprintf(
		"[%s, %d batches, %d runs, divisor %g]", r.Timer, r.Batches, r.FinalRuns, r.Divisor)) + " " + renderState(r.State)

	// lipgloss expands tabs, so the summary line stays unstyled
	body := "  " + r.Summary.Format(r.Factor)
	lines := []string{header, body}
	if r.GivenUp() {
		lines = append(lines, boxStyle.Render(warnText(fmt.Sprintf(
			"did not stabilise: dispersion %.2f%% after %d unstable batches", r.Summary.RelativeDispersion()*100, r.Unstable))))
	}
	if r.Dropped > 0 {
		lines = append(lines, boxStyle.Render(warnText(fmt.Sprintf("%d trials could not be timed", r.Dropped))))
	}
	return strings.Join(lines, "\n")
}

func renderVerdict(verdict string) string {
	switch verdict {
	case stats.VerdictFaster:
		return goodText(verdict)
	case stats.VerdictSlower:
		return badText(verdict)
	default:
		return verdict
	}
}

func renderComparison(name string, cmp stats.Comparison) string {
	return fmt.Sprintf("%s  %s %s ms  %s %s ms  %s %.3fx  %s %.4f  %s",
		titleStyle.Render(name),
		labelStyle.Render("base"), formatMillis(cmp.Base.Median),
		labelStyle.Render("candidate"), formatMillis(cmp.Candidate.Median),
		labelStyle.Render("speedup"), cmp.Speedup,
		labelStyle.Render("p"), cmp.PValue,
		renderVerdict(cmp.Verdict))
}

func formatMillis(v float64) string {
	return fmt.Sprintf("%.6g", v)
}
