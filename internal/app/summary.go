package app

import (
	"fmt"
	"sort"

	"github.com/fatih/color"

	"notebooklm_connector/internal/report"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorDim     = color.New(color.Faint).SprintFunc()
	colorBold    = color.New(color.Bold).SprintFunc()
)

const (
	prefixDone   = "✓"
	prefixFailed = "⚠"
)

func (r *Runner) printStep(s report.StepResult) {
	out := r.out()
	if s.FailureCount > 0 {
		fmt.Fprintf(out, "%s %s %s\n", colorWarn(prefixFailed), report.FormatStepSummary(s),
			colorWarn(fmt.Sprintf("(%d failed)", s.FailureCount)))
	} else {
		fmt.Fprintf(out, "%s %s\n", colorSuccess(prefixDone), report.FormatStepSummary(s))
	}

	paths := make([]string, 0, len(s.OutputWordCounts))
	for p := range s.OutputWordCounts {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		fmt.Fprintln(out, colorDim(fmt.Sprintf("  %s (%d words)", p, s.OutputWordCounts[p])))
	}
}

func (r *Runner) printTotal(rep report.PipelineReport) {
	fmt.Fprintln(r.out(), colorBold(fmt.Sprintf("total: %.1fs, %d steps", rep.TotalElapsedSeconds, len(rep.Steps))))
}
