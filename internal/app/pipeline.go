package app

import (
	"context"
	"path/filepath"
	"time"

	"notebooklm_connector/internal/report"
)

// Layout of a pipeline output directory.
const (
	HTMLDir      = "html"
	MarkdownDir  = "md"
	CombinedFile = "combined.md"
)

// Pipeline runs crawl, convert and combine into opts.Output.
//
// With RetryFrom set, crawl re-fetches the previous crawl failures, convert
// handles the previous convert failures plus whatever the retry crawl saved,
// and combine always rebuilds from the whole Markdown tree.
func (r *Runner) Pipeline(ctx context.Context, opts Options) (report.PipelineReport, error) {
	if err := validateOptions(opts); err != nil {
		return report.PipelineReport{}, err
	}
	prev, err := loadRetry(opts.RetryFrom)
	if err != nil {
		return report.PipelineReport{}, err
	}

	htmlDir := filepath.Join(opts.Output, HTMLDir)
	mdDir := filepath.Join(opts.Output, MarkdownDir)
	combinedFile := filepath.Join(opts.Output, CombinedFile)

	start := time.Now()
	rep := report.New(opts.CommandLine)

	crawlStep, crawled, err := r.crawlStage(ctx, opts, htmlDir, prev)
	if err != nil {
		return report.PipelineReport{}, err
	}
	rep.Steps = append(rep.Steps, crawlStep)
	rep.CrawlFailures = crawled.Failed
	r.printStep(crawlStep)

	opts.Zip = false
	var sources []string
	if prev != nil {
		sources = retrySources(prev.ConvertFailures, crawled.Files)
	}
	convertStep, converted, err := r.convertStage(ctx, opts, htmlDir, mdDir, sources, prev != nil)
	if err != nil {
		return report.PipelineReport{}, err
	}
	rep.Steps = append(rep.Steps, convertStep)
	rep.ConvertFailures = converted.Failed
	r.printStep(convertStep)

	combineStep, err := r.combineStage(opts, mdDir, combinedFile)
	if err != nil {
		return report.PipelineReport{}, err
	}
	rep.Steps = append(rep.Steps, combineStep)
	r.printStep(combineStep)

	rep.TotalElapsedSeconds = time.Since(start).Seconds()
	r.printTotal(rep)
	return rep, nil
}

// retrySources merges earlier convert failures with freshly crawled pages,
// dropping duplicates and keeping first-seen order.
func retrySources(failed, crawled []string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, p := range failed {
		add(p)
	}
	for _, p := range crawled {
		add(absSlash(p))
	}
	return out
}
