package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"notebooklm_connector/internal/combine"
	"notebooklm_connector/internal/convert"
	"notebooklm_connector/internal/crawler"
	"notebooklm_connector/internal/fetch"
	"notebooklm_connector/internal/logging"
	"notebooklm_connector/internal/report"
)

// Runner executes pipeline stages and reports on them. The zero value logs
// nowhere, prints to stdout and fetches over HTTP.
type Runner struct {
	Log     logrus.FieldLogger
	Out     io.Writer
	Fetcher crawler.Fetcher
}

// Run dispatches on opts.Command.
func (r *Runner) Run(ctx context.Context, opts Options) (report.PipelineReport, error) {
	switch opts.Command {
	case CommandCrawl:
		return r.Crawl(ctx, opts)
	case CommandConvert:
		return r.Convert(ctx, opts)
	case CommandCombine:
		return r.Combine(ctx, opts)
	case CommandPipeline:
		return r.Pipeline(ctx, opts)
	default:
		return report.PipelineReport{}, fmt.Errorf("unknown command %q", opts.Command)
	}
}

// Crawl saves the pages under opts.Input into opts.Output. In retry mode
// only the previous run's crawl failures are seeded.
func (r *Runner) Crawl(ctx context.Context, opts Options) (report.PipelineReport, error) {
	if err := validateOptions(opts); err != nil {
		return report.PipelineReport{}, err
	}
	prev, err := loadRetry(opts.RetryFrom)
	if err != nil {
		return report.PipelineReport{}, err
	}

	start := time.Now()
	rep := report.New(opts.CommandLine)
	step, res, err := r.crawlStage(ctx, opts, opts.Output, prev)
	if err != nil {
		return report.PipelineReport{}, err
	}
	rep.Steps = append(rep.Steps, step)
	rep.CrawlFailures = res.Failed
	rep.TotalElapsedSeconds = time.Since(start).Seconds()
	r.printStep(step)
	return rep, nil
}

// Convert turns a directory (or zip archive) of HTML into Markdown. In retry
// mode only the previous run's convert failures are attempted.
func (r *Runner) Convert(ctx context.Context, opts Options) (report.PipelineReport, error) {
	if err := validateOptions(opts); err != nil {
		return report.PipelineReport{}, err
	}
	prev, err := loadRetry(opts.RetryFrom)
	if err != nil {
		return report.PipelineReport{}, err
	}

	start := time.Now()
	rep := report.New(opts.CommandLine)
	var sources []string
	if prev != nil {
		sources = prev.ConvertFailures
	}
	step, res, err := r.convertStage(ctx, opts, opts.Input, opts.Output, sources, prev != nil)
	if err != nil {
		return report.PipelineReport{}, err
	}
	rep.Steps = append(rep.Steps, step)
	rep.ConvertFailures = res.Failed
	rep.TotalElapsedSeconds = time.Since(start).Seconds()
	r.printStep(step)
	return rep, nil
}

// Combine merges the Markdown tree at opts.Input into opts.Output.
func (r *Runner) Combine(_ context.Context, opts Options) (report.PipelineReport, error) {
	if err := validateOptions(opts); err != nil {
		return report.PipelineReport{}, err
	}

	start := time.Now()
	rep := report.New(opts.CommandLine)
	step, err := r.combineStage(opts, opts.Input, opts.Output)
	if err != nil {
		return report.PipelineReport{}, err
	}
	rep.Steps = append(rep.Steps, step)
	rep.TotalElapsedSeconds = time.Since(start).Seconds()
	r.printStep(step)
	return rep, nil
}

func (r *Runner) log() logrus.FieldLogger {
	if r.Log == nil {
		return logging.Discard()
	}
	return r.Log
}

func (r *Runner) out() io.Writer {
	if r.Out == nil {
		return os.Stdout
	}
	return r.Out
}

func (r *Runner) fetcher(opts Options) crawler.Fetcher {
	if r.Fetcher != nil {
		return r.Fetcher
	}
	return fetch.NewClient(fetch.Options{UserAgent: opts.UserAgent, Timeout: opts.Timeout})
}

// loadRetry reads the report named by path. An empty path means no retry.
func loadRetry(path string) (*report.PipelineReport, error) {
	if path == "" {
		return nil, nil
	}
	prev, err := report.Read(path)
	if err != nil {
		return nil, fmt.Errorf("load retry report: %w", err)
	}
	return &prev, nil
}

func (r *Runner) crawlStage(ctx context.Context, opts Options, outDir string, prev *report.PipelineReport) (report.StepResult, crawler.Result, error) {
	start := time.Now()
	log := r.log().WithField("step", CommandCrawl)
	f := r.fetcher(opts)

	c, err := crawler.New(crawler.Config{
		StartURL:       opts.Input,
		OutputDir:      outDir,
		MaxPages:       opts.MaxPages,
		Delay:          opts.Delay,
		MaxConcurrency: opts.MaxConcurrency,
		URLPrefix:      opts.URLPrefix,
		UserAgent:      opts.UserAgent,
		Timeout:        opts.Timeout,
	}, crawler.WithFetcher(f), crawler.WithLogger(log))
	if err != nil {
		return report.StepResult{}, crawler.Result{}, fmt.Errorf("create crawler: %w", err)
	}

	var res crawler.Result
	switch {
	case prev != nil:
		if len(prev.CrawlFailures) == 0 {
			log.Info("no crawl failures to retry")
			res = crawler.Result{Files: []string{}, Failed: []string{}}
			break
		}
		res, err = c.CrawlURLs(ctx, prev.CrawlFailures)
	case opts.SitemapURL != "":
		res, err = r.crawlSitemap(ctx, c, f, opts, log)
	default:
		res, err = c.Crawl(ctx)
	}
	if err != nil {
		return report.StepResult{}, crawler.Result{}, err
	}

	step := report.NewStep(CommandCrawl, outDir)
	step.FileCount = len(res.Files)
	step.TotalBytes = totalBytes(res.Files)
	step.SkippedCount = res.CacheHits
	step.DownloadedCount = res.Downloads
	step.FailureCount = len(res.Failed)
	step.ElapsedSeconds = time.Since(start).Seconds()
	return step, res, nil
}

// crawlSitemap seeds the crawl with the in-scope sitemap URLs. An unreadable
// sitemap falls back to a plain crawl from the start URL.
func (r *Runner) crawlSitemap(ctx context.Context, c *crawler.Crawler, f crawler.Fetcher, opts Options, log logrus.FieldLogger) (crawler.Result, error) {
	urls, err := crawler.ParseSitemap(ctx, f, opts.SitemapURL)
	if err != nil {
		log.WithError(err).WithField("sitemap", opts.SitemapURL).Warn("sitemap unavailable, crawling from start url")
		return c.Crawl(ctx)
	}
	seeds := crawler.SitemapSeeds(opts.Input, c.Prefix(), urls)
	log.WithFields(logrus.Fields{"sitemap": opts.SitemapURL, "seeds": len(seeds)}).Info("seeding crawl from sitemap")
	return c.CrawlURLs(ctx, seeds)
}

func (r *Runner) convertStage(ctx context.Context, opts Options, in, outDir string, sources []string, retry bool) (report.StepResult, convert.Result, error) {
	start := time.Now()
	log := r.log().WithField("step", CommandConvert)
	conv := convert.New(convert.Config{
		InputDir:     in,
		OutputDir:    outDir,
		MaxWorkers:   opts.MaxWorkers,
		StripTags:    opts.StripTags,
		StripClasses: opts.StripClasses,
	}, log)

	var (
		res convert.Result
		err error
	)
	switch {
	case retry && len(sources) == 0:
		log.Info("no convert failures to retry")
		res = convert.Result{Outputs: []string{}, Failed: []string{}}
	case retry:
		res, err = conv.ConvertFailedFiles(ctx, sources)
	case opts.Zip:
		res, err = conv.ConvertZip(ctx, in, outDir)
	default:
		res, err = conv.ConvertDirectory(ctx)
	}
	if err != nil {
		return report.StepResult{}, convert.Result{}, err
	}

	step := report.NewStep(CommandConvert, outDir)
	step.FileCount = len(res.Outputs)
	step.TotalBytes = totalBytes(res.Outputs)
	step.FailureCount = len(res.Failed)
	step.ElapsedSeconds = time.Since(start).Seconds()
	return step, res, nil
}

func (r *Runner) combineStage(opts Options, in, outFile string) (report.StepResult, error) {
	start := time.Now()
	res, err := combine.Combine(combine.Config{
		InputDir:        in,
		OutputFile:      outFile,
		Separator:       opts.Separator,
		AddSourceHeader: opts.AddSourceHeader,
		WordThreshold:   opts.WordThreshold,
	}, r.log().WithField("step", CommandCombine))
	if err != nil {
		return report.StepResult{}, fmt.Errorf("combine: %w", err)
	}

	step := report.NewStep(CommandCombine, outFile)
	step.FileCount = len(res.Outputs)
	step.TotalBytes = totalBytes(res.Outputs)
	step.OutputWordCounts = res.WordCounts
	step.ElapsedSeconds = time.Since(start).Seconds()
	return step, nil
}

func totalBytes(paths []string) int64 {
	var n int64
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			n += info.Size()
		}
	}
	return n
}

func absSlash(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return filepath.ToSlash(path)
}
