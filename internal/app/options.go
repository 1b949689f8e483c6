package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"notebooklm_connector/internal/combine"
	"notebooklm_connector/internal/crawler"
	"notebooklm_connector/internal/fetch"
)

const (
	CommandCrawl    = "crawl"
	CommandConvert  = "convert"
	CommandCombine  = "combine"
	CommandPipeline = "pipeline"
)

// Options describes one invocation. Input is a URL for crawl and pipeline
// and a path for convert and combine.
type Options struct {
	Command     string
	Input       string
	Output      string
	RetryFrom   string // report whose failure lists drive a retry run
	CommandLine string // recorded verbatim in the report

	// Crawl
	MaxPages       int
	Delay          time.Duration
	MaxConcurrency int
	URLPrefix      string
	SitemapURL     string
	UserAgent      string
	Timeout        time.Duration

	// Convert
	Zip          bool
	MaxWorkers   int
	StripTags    []string
	StripClasses []string

	// Combine
	Separator       string
	AddSourceHeader bool
	WordThreshold   int
}

func DefaultOptions() Options {
	return Options{
		MaxPages:        crawler.DefaultMaxPages,
		Delay:           crawler.DefaultDelay,
		MaxConcurrency:  crawler.DefaultMaxConcurrency,
		UserAgent:       fetch.DefaultUserAgent,
		Timeout:         fetch.DefaultTimeout,
		Separator:       combine.DefaultSeparator,
		AddSourceHeader: true,
		WordThreshold:   combine.DefaultWordThreshold,
	}
}

func validateOptions(opts Options) error {
	if strings.TrimSpace(opts.Input) == "" {
		return errors.New("input is required")
	}
	if strings.TrimSpace(opts.Output) == "" {
		return errors.New("output is required")
	}
	if opts.MaxPages < 1 {
		return fmt.Errorf("max pages must be >= 1, got %d", opts.MaxPages)
	}
	if opts.MaxConcurrency < 1 {
		return fmt.Errorf("max concurrency must be >= 1, got %d", opts.MaxConcurrency)
	}
	if opts.MaxWorkers < 0 {
		return fmt.Errorf("max workers must be >= 1, got %d", opts.MaxWorkers)
	}
	if opts.Delay < 0 {
		return fmt.Errorf("delay must be >= 0, got %s", opts.Delay)
	}
	return nil
}
