package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"notebooklm_connector/internal/app"
	"notebooklm_connector/internal/config"
)

const (
	ProgramName       = "notebooklm-connector"
	CommandInitConfig = "init-config"
)

type ExitError struct {
	Code int
	Err  error
}

func (e ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "error"
}

func (e ExitError) Unwrap() error { return e.Err }

func usageError(format string, args ...any) error {
	return ExitError{Code: 2, Err: fmt.Errorf(format, args...)}
}

// Invocation is one parsed command line.
type Invocation struct {
	Command    string
	Options    app.Options
	Verbose    bool
	ReportPath string

	// init-config only
	ConfigPath string
	Accessible bool
}

const usage = `usage: notebooklm-connector [--verbose] [--report PATH] <command> [flags]

commands:
  crawl URL -o DIR        save documentation pages as HTML
  convert INPUT -o DIR    convert an HTML directory (or --zip archive) to Markdown
  combine INPUT -o FILE   merge a Markdown tree into one or more files
  pipeline URL -o DIR     crawl, convert and combine into DIR
  init-config [PATH]      write a config file interactively

Run "notebooklm-connector <command> -h" for command flags.
`

func Usage(w io.Writer) {
	fmt.Fprint(w, usage)
}

// ParseArgs parses args (without the program name). Global flags are accepted
// before or after the command, and positionals may sit between flags.
func ParseArgs(args []string) (Invocation, error) {
	var g globalFlags
	gfs := newFlagSet(ProgramName)
	g.register(gfs)
	if err := gfs.Parse(args); err != nil {
		return Invocation{}, parseError(gfs, err)
	}
	rest := gfs.Args()
	if len(rest) == 0 {
		return Invocation{}, usageError("expected a command: crawl, convert, combine, pipeline or init-config")
	}

	command, rest := rest[0], rest[1:]
	switch command {
	case CommandInitConfig:
		return parseInitConfig(g, rest)
	case app.CommandCrawl, app.CommandConvert, app.CommandCombine, app.CommandPipeline:
		return parseStage(g, command, rest, args)
	default:
		return Invocation{}, usageError("unknown command %q", command)
	}
}

type globalFlags struct {
	verbose boolFlag
	report  stringFlag
}

func (g *globalFlags) register(fs *flag.FlagSet) {
	fs.Var(&g.verbose, "verbose", "Enable debug logging")
	fs.Var(&g.report, "report", "Write a JSON run report to this path")
}

type parsedFlags struct {
	globalFlags
	configPath     string
	retryFrom      string
	output         stringFlag
	maxPages       intFlag
	delay          secondsFlag
	maxConcurrency intFlag
	urlPrefix      stringFlag
	sitemap        stringFlag
	userAgent      stringFlag
	timeout        intFlag
	zip            bool
	maxWorkers     intFlag
	stripTags      listFlag
	stripClasses   listFlag
	separator      stringFlag
	noSourceHeader boolFlag
	wordThreshold  intFlag
}

func newParsedFlags(g globalFlags) parsedFlags {
	defaults := app.DefaultOptions()
	p := parsedFlags{globalFlags: g}
	p.maxPages.Value = defaults.MaxPages
	p.delay.Value = defaults.Delay
	p.maxConcurrency.Value = defaults.MaxConcurrency
	p.userAgent.Value = defaults.UserAgent
	p.timeout.Value = int(defaults.Timeout.Seconds())
	p.separator.Value = defaults.Separator
	p.wordThreshold.Value = defaults.WordThreshold
	return p
}

func (p *parsedFlags) register(fs *flag.FlagSet, command string) {
	p.globalFlags.register(fs)
	fs.StringVar(&p.configPath, "config", "", "Path to JSON config file")
	fs.Var(&p.output, "o", "Output path (shorthand)")
	fs.Var(&p.output, "output", "Output directory, or output file for combine")

	crawls := command == app.CommandCrawl || command == app.CommandPipeline
	converts := command == app.CommandConvert || command == app.CommandPipeline
	combines := command == app.CommandCombine || command == app.CommandPipeline

	if crawls || converts {
		fs.StringVar(&p.retryFrom, "retry-from-report", "", "Retry only the failures recorded in this report")
	}
	if crawls {
		fs.Var(&p.maxPages, "max-pages", "Maximum pages to save")
		fs.Var(&p.delay, "delay", "Seconds to wait after each download")
		fs.Var(&p.maxConcurrency, "max-concurrency", "Concurrent page fetches")
		fs.Var(&p.urlPrefix, "url-prefix", "Crawl scope prefix (default: derived from URL)")
		fs.Var(&p.sitemap, "sitemap", "Seed the crawl from this sitemap")
		fs.Var(&p.userAgent, "user-agent", "User-Agent header")
		fs.Var(&p.timeout, "timeout", "Request timeout in seconds")
	}
	if command == app.CommandConvert {
		fs.BoolVar(&p.zip, "zip", false, "Treat INPUT as a zip archive of HTML files")
	}
	if converts {
		fs.Var(&p.maxWorkers, "max-workers", "Parallel conversions (default: number of CPUs)")
		fs.Var(&p.stripTags, "strip-tags", "Comma-separated tags to remove before conversion")
		fs.Var(&p.stripClasses, "strip-classes", "Comma-separated class substrings to remove")
	}
	if combines {
		fs.Var(&p.separator, "separator", "Text placed between combined files")
		fs.Var(&p.noSourceHeader, "no-source-header", "Omit the Source: line before each file")
		fs.Var(&p.wordThreshold, "word-threshold", "Split the output above this many words")
	}
}

func parseStage(g globalFlags, command string, rest, all []string) (Invocation, error) {
	p := newParsedFlags(g)
	fs := newFlagSet(command)
	p.register(fs, command)

	positional, err := parseInterleaved(fs, rest)
	if err != nil {
		return Invocation{}, parseError(fs, err)
	}
	if len(positional) > 1 {
		return Invocation{}, usageError("%s takes one input, got %d", command, len(positional))
	}

	cfg, err := loadConfig(p.configPath)
	if err != nil {
		return Invocation{}, err
	}
	applyConfigDefaults(&p, cfg)

	input := ""
	if len(positional) == 1 {
		input = positional[0]
	}
	if input == "" && (command == app.CommandCrawl || command == app.CommandPipeline) {
		input = cfg.URL
	}
	if strings.TrimSpace(input) == "" {
		return Invocation{}, usageError("%s requires an input", command)
	}
	if strings.TrimSpace(p.output.Value) == "" {
		return Invocation{}, usageError("%s requires -o/--output", command)
	}
	if p.maxPages.Value < 1 {
		return Invocation{}, usageError("--max-pages must be >= 1, got %d", p.maxPages.Value)
	}
	if p.maxConcurrency.Value < 1 {
		return Invocation{}, usageError("--max-concurrency must be >= 1, got %d", p.maxConcurrency.Value)
	}

	opts := buildOptions(p, command, input)
	opts.CommandLine = strings.Join(append([]string{ProgramName}, all...), " ")
	return Invocation{
		Command:    command,
		Options:    opts,
		Verbose:    p.verbose.Value,
		ReportPath: p.report.Value,
	}, nil
}

func parseInitConfig(g globalFlags, rest []string) (Invocation, error) {
	var accessible bool
	fs := newFlagSet(CommandInitConfig)
	g.register(fs)
	fs.BoolVar(&accessible, "accessible", false, "Plain prompts for screen readers")

	positional, err := parseInterleaved(fs, rest)
	if err != nil {
		return Invocation{}, parseError(fs, err)
	}
	if len(positional) > 1 {
		return Invocation{}, usageError("%s takes at most one path", CommandInitConfig)
	}
	path := config.DefaultConfigPath()
	if len(positional) == 1 {
		path = positional[0]
	}
	return Invocation{
		Command:    CommandInitConfig,
		Verbose:    g.verbose.Value,
		ConfigPath: path,
		Accessible: accessible,
	}, nil
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parseInterleaved collects positionals that appear anywhere among the flags.
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

// HelpError is returned for -h/--help and carries the flag listing to print.
type HelpError struct {
	Text string
}

func (e HelpError) Error() string { return flag.ErrHelp.Error() }

func (e HelpError) Unwrap() error { return flag.ErrHelp }

func parseError(fs *flag.FlagSet, err error) error {
	if errors.Is(err, flag.ErrHelp) {
		var b strings.Builder
		if fs.Name() == ProgramName {
			Usage(&b)
		} else {
			fmt.Fprintf(&b, "usage: %s %s [flags]\n\nflags:\n", ProgramName, fs.Name())
			fs.SetOutput(&b)
			fs.PrintDefaults()
			fs.SetOutput(io.Discard)
		}
		return HelpError{Text: b.String()}
	}
	return ExitError{Code: 2, Err: err}
}

// loadConfig reads the config file, if any, and overlays the environment
// (including a local .env file) on it.
func loadConfig(path string) (config.Config, error) {
	var cfg config.Config
	if path != "" {
		loaded, err := config.Load(config.Resolve(path))
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if err := config.LoadEnv(""); err != nil {
		return config.Config{}, fmt.Errorf("load .env: %w", err)
	}
	return config.ApplyEnv(cfg)
}

func applyConfigDefaults(p *parsedFlags, cfg config.Config) {
	p.report.fill(cfg.Report)
	p.output.fill(cfg.OutputDir)
	p.maxPages.fill(cfg.MaxPages)
	p.delay.fill(cfg.DelaySeconds)
	p.maxConcurrency.fill(cfg.MaxConcurrency)
	p.urlPrefix.fill(cfg.URLPrefix)
	p.sitemap.fill(cfg.SitemapURL)
	p.userAgent.fill(cfg.UserAgent)
	p.timeout.fill(cfg.TimeoutSeconds)
	p.maxWorkers.fill(cfg.MaxWorkers)
	p.stripTags.fill(cfg.StripTags)
	p.stripClasses.fill(cfg.StripClasses)
	if !p.separator.WasSet && cfg.Separator != nil {
		p.separator.Value = *cfg.Separator
	}
	if !p.noSourceHeader.WasSet && cfg.NoSourceHeader {
		p.noSourceHeader.Value = true
	}
	p.wordThreshold.fill(cfg.WordThreshold)
}

func buildOptions(p parsedFlags, command, input string) app.Options {
	opts := app.DefaultOptions()
	opts.Command = command
	opts.Input = strings.TrimSpace(input)
	opts.Output = strings.TrimSpace(p.output.Value)
	opts.RetryFrom = p.retryFrom
	opts.MaxPages = p.maxPages.Value
	opts.Delay = p.delay.Value
	opts.MaxConcurrency = p.maxConcurrency.Value
	opts.URLPrefix = strings.TrimSpace(p.urlPrefix.Value)
	opts.SitemapURL = strings.TrimSpace(p.sitemap.Value)
	opts.UserAgent = p.userAgent.Value
	opts.Timeout = time.Duration(p.timeout.Value) * time.Second
	opts.Zip = p.zip
	opts.MaxWorkers = p.maxWorkers.Value
	opts.StripTags = p.stripTags.Values
	opts.StripClasses = p.stripClasses.Values
	opts.Separator = p.separator.Value
	opts.AddSourceHeader = !p.noSourceHeader.Value
	opts.WordThreshold = p.wordThreshold.Value
	return opts
}
