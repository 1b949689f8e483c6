package tui

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"notebooklm_connector/internal/combine"
	"notebooklm_connector/internal/config"
	"notebooklm_connector/internal/crawler"
	"notebooklm_connector/internal/fetch"
	"notebooklm_connector/internal/parse"
)

type Result struct {
	Config config.Config
	Path   string
	Saved  bool
}

// RunInitConfig asks for every config value and writes the file at path.
// An existing file at path pre-fills the form.
func RunInitConfig(path string, accessible bool) (Result, error) {
	state := newFormState(path)
	if cfg, err := config.Load(path); err == nil {
		state.fromConfig(cfg)
	} else if !errors.Is(err, os.ErrNotExist) {
		return Result{}, err
	}

	form := buildForm(state).WithTheme(huh.ThemeDracula()).WithAccessible(accessible)
	if err := form.Run(); err != nil {
		return Result{}, err
	}
	return saveResult(state)
}

type separatorChoice string

const (
	separatorRule  separatorChoice = "rule"
	separatorBlank separatorChoice = "blank"
	separatorNone  separatorChoice = "none"
)

var separators = map[separatorChoice]string{
	separatorRule:  combine.DefaultSeparator,
	separatorBlank: "\n\n",
	separatorNone:  "",
}

type formState struct {
	urlStr            string
	outputDir         string
	reportPath        string
	maxPagesStr       string
	delayStr          string
	maxConcurrencyStr string
	urlPrefix         string
	sitemapURL        string
	userAgent         string
	timeoutSecStr     string
	maxWorkersStr     string
	stripTagsStr      string
	stripClassesStr   string
	separator         separatorChoice
	sourceHeader      bool
	wordThresholdStr  string
	configPath        string
	confirm           bool
}

func newFormState(path string) *formState {
	return &formState{
		outputDir:         "output",
		maxPagesStr:       strconv.Itoa(crawler.DefaultMaxPages),
		delayStr:          strconv.FormatFloat(crawler.DefaultDelay.Seconds(), 'f', -1, 64),
		maxConcurrencyStr: strconv.Itoa(crawler.DefaultMaxConcurrency),
		userAgent:         fetch.DefaultUserAgent,
		timeoutSecStr:     strconv.Itoa(int(fetch.DefaultTimeout.Seconds())),
		maxWorkersStr:     "0",
		stripTagsStr:      strings.Join(parse.DefaultStripTags, ", "),
		stripClassesStr:   strings.Join(parse.DefaultStripClasses, ", "),
		separator:         separatorRule,
		sourceHeader:      true,
		wordThresholdStr:  strconv.Itoa(combine.DefaultWordThreshold),
		configPath:        path,
		confirm:           true,
	}
}

func (s *formState) fromConfig(cfg config.Config) {
	if cfg.URL != "" {
		s.urlStr = cfg.URL
	}
	if cfg.OutputDir != "" {
		s.outputDir = cfg.OutputDir
	}
	s.reportPath = cfg.Report
	if cfg.MaxPages > 0 {
		s.maxPagesStr = strconv.Itoa(cfg.MaxPages)
	}
	if cfg.DelaySeconds != nil {
		s.delayStr = strconv.FormatFloat(*cfg.DelaySeconds, 'f', -1, 64)
	}
	if cfg.MaxConcurrency > 0 {
		s.maxConcurrencyStr = strconv.Itoa(cfg.MaxConcurrency)
	}
	s.urlPrefix = cfg.URLPrefix
	s.sitemapURL = cfg.SitemapURL
	if cfg.UserAgent != "" {
		s.userAgent = cfg.UserAgent
	}
	if cfg.TimeoutSeconds > 0 {
		s.timeoutSecStr = strconv.Itoa(cfg.TimeoutSeconds)
	}
	if cfg.MaxWorkers > 0 {
		s.maxWorkersStr = strconv.Itoa(cfg.MaxWorkers)
	}
	if cfg.StripTags != nil {
		s.stripTagsStr = strings.Join(cfg.StripTags, ", ")
	}
	if cfg.StripClasses != nil {
		s.stripClassesStr = strings.Join(cfg.StripClasses, ", ")
	}
	if cfg.Separator != nil {
		for choice, sep := range separators {
			if sep == *cfg.Separator {
				s.separator = choice
			}
		}
	}
	s.sourceHeader = !cfg.NoSourceHeader
	if cfg.WordThreshold > 0 {
		s.wordThresholdStr = strconv.Itoa(cfg.WordThreshold)
	}
}

func buildForm(state *formState) *huh.Form {
	return huh.NewForm(
		buildTargetGroup(state),
		buildCrawlGroup(state),
		buildNetworkGroup(state),
		buildConvertGroup(state),
		buildCombineGroup(state),
		buildFinishGroup(state),
	)
}

func buildTargetGroup(state *formState) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().Title("Documentation URL").Placeholder("https://docs.example.com/guide/").Value(&state.urlStr).
			Description("Start page; only pages under its directory are crawled."),
		huh.NewInput().Title("Output dir").Description("Holds html/, md/ and combined.md.").Value(&state.outputDir),
		huh.NewInput().Title("Report path").Description("Optional: JSON run report for --retry-from-report.").Value(&state.reportPath),
	).Title("Target")
}

func buildCrawlGroup(state *formState) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().Title("Max pages").Value(&state.maxPagesStr).Validate(validateIntString(1, 100000)),
		huh.NewInput().Title("Delay (seconds)").Description("Pause after each download.").Value(&state.delayStr).
			Validate(validateFloatString(0, 60)),
		huh.NewInput().Title("Max concurrency").Value(&state.maxConcurrencyStr).Validate(validateIntString(1, 64)),
		huh.NewInput().Title("URL prefix").Description("Optional: override the derived crawl scope.").Value(&state.urlPrefix),
		huh.NewInput().Title("Sitemap URL").Description("Optional: seed the crawl from a sitemap.").Value(&state.sitemapURL),
	).Title("Crawl")
}

func buildNetworkGroup(state *formState) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().Title("Timeout (seconds)").Value(&state.timeoutSecStr).
			Validate(validateIntString(1, 3600)),
		huh.NewInput().Title("User-Agent").Value(&state.userAgent),
	).Title("Network")
}

func buildConvertGroup(state *formState) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().Title("Max workers (0=CPUs)").Value(&state.maxWorkersStr).Validate(validateIntString(0, 256)),
		huh.NewInput().Title("Strip tags").Description("Comma-separated elements removed before conversion.").Value(&state.stripTagsStr),
		huh.NewInput().Title("Strip classes").Description("Comma-separated class substrings removed before conversion.").Value(&state.stripClassesStr),
	).Title("Convert")
}

func buildCombineGroup(state *formState) *huh.Group {
	return huh.NewGroup(
		huh.NewSelect[separatorChoice]().Title("Separator").Value(&state.separator).Options(
			huh.NewOption("Horizontal rule (---)", separatorRule),
			huh.NewOption("Blank line", separatorBlank),
			huh.NewOption("Nothing", separatorNone),
		),
		huh.NewConfirm().Title("Source headers").Description("Prefix each file with a Source: line?").Value(&state.sourceHeader),
		huh.NewInput().Title("Word threshold").Description("Split combined output above this many words.").
			Value(&state.wordThresholdStr).Validate(validateIntString(1, 100000000)),
	).Title("Combine")
}

func buildFinishGroup(state *formState) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().Title("Config path").Value(&state.configPath).Validate(validateConfigPath),
		huh.NewConfirm().Title("Write config?").Affirmative("Write").Negative("Discard").Value(&state.confirm),
	).Title("Finish")
}

func saveResult(state *formState) (Result, error) {
	cfg, err := buildConfig(state)
	if err != nil {
		return Result{}, err
	}
	res := Result{Config: cfg, Path: ensureJSONExtension(strings.TrimSpace(state.configPath))}
	if !state.confirm {
		return res, nil
	}
	if err := config.Save(cfg, res.Path); err != nil {
		return Result{}, err
	}
	res.Saved = true
	return res, nil
}

func buildConfig(state *formState) (config.Config, error) {
	maxPages, err := parsePositiveInt(state.maxPagesStr, "max pages must be a positive integer")
	if err != nil {
		return config.Config{}, err
	}
	delay, err := parseNonNegativeFloat(state.delayStr, "delay must be a number >= 0")
	if err != nil {
		return config.Config{}, err
	}
	maxConcurrency, err := parsePositiveInt(state.maxConcurrencyStr, "max concurrency must be a positive integer")
	if err != nil {
		return config.Config{}, err
	}
	timeoutSec, err := parsePositiveInt(state.timeoutSecStr, "timeout must be a positive integer")
	if err != nil {
		return config.Config{}, err
	}
	maxWorkers, err := parseNonNegativeInt(state.maxWorkersStr, "max workers must be an integer >= 0")
	if err != nil {
		return config.Config{}, err
	}
	wordThreshold, err := parsePositiveInt(state.wordThresholdStr, "word threshold must be a positive integer")
	if err != nil {
		return config.Config{}, err
	}
	sep, ok := separators[state.separator]
	if !ok {
		return config.Config{}, fmt.Errorf("unknown separator %q", state.separator)
	}

	return config.Config{
		URL:            strings.TrimSpace(state.urlStr),
		OutputDir:      strings.TrimSpace(state.outputDir),
		Report:         strings.TrimSpace(state.reportPath),
		MaxPages:       maxPages,
		DelaySeconds:   &delay,
		MaxConcurrency: maxConcurrency,
		URLPrefix:      strings.TrimSpace(state.urlPrefix),
		SitemapURL:     strings.TrimSpace(state.sitemapURL),
		UserAgent:      strings.TrimSpace(state.userAgent),
		TimeoutSeconds: timeoutSec,
		MaxWorkers:     maxWorkers,
		StripTags:      splitList(state.stripTagsStr),
		StripClasses:   splitList(state.stripClassesStr),
		Separator:      &sep,
		NoSourceHeader: !state.sourceHeader,
		WordThreshold:  wordThreshold,
	}, nil
}

// splitList returns nil for blank input so the converter falls back to its
// defaults.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parsePositiveInt(s, errMsg string) (int, error) {
	val, err := parseInt(s)
	if err != nil || val <= 0 {
		return 0, errors.New(errMsg)
	}
	return val, nil
}

func parseNonNegativeInt(s, errMsg string) (int, error) {
	val, err := parseInt(s)
	if err != nil || val < 0 {
		return 0, errors.New(errMsg)
	}
	return val, nil
}

func parseNonNegativeFloat(s, errMsg string) (float64, error) {
	val, err := parseFloat(s)
	if err != nil || val < 0 {
		return 0, errors.New(errMsg)
	}
	return val, nil
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func validateIntString(minVal, maxVal int) func(string) error {
	return func(s string) error {
		v, err := parseInt(s)
		if err != nil {
			return errors.New("must be an integer")
		}
		if v < minVal || v > maxVal {
			return fmt.Errorf("must be between %d and %d", minVal, maxVal)
		}
		return nil
	}
}

func validateFloatString(minVal, maxVal float64) func(string) error {
	return func(s string) error {
		v, err := parseFloat(s)
		if err != nil {
			return errors.New("must be a number")
		}
		if v < minVal || v > maxVal {
			return fmt.Errorf("must be between %.2f and %.2f", minVal, maxVal)
		}
		return nil
	}
}

func validateConfigPath(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("path cannot be empty")
	}
	if strings.ContainsAny(s, `*?"<>|`) {
		return errors.New("invalid characters")
	}
	if info, err := os.Stat(ensureJSONExtension(s)); err == nil && info.IsDir() {
		return errors.New("path is a directory")
	}
	return nil
}

func ensureJSONExtension(s string) string {
	if !strings.HasSuffix(s, ".json") {
		return s + ".json"
	}
	return s
}
