package crawler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"notebooklm_connector/internal/fetch"
	"notebooklm_connector/internal/logging"
)

const (
	DefaultMaxPages       = 100
	DefaultMaxConcurrency = 4
	DefaultDelay          = time.Second
)

type Config struct {
	StartURL       string
	OutputDir      string
	MaxPages       int
	Delay          time.Duration // slept after each real download, never after a cache hit
	MaxConcurrency int
	URLPrefix      string // overrides the prefix derived from StartURL
	UserAgent      string
	Timeout        time.Duration
}

// Result of one crawl call. Files are in completion order.
type Result struct {
	Files     []string
	CacheHits int
	Downloads int
	Failed    []string
}

type Fetcher interface {
	Get(ctx context.Context, url string) (fetch.Page, error)
}

type Option func(*Crawler)

func WithFetcher(f Fetcher) Option {
	return func(c *Crawler) { c.fetcher = f }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Crawler) { c.log = log }
}

type Crawler struct {
	cfg     Config
	prefix  string
	store   *PageStore
	fetcher Fetcher
	log     logrus.FieldLogger
}

func New(cfg Config, opts ...Option) (*Crawler, error) {
	cfg, err := normalizeConfig(cfg)
	if err != nil {
		return nil, err
	}
	prefix := cfg.URLPrefix
	if prefix == "" {
		prefix, err = DerivePrefix(cfg.StartURL)
		if err != nil {
			return nil, err
		}
	}

	c := &Crawler{
		cfg:    cfg,
		prefix: prefix,
		store:  NewPageStore(cfg.OutputDir, cfg.StartURL),
		log:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = fetch.NewClient(fetch.Options{UserAgent: cfg.UserAgent, Timeout: cfg.Timeout})
	}
	return c, nil
}

func normalizeConfig(cfg Config) (Config, error) {
	if cfg.StartURL == "" {
		return cfg, errors.New("start URL is required")
	}
	if cfg.OutputDir == "" {
		return cfg, errors.New("output directory is required")
	}
	if cfg.MaxPages < 0 {
		return cfg, fmt.Errorf("max pages must be >= 1, got %d", cfg.MaxPages)
	}
	if cfg.MaxConcurrency < 0 {
		return cfg, fmt.Errorf("max concurrency must be >= 1, got %d", cfg.MaxConcurrency)
	}
	if cfg.MaxPages == 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	return cfg, nil
}

func (c *Crawler) Prefix() string { return c.prefix }

// Crawl runs a BFS from the configured start URL.
func (c *Crawler) Crawl(ctx context.Context) (Result, error) {
	c.log.WithFields(logrus.Fields{"url": c.cfg.StartURL, "prefix": c.prefix}).Info("crawl started")
	return c.run(ctx, []string{c.cfg.StartURL})
}

// CrawlURLs seeds the BFS with urls instead of the start URL. Links found on
// the seeds are still followed.
func (c *Crawler) CrawlURLs(ctx context.Context, urls []string) (Result, error) {
	c.log.WithFields(logrus.Fields{"seeds": len(urls), "prefix": c.prefix}).Info("crawl started")
	return c.run(ctx, urls)
}

func (c *Crawler) run(ctx context.Context, seeds []string) (Result, error) {
	if err := os.MkdirAll(c.cfg.OutputDir, 0755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	normalized := make([]string, 0, len(seeds))
	for _, s := range seeds {
		normalized = append(normalized, NormalizeURL(s))
	}

	f := newFrontier(c.cfg.MaxPages, c.cfg.MaxConcurrency)
	outcomes := make(chan outcome)
	launch := func(batch []string) {
		for _, u := range batch {
			go func(u string) {
				outcomes <- c.visit(ctx, u)
			}(u)
		}
	}

	launch(f.start(normalized))
	for f.busy() {
		launch(f.record(<-outcomes))
	}

	res := f.snapshot()
	c.log.WithFields(logrus.Fields{
		"saved":      len(res.Files),
		"cache_hits": res.CacheHits,
		"downloads":  res.Downloads,
		"failed":     len(res.Failed),
	}).Info("crawl finished")
	return res, nil
}

func (c *Crawler) visit(ctx context.Context, pageURL string) outcome {
	log := c.log.WithField("url", pageURL)
	id := c.store.Identifier(pageURL)

	if c.store.Exists(id) {
		html, err := c.store.Read(id)
		if err != nil {
			log.WithError(err).Error("read cached page failed")
			return outcome{url: pageURL, state: stateFetchFailed, err: err}
		}
		log.Info("using cache")
		return outcome{
			url:   pageURL,
			state: stateCacheHit,
			path:  c.store.Path(id),
			links: ExtractLinks(html, pageURL, c.prefix),
		}
	}

	log.Info("crawling")
	page, err := c.fetcher.Get(ctx, pageURL)
	if err != nil {
		log.WithError(err).Error("fetch failed")
		return outcome{url: pageURL, state: stateFetchFailed, err: err}
	}
	if !page.IsHTML() {
		log.WithField("content_type", page.ContentType).Debug("skipping non-html response")
		return outcome{url: pageURL, state: stateNonHTML}
	}
	if err := c.store.Write(id, page.Body); err != nil {
		log.WithError(err).Error("save page failed")
		return outcome{url: pageURL, state: stateFetchFailed, err: err}
	}
	links := ExtractLinks(page.Body, pageURL, c.prefix)

	if err := fetch.Sleep(ctx, c.cfg.Delay); err != nil {
		log.WithError(err).Debug("rate limit sleep interrupted")
	}
	return outcome{url: pageURL, state: stateFetched, path: c.store.Path(id), links: links}
}
