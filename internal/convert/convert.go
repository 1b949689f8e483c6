package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"notebooklm_connector/internal/logging"
	"notebooklm_connector/internal/markdown"
	"notebooklm_connector/internal/parse"
)

var ErrInvalidEncoding = errors.New("input is not valid UTF-8")

type Config struct {
	InputDir     string
	OutputDir    string
	MaxWorkers   int      // 0 means runtime.NumCPU()
	StripTags    []string // nil means parse.DefaultStripTags
	StripClasses []string // nil means parse.DefaultStripClasses
}

// Result of a batch. Outputs and Failed are in input order; Failed holds
// forward-slash source paths, or entry names for archives.
type Result struct {
	Outputs []string
	Failed  []string
}

type Converter struct {
	cfg   Config
	clean parse.CleanOptions
	md    *markdown.Converter
	log   logrus.FieldLogger
}

func New(cfg Config, log logrus.FieldLogger) *Converter {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	clean := parse.DefaultCleanOptions()
	if cfg.StripTags != nil {
		clean.StripTags = cfg.StripTags
	}
	if cfg.StripClasses != nil {
		clean.StripClasses = cfg.StripClasses
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Converter{cfg: cfg, clean: clean, md: markdown.NewConverter(), log: log}
}

// ConvertOne cleans htmlText and renders it as Markdown.
func (c *Converter) ConvertOne(htmlText string) (string, error) {
	cleaned, err := parse.Clean(htmlText, c.clean)
	if err != nil {
		return "", fmt.Errorf("clean html: %w", err)
	}
	return c.md.Render(cleaned)
}

// ConvertDirectory converts every *.html and *.htm file under InputDir,
// mirroring the directory layout under OutputDir.
func (c *Converter) ConvertDirectory(ctx context.Context) (Result, error) {
	if err := os.MkdirAll(c.cfg.OutputDir, 0755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}
	files, err := findHTML(c.cfg.InputDir)
	if err != nil {
		return Result{}, err
	}
	if len(files) == 0 {
		c.log.WithField("dir", c.cfg.InputDir).Warn("no html files found")
		return Result{Outputs: []string{}, Failed: []string{}}, nil
	}

	res := c.run(ctx, c.fileJobs(files))
	c.log.WithFields(logrus.Fields{"converted": len(res.Outputs), "failed": len(res.Failed)}).Info("conversion finished")
	return res, nil
}

// ConvertFailedFiles re-converts the given source paths, typically the
// failure list of an earlier run. Paths that no longer exist are reported as
// failures without being attempted.
func (c *Converter) ConvertFailedFiles(ctx context.Context, sources []string) (Result, error) {
	if err := os.MkdirAll(c.cfg.OutputDir, 0755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	preFailed := []string{}
	files := []string{}
	for _, src := range sources {
		path := filepath.FromSlash(src)
		if _, err := os.Stat(path); err != nil {
			c.log.WithField("file", src).Warn("file does not exist")
			preFailed = append(preFailed, src)
			continue
		}
		files = append(files, path)
	}
	if len(files) == 0 {
		return Result{Outputs: []string{}, Failed: preFailed}, nil
	}

	res := c.run(ctx, c.fileJobs(files))
	res.Failed = append(preFailed, res.Failed...)
	c.log.WithFields(logrus.Fields{"converted": len(res.Outputs), "failed": len(res.Failed)}).Info("retry conversion finished")
	return res, nil
}

// job is one unit of conversion work.
type job struct {
	source string // failure identifier
	output string
	read   func() ([]byte, error)
}

// outcome is the tagged result of a job: either output is set or err is.
type outcome struct {
	output string
	err    error
}

func (c *Converter) fileJobs(files []string) []job {
	inputAbs, _ := filepath.Abs(c.cfg.InputDir)
	jobs := make([]job, 0, len(files))
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			abs = f
		}
		rel, err := filepath.Rel(inputAbs, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			rel = filepath.Base(abs)
		}
		path := abs
		jobs = append(jobs, job{
			source: filepath.ToSlash(abs),
			output: filepath.Join(c.cfg.OutputDir, withMarkdownExt(rel)),
			read:   func() ([]byte, error) { return os.ReadFile(path) },
		})
	}
	return jobs
}

// run converts jobs with at most MaxWorkers in flight. Results are
// collected by index so they line up with jobs regardless of completion
// order.
func (c *Converter) run(ctx context.Context, jobs []job) Result {
	outcomes := make([]outcome, len(jobs))

	var g errgroup.Group
	g.SetLimit(c.cfg.MaxWorkers)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			outcomes[i] = c.convertJob(ctx, j)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Outputs: []string{}, Failed: []string{}}
	for i, o := range outcomes {
		if o.err != nil {
			res.Failed = append(res.Failed, jobs[i].source)
			continue
		}
		res.Outputs = append(res.Outputs, o.output)
	}
	return res
}

func (c *Converter) convertJob(ctx context.Context, j job) outcome {
	log := c.log.WithField("file", j.source)
	if err := ctx.Err(); err != nil {
		log.WithError(err).Warn("conversion canceled")
		return outcome{err: err}
	}
	log.Info("converting")

	data, err := j.read()
	if err != nil {
		log.WithError(err).Error("conversion failed")
		return outcome{err: err}
	}
	if !utf8.Valid(data) {
		log.WithError(ErrInvalidEncoding).Error("conversion failed")
		return outcome{err: ErrInvalidEncoding}
	}
	md, err := c.ConvertOne(string(data))
	if err != nil {
		log.WithError(err).Error("conversion failed")
		return outcome{err: err}
	}
	if err := os.MkdirAll(filepath.Dir(j.output), 0755); err != nil {
		log.WithError(err).Error("conversion failed")
		return outcome{err: err}
	}
	if err := os.WriteFile(j.output, []byte(md), 0644); err != nil {
		log.WithError(err).Error("conversion failed")
		return outcome{err: err}
	}
	return outcome{output: j.output}
}

func isHTMLName(name string) bool {
	return strings.HasSuffix(name, ".html") || strings.HasSuffix(name, ".htm")
}

func withMarkdownExt(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".md"
}

// findHTML lists HTML files under root; a missing root is an empty set.
// WalkDir visits each directory's entries in lexical order, so the result is
// sorted by path component.
func findHTML(root string) ([]string, error) {
	files := []string{}
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return files, nil
	}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isHTMLName(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan input dir: %w", err)
	}
	return files, nil
}
