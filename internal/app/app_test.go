package app_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notebooklm_connector/internal/app"
	"notebooklm_connector/internal/report"
)

type site struct {
	*httptest.Server
	mu    sync.Mutex
	pages map[string]string
	hits  map[string]int
}

func newSite(t *testing.T, pages map[string]string) *site {
	t.Helper()
	s := &site{pages: pages, hits: map[string]int{}}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		body, ok := s.pages[r.URL.Path]
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		if strings.HasSuffix(r.URL.Path, ".xml") {
			w.Header().Set("Content-Type", "application/xml")
		} else {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *site) set(path, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[path] = body
}

func (s *site) count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func docsPages() map[string]string {
	return map[string]string{
		"/docs/":      `<html><body><nav>menu</nav><main><h1>Home</h1><p>Welcome.</p><a href="/docs/guide">Guide</a></main></body></html>`,
		"/docs/guide": `<html><body><main><h1>Guide</h1><p>Step one.</p></main></body></html>`,
	}
}

func options(command, input, output string) app.Options {
	opts := app.DefaultOptions()
	opts.Command = command
	opts.Input = input
	opts.Output = output
	opts.Delay = 0
	opts.MaxWorkers = 2
	return opts
}

func newRunner() (*app.Runner, *bytes.Buffer) {
	var out bytes.Buffer
	return &app.Runner{Out: &out}, &out
}

func stepNames(rep report.PipelineReport) []string {
	names := []string{}
	for _, s := range rep.Steps {
		names = append(names, s.StepName)
	}
	return names
}

func TestPipeline_EndToEnd(t *testing.T) {
	s := newSite(t, docsPages())
	out := t.TempDir()
	r, printed := newRunner()

	rep, err := r.Run(context.Background(), options(app.CommandPipeline, s.URL+"/docs/", out))
	require.NoError(t, err)

	assert.Equal(t, []string{"crawl", "convert", "combine"}, stepNames(rep))
	assert.Empty(t, rep.CrawlFailures)
	assert.Empty(t, rep.ConvertFailures)
	assert.NotEmpty(t, rep.RunID)

	crawl, conv, comb := rep.Steps[0], rep.Steps[1], rep.Steps[2]
	assert.Equal(t, 2, crawl.FileCount)
	assert.Equal(t, 2, crawl.DownloadedCount)
	assert.Positive(t, crawl.TotalBytes)
	assert.Equal(t, filepath.ToSlash(filepath.Join(out, "html")), crawl.OutputPath)
	assert.Equal(t, 2, conv.FileCount)
	assert.Equal(t, 1, comb.FileCount)

	assert.FileExists(t, filepath.Join(out, "md", "index.md"))
	assert.FileExists(t, filepath.Join(out, "md", "docs_guide.md"))

	combined, err := os.ReadFile(filepath.Join(out, "combined.md"))
	require.NoError(t, err)
	text := string(combined)
	assert.Contains(t, text, "Source: docs_guide.md")
	assert.Contains(t, text, "Source: index.md")
	assert.Contains(t, text, "# Guide")
	assert.NotContains(t, text, "menu")
	assert.Less(t, strings.Index(text, "docs_guide.md"), strings.Index(text, "index.md"))

	wordKey := filepath.ToSlash(filepath.Join(out, "combined.md"))
	assert.Equal(t, len(strings.Fields(text)), comb.OutputWordCounts[wordKey])

	assert.Contains(t, printed.String(), "crawl: 2 files")
	assert.Contains(t, printed.String(), "total:")
}

func TestPipeline_RerunUsesCache(t *testing.T) {
	s := newSite(t, docsPages())
	out := t.TempDir()
	r, _ := newRunner()
	opts := options(app.CommandPipeline, s.URL+"/docs/", out)

	_, err := r.Pipeline(context.Background(), opts)
	require.NoError(t, err)
	rep, err := r.Pipeline(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 0, rep.Steps[0].DownloadedCount)
	assert.Equal(t, 2, rep.Steps[0].SkippedCount)
	assert.Equal(t, 1, s.count("/docs/guide"))
}

func TestCrawl_RecordsFailures(t *testing.T) {
	pages := docsPages()
	pages["/docs/"] = `<html><body><a href="/docs/missing">gone</a></body></html>`
	s := newSite(t, pages)
	r, printed := newRunner()

	rep, err := r.Crawl(context.Background(), options(app.CommandCrawl, s.URL+"/docs/", t.TempDir()))
	require.NoError(t, err)

	require.Len(t, rep.Steps, 1)
	assert.Equal(t, 1, rep.Steps[0].FileCount)
	assert.Equal(t, 1, rep.Steps[0].FailureCount)
	assert.Equal(t, []string{s.URL + "/docs/missing"}, rep.CrawlFailures)
	assert.Contains(t, printed.String(), "(1 failed)")
}

func TestCrawl_RetryFromReport(t *testing.T) {
	pages := docsPages()
	pages["/docs/"] = `<html><body><a href="/docs/flaky">flaky</a></body></html>`
	s := newSite(t, pages)
	out := t.TempDir()
	reportPath := filepath.Join(t.TempDir(), "report.json")
	r, _ := newRunner()

	first, err := r.Crawl(context.Background(), options(app.CommandCrawl, s.URL+"/docs/", out))
	require.NoError(t, err)
	require.Len(t, first.CrawlFailures, 1)
	require.NoError(t, report.Write(first, reportPath))

	s.set("/docs/flaky", `<html><body><p>back</p></body></html>`)
	opts := options(app.CommandCrawl, s.URL+"/docs/", out)
	opts.RetryFrom = reportPath
	rep, err := r.Crawl(context.Background(), opts)
	require.NoError(t, err)

	assert.Empty(t, rep.CrawlFailures)
	assert.Equal(t, 1, rep.Steps[0].DownloadedCount)
	assert.FileExists(t, filepath.Join(out, "docs_flaky.html"))
	assert.Equal(t, 1, s.count("/docs/"))

	reread, err := report.Read(reportPath)
	require.NoError(t, err)
	assert.Equal(t, first.CrawlFailures, reread.CrawlFailures)
}

func TestCrawl_SitemapSeeds(t *testing.T) {
	pages := map[string]string{
		"/docs/":       `<html><body><p>no links</p></body></html>`,
		"/docs/hidden": `<html><body><p>only in sitemap</p></body></html>`,
	}
	s := newSite(t, pages)
	s.set("/sitemap.xml", `<?xml version="1.0"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
<url><loc>`+s.URL+`/docs/hidden</loc></url>
<url><loc>`+s.URL+`/blog/post</loc></url>
</urlset>`)
	out := t.TempDir()
	r, _ := newRunner()

	opts := options(app.CommandCrawl, s.URL+"/docs/", out)
	opts.SitemapURL = s.URL + "/sitemap.xml"
	rep, err := r.Crawl(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Steps[0].FileCount)
	assert.FileExists(t, filepath.Join(out, "docs_hidden.html"))
	assert.Equal(t, 0, s.count("/blog/post"))
}

func TestConvert_RetryFromReport(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	page := filepath.Join(in, "page.html")
	require.NoError(t, os.WriteFile(page, []byte(`<main><h1>Page</h1></main>`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "other.html"), []byte(`<p>x</p>`), 0644))

	prev := report.New("earlier")
	prev.TotalElapsedSeconds = 1
	prev.ConvertFailures = []string{filepath.ToSlash(page)}
	reportPath := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, report.Write(prev, reportPath))

	r, _ := newRunner()
	opts := options(app.CommandConvert, in, out)
	opts.RetryFrom = reportPath
	rep, err := r.Convert(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Steps[0].FileCount)
	assert.Empty(t, rep.ConvertFailures)
	assert.FileExists(t, filepath.Join(out, "page.md"))
	assert.NoFileExists(t, filepath.Join(out, "other.md"))
}

func TestRetry_EmptyFailureListsAreNoOps(t *testing.T) {
	s := newSite(t, docsPages())
	prev := report.New("earlier")
	prev.TotalElapsedSeconds = 1
	reportPath := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, report.Write(prev, reportPath))

	r, _ := newRunner()
	opts := options(app.CommandCrawl, s.URL+"/docs/", t.TempDir())
	opts.RetryFrom = reportPath
	rep, err := r.Crawl(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Steps[0].FileCount)
	assert.Equal(t, 0, s.count("/docs/"))

	opts = options(app.CommandConvert, t.TempDir(), t.TempDir())
	opts.RetryFrom = reportPath
	rep, err = r.Convert(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Steps[0].FileCount)
}

func TestPipeline_RetryConvertsNewlyCrawledPages(t *testing.T) {
	pages := docsPages()
	pages["/docs/"] = `<html><body><main><h1>Home</h1><a href="/docs/late">late</a></main></body></html>`
	s := newSite(t, pages)
	out := t.TempDir()
	reportPath := filepath.Join(out, "report.json")
	r, _ := newRunner()
	opts := options(app.CommandPipeline, s.URL+"/docs/", out)

	first, err := r.Pipeline(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, first.CrawlFailures, 1)
	require.NoError(t, report.Write(first, reportPath))

	s.set("/docs/late", `<html><body><main><h1>Late</h1></main></body></html>`)
	opts.RetryFrom = reportPath
	rep, err := r.Pipeline(context.Background(), opts)
	require.NoError(t, err)

	assert.Empty(t, rep.CrawlFailures)
	assert.Equal(t, 1, rep.Steps[1].FileCount)
	assert.FileExists(t, filepath.Join(out, "md", "docs_late.md"))

	combined, err := os.ReadFile(filepath.Join(out, "combined.md"))
	require.NoError(t, err)
	assert.Contains(t, string(combined), "Source: docs_late.md")
	assert.Contains(t, string(combined), "Source: index.md")
}

func TestRetry_BadReportIsFatal(t *testing.T) {
	r, _ := newRunner()
	opts := options(app.CommandConvert, t.TempDir(), t.TempDir())
	opts.RetryFrom = filepath.Join(t.TempDir(), "missing.json")
	_, err := r.Convert(context.Background(), opts)
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"steps": []}`), 0644))
	opts.RetryFrom = bad
	_, err = r.Convert(context.Background(), opts)
	var mf *report.MissingFieldError
	require.ErrorAs(t, err, &mf)
}

func TestCombine_ReportsWordCounts(t *testing.T) {
	in := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "a.md"), []byte("# A\n\none two three"), 0644))
	outFile := filepath.Join(t.TempDir(), "all.md")
	r, _ := newRunner()

	rep, err := r.Combine(context.Background(), options(app.CommandCombine, in, outFile))
	require.NoError(t, err)

	step := rep.Steps[0]
	assert.Equal(t, "combine", step.StepName)
	assert.Equal(t, map[string]int{filepath.ToSlash(outFile): 7}, step.OutputWordCounts)
}

func TestRun_Validation(t *testing.T) {
	r, _ := newRunner()
	_, err := r.Run(context.Background(), options("explode", "x", "y"))
	require.Error(t, err)

	_, err = r.Run(context.Background(), options(app.CommandCombine, "", "y"))
	require.Error(t, err)

	opts := options(app.CommandCrawl, "https://example.com/", t.TempDir())
	opts.MaxConcurrency = -1
	_, err = r.Run(context.Background(), opts)
	require.Error(t, err)
}
