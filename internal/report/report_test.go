package report_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notebooklm_connector/internal/report"
)

func sample() report.PipelineReport {
	r := report.New("notebooklm-connector pipeline https://example.com/docs/ -o out")
	crawl := report.NewStep("crawl", `out/html`)
	crawl.FileCount = 3
	crawl.TotalBytes = 2048
	crawl.ElapsedSeconds = 4.3
	crawl.SkippedCount = 1
	crawl.DownloadedCount = 2
	crawl.FailureCount = 1

	combine := report.NewStep("combine", "out")
	combine.OutputWordCounts = map[string]int{"out/combined.md": 1200}

	r.Steps = append(r.Steps, crawl, combine)
	r.TotalElapsedSeconds = 9.5
	r.CrawlFailures = []string{"https://example.com/docs/missing"}
	return r
}

func TestWriteRead_RoundTrip(t *testing.T) {
	tests := map[string]report.PipelineReport{
		"populated": sample(),
		"empty":     report.New(""),
	}
	for name, r := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "report.json")
			require.NoError(t, report.Write(r, path))

			got, err := report.Read(path)
			require.NoError(t, err)
			assert.Equal(t, r, got)
		})
	}
}

func TestWrite_Format(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	r := report.PipelineReport{Steps: []report.StepResult{{StepName: "convert"}}}
	require.NoError(t, report.Write(r, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.True(t, strings.HasSuffix(text, "}\n"))
	assert.Contains(t, text, "\n  \"steps\": [")
	assert.Contains(t, text, `"crawl_failures": []`)
	assert.Contains(t, text, `"output_word_counts": {}`)
	assert.NotContains(t, text, "run_id")
}

func TestNew_AssignsRunID(t *testing.T) {
	a, b := report.New("x"), report.New("x")
	_, err := uuid.Parse(a.RunID)
	require.NoError(t, err)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestNewStep_ForwardSlashPath(t *testing.T) {
	s := report.NewStep("convert", filepath.Join("out", "md"))
	assert.Equal(t, "out/md", s.OutputPath)
}

func TestRead_DefaultsOptionalFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.json")
	legacy := `{"steps": [{"step_name": "crawl", "file_count": 2}], "total_elapsed_seconds": 1.5}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))

	got, err := report.Read(path)
	require.NoError(t, err)

	assert.Equal(t, []string{}, got.CrawlFailures)
	assert.Equal(t, []string{}, got.ConvertFailures)
	assert.Equal(t, "", got.Command)
	require.Len(t, got.Steps, 1)
	assert.Equal(t, map[string]int{}, got.Steps[0].OutputWordCounts)
	assert.Equal(t, 2, got.Steps[0].FileCount)
}

func TestRead_MissingRequiredFields(t *testing.T) {
	tests := map[string]string{
		"steps":                 `{"total_elapsed_seconds": 1}`,
		"total_elapsed_seconds": `{"steps": []}`,
	}
	for field, body := range tests {
		t.Run(field, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "r.json")
			require.NoError(t, os.WriteFile(path, []byte(body), 0644))

			_, err := report.Read(path)
			var mf *report.MissingFieldError
			require.True(t, errors.As(err, &mf), "got %v", err)
			assert.Equal(t, field, mf.Field)
		})
	}
}

func TestRead_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	_, err := report.Read(path)
	require.Error(t, err)
	var syntax *json.SyntaxError
	assert.True(t, errors.As(err, &syntax))

	_, err = report.Read(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, report.FormatBytes(tt.size))
	}
}

func TestFormatSummaries(t *testing.T) {
	r := sample()
	assert.Equal(t, "crawl: 3 files (2.0 KB), 4.3s → out/html", report.FormatStepSummary(r.Steps[0]))

	summary := report.FormatPipelineSummary(r)
	lines := strings.Split(summary, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "total: 9.5s, 2 steps", lines[2])
}
