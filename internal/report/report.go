package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// StepResult summarizes one pipeline stage.
type StepResult struct {
	StepName         string         `json:"step_name"`
	FileCount        int            `json:"file_count"`
	TotalBytes       int64          `json:"total_bytes"`
	ElapsedSeconds   float64        `json:"elapsed_seconds"`
	OutputPath       string         `json:"output_path"`
	SkippedCount     int            `json:"skipped_count"`
	DownloadedCount  int            `json:"downloaded_count"`
	FailureCount     int            `json:"failure_count"`
	OutputWordCounts map[string]int `json:"output_word_counts"`
}

// PipelineReport is the persisted record of a run. Its failure lists seed
// retry runs.
type PipelineReport struct {
	RunID               string       `json:"run_id,omitempty"`
	Steps               []StepResult `json:"steps"`
	TotalElapsedSeconds float64      `json:"total_elapsed_seconds"`
	CrawlFailures       []string     `json:"crawl_failures"`
	ConvertFailures     []string     `json:"convert_failures"`
	Command             string       `json:"command"`
}

// New returns an empty report for command with a fresh run id.
func New(command string) PipelineReport {
	return PipelineReport{
		RunID:           uuid.NewString(),
		Steps:           []StepResult{},
		CrawlFailures:   []string{},
		ConvertFailures: []string{},
		Command:         command,
	}
}

// NewStep returns a StepResult with the output path in forward-slash form.
func NewStep(name, outputPath string) StepResult {
	return StepResult{
		StepName:         name,
		OutputPath:       filepath.ToSlash(outputPath),
		OutputWordCounts: map[string]int{},
	}
}

// MissingFieldError is returned by Read when a required field is absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("report: missing required field %q", e.Field)
}

// Write stores r as indented JSON, creating parent directories as needed.
func Write(r PipelineReport, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(normalize(r), "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0644)
}

// wireReport mirrors PipelineReport with pointers for the required fields so
// their absence can be told apart from zero values.
type wireReport struct {
	RunID               string        `json:"run_id"`
	Steps               *[]StepResult `json:"steps"`
	TotalElapsedSeconds *float64      `json:"total_elapsed_seconds"`
	CrawlFailures       []string      `json:"crawl_failures"`
	ConvertFailures     []string      `json:"convert_failures"`
	Command             string        `json:"command"`
}

// Read loads a report written by Write. Optional fields that are missing
// come back as empty values.
func Read(path string) (PipelineReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PipelineReport{}, fmt.Errorf("read report: %w", err)
	}
	var w wireReport
	if err := json.Unmarshal(data, &w); err != nil {
		return PipelineReport{}, fmt.Errorf("parse report %s: %w", path, err)
	}
	if w.Steps == nil {
		return PipelineReport{}, &MissingFieldError{Field: "steps"}
	}
	if w.TotalElapsedSeconds == nil {
		return PipelineReport{}, &MissingFieldError{Field: "total_elapsed_seconds"}
	}
	return normalize(PipelineReport{
		RunID:               w.RunID,
		Steps:               *w.Steps,
		TotalElapsedSeconds: *w.TotalElapsedSeconds,
		CrawlFailures:       w.CrawlFailures,
		ConvertFailures:     w.ConvertFailures,
		Command:             w.Command,
	}), nil
}

func normalize(r PipelineReport) PipelineReport {
	if r.Steps == nil {
		r.Steps = []StepResult{}
	}
	steps := make([]StepResult, len(r.Steps))
	for i, s := range r.Steps {
		if s.OutputWordCounts == nil {
			s.OutputWordCounts = map[string]int{}
		}
		steps[i] = s
	}
	r.Steps = steps
	if r.CrawlFailures == nil {
		r.CrawlFailures = []string{}
	}
	if r.ConvertFailures == nil {
		r.ConvertFailures = []string{}
	}
	return r
}

// FormatBytes renders size with a binary unit: 512 B, 1.5 KB, 2.3 MB.
func FormatBytes(size int64) string {
	const unit = 1024
	switch {
	case size < unit:
		return fmt.Sprintf("%d B", size)
	case size < unit*unit:
		return fmt.Sprintf("%.1f KB", float64(size)/unit)
	case size < unit*unit*unit:
		return fmt.Sprintf("%.1f MB", float64(size)/(unit*unit))
	default:
		return fmt.Sprintf("%.1f GB", float64(size)/(unit*unit*unit))
	}
}

// FormatStepSummary renders one line such as
// "crawl: 15 files (2.3 MB), 45.2s → out/html".
func FormatStepSummary(s StepResult) string {
	return fmt.Sprintf("%s: %d files (%s), %.1fs → %s",
		s.StepName, s.FileCount, FormatBytes(s.TotalBytes), s.ElapsedSeconds, s.OutputPath)
}

// FormatPipelineSummary renders every step followed by a total line.
func FormatPipelineSummary(r PipelineReport) string {
	lines := make([]string, 0, len(r.Steps)+1)
	for _, s := range r.Steps {
		lines = append(lines, FormatStepSummary(s))
	}
	lines = append(lines, fmt.Sprintf("total: %.1fs, %d steps", r.TotalElapsedSeconds, len(r.Steps)))
	return strings.Join(lines, "\n")
}
