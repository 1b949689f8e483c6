package combine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"notebooklm_connector/internal/logging"
)

const (
	DefaultSeparator     = "\n\n---\n\n"
	DefaultWordThreshold = 500000
)

type Config struct {
	InputDir        string
	OutputFile      string
	Separator       string
	AddSourceHeader bool
	WordThreshold   int // words per output file before splitting; 0 means DefaultWordThreshold
}

func DefaultConfig(inputDir, outputFile string) Config {
	return Config{
		InputDir:        inputDir,
		OutputFile:      outputFile,
		Separator:       DefaultSeparator,
		AddSourceHeader: true,
		WordThreshold:   DefaultWordThreshold,
	}
}

// Result lists the files written, with word counts keyed by the
// forward-slash form of each path.
type Result struct {
	Outputs    []string
	WordCounts map[string]int
}

// Combine concatenates every Markdown file under InputDir into OutputFile.
// When the total exceeds WordThreshold the sections are packed greedily into
// numbered files next to OutputFile instead. A section is never split.
func Combine(cfg Config, log logrus.FieldLogger) (Result, error) {
	if log == nil {
		log = logging.Discard()
	}
	if cfg.WordThreshold <= 0 {
		cfg.WordThreshold = DefaultWordThreshold
	}
	if err := os.MkdirAll(filepath.Dir(cfg.OutputFile), 0755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	files, err := findMarkdown(cfg.InputDir)
	if err != nil {
		return Result{}, err
	}
	if len(files) == 0 {
		log.WithField("dir", cfg.InputDir).Warn("no markdown files found")
		if err := os.WriteFile(cfg.OutputFile, nil, 0644); err != nil {
			return Result{}, err
		}
		return single(cfg.OutputFile, 0), nil
	}

	sections, err := readSections(cfg, files)
	if err != nil {
		return Result{}, err
	}

	combined := strings.Join(sections, cfg.Separator) + "\n"
	total := countWords(combined)
	if total <= cfg.WordThreshold {
		if err := os.WriteFile(cfg.OutputFile, []byte(combined), 0644); err != nil {
			return Result{}, err
		}
		log.WithFields(logrus.Fields{"files": len(files), "output": cfg.OutputFile, "words": total}).Info("combined markdown")
		return single(cfg.OutputFile, total), nil
	}

	chunks := splitSections(sections, cfg.Separator, cfg.WordThreshold)
	res := Result{Outputs: []string{}, WordCounts: map[string]int{}}
	for i, chunk := range chunks {
		path := chunkPath(cfg.OutputFile, i+1)
		if err := os.WriteFile(path, []byte(chunk), 0644); err != nil {
			return Result{}, err
		}
		res.Outputs = append(res.Outputs, path)
		res.WordCounts[filepath.ToSlash(path)] = countWords(chunk)
	}
	log.WithFields(logrus.Fields{"files": len(files), "chunks": len(chunks), "words": total}).Info("combined markdown split into chunks")
	return res, nil
}

func single(path string, words int) Result {
	return Result{
		Outputs:    []string{path},
		WordCounts: map[string]int{filepath.ToSlash(path): words},
	}
}

func readSections(cfg Config, files []string) ([]string, error) {
	sections := make([]string, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		content := strings.TrimSpace(string(data))
		if !cfg.AddSourceHeader {
			sections = append(sections, content)
			continue
		}
		rel, err := filepath.Rel(cfg.InputDir, f)
		if err != nil {
			rel = f
		}
		sections = append(sections, "Source: "+filepath.ToSlash(rel)+"\n\n"+content)
	}
	return sections, nil
}

// splitSections packs sections into chunks without letting a chunk's word
// count exceed threshold. The separator's own words count toward the chunk.
// Reaching the threshold exactly keeps the section in the current chunk.
func splitSections(sections []string, sep string, threshold int) []string {
	chunks := []string{}
	current := []string{}
	words := 0
	sepWords := countWords(sep)

	for _, section := range sections {
		n := countWords(section)
		next := words + n
		if len(current) > 0 {
			next += sepWords
		}
		if len(current) > 0 && next > threshold {
			chunks = append(chunks, strings.Join(current, sep)+"\n")
			current = []string{section}
			words = n
			continue
		}
		current = append(current, section)
		words = next
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, sep)+"\n")
	}
	return chunks
}

// chunkPath turns out/combined.md into out/combined-001.md.
func chunkPath(outputFile string, n int) string {
	ext := filepath.Ext(outputFile)
	stem := strings.TrimSuffix(filepath.Base(outputFile), ext)
	return filepath.Join(filepath.Dir(outputFile), fmt.Sprintf("%s-%03d%s", stem, n, ext))
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

// findMarkdown lists *.md files under root in path-component order. A
// missing root yields no files.
func findMarkdown(root string) ([]string, error) {
	files := []string{}
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return files, nil
	}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".md") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan input dir: %w", err)
	}
	return files, nil
}
