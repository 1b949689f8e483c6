package convert

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

var errUnsafeEntry = errors.New("archive entry escapes the output directory")

// ConvertZip converts the HTML entries of a zip archive into outputDir,
// mirroring the archive's internal paths. Entries are read sequentially and
// converted in parallel. Failures are reported by entry name.
func (c *Converter) ConvertZip(ctx context.Context, archivePath, outputDir string) (Result, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	zr, err := zip.OpenReader(archivePath)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return Result{}, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	entries := []*zip.File{}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !isHTMLName(f.Name) || strings.HasPrefix(f.Name, "__MACOSX") {
			continue
		}
		entries = append(entries, f)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	jobs := make([]job, 0, len(entries))
	for _, f := range entries {
		jobs = append(jobs, c.zipJob(f, outputDir))
	}

	res := c.run(ctx, jobs)
	c.log.WithFields(logrus.Fields{
		"archive":   archivePath,
		"converted": len(res.Outputs),
		"failed":    len(res.Failed),
	}).Info("archive conversion finished")
	return res, nil
}

// zipJob reads the entry up front. The archive reader is only touched from
// the calling goroutine.
func (c *Converter) zipJob(f *zip.File, outputDir string) job {
	name := f.Name
	out, safe := entryOutputPath(outputDir, name)
	if !safe {
		return job{source: name, output: out, read: func() ([]byte, error) { return nil, errUnsafeEntry }}
	}

	data, err := readEntry(f)
	return job{
		source: name,
		output: out,
		read:   func() ([]byte, error) { return data, err },
	}
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func entryOutputPath(outputDir, name string) (string, bool) {
	if path.IsAbs(name) || filepath.IsAbs(name) {
		return "", false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return "", false
		}
	}
	return filepath.Join(outputDir, filepath.FromSlash(withMarkdownExt(name))), true
}
