package combine_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notebooklm_connector/internal/combine"
)

func writeMD(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestCombine_OrdersAndHeadersSections(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "combined.md")
	writeMD(t, in, "b.md", "\n\n# B\n\nbeta\n\n")
	writeMD(t, in, "a.md", "# A\n\nalpha")
	writeMD(t, in, "guide/c.md", "# C")
	writeMD(t, in, "skip.txt", "not markdown")

	res, err := combine.Combine(combine.DefaultConfig(in, out), nil)
	require.NoError(t, err)

	want := "Source: a.md\n\n# A\n\nalpha" +
		"\n\n---\n\n" + "Source: b.md\n\n# B\n\nbeta" +
		"\n\n---\n\n" + "Source: guide/c.md\n\n# C\n"
	assert.Equal(t, want, read(t, out))
	assert.Equal(t, []string{out}, res.Outputs)
	assert.Equal(t, map[string]int{filepath.ToSlash(out): len(strings.Fields(want))}, res.WordCounts)
}

func TestCombine_WithoutHeaderCustomSeparator(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "all.md")
	writeMD(t, in, "1.md", "one")
	writeMD(t, in, "2.md", "two")

	cfg := combine.DefaultConfig(in, out)
	cfg.AddSourceHeader = false
	cfg.Separator = "\n\n"
	_, err := combine.Combine(cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, "one\n\ntwo\n", read(t, out))
}

func TestCombine_EmptyInputWritesEmptyFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "combined.md")

	res, err := combine.Combine(combine.DefaultConfig(t.TempDir(), out), nil)
	require.NoError(t, err)

	assert.Equal(t, "", read(t, out))
	assert.Equal(t, map[string]int{filepath.ToSlash(out): 0}, res.WordCounts)
}

func TestCombine_MissingInputWritesEmptyFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "combined.md")

	res, err := combine.Combine(combine.DefaultConfig(filepath.Join(t.TempDir(), "absent"), out), nil)
	require.NoError(t, err)

	assert.Equal(t, "", read(t, out))
	assert.Equal(t, []string{out}, res.Outputs)
}

func TestCombine_SplitsLargeInput(t *testing.T) {
	in := t.TempDir()
	outDir := t.TempDir()
	out := filepath.Join(outDir, "combined.md")
	words := strings.Repeat("word ", 300000)
	writeMD(t, in, "a.md", words)
	writeMD(t, in, "b.md", words)

	res, err := combine.Combine(combine.DefaultConfig(in, out), nil)
	require.NoError(t, err)

	first := filepath.Join(outDir, "combined-001.md")
	second := filepath.Join(outDir, "combined-002.md")
	assert.Equal(t, []string{first, second}, res.Outputs)
	assert.NoFileExists(t, out)
	for _, p := range res.Outputs {
		assert.LessOrEqual(t, res.WordCounts[filepath.ToSlash(p)], combine.DefaultWordThreshold)
	}
	assert.True(t, strings.HasPrefix(read(t, first), "Source: a.md\n\n"))
	assert.True(t, strings.HasPrefix(read(t, second), "Source: b.md\n\n"))
}

func TestCombine_ChunkWordCountsRespectThreshold(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "c.md")
	for _, name := range []string{"1.md", "2.md", "3.md", "4.md", "5.md"} {
		writeMD(t, in, name, strings.Repeat("w ", 4))
	}
	writeMD(t, in, "6.md", strings.Repeat("big ", 30))

	cfg := combine.DefaultConfig(in, out)
	cfg.WordThreshold = 15
	res, err := combine.Combine(cfg, nil)
	require.NoError(t, err)

	require.Greater(t, len(res.Outputs), 1)
	for i, p := range res.Outputs {
		n := res.WordCounts[filepath.ToSlash(p)]
		body := read(t, p)
		if n > cfg.WordThreshold {
			// Only a lone oversized section may exceed the limit.
			assert.Equal(t, 1, strings.Count(body, "Source: "), "chunk %d", i)
		}
		assert.Equal(t, len(strings.Fields(body)), n)
	}
}
