package crawler

import (
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const indexFile = "index.html"

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9_.\-/]`)

// URLToPath maps a URL to a flat cache file name. The mapping is deterministic
// but not injective: distinct deep paths can flatten to the same name.
func URLToPath(rawURL, baseURL string) string {
	path := trimmedPath(rawURL)
	if path == "" || path == trimmedPath(baseURL) {
		return indexFile
	}
	name := unsafePathChars.ReplaceAllString(path, "_")
	name = strings.ReplaceAll(name, "/", "_")
	if !strings.HasSuffix(name, ".html") {
		name += ".html"
	}
	return name
}

func trimmedPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.Trim(u.EscapedPath(), "/")
}

// PageStore is the on-disk HTML cache rooted at the crawl output directory.
type PageStore struct {
	dir     string
	baseURL string
}

func NewPageStore(dir, baseURL string) *PageStore {
	return &PageStore{dir: dir, baseURL: baseURL}
}

func (s *PageStore) Identifier(rawURL string) string {
	return URLToPath(rawURL, s.baseURL)
}

func (s *PageStore) Path(id string) string {
	return filepath.Join(s.dir, filepath.FromSlash(id))
}

func (s *PageStore) Exists(id string) bool {
	info, err := os.Stat(s.Path(id))
	return err == nil && !info.IsDir()
}

func (s *PageStore) Read(id string) (string, error) {
	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *PageStore) Write(id, content string) error {
	path := s.Path(id)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}
