package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// DerivePrefix returns the crawl boundary for startURL: scheme://host plus the
// directory part of the path, always ending in "/".
func DerivePrefix(startURL string) (string, error) {
	u, err := url.Parse(startURL)
	if err != nil {
		return "", fmt.Errorf("invalid start URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid start URL %q: scheme and host are required", startURL)
	}
	path := u.EscapedPath()
	if !strings.HasSuffix(path, "/") {
		if i := strings.LastIndex(path, "/"); i >= 0 {
			path = path[:i]
		}
		path += "/"
	}
	return u.Scheme + "://" + u.Host + path, nil
}

// InScope is a literal string-prefix test. "/doc" matches "/docs" as well;
// retry reports depend on this exact behavior.
func InScope(rawURL, prefix string) bool {
	return strings.HasPrefix(rawURL, prefix)
}
