package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var skippedSchemes = []string{"mailto:", "javascript:", "tel:"}

// ExtractLinks returns in-scope absolute links of htmlText in document order,
// without fragments or query strings, first occurrence wins.
func ExtractLinks(htmlText, pageURL, prefix string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil
	}

	links := []string{}
	seen := map[string]struct{}{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if hasSkippedScheme(href) {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		absolute := normalizeURL(base.ResolveReference(ref))
		if !InScope(absolute, prefix) {
			return
		}
		if _, ok := seen[absolute]; ok {
			return
		}
		seen[absolute] = struct{}{}
		links = append(links, absolute)
	})
	return links
}

func hasSkippedScheme(href string) bool {
	lower := strings.ToLower(href)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

func normalizeURL(u *url.URL) string {
	clean := *u
	clean.Fragment = ""
	clean.RawFragment = ""
	clean.RawQuery = ""
	clean.ForceQuery = false
	return clean.String()
}

// NormalizeURL strips the query string and fragment. It is the frontier's dedup key.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return normalizeURL(u)
}
