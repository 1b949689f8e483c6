package crawler

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
)

type urlset struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

type sitemapIndex struct {
	XMLName  xml.Name          `xml:"sitemapindex"`
	Sitemaps []sitemapLocation `xml:"sitemap"`
}

type sitemapLocation struct {
	Loc string `xml:"loc"`
}

// maxSitemapDepth bounds how many index levels are followed below the
// sitemap passed to ParseSitemap.
const maxSitemapDepth = 3

// ParseSitemap returns every page URL listed by a sitemap or sitemap index.
// Each sitemap is fetched at most once, so indexes that list themselves or
// each other terminate.
func ParseSitemap(ctx context.Context, f Fetcher, sitemapURL string) ([]string, error) {
	return parseSitemap(ctx, f, sitemapURL, map[string]struct{}{}, 0)
}

func parseSitemap(ctx context.Context, f Fetcher, sitemapURL string, seen map[string]struct{}, depth int) ([]string, error) {
	seen[sitemapURL] = struct{}{}
	page, err := f.Get(ctx, sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap: %w", err)
	}
	body := []byte(page.Body)

	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil {
		return parseSitemapIndex(ctx, f, index, seen, depth)
	}
	return parseURLSet(body)
}

func parseSitemapIndex(ctx context.Context, f Fetcher, index sitemapIndex, seen map[string]struct{}, depth int) ([]string, error) {
	allURLs := []string{}
	if depth >= maxSitemapDepth {
		return allURLs, nil
	}
	for _, sitemap := range index.Sitemaps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loc := strings.TrimSpace(sitemap.Loc)
		if loc == "" {
			continue
		}
		if _, ok := seen[loc]; ok {
			continue
		}
		urls, err := parseSitemap(ctx, f, loc, seen, depth+1)
		if err != nil {
			// Continue with other sitemaps even if one fails
			continue
		}
		allURLs = append(allURLs, urls...)
	}
	return allURLs, nil
}

func parseURLSet(body []byte) ([]string, error) {
	var set urlset
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("parse sitemap XML: %w", err)
	}
	urls := make([]string, 0, len(set.URLs))
	for _, u := range set.URLs {
		loc := strings.TrimSpace(u.Loc)
		if loc != "" {
			urls = append(urls, loc)
		}
	}
	return urls, nil
}

// SitemapSeeds orders startURL first, then the in-scope sitemap URLs.
func SitemapSeeds(startURL, prefix string, sitemapURLs []string) []string {
	seeds := []string{startURL}
	for _, u := range sitemapURLs {
		if InScope(u, prefix) {
			seeds = append(seeds, u)
		}
	}
	return seeds
}
