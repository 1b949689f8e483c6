package parse

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	DefaultStripTags    = []string{"nav", "footer", "header", "aside", "script", "style", "noscript", "iframe"}
	DefaultStripClasses = []string{"sidebar", "navigation", "nav", "menu", "toc", "breadcrumb"}
)

// Hint attributes survive cleaning and carry what the class attribute said
// about code language and callout boxes.
const (
	LangAttr    = "data-lang"
	CalloutAttr = "data-callout"
)

var langClass = regexp.MustCompile(`(?:^|\s)(?:language|lang)-([a-zA-Z0-9_+-]+)(?:\s|$)`)

var calloutClasses = []string{"admonition", "callout", "alert", "note", "warning", "caution", "tip", "important", "info"}

// contentSelectors are tried in priority order when isolating the page body.
var contentSelectors = []string{"main", "article", `[role="main"]`}

type CleanOptions struct {
	StripTags    []string
	StripClasses []string // case-insensitive substrings of the class attribute
}

func DefaultCleanOptions() CleanOptions {
	return CleanOptions{
		StripTags:    append([]string(nil), DefaultStripTags...),
		StripClasses: append([]string(nil), DefaultStripClasses...),
	}
}

// Clean reduces a documentation page to its content: it isolates the main
// region, drops chrome elements and svg, then removes class and style
// attributes. Code language and callout classes are first copied to
// LangAttr and CalloutAttr.
func Clean(htmlText string, opts CleanOptions) (string, error) {
	tree, err := NewTree(htmlText)
	if err != nil {
		return "", err
	}
	if _, err := tree.Isolate(contentSelectors...); err != nil {
		return "", err
	}
	for _, tag := range opts.StripTags {
		tree.Detach(tag)
	}
	tree.Detach("svg")

	patterns := lowerAll(opts.StripClasses)
	if len(patterns) > 0 {
		tree.DetachFunc(func(s *goquery.Selection) bool {
			class, ok := s.Attr("class")
			if !ok || class == "" {
				return false
			}
			class = strings.ToLower(class)
			for _, p := range patterns {
				if strings.Contains(class, p) {
					return true
				}
			}
			return false
		})
	}

	keepHints(tree)
	tree.StripAttrs("class", "style")
	return tree.HTML()
}

func keepHints(tree *Tree) {
	tree.Each("pre, code", func(s *goquery.Selection) {
		if m := langClass.FindStringSubmatch(s.AttrOr("class", "")); len(m) == 2 {
			s.SetAttr(LangAttr, m[1])
		}
	})
	tree.Each("div, section", func(s *goquery.Selection) {
		class := strings.ToLower(strings.TrimSpace(s.AttrOr("class", "")))
		if class == "" {
			return
		}
		for _, c := range calloutClasses {
			if strings.Contains(class, c) {
				s.SetAttr(CalloutAttr, class)
				return
			}
		}
	})
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
