package parse

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Tree is an owned, mutable HTML document. All mutation goes through its
// methods so callers never hold on to nodes that may have been detached.
type Tree struct {
	doc *goquery.Document
}

func NewTree(htmlText string) (*Tree, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, err
	}
	return &Tree{doc: doc}, nil
}

// Isolate replaces the tree with the subtree of the first selector that
// matches anything. Selectors are tried in order. It reports whether a
// replacement happened.
func (t *Tree) Isolate(selectors ...string) (bool, error) {
	if t == nil || t.doc == nil {
		return false, errors.New("nil tree")
	}
	for _, selector := range selectors {
		if strings.TrimSpace(selector) == "" {
			continue
		}
		sel := t.doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		outer, err := goquery.OuterHtml(sel)
		if err != nil {
			return false, err
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(outer))
		if err != nil {
			return false, err
		}
		t.doc = doc
		return true, nil
	}
	return false, nil
}

// Detach removes every element matching selector together with its subtree
// and returns how many were removed.
func (t *Tree) Detach(selector string) int {
	if t == nil || t.doc == nil || strings.TrimSpace(selector) == "" {
		return 0
	}
	sel := t.doc.Find(selector)
	n := sel.Length()
	sel.Remove()
	return n
}

// DetachFunc removes every element for which match returns true.
func (t *Tree) DetachFunc(match func(*goquery.Selection) bool) int {
	if t == nil || t.doc == nil || match == nil {
		return 0
	}
	doomed := t.doc.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return match(s)
	})
	n := doomed.Length()
	doomed.Remove()
	return n
}

// Each calls fn for every element matching selector.
func (t *Tree) Each(selector string, fn func(*goquery.Selection)) {
	if t == nil || t.doc == nil || fn == nil {
		return
	}
	t.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		fn(s)
	})
}

// StripAttrs removes the named attributes from every element.
func (t *Tree) StripAttrs(names ...string) {
	if t == nil || t.doc == nil {
		return
	}
	t.doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		for _, name := range names {
			s.RemoveAttr(name)
		}
	})
}

func (t *Tree) HTML() (string, error) {
	if t == nil || t.doc == nil {
		return "", errors.New("nil tree")
	}
	return t.doc.Html()
}
