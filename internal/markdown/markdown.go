package markdown

import (
	"regexp"
	"strings"

	htmltomd "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"

	"notebooklm_connector/internal/parse"
)

// Converter renders cleaned HTML to Markdown suitable for NotebookLM:
// ATX headings, no images, GitHub-flavored extras.
type Converter struct {
	md *htmltomd.Converter
}

func NewConverter() *Converter {
	conv := htmltomd.NewConverter("", true, &htmltomd.Options{
		HeadingStyle:   "atx",
		CodeBlockStyle: "fenced",
	})
	conv.Use(plugin.GitHubFlavored())
	conv.Use(TablePlugin())
	conv.Use(DocPatternsPlugin())

	conv.AddRules(codeBlockRule(), suppressRule("img", "svg", "picture"))

	return &Converter{md: conv}
}

// Render converts htmlText and normalizes the result's whitespace.
func (c *Converter) Render(htmlText string) (string, error) {
	out, err := c.md.ConvertString(htmlText)
	if err != nil {
		return "", err
	}
	return NormalizeWhitespace(out), nil
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// NormalizeWhitespace collapses runs of blank lines, trims the text and
// terminates it with exactly one newline.
func NormalizeWhitespace(text string) string {
	return strings.TrimSpace(blankRuns.ReplaceAllString(text, "\n\n")) + "\n"
}

// suppressRule drops the given elements entirely, alt text included.
func suppressRule(tags ...string) htmltomd.Rule {
	return htmltomd.Rule{
		Filter: tags,
		Replacement: func(_ string, _ *goquery.Selection, _ *htmltomd.Options) *string {
			empty := ""
			return &empty
		},
	}
}

func codeBlockRule() htmltomd.Rule {
	return htmltomd.Rule{
		Filter: []string{"pre"},
		Replacement: func(_ string, selec *goquery.Selection, _ *htmltomd.Options) *string {
			if selec == nil {
				empty := ""
				return &empty
			}

			code := selec.Find("code").First()
			if code.Length() == 0 {
				return nil
			}

			text := strings.ReplaceAll(code.Text(), "\r\n", "\n")
			text = strings.TrimSuffix(text, "\n")

			fence := "```"
			for strings.Contains(text, fence) {
				fence += "`"
			}

			out := "\n" + fence + detectLanguage(code) + "\n" + text + "\n" + fence + "\n"
			return &out
		},
	}
}

// Matches "language-go", "lang-go", "language-golang".
var langClass = regexp.MustCompile(`(?:^|\s)(?:language|lang)-([a-zA-Z0-9_+-]+)(?:\s|$)`)

// detectLanguage reads the language hint Clean leaves on the code element or
// its pre, falling back to a language-* class on uncleaned HTML.
func detectLanguage(code *goquery.Selection) string {
	lang := code.AttrOr(parse.LangAttr, "")
	if lang == "" {
		lang = code.ParentsFiltered("pre").First().AttrOr(parse.LangAttr, "")
	}
	if lang == "" {
		m := langClass.FindStringSubmatch(code.AttrOr("class", ""))
		if len(m) != 2 {
			return ""
		}
		lang = m[1]
	}
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "golang" {
		lang = "go"
	}
	return lang
}
