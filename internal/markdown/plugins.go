package markdown

import (
	"strconv"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"notebooklm_connector/internal/parse"
)

// admonitions maps class substrings to callout titles. Order matters: the
// first match wins.
var admonitions = []struct {
	classes []string
	title   string
}{
	{[]string{"note"}, "Note"},
	{[]string{"warning", "caution"}, "Warning"},
	{[]string{"tip"}, "Tip"},
	{[]string{"important"}, "Important"},
	{[]string{"info"}, "Info"},
}

func admonitionTitle(class string) string {
	class = strings.ToLower(class)
	for _, a := range admonitions {
		for _, c := range a.classes {
			if strings.Contains(class, c) {
				return a.title
			}
		}
	}
	return ""
}

// DocPatternsPlugin renders admonition blocks as titled blockquotes and
// description lists as bold terms followed by ": definition" lines.
// Admonitions are recognized by the callout hint Clean keeps, or by class.
func DocPatternsPlugin() md.Plugin {
	return func(conv *md.Converter) []md.Rule {
		return []md.Rule{
			{
				Filter: []string{"div", "section", "aside"},
				Replacement: func(content string, selec *goquery.Selection, _ *md.Options) *string {
					class := selec.AttrOr(parse.CalloutAttr, "")
					if class == "" {
						class = selec.AttrOr("class", "")
					}
					title := admonitionTitle(class)
					if title == "" {
						return nil
					}
					var b strings.Builder
					b.WriteString("\n> **" + title + "**\n")
					for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
						if strings.TrimSpace(line) == "" {
							b.WriteString(">\n")
							continue
						}
						b.WriteString("> " + line + "\n")
					}
					b.WriteString("\n")
					out := b.String()
					return &out
				},
			},
			{
				Filter: []string{"dt"},
				Replacement: func(content string, _ *goquery.Selection, _ *md.Options) *string {
					out := "\n**" + strings.TrimSpace(content) + "**\n"
					return &out
				},
			},
			{
				Filter: []string{"dd"},
				Replacement: func(content string, _ *goquery.Selection, _ *md.Options) *string {
					out := ": " + strings.TrimSpace(content) + "\n"
					return &out
				},
			},
		}
	}
}

// Span limits follow the HTML table model. A table whose flattened grid
// would still exceed maxGridCells is left to the GitHub-flavored table rule,
// which ignores spans.
const (
	maxColSpan   = 1000
	maxRowSpan   = 65534
	maxGridCells = 100000
)

// TablePlugin flattens tables with rowspan/colspan into a full grid,
// repeating spanned cell content so every row stands on its own when the
// text is chunked.
func TablePlugin() md.Plugin {
	return func(conv *md.Converter) []md.Rule {
		return []md.Rule{{
			Filter: []string{"table"},
			Replacement: func(_ string, selec *goquery.Selection, _ *md.Options) *string {
				rows := selec.Find("tr")
				if rows.Length() == 0 {
					return nil
				}
				g := &grid{rowCount: rows.Length()}
				rows.EachWithBreak(func(r int, tr *goquery.Selection) bool {
					return g.fillRow(conv, r, tr)
				})
				if g.overflow || g.width*g.rowCount > maxGridCells {
					return nil
				}
				out := g.render()
				return &out
			},
		}}
	}
}

// grid holds cell text by row and column. A nil entry is a free slot.
type grid struct {
	cells    [][]*string
	width    int
	rowCount int
	filled   int
	overflow bool
}

func (g *grid) row(r int) []*string {
	for len(g.cells) <= r {
		g.cells = append(g.cells, nil)
	}
	return g.cells[r]
}

func (g *grid) set(r, c int, text string) {
	row := g.row(r)
	for len(row) <= c {
		row = append(row, nil)
	}
	row[c] = &text
	g.cells[r] = row
	if c+1 > g.width {
		g.width = c + 1
	}
}

func (g *grid) occupied(r, c int) bool {
	row := g.row(r)
	return c < len(row) && row[c] != nil
}

// fillRow places the cells of row r and reports whether the grid is still
// within maxGridCells.
func (g *grid) fillRow(conv *md.Converter, r int, tr *goquery.Selection) bool {
	c := 0
	tr.Children().Filter("td, th").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		for g.occupied(r, c) {
			c++
		}
		rowSpan := min(span(cell, "rowspan", maxRowSpan), g.rowCount-r)
		colSpan := span(cell, "colspan", maxColSpan)
		g.filled += rowSpan * colSpan
		if g.filled > maxGridCells || c+colSpan > maxGridCells {
			g.overflow = true
			return false
		}
		text := cellText(conv.Convert(cell))
		for dr := 0; dr < rowSpan; dr++ {
			for dc := 0; dc < colSpan; dc++ {
				g.set(r+dr, c+dc, text)
			}
		}
		c += colSpan
		return true
	})
	return !g.overflow
}

func (g *grid) render() string {
	var b strings.Builder
	b.WriteString("\n")
	for r := 0; r < g.rowCount; r++ {
		row := g.row(r)
		b.WriteString("|")
		for c := 0; c < g.width; c++ {
			b.WriteString(" ")
			if c < len(row) && row[c] != nil {
				b.WriteString(*row[c])
			}
			b.WriteString(" |")
		}
		b.WriteString("\n")
		if r == 0 {
			b.WriteString("|" + strings.Repeat(" --- |", g.width) + "\n")
		}
	}
	b.WriteString("\n")
	return b.String()
}

// span reads a rowspan or colspan attribute, clamped to [1, limit].
func span(cell *goquery.Selection, attr string, limit int) int {
	v, err := strconv.Atoi(strings.TrimSpace(cell.AttrOr(attr, "1")))
	if err != nil || v < 1 {
		return 1
	}
	return min(v, limit)
}

func cellText(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "|", `\|`)
	return strings.ReplaceAll(text, "\n", " ")
}
