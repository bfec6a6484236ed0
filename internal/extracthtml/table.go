package extracthtml

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseContactTable parses html and returns every row of the first table
// matched by tableSelector, in DOM order.
//
// A row must have at least two <td> cells and one <i> element; otherwise the
// whole table is rejected with a *RowError. A page without the table yields
// ErrTableNotFound.
func ParseContactTable(src, tableSelector string) ([]TableRow, error) {
	if strings.TrimSpace(tableSelector) == "" {
		tableSelector = DefaultTableSelector
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	table := doc.Find(tableSelector).First()
	if table.Length() == 0 {
		return nil, ErrTableNotFound
	}

	var (
		rows   []TableRow
		rowErr error
	)
	table.Find("tr").EachWithBreak(func(i int, tr *goquery.Selection) bool {
		cells := tr.Find("td")
		if cells.Length() < 2 {
			rowErr = &RowError{Row: i, Reason: "missing value cell"}
			return false
		}
		icon := tr.Find("i").First()
		if icon.Length() == 0 {
			rowErr = &RowError{Row: i, Reason: "missing icon"}
			return false
		}

		value := cells.Eq(1)
		class, _ := icon.Attr("class")
		rows = append(rows, TableRow{
			Text:    StrippedText(value),
			Classes: strings.Fields(class),
			Script:  strings.TrimSpace(value.Find("script").Text()),
		})
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}
	return rows, nil
}

// StrippedText concatenates every descendant text node of sel, each trimmed
// of surrounding whitespace. Script, style and comment content is skipped.
func StrippedText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		appendStripped(&b, n)
	}
	return b.String()
}

func appendStripped(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(strings.TrimSpace(n.Data))
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		appendStripped(b, c)
	}
}
