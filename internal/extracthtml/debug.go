package extracthtml

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DebugPrintSelector prints the outer HTML, or the stripped text when
// textOnly is set, of every match of selector. Matches are separated by a
// blank line.
func DebugPrintSelector(w io.Writer, src, selector string, textOnly bool) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}

	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if textOnly {
			fmt.Fprintf(w, "%s\n\n", StrippedText(s))
			return
		}
		out, err := goquery.OuterHtml(s)
		if err != nil {
			out, _ = s.Html()
		}
		fmt.Fprintf(w, "%s\n\n", out)
	})
	return nil
}
