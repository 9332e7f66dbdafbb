package classifier

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractText reduces an HTML body to plain text for scoring. Script, style,
// and navigation chrome are dropped; non-HTML input passes through with
// whitespace collapsed.
func ExtractText(body string) string {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return ""
	}
	if !strings.Contains(trimmed, "<") {
		return collapseWhitespace(trimmed)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed))
	if err != nil {
		return collapseWhitespace(trimmed)
	}
	doc.Find("script, style, nav, header, footer, aside").Remove()

	var parts []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, blockquote, pre, td").Each(func(_ int, sel *goquery.Selection) {
		if text := collapseWhitespace(sel.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		return collapseWhitespace(doc.Text())
	}
	return strings.Join(parts, "\n")
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
