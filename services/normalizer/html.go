package normalizer

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jaytaylor/html2text"
)

var whitespaceRe = regexp.MustCompile(`[ \t]+`)

// extractTextFromHTML derives a plain-text body for HTML-only messages
func extractTextFromHTML(html string) string {
	if text, err := html2text.FromString(html, html2text.Options{TextOnly: true}); err == nil {
		return strings.TrimSpace(text)
	}

	// html2text chokes on some malformed markup; strip tags with goquery instead
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style, head").Each(func(i int, el *goquery.Selection) {
		el.Remove()
	})

	text := doc.Text()
	text = whitespaceRe.ReplaceAllString(text, " ")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}

	return strings.Join(lines, "\n")
}
