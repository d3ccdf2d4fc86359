package fetcher

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/usagebar/internal/models"
)

// Browsers render a raw JSON response inside a <pre> viewer element
var prePattern = regexp.MustCompile(`(?s)<pre[^>]*>(.*?)</pre>`)

var whitespace = regexp.MustCompile(`\s+`)

// extractPreJSON returns the text of the first <pre> element, unescaped
func extractPreJSON(content string) (string, bool) {
	m := prePattern.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return html.UnescapeString(m[1]), true
}

func decodeSnapshot(raw []byte) (*models.UsageSnapshot, error) {
	snap, err := models.NewUsageSnapshot(raw)
	if err != nil {
		return nil, &FetchError{Kind: KindJSONDecode, Err: fmt.Errorf("decode usage document: %w", err)}
	}
	return snap, nil
}

// describeBody reduces a response to readable diagnostic text. HTML pages
// (challenge or error pages) are reduced to their title and visible text.
func describeBody(body string) string {
	text := strings.TrimSpace(body)
	if text == "" {
		return ""
	}

	if strings.HasPrefix(text, "<") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(text)); err == nil {
			doc.Find("script, style, noscript").Remove()

			title := strings.TrimSpace(doc.Find("title").First().Text())
			if pre := doc.Find("pre").First(); pre.Length() > 0 {
				text = pre.Text()
			} else {
				text = doc.Find("body").Text()
			}
			text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
			switch {
			case title == "":
			case text == "":
				text = title
			case !strings.HasPrefix(text, title):
				text = title + ": " + text
			}
		}
	}

	return truncate(text, maxDiagnosticLength)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
