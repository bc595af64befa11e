package feed

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	lineBreakRe  = regexp.MustCompile(`(?i)<(?:br\s*/?|/p|/div|/li|/h[1-6]|/tr|/blockquote)>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// StripHTML converts an HTML fragment to plain text. Tags that end a
// block (and <br>) become line breaks first so extracted sentences do
// not run together; script and style bodies are dropped entirely.
func StripHTML(fragment string) string {
	if fragment == "" {
		return ""
	}

	withBreaks := lineBreakRe.ReplaceAllString(fragment, "\n")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(withBreaks))
	if err != nil {
		// Not parseable as HTML, hand back the raw text.
		return strings.TrimSpace(fragment)
	}
	doc.Find("script,style").Remove()

	return strings.TrimSpace(doc.Text())
}

// collapseWhitespace squeezes every whitespace run, newlines included,
// to a single space and trims the ends.
func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
