package content

import (
	"log/slog"
	"strings"

	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// articleThreshold is the HTML length from which readability extraction is
// attempted; shorter fragments are flattened directly.
const articleThreshold = 2048

var blockElements = map[string]bool{
	"p": true, "br": true, "div": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

type TextExtractor struct {
	articleThreshold int
}

func NewTextExtractor() *TextExtractor {
	return &TextExtractor{articleThreshold: articleThreshold}
}

// Run turns an HTML or plain-text body into NFC-normalized plain text.
func (e *TextExtractor) Run(s string) string {
	s = strings.TrimSpace(s)
	if !looksLikeHTML(s) {
		return norm.NFC.String(s)
	}

	if len(s) >= e.articleThreshold {
		article, err := readability.FromReader(strings.NewReader(s), nil)
		if err == nil && strings.TrimSpace(article.TextContent) != "" {
			return norm.NFC.String(collapseLines(article.TextContent))
		}
		slog.Debug("Readability extraction failed, flattening HTML", "length", len(s), "error", err)
	}

	return norm.NFC.String(collapseLines(flattenHTML(s)))
}

func looksLikeHTML(s string) bool {
	return strings.Contains(s, "<") && strings.Contains(s, ">") || strings.Contains(s, "&")
}

func flattenHTML(s string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				skip++
			}
			if blockElements[tag] {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if (tag == "script" || tag == "style") && skip > 0 {
				skip--
			}
			if blockElements[tag] {
				b.WriteByte('\n')
			}
		}
	}
}

func collapseLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
