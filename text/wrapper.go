package text

import (
	"html"
	"regexp"
	"strings"
)

var (
	multiSpaceRe   = regexp.MustCompile(` {2,}`)
	multiNewlineRe = regexp.MustCompile(`\n+`)
)

// Normalize collapses space runs and newline runs, then turns every line break into a
// paragraph break so paragraphs are separated by exactly one blank line.
func Normalize(s string) string {
	s = multiSpaceRe.ReplaceAllString(s, " ")
	s = multiNewlineRe.ReplaceAllString(s, "\n")
	s = strings.ReplaceAll(s, "\n", "\n\n")
	return strings.TrimSpace(s)
}

// Split returns the trimmed, non-empty blocks of normalized text.
func Split(s string) []string {
	blocks := make([]string, 0)
	for _, block := range strings.Split(s, "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

// Paragraphs wraps each block of normalized text in an escaped <p> element.
func Paragraphs(s string) string {
	var b strings.Builder
	for _, block := range Split(s) {
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(block))
		b.WriteString("</p>")
	}
	return b.String()
}
