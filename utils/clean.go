package utils

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const untitled = "untitled_story"

var (
	nonWordRe   = regexp.MustCompile(`[^\w\s-]`)
	dashSpaceRe = regexp.MustCompile(`[-\s]+`)

	// đ has no decomposition and would otherwise vanish
	letterFolder = strings.NewReplacer("đ", "d", "Đ", "D")

	asciiOnly = transform.Chain(
		norm.NFKD,
		runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
	)
)

// Slugify turns a title or path segment into a lowercase, hyphenated ASCII slug.
func Slugify(s string) string {
	folded, _, err := transform.String(asciiOnly, letterFolder.Replace(s))
	if err != nil {
		folded = s
	}
	folded = nonWordRe.ReplaceAllString(folded, "")
	folded = strings.TrimSpace(folded)
	folded = dashSpaceRe.ReplaceAllString(folded, "-")
	return strings.ToLower(folded)
}

// CleanFilename is Slugify with a fallback for names that slug to nothing.
func CleanFilename(s string) string {
	slug := Slugify(s)
	if slug == "" {
		return untitled
	}
	return slug
}
