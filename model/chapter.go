package model

import (
	"html"
	"strings"

	"novel-epub/text"
)

// Page is what the browser returns for one chapter URL.
type Page struct {
	URL   string
	Title string
	HTML  string
}

type ContentKind int

const (
	ContentText ContentKind = iota
	ContentImages
)

func (k ContentKind) String() string {
	if k == ContentImages {
		return "images"
	}
	return "text"
}

// ChapterContent is either normalized text (paragraphs separated by a blank line) or image sources.
type ChapterContent struct {
	Kind   ContentKind
	Text   string
	Images []string
}

// HTML renders the content as paragraphs or as one <img> per line.
func (c *ChapterContent) HTML() string {
	if c.Kind == ContentImages {
		return ImageTags(c.Images)
	}
	return text.Paragraphs(c.Text)
}

func ImageTags(srcs []string) string {
	tags := make([]string, 0, len(srcs))
	for _, src := range srcs {
		tags = append(tags, `<img src="`+html.EscapeString(src)+`" alt="Chapter Image" />`)
	}
	return strings.Join(tags, "\n")
}
