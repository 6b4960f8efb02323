package extractor

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"novel-epub/model"
	"novel-epub/text"
)

// Both class names have been used by the source site for the chapter body.
const containerSelector = "div.truyen, div.content"

// Lazy-load attributes win over src.
var imageAttrs = []string{"data-url", "data-src", "src"}

func parse(rawHTML string) (*goquery.Document, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, false
	}
	return doc, true
}

// FindContainer returns the first chapter content container in doc.
func FindContainer(doc *goquery.Document) (*goquery.Selection, bool) {
	sel := doc.Find(containerSelector).First()
	return sel, sel.Length() > 0
}

// ExtractContent isolates the chapter body and classifies it as text or images.
// It returns nil when there is no container or the container holds nothing usable.
func ExtractContent(rawHTML string, minTextLength int) *model.ChapterContent {
	doc, ok := parse(rawHTML)
	if !ok {
		return nil
	}
	container, ok := FindContainer(doc)
	if !ok {
		return nil
	}

	body := text.Normalize(VisibleText(container))
	images := ImageSources(container)

	if len(images) > 0 && (body == "" || utf8.RuneCountInString(body) < minTextLength) {
		return &model.ChapterContent{Kind: model.ContentImages, Images: images}
	}
	if body != "" {
		return &model.ChapterContent{Kind: model.ContentText, Text: body}
	}
	return nil
}

// VisibleText joins the trimmed text nodes under sel with newlines, skipping scripts and styles.
func VisibleText(sel *goquery.Selection) string {
	parts := make([]string, 0)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
			return
		case html.ElementNode:
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style || n.DataAtom == atom.Noscript {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(parts, "\n")
}

// ImageSources lists the image URLs under sel in document order.
func ImageSources(sel *goquery.Selection) []string {
	srcs := make([]string, 0)
	sel.Find("img").Each(func(i int, s *goquery.Selection) {
		for _, attr := range imageAttrs {
			if v := strings.TrimSpace(s.AttrOr(attr, "")); v != "" {
				srcs = append(srcs, v)
				return
			}
		}
	})
	return srcs
}

// ExtractTitle prefers <h1> over <title> and drops everything up to the last colon.
func ExtractTitle(rawHTML string) (string, bool) {
	doc, ok := parse(rawHTML)
	if !ok {
		return "", false
	}
	node := doc.Find("h1").First()
	if node.Length() == 0 {
		node = doc.Find("title").First()
	}
	if node.Length() == 0 {
		return "", false
	}
	title := strings.TrimSpace(node.Text())
	if i := strings.LastIndex(title, ":"); i >= 0 {
		title = strings.TrimSpace(title[i+1:])
	}
	return title, title != ""
}

// ContainerHTML returns the inner markup of the content container.
func ContainerHTML(rawHTML string) (string, bool) {
	doc, ok := parse(rawHTML)
	if !ok {
		return "", false
	}
	container, ok := FindContainer(doc)
	if !ok {
		return "", false
	}
	inner, err := container.Html()
	if err != nil {
		return "", false
	}
	return inner, true
}
