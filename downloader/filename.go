package downloader

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"novel-epub/utils"
)

const maxSlugLength = 120

var pageExtensions = []string{".html", ".htm", ".php", ".aspx"}

// GenerateFilename builds {index:04d}-{url slug}[-{subtitle slug}].html.
// The subtitle is whatever follows the first colon of the page title.
func GenerateFilename(index int, rawURL, title string) string {
	name := fmt.Sprintf("%04d-%s", index, urlSlug(rawURL))
	if i := strings.Index(title, ":"); i >= 0 {
		if sub := truncate(utils.Slugify(title[i+1:])); sub != "" {
			name += "-" + sub
		}
	}
	return strings.ToLower(name) + ".html"
}

// urlSlug uses the last non-empty path segment of the URL.
func urlSlug(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	segment := path.Base(strings.TrimRight(p, "/"))
	for _, ext := range pageExtensions {
		if strings.HasSuffix(strings.ToLower(segment), ext) {
			segment = segment[:len(segment)-len(ext)]
			break
		}
	}
	slug := truncate(utils.Slugify(segment))
	if slug == "" {
		return "chapter"
	}
	return slug
}

func truncate(slug string) string {
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return slug
}

// imageFilename is {chapter:04d}_{n:03d}.{ext}; unknown extensions become png.
func imageFilename(chapter, n int, src string) string {
	ext := src
	if i := strings.LastIndex(ext, "."); i >= 0 {
		ext = ext[i+1:]
	}
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	ext = strings.ToLower(ext)
	switch ext {
	case "jpg", "jpeg", "png", "gif", "webp":
	default:
		ext = "png"
	}
	return fmt.Sprintf("%04d_%03d.%s", chapter, n, ext)
}
