package epub

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/a-h/templ"

	"novel-epub/model"
	"novel-epub/template"
	"novel-epub/utils"
)

const (
	rootDir   = "OEBPS"
	cssHref   = "style/nav.css"
	navHref   = "nav.xhtml"
	ncxHref   = "toc.ncx"
	coverHref = "cover.jpg"
	opfPath   = rootDir + "/content.opf"
)

var ErrUnsupportedImage = errors.New("unsupported image type")

var imageMediaTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// ImageMediaType maps a file extension to its EPUB media type.
func ImageMediaType(href string) (string, bool) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(href), "."))
	media, ok := imageMediaTypes[ext]
	return media, ok
}

type Chapter struct {
	ID    string
	Href  string
	Title string
	Body  string
}

type resource struct {
	id    string
	href  string
	media string
	data  []byte
}

// Builder accumulates one book and writes it once with Finalize.
// It is not safe for concurrent use.
type Builder struct {
	identifier string
	title      string
	author     string
	language   string
	css        string
	modified   time.Time

	chapters []*Chapter
	images   []*resource
	byHref   map[string]*resource
	ids      map[string]bool
	cover    []byte
}

func NewBuilder(identifier, title, author, language string) *Builder {
	return &Builder{
		identifier: identifier,
		title:      title,
		author:     author,
		language:   language,
		css:        template.StyleCSS + template.ImageCSS,
		modified:   time.Now().UTC().Truncate(time.Second),
		byHref:     make(map[string]*resource),
		ids:        make(map[string]bool),
	}
}

// SetCover stores the cover as JPEG. Undecodable data is rejected and the book keeps no cover.
func (b *Builder) SetCover(data []byte) error {
	jpeg, err := normalizeCover(data)
	if err != nil {
		return err
	}
	b.cover = jpeg
	return nil
}

func (b *Builder) HasImage(href string) bool {
	_, ok := b.byHref[href]
	return ok
}

// AddImage embeds data under href relative to the book root. The first image for an href wins;
// later calls for the same href report false.
func (b *Builder) AddImage(href string, data []byte) (bool, error) {
	href = path.Clean(filepath.ToSlash(href))
	if href == "." || path.IsAbs(href) || strings.HasPrefix(href, "../") {
		return false, fmt.Errorf("image path %q escapes the book", href)
	}
	if b.HasImage(href) {
		return false, nil
	}
	media, ok := ImageMediaType(href)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnsupportedImage, href)
	}
	r := &resource{
		id:    b.uniqueID("img_" + utils.Slugify(href)),
		href:  href,
		media: media,
		data:  data,
	}
	b.images = append(b.images, r)
	b.byHref[href] = r
	return true, nil
}

// AddChapter appends a chapter document numbered after the chapters already added.
func (b *Builder) AddChapter(title, body string) *Chapter {
	id := fmt.Sprintf("chap_%04d", len(b.chapters)+1)
	ch := &Chapter{
		ID:    id,
		Href:  id + ".xhtml",
		Title: title,
		Body:  body,
	}
	b.ids[id] = true
	b.chapters = append(b.chapters, ch)
	return ch
}

func (b *Builder) Chapters() []*Chapter {
	return b.chapters
}

func (b *Builder) uniqueID(base string) string {
	id := base
	for n := 2; b.ids[id]; n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	b.ids[id] = true
	return id
}

// Finalize serializes the book to outputFile. The file appears only when fully written.
func (b *Builder) Finalize(ctx context.Context, outputFile string) error {
	if len(b.chapters) == 0 {
		return ErrNoChapters
	}
	dir := filepath.Dir(outputFile)
	if err := utils.EnsureDir(dir); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := b.write(ctx, &buf); err != nil {
		return fmt.Errorf("failed to build epub: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".epub-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write epub: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write epub: %w", err)
	}
	if err := os.Rename(tmp.Name(), outputFile); err != nil {
		return fmt.Errorf("failed to move epub into place: %w", err)
	}
	return nil
}

func (b *Builder) write(ctx context.Context, buf *bytes.Buffer) error {
	a, err := newArchive(buf, b.modified)
	if err != nil {
		return err
	}

	entries := []struct {
		name string
		c    templ.Component
	}{
		{"META-INF/container.xml", template.ContainerXML(opfPath)},
		{opfPath, template.ContentOPF("book-id", b.metadata(), b.manifest(), b.spine())},
		{rootDir + "/" + ncxHref, template.TocNCX(b.identifier, b.title, b.navMap())},
		{rootDir + "/" + navHref, template.NavXHTML(b.title, b.language, cssHref, b.navEntries())},
	}
	for _, e := range entries {
		if err := a.addComponent(ctx, e.name, e.c); err != nil {
			return fmt.Errorf("failed to render %s: %w", e.name, err)
		}
	}

	if err := a.addString(rootDir+"/"+cssHref, b.css); err != nil {
		return err
	}
	for _, ch := range b.chapters {
		c := template.ContentXHTML(ch.Title, b.language, cssHref, ch.Body)
		if err := a.addComponent(ctx, rootDir+"/"+ch.Href, c); err != nil {
			return fmt.Errorf("failed to render %s: %w", ch.Href, err)
		}
	}
	// images are already compressed
	for _, img := range b.images {
		if err := a.addBytes(rootDir+"/"+img.href, img.data, zip.Store); err != nil {
			return err
		}
	}
	if b.cover != nil {
		if err := a.addBytes(rootDir+"/"+coverHref, b.cover, zip.Store); err != nil {
			return err
		}
	}
	return a.close()
}

func (b *Builder) metadata() *model.PackageMetadata {
	dc := &model.PackageMetadata{
		Titles:      []model.DCTitle{{Value: b.title}},
		Identifiers: []model.DCIdentifier{{Value: b.identifier, ID: "book-id"}},
		Languages:   []model.DCLanguage{{Value: b.language}},
		Creators:    []model.DCCreator{{Value: b.author, ID: "creator"}},
		Metas: []model.PackageMeta{
			{Property: "dcterms:modified", Value: b.modified.Format("2006-01-02T15:04:05Z")},
		},
	}
	if b.cover != nil {
		dc.Metas = append(dc.Metas, model.PackageMeta{Name: "cover", Content: "cover-img"})
	}
	return dc
}

func (b *Builder) manifest() *model.Manifest {
	m := &model.Manifest{Items: []model.ManifestItem{
		{ID: "nav", Link: navHref, Media: "application/xhtml+xml", Properties: "nav"},
		{ID: "ncx", Link: ncxHref, Media: "application/x-dtbncx+xml"},
		{ID: "style_nav", Link: cssHref, Media: "text/css"},
	}}
	if b.cover != nil {
		m.Items = append(m.Items, model.ManifestItem{ID: "cover-img", Link: coverHref, Media: "image/jpeg", Properties: "cover-image"})
	}
	for _, ch := range b.chapters {
		m.Items = append(m.Items, model.ManifestItem{ID: ch.ID, Link: ch.Href, Media: "application/xhtml+xml"})
	}
	for _, img := range b.images {
		m.Items = append(m.Items, model.ManifestItem{ID: img.id, Link: img.href, Media: img.media})
	}
	return m
}

func (b *Builder) spine() *model.Spine {
	s := &model.Spine{Toc: "ncx", Items: []model.SpineItem{{IDref: "nav"}}}
	for _, ch := range b.chapters {
		s.Items = append(s.Items, model.SpineItem{IDref: ch.ID})
	}
	return s
}

func (b *Builder) navEntries() []template.NavEntry {
	entries := make([]template.NavEntry, 0, len(b.chapters))
	for _, ch := range b.chapters {
		entries = append(entries, template.NavEntry{Href: ch.Href, Label: ch.Title})
	}
	return entries
}

func (b *Builder) navMap() *model.NavMap {
	nm := &model.NavMap{}
	for i, ch := range b.chapters {
		nm.Points = append(nm.Points, &model.NavPoint{
			Id:        ch.ID,
			PlayOrder: i + 1,
			Label:     ch.Title,
			Content:   model.NavPointContent{Src: ch.Href},
		})
	}
	return nm
}
