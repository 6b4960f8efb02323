package template

//go:generate templ generate

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"novel-epub/model"
)

const (
	xmlHeader    = `<?xml version="1.0" encoding="utf-8"?>` + "\n"
	xhtmlDoctype = "<!DOCTYPE html>\n"
)

// NavEntry is one line of the table of contents.
type NavEntry struct {
	Href  string
	Label string
}

type xmlMarshaler interface {
	Marshal() (string, error)
}

// marshalled renders the encoding/xml form of a package document section.
func marshalled(m xmlMarshaler) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out, err := m.Marshal()
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	})
}

func ncxHead(uid string) *model.TocNCXHead {
	return &model.TocNCXHead{
		Meta: []model.TocNCXHeadMeta{
			{Name: "dtb:uid", Content: uid},
			{Name: "dtb:depth", Content: "1"},
			{Name: "dtb:totalPageCount", Content: "0"},
			{Name: "dtb:maxPageNumber", Content: "0"},
		},
	}
}

// templ renders void elements in HTML form, so XHTML-only markup is emitted raw.
func stylesheetLink(href string) string {
	return `<link rel="stylesheet" type="text/css" href="` + templ.EscapeString(href) + `"/>`
}

func styleElement(css string) string {
	return "<style>\n" + css + "\n</style>"
}
