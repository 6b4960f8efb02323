package epub

import (
	"archive/zip"
	"bytes"
	"context"
	"time"

	"github.com/a-h/templ"
)

const mimetype = "application/epub+zip"

type archive struct {
	zw       *zip.Writer
	modified time.Time
}

func newArchive(buf *bytes.Buffer, modified time.Time) (*archive, error) {
	a := &archive{zw: zip.NewWriter(buf), modified: modified}
	// Readers expect the uncompressed mimetype as the first entry.
	if err := a.addBytes("mimetype", []byte(mimetype), zip.Store); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *archive) addBytes(relPath string, content []byte, method uint16) error {
	header := &zip.FileHeader{
		Name:     relPath,
		Method:   method,
		Modified: a.modified,
	}
	writer, err := a.zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = writer.Write(content)
	return err
}

func (a *archive) addString(relPath, content string) error {
	return a.addBytes(relPath, []byte(content), zip.Deflate)
}

func (a *archive) addComponent(ctx context.Context, relPath string, c templ.Component) error {
	header := &zip.FileHeader{
		Name:     relPath,
		Method:   zip.Deflate,
		Modified: a.modified,
	}
	writer, err := a.zw.CreateHeader(header)
	if err != nil {
		return err
	}
	return c.Render(ctx, writer)
}

func (a *archive) close() error {
	return a.zw.Close()
}
