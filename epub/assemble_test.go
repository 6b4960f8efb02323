package epub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-epub/config"
	"novel-epub/utils"
)

func newTestAssembler(t *testing.T) *Assembler {
	t.Helper()
	cfg := config.Default()
	cfg.EpubOutputDir = t.TempDir()
	a, err := NewAssembler(cfg, utils.NewRestyClient(5*time.Second, config.DefaultUserAgent), utils.DiscardLogger())
	require.NoError(t, err)
	return a
}

func writeChapter(t *testing.T, dir, name, title, content string) {
	t.Helper()
	doc := "<!DOCTYPE html><html><head><title>" + title + "</title></head><body><h1>" + title +
		"</h1><div class=\"content\">" + content + "</div></body></html>"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(doc), 0644))
}

func TestSortKey(t *testing.T) {
	a := newTestAssembler(t)
	assert.Equal(t, 12, a.SortKey("0012-chuong-3.html"))
	assert.Equal(t, 7, a.SortKey("chuong-7-abc.html"))
	assert.Equal(t, 0, a.SortKey("prologue.html"))

	names := []string{"0010-c.html", "chuong-2.html", "0002-b.html", "0001-a.html", "intro.html"}
	a.SortChapterFiles(names)
	assert.Equal(t, []string{"intro.html", "0001-a.html", "0002-b.html", "chuong-2.html", "0010-c.html"}, names)
}

func TestAssemble_OrdersByPrefix(t *testing.T) {
	a := newTestAssembler(t)
	dir := t.TempDir()
	writeChapter(t, dir, "0010-chuong-10.html", "Story: Ten", "<p>ten</p>")
	writeChapter(t, dir, "0002-chuong-2.html", "Story: Two", "<p>two</p>")
	writeChapter(t, dir, "0001-chuong-1.html", "Story: One", "<p>one</p><p>more</p>")

	out := filepath.Join(t.TempDir(), "out", "book.epub")
	got, err := a.Assemble(context.Background(), Options{InputDir: dir, OutputFile: out, Title: "T", Author: "A"})
	require.NoError(t, err)
	assert.Equal(t, out, got)

	e := readEpub(t, out)
	assert.Equal(t, []string{"nav", "chap_0001", "chap_0002", "chap_0003"}, spineOf(e.files["OEBPS/content.opf"]))

	first := e.files["OEBPS/chap_0001.xhtml"]
	assert.Contains(t, first, "<h1>Chương 1: One</h1>")
	assert.Contains(t, first, `<div class="content"><p>one</p><p>more</p></div>`)
	assert.Contains(t, e.files["OEBPS/chap_0003.xhtml"], "Chương 10: Ten")

	nav := e.files["OEBPS/nav.xhtml"]
	assert.Less(t, strings.Index(nav, "Chương 1: One"), strings.Index(nav, "Chương 2: Two"))
	assert.Less(t, strings.Index(nav, "Chương 2: Two"), strings.Index(nav, "Chương 10: Ten"))
}

func TestAssemble_EmbedsLocalImagesOnce(t *testing.T) {
	a := newTestAssembler(t)
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "images"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "images", "0001_001.png"), pngBytes(t, 2, 2), 0644))

	imgs := `<img src="images/0001_001.png" alt="Chapter Image" /><img src="images/0001_002.png" alt="Chapter Image" />`
	writeChapter(t, dir, "0001-x.html", "S: Pics", imgs)
	writeChapter(t, dir, "0002-y.html", "S: Again", `<img src="images/0001_001.png" alt="Chapter Image" />`)

	out := filepath.Join(t.TempDir(), "book.epub")
	_, err := a.Assemble(context.Background(), Options{InputDir: dir, OutputFile: out, Title: "T", Author: "A"})
	require.NoError(t, err)

	e := readEpub(t, out)
	assert.Contains(t, e.files, "OEBPS/images/0001_001.png")
	assert.NotContains(t, e.files, "OEBPS/images/0001_002.png")
	assert.Equal(t, 1, strings.Count(e.files["OEBPS/content.opf"], `href="images/0001_001.png"`))

	first := e.files["OEBPS/chap_0001.xhtml"]
	assert.Contains(t, first, `<img src="images/0001_001.png" alt="Chapter Image" />`)
	assert.NotContains(t, first, "0001_002.png")
	assert.Contains(t, e.files["OEBPS/chap_0002.xhtml"], `src="images/0001_001.png"`)
}

func TestAssemble_CoverFromURL(t *testing.T) {
	cover := pngBytes(t, 4, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(cover)
	}))
	defer srv.Close()

	a := newTestAssembler(t)
	dir := t.TempDir()
	writeChapter(t, dir, "0001-a.html", "S: One", "<p>one</p>")

	out := filepath.Join(t.TempDir(), "book.epub")
	_, err := a.Assemble(context.Background(), Options{InputDir: dir, OutputFile: out, Title: "T", Author: "A", CoverPath: srv.URL + "/cover.png"})
	require.NoError(t, err)
	assert.Contains(t, readEpub(t, out).files, "OEBPS/cover.jpg")
}

func TestAssemble_MissingCoverIsNotFatal(t *testing.T) {
	a := newTestAssembler(t)
	dir := t.TempDir()
	writeChapter(t, dir, "0001-a.html", "S: One", "<p>one</p>")

	out := filepath.Join(t.TempDir(), "book.epub")
	_, err := a.Assemble(context.Background(), Options{InputDir: dir, OutputFile: out, Title: "T", Author: "A", CoverPath: filepath.Join(dir, "nope.jpg")})
	require.NoError(t, err)
	assert.NotContains(t, readEpub(t, out).files, "OEBPS/cover.jpg")
}

func TestAssemble_DefaultOutputFile(t *testing.T) {
	a := newTestAssembler(t)
	dir := t.TempDir()
	writeChapter(t, dir, "0001-a.html", "S: One", "<p>one</p>")

	got, err := a.Assemble(context.Background(), Options{InputDir: dir, Title: "My Book", Author: "Some One"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(a.outputDir, "some-one_my-book.epub"), got)
	assert.FileExists(t, got)
}

func TestAssemble_Failures(t *testing.T) {
	a := newTestAssembler(t)
	out := filepath.Join(t.TempDir(), "book.epub")

	_, err := a.Assemble(context.Background(), Options{InputDir: filepath.Join(t.TempDir(), "missing"), OutputFile: out, Title: "T", Author: "A"})
	assert.ErrorIs(t, err, ErrInputDir)

	empty := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(empty, "notes.txt"), []byte("x"), 0644))
	_, err = a.Assemble(context.Background(), Options{InputDir: empty, OutputFile: out, Title: "T", Author: "A"})
	assert.ErrorIs(t, err, ErrNoChapters)

	assert.NoFileExists(t, out)
}
