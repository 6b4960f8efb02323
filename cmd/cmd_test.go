package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-epub/downloader"
)

func writeChapterFile(t *testing.T, dir, name, body string) {
	t.Helper()
	doc := `<html><head><title>S: Mở đầu</title></head><body><h1>S: Mở đầu</h1><div class="content">` + body + `</div></body></html>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(doc), 0644))
}

func TestConvertAndClean(t *testing.T) {
	root := t.TempDir()
	chapters := filepath.Join(root, "downloads")
	require.NoError(t, os.MkdirAll(chapters, 0755))
	t.Setenv("DOWNLOADS_DIR", chapters)
	t.Setenv("EPUB_OUTPUT_DIR", filepath.Join(root, "epub"))
	t.Setenv("LOG_DIR", filepath.Join(root, "logs"))

	writeChapterFile(t, chapters, "0001-chuong-1.html", "<p>Một</p>")
	writeChapterFile(t, chapters, "0002-chuong-2.html", " ")

	RootCmd.SetArgs([]string{"clean"})
	require.NoError(t, RootCmd.Execute())
	assert.NoFileExists(t, filepath.Join(chapters, "0002-chuong-2.html"))

	RootCmd.SetArgs([]string{"convert", "--title", "Truyện", "--author", "Tác Giả"})
	require.NoError(t, RootCmd.Execute())
	assert.FileExists(t, filepath.Join(root, "epub", "tac-gia_truyen.epub"))
}

func TestConvertRequiresTitle(t *testing.T) {
	t.Setenv("DOWNLOADS_DIR", t.TempDir())
	cArgs = convertArgs{}
	RootCmd.SetArgs([]string{"convert", "--author", "A", "--title", ""})
	assert.Error(t, RootCmd.Execute())
}

func TestDownloadRejectsMissingURLFile(t *testing.T) {
	root := t.TempDir()
	t.Setenv("DOWNLOADS_DIR", filepath.Join(root, "downloads"))
	t.Setenv("LOG_DIR", filepath.Join(root, "logs"))
	dArgs = downloadArgs{}
	out := filepath.Join(root, "chapters")

	RootCmd.SetArgs([]string{"download", "--urls-file", filepath.Join(root, "missing.txt"), "--output-dir", out})
	err := RootCmd.Execute()
	assert.ErrorIs(t, err, downloader.ErrValidation)
	assert.NoDirExists(t, out)
}
