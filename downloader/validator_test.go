package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-epub/config"
	"novel-epub/utils"
)

// scriptedDownloader leaves counts[pass] chapter files in the output directory.
type scriptedDownloader struct {
	counts []int
	passes int
}

func (s *scriptedDownloader) DownloadAll(ctx context.Context, urls []string, outputDir string, concurrency int) (Result, error) {
	n := s.counts[min(s.passes, len(s.counts)-1)]
	s.passes++
	for i := 1; i <= n; i++ {
		path := filepath.Join(outputDir, fmt.Sprintf("%04d-c.html", i))
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			return Result{}, err
		}
	}
	return Result{Downloaded: n}, nil
}

func writeURLFile(t *testing.T, n int) string {
	t.Helper()
	lines := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		lines = append(lines, fmt.Sprintf("https://site.vn/chuong-%d", i))
	}
	path := filepath.Join(t.TempDir(), "urls.txt")
	require.NoError(t, utils.AppendLines(path, lines))
	return path
}

func newTestValidator(d BatchDownloader) (*Validator, *[]time.Duration) {
	v := NewValidator(d, config.Default(), utils.DiscardLogger())
	waits := make([]time.Duration, 0)
	v.sleep = func(_ context.Context, wait time.Duration) error {
		waits = append(waits, wait)
		return nil
	}
	return v, &waits
}

func TestEnsureComplete_Converges(t *testing.T) {
	d := &scriptedDownloader{counts: []int{3, 5}}
	v, waits := newTestValidator(d)
	dir := t.TempDir()

	got, err := v.EnsureComplete(context.Background(), writeURLFile(t, 5), dir, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
	assert.Equal(t, 2, d.passes)
	assert.Equal(t, []time.Duration{time.Second}, *waits)
}

func TestEnsureComplete_Exhausted(t *testing.T) {
	d := &scriptedDownloader{counts: []int{4}}
	v, waits := newTestValidator(d)

	_, err := v.EnsureComplete(context.Background(), writeURLFile(t, 5), t.TempDir(), 2, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIncompleteDownload)

	var verr *DownloadValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, DownloadValidationError{Attempts: 3, Expected: 5, Actual: 4}, *verr)
	assert.Equal(t, "failed after 3 attempts: expected 5 URLs, got 4 files", err.Error())
	assert.Equal(t, 3, d.passes)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
}

func TestEnsureComplete_WaitIsCapped(t *testing.T) {
	cfg := config.Default()
	cfg.DownloadRetryBackoff = 10
	cfg.MaxBackoffWait = 30
	v := NewValidator(&scriptedDownloader{counts: []int{0}}, cfg, utils.DiscardLogger())
	assert.Equal(t, time.Second, v.wait(0))
	assert.Equal(t, 10*time.Second, v.wait(1))
	assert.Equal(t, 30*time.Second, v.wait(2))
	assert.Equal(t, 30*time.Second, v.wait(40))
}

func TestEnsureComplete_RejectsBadInput(t *testing.T) {
	v, _ := newTestValidator(&scriptedDownloader{counts: []int{0}})
	urls := writeURLFile(t, 1)

	_, err := v.EnsureComplete(context.Background(), filepath.Join(t.TempDir(), "missing.txt"), t.TempDir(), 1, 1)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = v.EnsureComplete(context.Background(), urls, t.TempDir(), 0, 1)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = v.EnsureComplete(context.Background(), urls, t.TempDir(), 1, 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestValidate(t *testing.T) {
	urlFile := writeURLFile(t, 3)
	urls, err := Validate(urlFile, 2, 1)
	require.NoError(t, err)
	assert.Len(t, urls, 3)

	_, err = Validate(filepath.Join(t.TempDir(), "missing.txt"), 2, 1)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = Validate(urlFile, 0, 1)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = Validate(urlFile, 1, 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEnsureComplete_EndToEnd(t *testing.T) {
	pages := newFakePages()
	urls := make([]string, 0)
	for i := 1; i <= 5; i++ {
		u := fmt.Sprintf("https://site.vn/truyen/chuong-%d", i)
		pages.add(u, fmt.Sprintf("Truyện: Chương %d", i), longText)
		urls = append(urls, u)
	}
	pages.failures[urls[3]] = 1

	d, cfg := newTestDownloader(t, pages, nil)
	urlFile := filepath.Join(t.TempDir(), "urls.txt")
	require.NoError(t, utils.AppendLines(urlFile, urls))

	v, waits := newTestValidator(d)
	dir := t.TempDir()
	got, err := v.EnsureComplete(context.Background(), urlFile, dir, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
	assert.Len(t, *waits, 1)
	assert.Equal(t, 5, utils.CountHTML(dir))
	for _, u := range urls {
		if u == urls[3] {
			assert.Equal(t, 2, pages.count(u))
		} else {
			assert.Equal(t, 1, pages.count(u))
		}
	}

	logged, err := utils.ReadURLs(filepath.Join(cfg.LogDir, "error.log"))
	require.NoError(t, err)
	assert.Equal(t, []string{urls[3]}, logged)
}
