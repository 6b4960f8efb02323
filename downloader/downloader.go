package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"novel-epub/config"
	"novel-epub/extractor"
	"novel-epub/model"
	"novel-epub/template"
	"novel-epub/utils"
)

const imageDirName = "images"

// PageFetcher returns the rendered page, or nil when the page is unusable.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*model.Page, error)
}

type Result struct {
	Downloaded int
	Skipped    int
	Failed     int
}

func (r Result) String() string {
	return fmt.Sprintf("downloaded=%d skipped=%d failed=%d", r.Downloaded, r.Skipped, r.Failed)
}

type Downloader struct {
	pages         PageFetcher
	images        ImageFetcher
	errors        *ErrorLog
	delay         time.Duration
	minTextLength int
	language      string
	log           *logrus.Entry
	sleep         func(context.Context, time.Duration) error
}

func New(pages PageFetcher, images ImageFetcher, cfg *config.Config, log *logrus.Entry) *Downloader {
	return &Downloader{
		pages:         pages,
		images:        images,
		errors:        NewErrorLog(filepath.Join(cfg.LogDir, "error.log"), log),
		delay:         config.Seconds(cfg.DownloadDelay),
		minTextLength: cfg.MinTextLength,
		language:      cfg.Language,
		log:           log,
		sleep:         sleepCtx,
	}
}

// ExistingIndices collects the sequence prefixes of the chapter files already in dir.
func ExistingIndices(dir string) map[int]bool {
	indices := make(map[int]bool)
	names, err := utils.ListHTML(dir)
	if err != nil {
		return indices
	}
	for _, name := range names {
		if n, ok := utils.IndexPrefix(name); ok {
			indices[n] = true
		}
	}
	return indices
}

// DownloadAll fetches every URL whose index has no file yet, at most concurrency at a time.
// Individual failures are logged and counted; only cancellation aborts the batch.
func (d *Downloader) DownloadAll(ctx context.Context, urls []string, outputDir string, concurrency int) (Result, error) {
	if concurrency < 1 {
		return Result{}, fmt.Errorf("%w: concurrency must be at least 1", ErrValidation)
	}
	if err := utils.EnsureDir(outputDir); err != nil {
		return Result{}, err
	}
	existing := ExistingIndices(outputDir)

	var downloaded, skipped, failed atomic.Int32
	sem := semaphore.NewWeighted(int64(concurrency))
	wg := sync.WaitGroup{}

	for i, chapterURL := range urls {
		index := i + 1
		if existing[index] {
			d.log.Debugf("Skipping index %04d, already downloaded", index)
			skipped.Add(1)
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			if err := d.downloadOne(ctx, index, chapterURL, outputDir); err != nil {
				if ctx.Err() == nil {
					d.log.Errorf("Chapter %04d failed: %v", index, err)
					d.errors.Record(chapterURL)
				}
				failed.Add(1)
			} else {
				downloaded.Add(1)
			}
			_ = d.sleep(ctx, d.delay)
		}()
	}
	wg.Wait()

	result := Result{
		Downloaded: int(downloaded.Load()),
		Skipped:    int(skipped.Load()),
		Failed:     int(failed.Load()),
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	d.log.Infof("Download pass finished: %s", result)
	return result, nil
}

func (d *Downloader) downloadOne(ctx context.Context, index int, chapterURL, outputDir string) error {
	d.log.Infof("Fetching chapter %04d: %s", index, chapterURL)
	page, err := d.pages.Fetch(ctx, chapterURL)
	if err != nil {
		return err
	}
	if page == nil || strings.TrimSpace(page.HTML) == "" {
		return errors.New("page unavailable")
	}

	content := extractor.ExtractContent(page.HTML, d.minTextLength)
	if content == nil {
		return errors.New("no chapter content found")
	}

	title := strings.TrimSpace(page.Title)
	if title == "" {
		title = fmt.Sprintf("Chapter %d", index)
	}

	if content.Kind == model.ContentImages {
		content.Images = d.localizeImages(ctx, index, chapterURL, content.Images, outputDir)
	}

	buf := &bytes.Buffer{}
	if err := template.ChapterHTML(title, d.language, content.HTML()).Render(ctx, buf); err != nil {
		return fmt.Errorf("failed to render chapter: %w", err)
	}

	name := GenerateFilename(index, chapterURL, title)
	if err := writeNew(filepath.Join(outputDir, name), buf.Bytes()); err != nil {
		return err
	}
	d.log.Infof("Saved %s", name)
	return nil
}

// localizeImages downloads each source into images/ and returns the rewritten relative paths.
// A failed image keeps its local path so the chapter still points at the expected file.
func (d *Downloader) localizeImages(ctx context.Context, index int, pageURL string, srcs []string, outputDir string) []string {
	local := make([]string, len(srcs))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range srcs {
		name := imageFilename(index, i+1, src)
		local[i] = imageDirName + "/" + name
		abs := resolveURL(pageURL, src)
		dest := filepath.Join(outputDir, imageDirName, name)
		g.Go(func() error {
			if !d.images.FetchImage(gctx, abs, dest) {
				d.log.Warnf("Image %s of chapter %04d not saved", abs, index)
			}
			return nil
		})
	}
	_ = g.Wait()
	return local
}

func resolveURL(pageURL, src string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return base.ResolveReference(ref).String()
}

// writeNew refuses to replace an existing file.
func writeNew(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s already exists", filepath.Base(path))
		}
		return err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
