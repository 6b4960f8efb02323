package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"

	"novel-epub/collector"
	"novel-epub/config"
	"novel-epub/downloader"
	"novel-epub/epub"
	"novel-epub/utils"
)

const lockRetryDelay = 500 * time.Millisecond

// PageOpener starts a page fetcher for one download stage. The closer releases it.
type PageOpener func(ctx context.Context) (downloader.PageFetcher, io.Closer, error)

// Activities is the production implementation of Stages.
type Activities struct {
	cfg       *config.Config
	collector *collector.Collector
	images    downloader.ImageFetcher
	assembler *epub.Assembler
	openPages PageOpener
	log       *logrus.Entry
}

func NewActivities(cfg *config.Config, c *collector.Collector, images downloader.ImageFetcher, a *epub.Assembler, openPages PageOpener, log *logrus.Entry) *Activities {
	return &Activities{
		cfg:       cfg,
		collector: c,
		images:    images,
		assembler: a,
		openPages: openPages,
		log:       log,
	}
}

// ExtractURLs rewrites the URL list from scratch so a retried stage never duplicates entries.
func (a *Activities) ExtractURLs(ctx context.Context, in WorkflowInput) (string, error) {
	if err := os.Remove(in.URLsFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to reset %s: %w", in.URLsFile, err)
	}
	n, err := a.collector.CollectToFile(ctx, in.APIURL, in.PageFrom, in.PageTo, in.URLsFile)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", fmt.Errorf("no chapter URLs found at %s pages %d-%d", in.APIURL, in.PageFrom, in.PageTo)
	}
	return in.URLsFile, nil
}

// Download holds a lock on the chapter directory while passes run.
func (a *Activities) Download(ctx context.Context, in WorkflowInput, urlsFile string) (string, error) {
	if _, err := downloader.Validate(urlsFile, in.Concurrency, in.MaxRetries); err != nil {
		return "", err
	}
	if err := utils.EnsureDir(in.OutputDir); err != nil {
		return "", err
	}
	lock := flock.New(filepath.Join(in.OutputDir, ".lock"))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return "", fmt.Errorf("failed to lock %s: %w", in.OutputDir, err)
	}
	if !locked {
		return "", fmt.Errorf("%s is locked by another download", in.OutputDir)
	}
	defer lock.Unlock()

	pages, closer, err := a.openPages(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to start page fetcher: %w", err)
	}
	defer closer.Close()

	d := downloader.New(pages, a.images, a.cfg, a.log.WithField("component", "downloader"))
	v := downloader.NewValidator(d, a.cfg, a.log.WithField("component", "validator"))
	return v.EnsureComplete(ctx, urlsFile, in.OutputDir, in.Concurrency, in.MaxRetries)
}

// Convert builds the EPUB and then removes the cover if it was uploaded for this run.
func (a *Activities) Convert(ctx context.Context, in WorkflowInput, outputDir string) (string, error) {
	path, err := a.assembler.Assemble(ctx, epub.Options{
		InputDir:   outputDir,
		OutputFile: in.OutputFile,
		Title:      in.Title,
		Author:     in.Author,
		CoverPath:  in.CoverPath,
	})
	if err != nil {
		return "", err
	}
	if a.isUploadedCover(in.CoverPath) {
		if err := os.Remove(in.CoverPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			a.log.Warnf("Failed to remove cover %s: %v", in.CoverPath, err)
		}
	}
	return path, nil
}

func (a *Activities) isUploadedCover(path string) bool {
	if path == "" || utils.IsHTTPURL(path) {
		return false
	}
	dir, err := filepath.Abs(a.cfg.CoverUploadDir)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return strings.HasPrefix(abs, dir+string(filepath.Separator))
}
