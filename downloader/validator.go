package downloader

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"novel-epub/config"
	"novel-epub/utils"
)

// BatchDownloader is the part of *Downloader the validator drives.
type BatchDownloader interface {
	DownloadAll(ctx context.Context, urls []string, outputDir string, concurrency int) (Result, error)
}

// Validator repeats download passes until the number of chapter files equals the number of URLs.
type Validator struct {
	downloader BatchDownloader
	backoff    float64
	maxWait    time.Duration
	log        *logrus.Entry
	sleep      func(context.Context, time.Duration) error
}

func NewValidator(downloader BatchDownloader, cfg *config.Config, log *logrus.Entry) *Validator {
	return &Validator{
		downloader: downloader,
		backoff:    cfg.DownloadRetryBackoff,
		maxWait:    config.Seconds(cfg.MaxBackoffWait),
		log:        log,
		sleep:      sleepCtx,
	}
}

// Validate checks the download arguments and returns the URLs to fetch.
// It touches nothing on disk, so callers run it before preparing the output directory.
func Validate(urlsFile string, concurrency, maxRetries int) ([]string, error) {
	if concurrency < 1 {
		return nil, fmt.Errorf("%w: concurrency must be at least 1", ErrValidation)
	}
	if maxRetries < 1 {
		return nil, fmt.Errorf("%w: max retries must be at least 1", ErrValidation)
	}
	if _, err := os.Stat(urlsFile); err != nil {
		return nil, fmt.Errorf("%w: URL file %s: %v", ErrValidation, urlsFile, err)
	}
	urls, err := utils.ReadURLs(urlsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return urls, nil
}

// EnsureComplete returns outputDir once every URL in urlsFile has a chapter file.
func (v *Validator) EnsureComplete(ctx context.Context, urlsFile, outputDir string, concurrency, maxRetries int) (string, error) {
	urls, err := Validate(urlsFile, concurrency, maxRetries)
	if err != nil {
		return "", err
	}
	expected := len(urls)

	actual := 0
	for attempt := 1; attempt <= maxRetries; attempt++ {
		v.log.Infof("Download attempt %d/%d", attempt, maxRetries)
		if _, err := v.downloader.DownloadAll(ctx, urls, outputDir, concurrency); err != nil {
			return "", err
		}
		actual = utils.CountHTML(outputDir)
		if actual == expected {
			v.log.Infof("All %d chapters present in %s", expected, outputDir)
			return outputDir, nil
		}
		v.log.Warnf("Chapter count mismatch: expected %d, got %d", expected, actual)
		if attempt == maxRetries {
			break
		}
		wait := v.wait(attempt - 1)
		v.log.Infof("Retrying in %s", wait)
		if err := v.sleep(ctx, wait); err != nil {
			return "", err
		}
	}
	return "", &DownloadValidationError{Attempts: maxRetries, Expected: expected, Actual: actual}
}

// wait is backoff^n whole seconds for the n-th retry counting from zero, capped at maxWait.
func (v *Validator) wait(attempt int) time.Duration {
	seconds := math.Pow(v.backoff, float64(attempt))
	d := time.Duration(int64(seconds)) * time.Second
	if seconds > v.maxWait.Seconds() || d > v.maxWait {
		return v.maxWait
	}
	return d
}
