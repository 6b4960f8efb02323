package downloader

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"novel-epub/utils"
)

// ImageFetcher saves one image to dest. It reports success and never errors.
type ImageFetcher interface {
	FetchImage(ctx context.Context, url, dest string) bool
}

type HTTPImageFetcher struct {
	client         *resty.Client
	maxAttempts    int
	initialBackoff time.Duration
	log            *logrus.Entry
	sleep          func(context.Context, time.Duration) error
}

func NewImageFetcher(client *resty.Client, maxAttempts int, initialBackoff time.Duration, log *logrus.Entry) *HTTPImageFetcher {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &HTTPImageFetcher{
		client:         client,
		maxAttempts:    maxAttempts,
		initialBackoff: initialBackoff,
		log:            log,
		sleep:          sleepCtx,
	}
}

// FetchImage retries transport errors with a doubling wait.
// Any HTTP status of 400 or above fails immediately.
func (f *HTTPImageFetcher) FetchImage(ctx context.Context, url, dest string) bool {
	wait := f.initialBackoff
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		resp, err := f.client.R().SetContext(ctx).Get(url)
		if err == nil {
			if resp.StatusCode() >= 400 {
				f.log.Errorf("Image request failed with status %d: %s", resp.StatusCode(), url)
				return false
			}
			if err := writeImage(dest, resp.Body()); err != nil {
				f.log.Errorf("Failed to save image %s: %v", dest, err)
				return false
			}
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		f.log.Warnf("Image download error (attempt %d/%d) %s: %v", attempt, f.maxAttempts, url, err)
		if attempt == f.maxAttempts {
			break
		}
		if f.sleep(ctx, wait) != nil {
			return false
		}
		wait *= 2
	}
	f.log.Errorf("Giving up on image after %d attempts: %s", f.maxAttempts, url)
	return false
}

func writeImage(dest string, data []byte) error {
	if err := utils.EnsureDir(filepath.Dir(dest)); err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0644)
}
