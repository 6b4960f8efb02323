package downloader

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation marks bad parameters or a missing URL list; nothing was started.
	ErrValidation = errors.New("invalid download parameters")
	// ErrIncompleteDownload is matched by *DownloadValidationError.
	ErrIncompleteDownload = errors.New("download incomplete")
)

// DownloadValidationError reports that the chapter count never matched the URL count.
type DownloadValidationError struct {
	Attempts int
	Expected int
	Actual   int
}

func (e *DownloadValidationError) Error() string {
	return fmt.Sprintf("failed after %d attempts: expected %d URLs, got %d files", e.Attempts, e.Expected, e.Actual)
}

func (e *DownloadValidationError) Is(target error) bool {
	return target == ErrIncompleteDownload
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
