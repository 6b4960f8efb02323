package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Validate applies defaults to unset fields and returns collected warnings.
// Only values that cannot be defaulted produce an error.
func (c *Config) Validate() (warnings []string, err error) {
	def := Default()

	dirs := []struct {
		name string
		val  *string
		def  string
	}{
		{"downloads_dir", &c.DownloadsDir, def.DownloadsDir},
		{"epub_output_dir", &c.EpubOutputDir, def.EpubOutputDir},
		{"log_dir", &c.LogDir, def.LogDir},
		{"cover_upload_dir", &c.CoverUploadDir, def.CoverUploadDir},
		{"state_dir", &c.StateDir, def.StateDir},
	}
	for _, d := range dirs {
		if strings.TrimSpace(*d.val) == "" {
			warnings = append(warnings, fmt.Sprintf("%s is empty, defaulting to '%s'", d.name, d.def))
			*d.val = d.def
		}
	}

	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if _, perr := logrus.ParseLevel(c.LogLevel); perr != nil {
		return warnings, fmt.Errorf("%w: log_level %q: %v", ErrInvalidConfig, c.LogLevel, perr)
	}

	if c.DefaultConcurrency <= 0 {
		warnings = append(warnings, fmt.Sprintf("default_concurrency should be > 0, defaulting to %d", def.DefaultConcurrency))
		c.DefaultConcurrency = def.DefaultConcurrency
	}
	if c.DownloadMaxRetries <= 0 {
		warnings = append(warnings, fmt.Sprintf("download_max_retries should be > 0, defaulting to %d", def.DownloadMaxRetries))
		c.DownloadMaxRetries = def.DownloadMaxRetries
	}
	if c.DownloadRetryBackoff < 1 {
		warnings = append(warnings, fmt.Sprintf("download_retry_backoff should be >= 1, defaulting to %.1f", def.DownloadRetryBackoff))
		c.DownloadRetryBackoff = def.DownloadRetryBackoff
	}
	if c.DownloadDelay < 0 {
		warnings = append(warnings, "download_delay cannot be negative, setting to 0")
		c.DownloadDelay = 0
	}
	if c.MaxBackoffWait <= 0 {
		c.MaxBackoffWait = def.MaxBackoffWait
	}

	if c.ImageMaxRetries <= 0 {
		warnings = append(warnings, fmt.Sprintf("image_max_retries should be > 0, defaulting to %d", def.ImageMaxRetries))
		c.ImageMaxRetries = def.ImageMaxRetries
	}
	if c.ImageInitialBackoff < 0 {
		c.ImageInitialBackoff = def.ImageInitialBackoff
	}
	if c.HTTPTimeout <= 0 {
		warnings = append(warnings, fmt.Sprintf("http_timeout should be > 0, defaulting to %.0fs", def.HTTPTimeout))
		c.HTTPTimeout = def.HTTPTimeout
	}
	if c.APIConcurrency <= 0 {
		c.APIConcurrency = def.APIConcurrency
	}
	if c.UserAgent == "" {
		c.UserAgent = def.UserAgent
	}

	if c.MinTextLength < 0 {
		c.MinTextLength = def.MinTextLength
	}
	if c.Language == "" {
		c.Language = def.Language
	}
	if c.ChapterTitleLabel == "" {
		c.ChapterTitleLabel = def.ChapterTitleLabel
	}
	if c.ChapterNumberPattern == "" {
		c.ChapterNumberPattern = def.ChapterNumberPattern
	}
	re, rerr := regexp.Compile(c.ChapterNumberPattern)
	if rerr != nil {
		return warnings, fmt.Errorf("%w: chapter_number_pattern: %v", ErrInvalidConfig, rerr)
	}
	if re.NumSubexp() < 1 {
		return warnings, fmt.Errorf("%w: chapter_number_pattern needs one capture group", ErrInvalidConfig)
	}

	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}

	b := &c.Browser
	if b.NavigationTimeout <= 0 {
		b.NavigationTimeout = def.Browser.NavigationTimeout
	}
	if b.ViewportWidth <= 0 || b.ViewportHeight <= 0 {
		b.ViewportWidth, b.ViewportHeight = def.Browser.ViewportWidth, def.Browser.ViewportHeight
	}
	if b.ScrollCount < 0 {
		b.ScrollCount = 0
	}
	if b.ScrollDistance <= 0 {
		b.ScrollDistance = def.Browser.ScrollDistance
	}
	if b.ScrollDelay < 0 {
		b.ScrollDelay = 0
	}

	s := &c.Stage
	if s.MaxAttempts <= 0 {
		warnings = append(warnings, fmt.Sprintf("stage.max_attempts should be > 0, defaulting to %d", def.Stage.MaxAttempts))
		s.MaxAttempts = def.Stage.MaxAttempts
	}
	if s.InitialInterval <= 0 {
		s.InitialInterval = def.Stage.InitialInterval
	}
	if s.BackoffCoefficient < 1 {
		s.BackoffCoefficient = def.Stage.BackoffCoefficient
	}
	if s.MaxInterval <= 0 {
		s.MaxInterval = def.Stage.MaxInterval
	}
	if s.InitialInterval > s.MaxInterval {
		warnings = append(warnings, fmt.Sprintf(
			"stage.initial_interval (%.1fs) > stage.max_interval (%.1fs), using max_interval",
			s.InitialInterval, s.MaxInterval))
		s.InitialInterval = s.MaxInterval
	}

	return warnings, nil
}
