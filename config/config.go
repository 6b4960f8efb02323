package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// BrowserConfig controls the headless chapter fetcher.
type BrowserConfig struct {
	ShowWindow        bool    `yaml:"show_window,omitempty" toml:"show_window,omitempty"`
	NavigationTimeout float64 `yaml:"navigation_timeout" toml:"navigation_timeout"`
	ViewportWidth     int     `yaml:"viewport_width" toml:"viewport_width"`
	ViewportHeight    int     `yaml:"viewport_height" toml:"viewport_height"`
	ScrollCount       int     `yaml:"scroll_count" toml:"scroll_count"`
	ScrollDistance    int     `yaml:"scroll_distance" toml:"scroll_distance"`
	ScrollDelay       float64 `yaml:"scroll_delay" toml:"scroll_delay"`
}

// StagePolicy is the retry policy applied around each pipeline stage.
type StagePolicy struct {
	InitialInterval    float64 `yaml:"initial_interval" toml:"initial_interval"`
	BackoffCoefficient float64 `yaml:"backoff_coefficient" toml:"backoff_coefficient"`
	MaxInterval        float64 `yaml:"max_interval" toml:"max_interval"`
	MaxAttempts        int     `yaml:"max_attempts" toml:"max_attempts"`
}

// Config is built once at startup and handed to every component.
// Durations are expressed in seconds.
type Config struct {
	DownloadsDir   string `yaml:"downloads_dir" toml:"downloads_dir"`
	EpubOutputDir  string `yaml:"epub_output_dir" toml:"epub_output_dir"`
	LogDir         string `yaml:"log_dir" toml:"log_dir"`
	CoverUploadDir string `yaml:"cover_upload_dir" toml:"cover_upload_dir"`
	StateDir       string `yaml:"state_dir" toml:"state_dir"`
	LogLevel       string `yaml:"log_level" toml:"log_level"`

	DefaultConcurrency   int     `yaml:"default_concurrency" toml:"default_concurrency"`
	DownloadMaxRetries   int     `yaml:"download_max_retries" toml:"download_max_retries"`
	DownloadRetryBackoff float64 `yaml:"download_retry_backoff" toml:"download_retry_backoff"`
	DownloadDelay        float64 `yaml:"download_delay" toml:"download_delay"`
	MaxBackoffWait       float64 `yaml:"max_backoff_wait" toml:"max_backoff_wait"`

	ImageMaxRetries     int     `yaml:"image_max_retries" toml:"image_max_retries"`
	ImageInitialBackoff float64 `yaml:"image_initial_backoff" toml:"image_initial_backoff"`
	HTTPTimeout         float64 `yaml:"http_timeout" toml:"http_timeout"`
	APIConcurrency      int     `yaml:"api_concurrency" toml:"api_concurrency"`
	UserAgent           string  `yaml:"user_agent" toml:"user_agent"`

	MinTextLength        int    `yaml:"min_text_length" toml:"min_text_length"`
	Language             string `yaml:"language" toml:"language"`
	ChapterTitleLabel    string `yaml:"chapter_title_label" toml:"chapter_title_label"`
	ChapterNumberPattern string `yaml:"chapter_number_pattern" toml:"chapter_number_pattern"`

	ListenAddr string `yaml:"listen_addr" toml:"listen_addr"`

	Browser BrowserConfig `yaml:"browser" toml:"browser"`
	Stage   StagePolicy   `yaml:"stage" toml:"stage"`
}

func Default() *Config {
	return &Config{
		DownloadsDir:         "downloads",
		EpubOutputDir:        "epub",
		LogDir:               "logs",
		CoverUploadDir:       "cover",
		StateDir:             "state",
		LogLevel:             "info",
		DefaultConcurrency:   4,
		DownloadMaxRetries:   10,
		DownloadRetryBackoff: 2.0,
		DownloadDelay:        2.0,
		MaxBackoffWait:       300,
		ImageMaxRetries:      3,
		ImageInitialBackoff:  1.0,
		HTTPTimeout:          30,
		APIConcurrency:       5,
		UserAgent:            DefaultUserAgent,
		MinTextLength:        50,
		Language:             "vi",
		ChapterTitleLabel:    "Chương",
		ChapterNumberPattern: `chuong-(\d+)`,
		ListenAddr:           ":8000",
		Browser: BrowserConfig{
			NavigationTimeout: 60,
			ViewportWidth:     1280,
			ViewportHeight:    720,
			ScrollCount:       3,
			ScrollDistance:    1000,
			ScrollDelay:       1.5,
		},
		Stage: StagePolicy{
			InitialInterval:    2,
			BackoffCoefficient: 2.0,
			MaxInterval:        60,
			MaxAttempts:        3,
		},
	}
}

// Load reads defaults, then the optional file (.toml or YAML), then environment overrides.
func Load(path string) (*Config, []string, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".toml":
			err = toml.Unmarshal(data, cfg)
		default:
			err = yaml.Unmarshal(data, cfg)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, nil, err
	}
	warnings, err := cfg.Validate()
	if err != nil {
		return nil, warnings, err
	}
	return cfg, warnings, nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"DOWNLOADS_DIR":       &c.DownloadsDir,
		"EPUB_OUTPUT_DIR":     &c.EpubOutputDir,
		"LOG_DIR":             &c.LogDir,
		"COVER_UPLOAD_DIR":    &c.CoverUploadDir,
		"STATE_DIR":           &c.StateDir,
		"LOG_LEVEL":           &c.LogLevel,
		"USER_AGENT":          &c.UserAgent,
		"LISTEN_ADDR":         &c.ListenAddr,
		"EPUB_LANGUAGE":       &c.Language,
		"CHAPTER_TITLE_LABEL": &c.ChapterTitleLabel,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"DEFAULT_CONCURRENCY":        &c.DefaultConcurrency,
		"DOWNLOAD_MAX_RETRIES":       &c.DownloadMaxRetries,
		"IMAGE_DOWNLOAD_MAX_RETRIES": &c.ImageMaxRetries,
		"API_SEMAPHORE_LIMIT":        &c.APIConcurrency,
		"MIN_TEXT_LENGTH":            &c.MinTextLength,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", key, v, err)
		}
		*dst = n
	}

	floats := map[string]*float64{
		"DOWNLOAD_RETRY_BACKOFF":         &c.DownloadRetryBackoff,
		"DOWNLOAD_DELAY":                 &c.DownloadDelay,
		"MAX_BACKOFF_WAIT":               &c.MaxBackoffWait,
		"IMAGE_DOWNLOAD_INITIAL_BACKOFF": &c.ImageInitialBackoff,
		"HTTP_TIMEOUT":                   &c.HTTPTimeout,
	}
	for key, dst := range floats {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", key, v, err)
		}
		*dst = f
	}
	return nil
}

// Seconds converts a float number of seconds into a time.Duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
