package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"novel-epub/config"
	"novel-epub/downloader"
	"novel-epub/epub"
	"novel-epub/utils"
)

const runIDHexLength = 12

// Request is what a caller submits to generate one book.
type Request struct {
	APIURL      string
	PageFrom    int
	PageTo      int
	Title       string
	Author      string
	Concurrency int
	MaxRetries  int
	CoverPath   string
}

func (r *Request) Validate() error {
	switch {
	case strings.TrimSpace(r.APIURL) == "":
		return fmt.Errorf("%w: api_url must not be empty", downloader.ErrValidation)
	case strings.TrimSpace(r.Title) == "":
		return fmt.Errorf("%w: title must not be empty", downloader.ErrValidation)
	case strings.TrimSpace(r.Author) == "":
		return fmt.Errorf("%w: author must not be empty", downloader.ErrValidation)
	case r.PageFrom < 1:
		return fmt.Errorf("%w: page_from must be >= 1, got %d", downloader.ErrValidation, r.PageFrom)
	case r.PageTo < r.PageFrom:
		return fmt.Errorf("%w: page_to (%d) must be >= page_from (%d)", downloader.ErrValidation, r.PageTo, r.PageFrom)
	case r.Concurrency < 1:
		return fmt.Errorf("%w: concurrency must be >= 1, got %d", downloader.ErrValidation, r.Concurrency)
	case r.MaxRetries < 1:
		return fmt.Errorf("%w: max_retries must be >= 1, got %d", downloader.ErrValidation, r.MaxRetries)
	}
	return nil
}

// WorkflowInput is the full parameter set of one run. It is never modified after creation.
type WorkflowInput struct {
	APIURL      string `json:"api_url"`
	PageFrom    int    `json:"page_from"`
	PageTo      int    `json:"page_to"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Concurrency int    `json:"concurrency"`
	MaxRetries  int    `json:"max_retries"`
	CoverPath   string `json:"cover_path,omitempty"`
	URLsFile    string `json:"urls_file"`
	OutputDir   string `json:"output_dir"`
	OutputFile  string `json:"output_file"`
}

// NewWorkflowInput validates req and derives the per-story paths from cfg.
func NewWorkflowInput(cfg *config.Config, req Request) (WorkflowInput, error) {
	if err := req.Validate(); err != nil {
		return WorkflowInput{}, err
	}
	storyDir := filepath.Join(cfg.DownloadsDir, utils.CleanFilename(req.Author)+"_"+utils.CleanFilename(req.Title))
	return WorkflowInput{
		APIURL:      strings.TrimSpace(req.APIURL),
		PageFrom:    req.PageFrom,
		PageTo:      req.PageTo,
		Title:       req.Title,
		Author:      req.Author,
		Concurrency: req.Concurrency,
		MaxRetries:  req.MaxRetries,
		CoverPath:   req.CoverPath,
		URLsFile:    filepath.Join(storyDir, "urls.txt"),
		OutputDir:   storyDir,
		OutputFile:  epub.DefaultOutputFile(cfg.EpubOutputDir, req.Author, req.Title),
	}, nil
}

func NewRunID() string {
	return "epub-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:runIDHexLength]
}
