package epub

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"novel-epub/config"
	"novel-epub/extractor"
	"novel-epub/model"
	"novel-epub/utils"
)

var (
	ErrInputDir   = errors.New("input directory not found")
	ErrNoChapters = errors.New("no chapter files found")
)

type Options struct {
	InputDir   string
	OutputFile string
	Title      string
	Author     string
	CoverPath  string
}

// Assembler turns a directory of downloaded chapter files into one EPUB.
type Assembler struct {
	client        *resty.Client
	log           *logrus.Entry
	outputDir     string
	language      string
	label         string
	minTextLength int
	numberRe      *regexp.Regexp
}

func NewAssembler(cfg *config.Config, client *resty.Client, log *logrus.Entry) (*Assembler, error) {
	numberRe, err := regexp.Compile(cfg.ChapterNumberPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chapter number pattern: %w", err)
	}
	return &Assembler{
		client:        client,
		log:           log,
		outputDir:     cfg.EpubOutputDir,
		language:      cfg.Language,
		label:         cfg.ChapterTitleLabel,
		minTextLength: cfg.MinTextLength,
		numberRe:      numberRe,
	}, nil
}

// DefaultOutputFile is {dir}/{author}_{title}.epub with both parts slugged.
func DefaultOutputFile(dir, author, title string) string {
	return filepath.Join(dir, utils.CleanFilename(author)+"_"+utils.CleanFilename(title)+".epub")
}

// ChapterNumber parses the chapter number from a file name, 0 when absent.
func (a *Assembler) ChapterNumber(name string) int {
	m := a.numberRe.FindStringSubmatch(name)
	if len(m) < 2 {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// SortKey is the 4-digit prefix when present, else the chapter number, else 0.
func (a *Assembler) SortKey(name string) int {
	if n, ok := utils.IndexPrefix(name); ok {
		return n
	}
	return a.ChapterNumber(name)
}

// SortChapterFiles orders names by SortKey; equal keys fall back to name order.
func (a *Assembler) SortChapterFiles(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		ki, kj := a.SortKey(names[i]), a.SortKey(names[j])
		if ki != kj {
			return ki < kj
		}
		return names[i] < names[j]
	})
}

func (a *Assembler) Assemble(ctx context.Context, opts Options) (string, error) {
	info, err := os.Stat(opts.InputDir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrInputDir, opts.InputDir)
	}
	names, err := utils.ListHTML(opts.InputDir)
	if err != nil {
		return "", fmt.Errorf("failed to list %s: %w", opts.InputDir, err)
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoChapters, opts.InputDir)
	}
	a.SortChapterFiles(names)

	outputFile := opts.OutputFile
	if outputFile == "" {
		outputFile = DefaultOutputFile(a.outputDir, opts.Author, opts.Title)
	}

	b := NewBuilder(utils.CleanFilename(opts.Title), opts.Title, opts.Author, a.language)
	if opts.CoverPath != "" {
		a.addCover(ctx, b, opts.CoverPath)
	}

	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		raw, err := os.ReadFile(filepath.Join(opts.InputDir, name))
		if err != nil {
			return "", fmt.Errorf("failed to read chapter %s: %w", name, err)
		}
		title := a.chapterTitle(name, string(raw), i+1)
		markup := a.chapterMarkup(b, opts.InputDir, name, string(raw))
		b.AddChapter(title, "<h1>"+html.EscapeString(title)+`</h1><div class="content">`+markup+"</div>")
	}

	if err := b.Finalize(ctx, outputFile); err != nil {
		return "", err
	}
	a.log.WithFields(logrus.Fields{
		"chapters": len(names),
		"images":   len(b.images),
		"file":     outputFile,
	}).Info("EPUB written")
	return outputFile, nil
}

func (a *Assembler) chapterTitle(name, raw string, seq int) string {
	num := a.ChapterNumber(name)
	if num == 0 {
		num = seq
	}
	label := fmt.Sprintf("%s %d", a.label, num)
	if sub, ok := extractor.ExtractTitle(raw); ok {
		return label + ": " + sub
	}
	return label
}

func (a *Assembler) chapterMarkup(b *Builder, inputDir, name, raw string) string {
	content := extractor.ExtractContent(raw, a.minTextLength)
	if content == nil {
		a.log.Warnf("No content found in %s, adding an empty chapter", name)
		return ""
	}
	if content.Kind == model.ContentText {
		return content.HTML()
	}

	kept := make([]string, 0, len(content.Images))
	for _, src := range content.Images {
		href, ok := a.embedImage(b, inputDir, src)
		if !ok {
			a.log.Warnf("Dropping image %s from %s: not available locally", src, name)
			continue
		}
		kept = append(kept, href)
	}
	return model.ImageTags(kept)
}

// embedImage resolves src against inputDir and adds it to the book once per target path.
func (a *Assembler) embedImage(b *Builder, inputDir, src string) (string, bool) {
	if utils.IsHTTPURL(src) {
		return "", false
	}
	href := path.Clean(strings.TrimPrefix(filepath.ToSlash(src), "/"))
	if href == "." || href == ".." || strings.HasPrefix(href, "../") {
		return "", false
	}
	if b.HasImage(href) {
		return href, true
	}
	data, err := os.ReadFile(filepath.Join(inputDir, filepath.FromSlash(href)))
	if err != nil {
		return "", false
	}
	if _, err := b.AddImage(href, data); err != nil {
		a.log.Warnf("Skipping image %s: %v", href, err)
		return "", false
	}
	return href, true
}

func (a *Assembler) addCover(ctx context.Context, b *Builder, coverPath string) {
	data, err := a.loadCover(ctx, coverPath)
	if err != nil {
		a.log.Warnf("Continuing without cover: %v", err)
		return
	}
	if err := b.SetCover(data); err != nil {
		a.log.Warnf("Continuing without cover: %v", err)
	}
}

func (a *Assembler) loadCover(ctx context.Context, coverPath string) ([]byte, error) {
	if utils.IsHTTPURL(coverPath) {
		resp, err := a.client.R().SetContext(ctx).Get(coverPath)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch cover: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("failed to fetch cover: %s", resp.Status())
		}
		return resp.Body(), nil
	}
	data, err := os.ReadFile(coverPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read cover: %w", err)
	}
	return data, nil
}
