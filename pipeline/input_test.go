package pipeline

import (
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-epub/config"
	"novel-epub/downloader"
)

func validRequest() Request {
	return Request{
		APIURL:      "https://site.vn/api/chapters?story=1",
		PageFrom:    1,
		PageTo:      3,
		Title:       "Tiên Nghịch",
		Author:      "Nhĩ Căn",
		Concurrency: 2,
		MaxRetries:  3,
	}
}

func TestRequestValidate(t *testing.T) {
	require.NoError(t, (&Request{APIURL: "x", PageFrom: 2, PageTo: 2, Title: "t", Author: "a", Concurrency: 1, MaxRetries: 1}).Validate())

	cases := map[string]func(r *Request){
		"empty api url":  func(r *Request) { r.APIURL = "  " },
		"empty title":    func(r *Request) { r.Title = "" },
		"empty author":   func(r *Request) { r.Author = "" },
		"page from zero": func(r *Request) { r.PageFrom = 0 },
		"reversed range": func(r *Request) { r.PageFrom, r.PageTo = 5, 4 },
		"no concurrency": func(r *Request) { r.Concurrency = 0 },
		"no retries":     func(r *Request) { r.MaxRetries = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := validRequest()
			mutate(&r)
			assert.ErrorIs(t, r.Validate(), downloader.ErrValidation)
		})
	}
}

func TestNewWorkflowInput(t *testing.T) {
	cfg := config.Default()
	cfg.DownloadsDir = "dl"
	cfg.EpubOutputDir = "out"

	in, err := NewWorkflowInput(cfg, validRequest())
	require.NoError(t, err)
	story := filepath.Join("dl", "nhi-can_tien-nghich")
	assert.Equal(t, story, in.OutputDir)
	assert.Equal(t, filepath.Join(story, "urls.txt"), in.URLsFile)
	assert.Equal(t, filepath.Join("out", "nhi-can_tien-nghich.epub"), in.OutputFile)
	assert.Equal(t, "Tiên Nghịch", in.Title)

	bad := validRequest()
	bad.PageTo = 0
	_, err = NewWorkflowInput(cfg, bad)
	assert.ErrorIs(t, err, downloader.ErrValidation)
}

func TestNewRunID(t *testing.T) {
	id := NewRunID()
	assert.Regexp(t, regexp.MustCompile(`^epub-[0-9a-f]{12}$`), id)
	assert.NotEqual(t, id, NewRunID())
}
