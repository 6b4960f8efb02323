package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-epub/config"
	"novel-epub/pipeline"
	"novel-epub/utils"
)

type fakeRunner struct {
	submitted []pipeline.Request
	err       error
	statuses  map[string]pipeline.StatusResponse
}

func (f *fakeRunner) Submit(ctx context.Context, req pipeline.Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if f.err != nil {
		return "", f.err
	}
	f.submitted = append(f.submitted, req)
	return "epub-abcdefabcdef", nil
}

func (f *fakeRunner) Status(id string) pipeline.StatusResponse {
	if s, ok := f.statuses[id]; ok {
		return s
	}
	return pipeline.StatusResponse{WorkflowID: id, Status: pipeline.StateNotFound, CurrentStep: "error", Error: "run " + id + " not found"}
}

func newTestServer(t *testing.T, runner Runner) (*Server, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.CoverUploadDir = filepath.Join(t.TempDir(), "cover")
	return New(cfg, runner, utils.DiscardLogger()), cfg
}

func formBody() url.Values {
	return url.Values{
		"api_url":   {"https://site.vn/api?story=1"},
		"page_from": {"1"},
		"page_to":   {"4"},
		"title":     {"Tiên Nghịch"},
		"author":    {"Nhĩ Căn"},
	}
}

func postForm(t *testing.T, h http.Handler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/make", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMake_UsesDefaults(t *testing.T) {
	runner := &fakeRunner{}
	s, cfg := newTestServer(t, runner)

	rec := postForm(t, s.Handler(), formBody())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "epub-abcdefabcdef", resp.WorkflowID)
	assert.Equal(t, "submitted", resp.Status)

	require.Len(t, runner.submitted, 1)
	got := runner.submitted[0]
	assert.Equal(t, 4, got.PageTo)
	assert.Equal(t, cfg.DefaultConcurrency, got.Concurrency)
	assert.Equal(t, cfg.DownloadMaxRetries, got.MaxRetries)
	assert.Empty(t, got.CoverPath)
}

func TestMake_RejectsInvalidInput(t *testing.T) {
	runner := &fakeRunner{}
	s, _ := newTestServer(t, runner)

	form := formBody()
	form.Set("page_to", "0")
	assert.Equal(t, http.StatusUnprocessableEntity, postForm(t, s.Handler(), form).Code)

	form = formBody()
	form.Set("concurrency", "many")
	assert.Equal(t, http.StatusBadRequest, postForm(t, s.Handler(), form).Code)

	form = formBody()
	form.Del("page_from")
	assert.Equal(t, http.StatusBadRequest, postForm(t, s.Handler(), form).Code)

	assert.Empty(t, runner.submitted)
}

// postCover submits the default form plus fields with a cover_image upload.
func postCover(t *testing.T, h http.Handler, filename, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range formBody() {
		require.NoError(t, mw.WriteField(k, v[0]))
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("cover_image", filename)
	require.NoError(t, err)
	part.Write([]byte(content))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/make", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMake_SavesCover(t *testing.T) {
	runner := &fakeRunner{}
	s, cfg := newTestServer(t, runner)

	rec := postCover(t, s.Handler(), "Bìa Truyện.PNG", "png", map[string]string{"max_retries": "2"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, runner.submitted, 1)
	got := runner.submitted[0].CoverPath
	assert.Equal(t, cfg.CoverUploadDir, filepath.Dir(got))
	assert.Regexp(t, `^bia-truyen-[0-9a-f]{12}\.png$`, filepath.Base(got))
	assert.Equal(t, 2, runner.submitted[0].MaxRetries)
	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
}

func TestMake_SameCoverNameDoesNotCollide(t *testing.T) {
	runner := &fakeRunner{}
	s, _ := newTestServer(t, runner)

	require.Equal(t, http.StatusOK, postCover(t, s.Handler(), "cover.jpg", "first", nil).Code)
	require.Equal(t, http.StatusOK, postCover(t, s.Handler(), "cover.jpg", "second", nil).Code)

	require.Len(t, runner.submitted, 2)
	first, second := runner.submitted[0].CoverPath, runner.submitted[1].CoverPath
	assert.NotEqual(t, first, second)
	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
	data, err = os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestMake_SubmitFailureRemovesCover(t *testing.T) {
	runner := &fakeRunner{err: errors.New("store closed")}
	s, cfg := newTestServer(t, runner)

	rec := postCover(t, s.Handler(), "cover.jpg", "jpg", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	entries, err := os.ReadDir(cfg.CoverUploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStatus(t *testing.T) {
	runner := &fakeRunner{statuses: map[string]pipeline.StatusResponse{
		"epub-111111111111": {WorkflowID: "epub-111111111111", Status: pipeline.StateFailed, CurrentStep: "convert", Error: "convert: boom"},
	}}
	s, _ := newTestServer(t, runner)

	for id, want := range map[string]pipeline.State{
		"epub-111111111111": pipeline.StateFailed,
		"epub-unknown":      pipeline.StateNotFound,
	} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/"+id, nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var got pipeline.StatusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, id, got.WorkflowID)
		assert.Equal(t, want, got.Status)
		assert.NotEmpty(t, got.Error)
	}
}

func TestDownload(t *testing.T) {
	book := filepath.Join(t.TempDir(), "a_b.epub")
	require.NoError(t, os.WriteFile(book, []byte("epub-bytes"), 0644))

	runner := &fakeRunner{statuses: map[string]pipeline.StatusResponse{
		"done":    {WorkflowID: "done", Status: pipeline.StateCompleted, Result: book},
		"running": {WorkflowID: "running", Status: pipeline.StateRunning, CurrentStep: "convert"},
		"gone":    {WorkflowID: "gone", Status: pipeline.StateCompleted, Result: book + ".missing"},
	}}
	s, _ := newTestServer(t, runner)

	get := func(id string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download/"+id, nil))
		return rec
	}

	rec := get("done")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "epub-bytes", rec.Body.String())
	assert.Equal(t, "application/epub+zip", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "a_b.epub")

	assert.Equal(t, http.StatusConflict, get("running").Code)
	assert.Equal(t, http.StatusGone, get("gone").Code)
	assert.Equal(t, http.StatusNotFound, get("nobody").Code)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/make", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
