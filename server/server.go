package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"novel-epub/config"
	"novel-epub/downloader"
	"novel-epub/pipeline"
	"novel-epub/utils"
)

const (
	maxUploadSize     = 32 << 20
	coverSuffixLength = 12
)

// Runner is the part of *pipeline.Engine the server needs.
type Runner interface {
	Submit(ctx context.Context, req pipeline.Request) (string, error)
	Status(id string) pipeline.StatusResponse
}

type SubmitResponse struct {
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Server struct {
	cfg    *config.Config
	runner Runner
	log    *logrus.Entry
	server *http.Server
}

func New(cfg *config.Config, runner Runner, log *logrus.Entry) *Server {
	s := &Server{cfg: cfg, runner: runner, log: log}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /make", s.handleMake)
	mux.HandleFunc("GET /status/{id}", s.handleStatus)
	mux.HandleFunc("GET /download/{id}", s.handleDownload)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.log.Infof("API listening on %s", listener.Addr())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleMake(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.writeError(w, http.StatusBadRequest, "invalid form: "+err.Error())
		return
	}
	req, err := s.parseRequest(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.log.Infof("POST /make title=%s author=%s pages=%d-%d", req.Title, req.Author, req.PageFrom, req.PageTo)

	if err := req.Validate(); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	coverPath, err := s.saveCover(r)
	if err != nil {
		s.log.Errorf("Failed to save cover image: %v", err)
	}
	req.CoverPath = coverPath

	id, err := s.runner.Submit(r.Context(), req)
	if err != nil {
		if coverPath != "" {
			if rmErr := os.Remove(coverPath); rmErr != nil {
				s.log.Warnf("Failed to clean up cover image: %v", rmErr)
			}
		}
		status := http.StatusInternalServerError
		if errors.Is(err, downloader.ErrValidation) {
			status = http.StatusUnprocessableEntity
		}
		s.writeError(w, status, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, SubmitResponse{
		WorkflowID: id,
		Status:     "submitted",
		Message:    fmt.Sprintf("Workflow %s submitted successfully", id),
	})
}

func (s *Server) parseRequest(r *http.Request) (pipeline.Request, error) {
	req := pipeline.Request{
		APIURL:      strings.TrimSpace(r.FormValue("api_url")),
		Title:       strings.TrimSpace(r.FormValue("title")),
		Author:      strings.TrimSpace(r.FormValue("author")),
		Concurrency: s.cfg.DefaultConcurrency,
		MaxRetries:  s.cfg.DownloadMaxRetries,
	}
	ints := []struct {
		field    string
		dst      *int
		required bool
	}{
		{"page_from", &req.PageFrom, true},
		{"page_to", &req.PageTo, true},
		{"concurrency", &req.Concurrency, false},
		{"max_retries", &req.MaxRetries, false},
	}
	for _, f := range ints {
		raw := strings.TrimSpace(r.FormValue(f.field))
		if raw == "" {
			if f.required {
				return req, fmt.Errorf("%s is required", f.field)
			}
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return req, fmt.Errorf("%s must be an integer", f.field)
		}
		*f.dst = n
	}
	return req, nil
}

// saveCover stores the uploaded cover as {slug(stem)}{ext} in the upload directory.
func (s *Server) saveCover(r *http.Request) (string, error) {
	if r.MultipartForm == nil {
		return "", nil
	}
	file, header, err := r.FormFile("cover_image")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer file.Close()
	return s.writeCover(file, header)
}

func (s *Server) writeCover(file multipart.File, header *multipart.FileHeader) (string, error) {
	name := filepath.Base(header.Filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", errors.New("cover image has no filename")
	}
	if err := utils.EnsureDir(s.cfg.CoverUploadDir); err != nil {
		return "", err
	}
	path := uniqueCoverPath(s.cfg.CoverUploadDir, name)
	s.log.Infof("Saving cover image to %s", path)

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(path)
		return "", err
	}
	return path, out.Close()
}

// uniqueCoverPath keeps the cleaned upload name and adds a random suffix so concurrent uploads never share a file.
func uniqueCoverPath(dir, name string) string {
	ext := filepath.Ext(name)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:coverSuffixLength]
	return filepath.Join(dir, utils.CleanFilename(strings.TrimSuffix(name, ext))+"-"+suffix+strings.ToLower(ext))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.runner.Status(r.PathValue("id"))
	s.writeJSON(w, http.StatusOK, status)
}

// handleDownload streams the finished EPUB of a completed run.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	status := s.runner.Status(r.PathValue("id"))
	switch status.Status {
	case pipeline.StateNotFound:
		s.writeError(w, http.StatusNotFound, status.Error)
		return
	case pipeline.StateCompleted:
	default:
		s.writeError(w, http.StatusConflict, fmt.Sprintf("run is %s", status.Status))
		return
	}
	file, err := os.Open(status.Result)
	if err != nil {
		s.writeError(w, http.StatusGone, "output file is no longer available")
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/epub+zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(status.Result)))
	http.ServeContent(w, r, filepath.Base(status.Result), info.ModTime(), file)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Warnf("Failed to write response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
