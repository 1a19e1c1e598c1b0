package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/contractreview/internal/parser"
	"github.com/dgallion1/contractreview/internal/pipeline"
	"github.com/dgallion1/contractreview/internal/render"
)

// errTooLarge marks an upload over the configured size limit.
var errTooLarge = errors.New("file too large")

func (s *Server) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		formError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}
	if f := r.FormValue("output_format"); f != "" {
		if _, err := render.ParseFormat(f); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	path, err := s.saveUpload(file, filename)
	if errors.Is(err, errTooLarge) {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}
	if err != nil {
		s.log.Error("save upload", "error", err)
		jsonError(w, "failed to store file", http.StatusInternalServerError)
		return
	}

	job := s.newJob(r, filename, path)
	if err := s.orchestrator.Submit(job); err != nil {
		os.Remove(path)
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": pollURL(job.ID),
	})
}

// handleBatchReview queues one job per uploaded file with shared review fields.
func (s *Server) handleBatchReview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		formError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	var results []map[string]any
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		if !parser.IsSupportedExtension(filename) {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)),
			})
			continue
		}

		f, err := fh.Open()
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    "failed to open file",
			})
			continue
		}
		path, err := s.saveUpload(f, filename)
		f.Close()
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    "file too large or write error",
			})
			continue
		}

		job := s.newJob(r, filename, path)
		if err := s.orchestrator.Submit(job); err != nil {
			os.Remove(path)
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}

		results = append(results, map[string]any{
			"filename": filename,
			"job_id":   job.ID,
			"status":   pipeline.StatusQueued,
			"poll_url": pollURL(job.ID),
		})
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": results})
}

func (s *Server) handleReviewStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleReviewReport(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	res := job.Result()
	if res == nil {
		jsonError(w, "review still running", http.StatusConflict)
		return
	}
	if res.Data == nil || res.Data.ReportPath == "" {
		jsonError(w, "no report available", http.StatusNotFound)
		return
	}

	path := res.Data.ReportPath
	name := filepath.Base(path)
	w.Header().Set("Content-Type", contentType(path))
	w.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(name))
	http.ServeFile(w, r, path)
}

func (s *Server) newJob(r *http.Request, filename, path string) *pipeline.Job {
	job := pipeline.NewJob(filename, path)
	job.ClientRole = r.FormValue("client_role")
	job.ContractType = r.FormValue("contract_type")
	job.UserConcerns = r.FormValue("user_concerns")
	job.OutputFormat = r.FormValue("output_format")
	if job.OutputFormat == "" {
		job.OutputFormat = s.cfg.DefaultExportFormat
	}
	job.Quick = r.FormValue("quick") == "true"
	job.FocusAreas = splitList(r.FormValue("focus_areas"))
	return job
}

// saveUpload copies src into the temp directory, keeping the extension the
// parser dispatches on.
func (s *Server) saveUpload(src io.Reader, filename string) (string, error) {
	dst, err := os.CreateTemp(s.cfg.TempDir, "upload-*"+strings.ToLower(filepath.Ext(filename)))
	if err != nil {
		return "", err
	}
	n, err := io.Copy(dst, io.LimitReader(src, s.cfg.MaxUploadBytes+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > s.cfg.MaxUploadBytes {
		err = errTooLarge
	}
	if err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

func formError(w http.ResponseWriter, err error) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) || errors.Is(err, multipart.ErrMessageTooLarge) {
		jsonError(w, "request too large", http.StatusRequestEntityTooLarge)
		return
	}
	jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
}

func pollURL(jobID string) string {
	return "/api/reviews/" + jobID
}

func contentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".html":
		return "text/html; charset=utf-8"
	}
	return "application/octet-stream"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '，' }) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
