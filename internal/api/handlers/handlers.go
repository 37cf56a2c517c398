package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/blobshare/internal/api/middleware"
	"github.com/dvloznov/blobshare/internal/history"
	"github.com/dvloznov/blobshare/internal/jobs"
	"github.com/dvloznov/blobshare/internal/share"
)

// DefaultHistoryLimit caps GET /api/history when no limit is given.
const DefaultHistoryLimit = 50

// ServicesHandler handles service catalogue endpoints.
type ServicesHandler struct {
	services []*share.Service
}

// NewServicesHandler creates a new services handler.
func NewServicesHandler(services []*share.Service) *ServicesHandler {
	return &ServicesHandler{services: services}
}

// ListServices handles GET /api/services
func (h *ServicesHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"services": h.services,
		"count":    len(h.services),
	})
}

// SharesHandler accepts files to share.
type SharesHandler struct {
	services       []*share.Service
	publisher      jobs.Publisher
	defaultService string
	tempDir        string
	maxUpload      int64
	log            zerolog.Logger
}

// NewSharesHandler creates a new shares handler. Uploaded files are kept in
// tempDir until their job finishes; maxUpload limits the request body in bytes.
func NewSharesHandler(services []*share.Service, publisher jobs.Publisher, defaultService, tempDir string, maxUpload int64, log zerolog.Logger) *SharesHandler {
	return &SharesHandler{
		services:       services,
		publisher:      publisher,
		defaultService: defaultService,
		tempDir:        tempDir,
		maxUpload:      maxUpload,
		log:            log,
	}
}

// CreateShare handles POST /api/shares?service=&format=
// The multipart field "file" carries the file. format defaults to the file's
// extension.
func (h *SharesHandler) CreateShare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	name := query.Get("service")
	if name == "" {
		name = h.defaultService
	}
	svc := h.service(name)
	if svc == nil {
		middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("Unknown service %q", name))
		return
	}

	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "Multipart field \"file\" is required")
		return
	}
	defer file.Close()

	fileName := filepath.Base(header.Filename)
	format := query.Get("format")
	if format == "" {
		format = strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	}
	if !svc.Supports(format) {
		middleware.WriteError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Service %s does not support format %q", svc.Name, format))
		return
	}

	path, size, err := h.saveTemp(file, format)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to store upload")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to store upload")
		return
	}

	job := &jobs.ShareJob{
		Service:  svc.Name,
		Format:   format,
		FileName: fileName,
		FilePath: path,
		Size:     size,
	}
	if err := h.publisher.PublishShare(ctx, job); err != nil {
		os.Remove(path)
		h.log.Error().Err(err).Msg("Failed to enqueue share job")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to enqueue share job")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("service", job.Service).
		Str("file", job.FileName).
		Int64("bytes", size).
		Msg("Share job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, job)
}

func (h *SharesHandler) service(name string) *share.Service {
	for _, s := range h.services {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// saveTemp copies src into a new file under the temp dir.
func (h *SharesHandler) saveTemp(src io.Reader, format string) (string, int64, error) {
	dst, err := os.CreateTemp(h.tempDir, "blobshare-*."+format)
	if err != nil {
		return "", 0, fmt.Errorf("creating temp file: %w", err)
	}

	written, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dst.Name())
		return "", 0, fmt.Errorf("writing temp file: %w", err)
	}
	return dst.Name(), written, nil
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "id")

	job, err := h.store.GetJob(ctx, jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		Service: query.Get("service"),
		Status:  jobs.JobStatus(query.Get("status")),
		Limit:   intParam(query.Get("limit")),
		Offset:  intParam(query.Get("offset")),
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	if jobsList == nil {
		jobsList = []*jobs.ShareJob{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// HistoryHandler serves the log of finished shares.
type HistoryHandler struct {
	recorder history.Recorder
	log      zerolog.Logger
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(recorder history.Recorder, log zerolog.Logger) *HistoryHandler {
	return &HistoryHandler{
		recorder: recorder,
		log:      log,
	}
}

// ListHistory handles GET /api/history
func (h *HistoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := h.recorder.Recent(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read share history")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read share history")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"shares": rows,
		"count":  len(rows),
	})
}

// intParam parses a query value, treating anything invalid as unset.
func intParam(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
