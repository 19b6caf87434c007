package server

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
	"github.com/google/uuid"

	"github.com/dmreyes/idextract/constants"
	"github.com/dmreyes/idextract/internal/common"
	"github.com/dmreyes/idextract/internal/job"
)

// estimatedSeconds is the coarse processing estimate returned on submission.
const estimatedSeconds = 30

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Sprintf("parse multipart: %v", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeErr(w, http.StatusBadRequest, "missing 'file' upload")
		return
	}
	defer file.Close()

	v := common.NewValidator()
	v.Field("filename", header.Filename, common.Required, common.SupportedExtension, common.MaxLength(255))
	if err := v.Err(); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	path, size, err := s.saveUpload(file, header.Filename)
	if err != nil {
		s.logger.Error("server.upload.save_failed", "filename", header.Filename, "error", err)
		writeErr(w, http.StatusInternalServerError, "could not store upload")
		return
	}
	if size == 0 {
		_ = os.Remove(path)
		writeErr(w, http.StatusBadRequest, "uploaded file is empty")
		return
	}

	ext := constants.NormalizeExt(filepath.Ext(header.Filename))
	rec, err := s.store.Create(job.DocumentInfo{
		Path:      path,
		Filename:  header.Filename,
		SizeBytes: size,
	})
	if err != nil {
		_ = os.Remove(path)
		writeErr(w, http.StatusInternalServerError, "could not create job")
		return
	}

	if err := s.scheduler.Submit(rec.ID); err != nil {
		_, _ = s.store.Delete(rec.ID)
		_ = os.Remove(path)
		if errors.Is(err, common.ErrSchedulerSaturated) {
			s.logger.Warn("server.submit.saturated", "filename", header.Filename)
			writeErr(w, http.StatusServiceUnavailable, "processing queue is full, retry later")
			return
		}
		writeErr(w, http.StatusInternalServerError, "could not schedule job")
		return
	}

	s.logger.Info("server.submit.ok",
		"request_id", common.RequestIDFromContext(r.Context()),
		"job_id", rec.ID,
		"filename", header.Filename,
		"size_bytes", size,
	)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":                 rec.ID.String(),
		"status":                 rec.Status,
		"filename":               header.Filename,
		"file_type":              ext,
		"estimated_time_seconds": estimatedSeconds,
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, statusResponse(rec))
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}

	switch rec.Status {
	case constants.JobStatusPending, constants.JobStatusProcessing:
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":  "result not ready",
			"status": rec.Status,
		})
	case constants.JobStatusFailed:
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   "processing failed",
			"status":  rec.Status,
			"failure": failureResponse(rec.Failure),
		})
	case constants.JobStatusCompleted:
		writeJSON(w, http.StatusOK, resultResponse(rec))
	default:
		writeErr(w, http.StatusInternalServerError, "unknown job status")
	}
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 25
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			writeErr(w, http.StatusBadRequest, fmt.Sprintf("invalid limit: %s", raw))
			return
		}
		if value > 100 {
			value = 100
		}
		limit = value
	}

	recs := s.store.List(limit)
	resp := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		resp = append(resp, statusResponse(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": resp, "count": len(resp)})
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseID(w, r)
	if !ok {
		return
	}
	rec, err := s.store.Delete(id)
	if err != nil {
		writeErr(w, http.StatusNotFound, "job not found")
		return
	}
	if p := rec.State.Document.Path; p != "" {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("server.delete.cleanup_failed", "job_id", id, "path", p, "error", err)
		}
	}
	s.logger.Info("server.delete.ok", "job_id", id)
	writeJSON(w, http.StatusOK, map[string]any{"job_id": id.String(), "deleted": true})
}

func (s *Server) handleExportJob(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	data, err := s.exporter.ExportJobXLSX(rec)
	if err != nil {
		if errors.Is(err, common.ErrNotReady) {
			writeErr(w, http.StatusConflict, "job has no exportable result")
			return
		}
		writeErr(w, http.StatusInternalServerError, "export failed")
		return
	}
	serveXLSX(w, fmt.Sprintf("document-%s.xlsx", rec.ID), data)
}

func (s *Server) handleExportAll(w http.ResponseWriter, _ *http.Request) {
	data, err := s.exporter.ExportJobsXLSX(s.store.List(0))
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "export failed")
		return
	}
	serveXLSX(w, "documents.xlsx", data)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	active, total := s.store.Counts()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"active_jobs": active,
		"total_jobs":  total,
		"queue_depth": s.scheduler.Depth(),
	})
}

func (s *Server) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid job id")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*job.Record, bool) {
	id, ok := s.parseID(w, r)
	if !ok {
		return nil, false
	}
	rec, err := s.store.Get(id)
	if err != nil {
		writeErr(w, http.StatusNotFound, "job not found")
		return nil, false
	}
	return rec, true
}

// saveUpload streams the multipart file into the upload directory under a
// fresh temp name that keeps the original extension.
func (s *Server) saveUpload(src io.Reader, filename string) (string, int64, error) {
	if err := os.MkdirAll(s.upload.Dir, 0o755); err != nil {
		return "", 0, err
	}
	ext := constants.NormalizeExt(filepath.Ext(filename))
	dst, err := os.CreateTemp(s.upload.Dir, s.upload.TempPrefix+"*."+ext)
	if err != nil {
		return "", 0, err
	}
	defer dst.Close()

	n, err := io.Copy(dst, src)
	if err != nil {
		_ = os.Remove(dst.Name())
		return "", 0, err
	}
	return dst.Name(), n, nil
}

func serveXLSX(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func statusResponse(rec *job.Record) map[string]any {
	resp := map[string]any{
		"job_id":     rec.ID.String(),
		"status":     rec.Status,
		"progress":   constants.ProgressHint(rec.Status, rec.Stage),
		"filename":   rec.State.Document.Filename,
		"created_at": rec.CreatedAt,
	}
	if rec.Stage != "" {
		resp["stage"] = rec.Stage
	}
	if rec.StartedAt != nil {
		resp["started_at"] = rec.StartedAt
	}
	if rec.CompletedAt != nil {
		resp["completed_at"] = rec.CompletedAt
	}
	if rec.Failure != nil {
		resp["error"] = failureResponse(rec.Failure)
	}
	return resp
}

func resultResponse(rec *job.Record) map[string]any {
	return map[string]any{
		"job_id":         rec.ID.String(),
		"status":         rec.Status,
		"extracted_data": rec.State.ExtractedData,
		"quality": map[string]any{
			"confidence":   rec.State.Quality.Confidence,
			"completeness": rec.State.Quality.Completeness,
		},
		"metrics": rec.State.Metrics,
		"job_metadata": map[string]any{
			"filename":     rec.State.Document.Filename,
			"size_bytes":   rec.State.Document.SizeBytes,
			"method":       rec.State.Document.Method,
			"created_at":   rec.CreatedAt,
			"completed_at": rec.CompletedAt,
		},
		"diagnostics": rec.State.Diagnostics,
	}
}

func failureResponse(f *job.Failure) map[string]any {
	if f == nil {
		return nil
	}
	return map[string]any{"kind": f.Kind, "message": f.Message}
}
