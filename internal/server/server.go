package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dmreyes/idextract/internal/common"
	"github.com/dmreyes/idextract/internal/export"
	"github.com/dmreyes/idextract/internal/job"
)

// Submitter hands accepted jobs to the background scheduler.
type Submitter interface {
	Submit(id uuid.UUID) error
	Depth() int
}

// Server exposes the document-processing API over HTTP.
type Server struct {
	store     job.Store
	scheduler Submitter
	exporter  *export.Service
	upload    common.UploadConfig
	logger    *slog.Logger
}

func New(store job.Store, sched Submitter, exporter *export.Service, upload common.UploadConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:     store,
		scheduler: sched,
		exporter:  exporter,
		upload:    upload,
		logger:    logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(bridgeRequestID)

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/documents", s.handleSubmit)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/export", s.handleExportAll)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Get("/jobs/{id}/result", s.handleGetResult)
		r.Get("/jobs/{id}/export", s.handleExportJob)
		r.Delete("/jobs/{id}", s.handleDeleteJob)
	})

	return r
}

// bridgeRequestID copies the router's request id into the application
// context key so handlers and downstream logs can carry it uniformly.
func bridgeRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if rid := middleware.GetReqID(ctx); rid != "" {
			ctx = common.WithRequestID(ctx, rid)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}
