package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	crosswalkerrors "meridian/contexts/warehouse-core/crosswalk-builder/domain/errors"
	mergeerrors "meridian/contexts/warehouse-core/field-merge-engine/domain/errors"
	pipeline "meridian/contexts/warehouse-core/pipeline"
	pipelineerrors "meridian/contexts/warehouse-core/pipeline/domain/errors"
	pipelinehttp "meridian/contexts/warehouse-core/pipeline/transport/http"
	scderrors "meridian/contexts/warehouse-core/scd-historizer/domain/errors"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	addr     string
	pipeline pipeline.Module
}

func New(
	pipelineModule pipeline.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:      http.NewServeMux(),
		logger:   logger,
		addr:     addr,
		pipeline: pipelineModule,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.mux.HandleFunc("POST /v1/pipeline/runs", s.handleRunBatch)
	s.mux.HandleFunc("GET /v1/pipeline/runs/{run_id}", s.handleGetRun)
	s.mux.HandleFunc("GET /v1/reconciliation/conflicts", s.handleListConflicts)
	s.mux.HandleFunc("GET /v1/dimensions/{entity_type}/{master_id}/history", s.handleGetHistory)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRunBatch(w http.ResponseWriter, r *http.Request) {
	var req pipelinehttp.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePipelineError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.pipeline.Handler.RunBatchHandler(r.Context(), req)
	if err != nil {
		writePipelineDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	resp, err := s.pipeline.Handler.GetRunHandler(r.Context(), runID)
	if err != nil {
		writePipelineDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListConflicts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	entityType := query.Get("entity_type")
	if entityType == "" {
		writePipelineError(w, http.StatusBadRequest, "missing_entity_type", "entity_type query parameter is required")
		return
	}

	resp, err := s.pipeline.Handler.ListConflictsHandler(r.Context(), entityType, query.Get("batch_id"))
	if err != nil {
		writePipelineDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	entityType := r.PathValue("entity_type")
	masterID := r.PathValue("master_id")
	resp, err := s.pipeline.Handler.GetHistoryHandler(r.Context(), entityType, masterID)
	if err != nil {
		writePipelineDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writePipelineDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipelineerrors.ErrEmptyBatchID),
		errors.Is(err, crosswalkerrors.ErrEmptyBatchID),
		errors.Is(err, mergeerrors.ErrEmptyBatchID):
		writePipelineError(w, http.StatusBadRequest, "empty_batch_id", err.Error())
	case errors.Is(err, pipelineerrors.ErrUnknownEntityType),
		errors.Is(err, crosswalkerrors.ErrUnknownEntity):
		writePipelineError(w, http.StatusBadRequest, "unknown_entity_type", err.Error())
	case errors.Is(err, pipelineerrors.ErrDependencyNotReady):
		writePipelineError(w, http.StatusConflict, "dependency_not_ready", err.Error())
	case errors.Is(err, mergeerrors.ErrCrosswalkNotReady):
		writePipelineError(w, http.StatusConflict, "crosswalk_not_ready", err.Error())
	case errors.Is(err, scderrors.ErrMergeNotReady):
		writePipelineError(w, http.StatusConflict, "merge_not_ready", err.Error())
	case errors.Is(err, pipelineerrors.ErrRunActive):
		writePipelineError(w, http.StatusConflict, "run_active", err.Error())
	case errors.Is(err, pipelineerrors.ErrRunNotFound):
		writePipelineError(w, http.StatusNotFound, "run_not_found", err.Error())
	case errors.Is(err, scderrors.ErrIntegrityViolation):
		writePipelineError(w, http.StatusInternalServerError, "integrity_violation", err.Error())
	default:
		writePipelineError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writePipelineError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, pipelinehttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
