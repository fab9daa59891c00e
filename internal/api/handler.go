// Package api provides the HTTP API handlers and routing for the service.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"romdock/internal/apperrors"
	"romdock/internal/config"
	"romdock/internal/health"
	"romdock/internal/job"
	"romdock/internal/observability"
	"romdock/internal/pipeline"
)

// maxRequestBodySize limits request body to 1MB to prevent memory exhaustion
const maxRequestBodySize = 1 << 20 // 1 MB

// Handler contains HTTP handlers for the jobs API
type Handler struct {
	cfg     *config.ServiceConfig
	reg     *job.Registry
	runner  *pipeline.Pipeline
	metrics *observability.Metrics
	health  *health.Checker
}

// NewHandler creates a new API handler
func NewHandler(cfg *config.ServiceConfig, reg *job.Registry, runner *pipeline.Pipeline, metrics *observability.Metrics, healthChecker *health.Checker) *Handler {
	return &Handler{
		cfg:     cfg,
		reg:     reg,
		runner:  runner,
		metrics: metrics,
		health:  healthChecker,
	}
}

type extractRequest struct {
	ArchivePath string `json:"archivePath"`
	CallbackURL string `json:"callbackUrl"`
}

type compressRequest struct {
	Files       []string `json:"files"`
	Direction   string   `json:"direction"`
	VerifyAfter bool     `json:"verifyAfter"`
	AskConfirm  bool     `json:"askConfirm"`
	CallbackURL string   `json:"callbackUrl"`
}

type fileListRequest struct {
	Files       []string `json:"files"`
	CallbackURL string   `json:"callbackUrl"`
}

type confirmRequest struct {
	Result bool `json:"result"`
}

type startResponse struct {
	JobID string `json:"jobId"`
}

// Extract handles POST /v1/extract
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ArchivePath == "" {
		h.handleError(w, r, apperrors.Validation("archivePath", "archivePath is required"))
		return
	}

	id, err := h.start(r.Context(), job.KindExtract)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	go h.runner.Extract(context.Background(), id, req.ArchivePath, req.CallbackURL)

	h.writeJSON(w, http.StatusAccepted, startResponse{JobID: id})
}

// Compress handles POST /v1/compress
func (h *Handler) Compress(w http.ResponseWriter, r *http.Request) {
	var req compressRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Files) == 0 {
		h.handleError(w, r, apperrors.Validation("files", "files is required"))
		return
	}
	switch req.Direction {
	case "", "compress", "decompress":
	default:
		h.handleError(w, r, apperrors.Validation("direction", "direction must be compress or decompress"))
		return
	}

	id, err := h.start(r.Context(), job.KindCompress)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	go h.runner.Compress(context.Background(), id, pipeline.CompressRequest{
		Files:       req.Files,
		Direction:   req.Direction,
		VerifyAfter: req.VerifyAfter,
		AskConfirm:  req.AskConfirm,
		CallbackURL: req.CallbackURL,
	})

	h.writeJSON(w, http.StatusAccepted, startResponse{JobID: id})
}

// Verify handles POST /v1/verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req fileListRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Files) == 0 {
		h.handleError(w, r, apperrors.Validation("files", "files is required"))
		return
	}

	id, err := h.start(r.Context(), job.KindVerify)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	go h.runner.Verify(context.Background(), id, req.Files, req.CallbackURL)

	h.writeJSON(w, http.StatusAccepted, startResponse{JobID: id})
}

// Organize handles POST /v1/organize
func (h *Handler) Organize(w http.ResponseWriter, r *http.Request) {
	var req fileListRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Files) == 0 {
		h.handleError(w, r, apperrors.Validation("files", "files is required"))
		return
	}

	id, err := h.start(r.Context(), job.KindOrganize)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	go h.runner.Organize(context.Background(), id, req.Files, req.CallbackURL)

	h.writeJSON(w, http.StatusAccepted, startResponse{JobID: id})
}

// Confirm handles POST /v1/jobs/{jobId}/confirm
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")
	if jobID == "" {
		h.writeError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	var req confirmRequest
	if !h.decode(w, r, &req) {
		return
	}

	if _, ok := h.reg.Info(jobID); !ok {
		h.handleError(w, r, apperrors.NotFound("job", jobID))
		return
	}

	h.reg.Resolve(jobID, req.Result)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Livez handles GET /livez - liveness probe.
// Returns 200 if the process is alive. Does not check dependencies.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	response := h.health.Liveness(r.Context())
	h.writeJSON(w, http.StatusOK, response)
}

// Readyz handles GET /readyz - readiness probe.
// Returns 503 if the scratch or library directories are unavailable.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsHealthy() {
		status = http.StatusServiceUnavailable
	}

	h.writeJSON(w, status, response)
}

// start registers a new job and records its creation.
func (h *Handler) start(ctx context.Context, kind job.Kind) (string, error) {
	id := job.NewJobID()
	if err := h.reg.Create(id, kind); err != nil {
		return "", err
	}
	if h.metrics != nil {
		h.metrics.RecordJobCreated(ctx, string(kind))
	}
	return id, nil
}

// decode reads a size-limited JSON body into dst, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// handleError handles errors from lower layers with appropriate HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		slog.Error("Internal error", "error", err, "path", r.URL.Path)
	} else {
		slog.Warn("Client error", "error", err, "path", r.URL.Path, "status", status)
	}
	h.writeError(w, status, err.Error())
}
