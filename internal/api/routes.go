package api

import (
	"net/http"

	"romdock/internal/config"
	"romdock/internal/health"
	"romdock/internal/job"
	"romdock/internal/observability"
	"romdock/internal/pipeline"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Cfg           *config.ServiceConfig
	Registry      *job.Registry
	Pipeline      *pipeline.Pipeline
	Metrics       *observability.Metrics
	HealthChecker *health.Checker
	APIKey        string
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.Cfg, cfg.Registry, cfg.Pipeline, cfg.Metrics, cfg.HealthChecker)

	mux := http.NewServeMux()

	// Health check endpoints (liveness/readiness probes) - no auth required
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)

	// Job and file endpoints - auth required
	authMiddleware := AuthMiddleware(cfg.APIKey)
	auth := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(h)
	}
	mux.Handle("POST /v1/extract", auth(handler.Extract))
	mux.Handle("POST /v1/compress", auth(handler.Compress))
	mux.Handle("POST /v1/verify", auth(handler.Verify))
	mux.Handle("POST /v1/organize", auth(handler.Organize))
	mux.Handle("POST /v1/jobs/{jobId}/confirm", auth(handler.Confirm))
	mux.Handle("GET /v1/jobs/{jobId}/stream", auth(handler.Stream))
	mux.Handle("GET /v1/jobs/{jobId}/ws", auth(handler.WS))
	mux.Handle("GET /v1/files/list", auth(handler.FilesList))
	mux.Handle("GET /v1/files/search", auth(handler.FilesSearch))
	mux.Handle("GET /v1/files/config", auth(handler.FilesConfig))

	// Apply middleware chain (order matters: outermost first)
	var h http.Handler = mux
	h = ContentTypeMiddleware()(h)
	h = CORSMiddleware()(h)
	if cfg.Metrics != nil {
		h = MetricsMiddleware(cfg.Metrics)(h)
	}
	h = LoggingMiddleware()(h)
	h = RecoveryMiddleware()(h)

	return h
}
