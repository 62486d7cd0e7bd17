package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kirillkom/lovdata-assistant/internal/config"
	"github.com/kirillkom/lovdata-assistant/internal/core/ports"
	"github.com/kirillkom/lovdata-assistant/internal/observability/metrics"
)

const (
	maxJSONBodyBytes   = 1 << 20
	uploadMemoryBytes  = 32 << 20
	healthCheckTimeout = 2 * time.Second
	serviceName        = "api"
	multipartFileField = "file"
)

// Services groups the inbound ports served over HTTP. Nil services answer 501.
type Services struct {
	Archives  ports.ArchiveUploader
	Documents ports.DocumentReader
	Search    ports.SearchService
	Query     ports.QueryService
	Assistant ports.AssistantService
}

// HealthCheck probes one dependency; a non-nil error marks the service degraded.
type HealthCheck func(ctx context.Context) error

type Router struct {
	cfg      config.Config
	services Services
	metrics  *metrics.HTTPServerMetrics
	checks   map[string]HealthCheck
	details  map[string]func() any
}

type Option func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) Option {
	return func(rt *Router) { rt.metrics = m }
}

func WithHealthCheck(name string, check HealthCheck) Option {
	return func(rt *Router) { rt.checks[name] = check }
}

// WithHealthDetail adds an informational section to /healthz that never fails it.
func WithHealthDetail(name string, detail func() any) Option {
	return func(rt *Router) { rt.details[name] = detail }
}

func NewRouter(cfg config.Config, services Services, opts ...Option) *Router {
	rt := &Router{
		cfg:      cfg,
		services: services,
		checks:   make(map[string]HealthCheck),
		details:  make(map[string]func() any),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/archives", rt.uploadArchive)
	api.HandleFunc("GET /v1/archives", rt.listArchives)
	api.HandleFunc("GET /v1/documents", rt.getDocument)
	api.HandleFunc("POST /v1/search", rt.search)
	api.HandleFunc("POST /v1/answer", rt.answer)
	api.HandleFunc("POST /v1/assistant/run", rt.runAssistant)

	var guarded http.Handler = api
	guarded = backpressureMiddleware(guarded, rt.cfg.MaxInFlight, rt.cfg.BackpressureWait)
	guarded = rateLimitMiddleware(guarded, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	guarded = bearerAuthMiddleware(guarded, rt.cfg.APIKey)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		root.Handle("GET /metrics", rt.metrics.Handler())
	}
	root.Handle("/v1/", guarded)

	var handler http.Handler = root
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	body := map[string]any{"status": "ok"}
	if len(rt.checks) > 0 {
		results := make(map[string]string, len(rt.checks))
		for name, check := range rt.checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				continue
			}
			results[name] = "ok"
		}
		body["checks"] = results
	}
	for name, detail := range rt.details {
		body[name] = detail()
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSONBody rejects unknown fields and trailing data.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("request body must contain a single json object")
	}
	return nil
}

func notImplemented(w http.ResponseWriter, feature string) {
	writeJSON(w, http.StatusNotImplemented, map[string]string{"error": feature + " is not configured"})
}
