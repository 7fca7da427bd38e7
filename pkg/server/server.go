// Package server exposes a core.Database over a CouchDB-style REST API.
package server

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/veneer/pkg/core"
)

// Handler serves the document routes of one database.
type Handler struct {
	db       core.Database
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics
	timeout  time.Duration
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithMetrics records request metrics on reg and serves them on /metrics.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(h *Handler) {
		h.registry = reg
	}
}

// WithTimeout bounds the handling time of every request.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.timeout = d
	}
}

// New creates a Handler for db.
func New(db core.Database, opts ...Option) *Handler {
	h := &Handler{db: db, timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if h.registry != nil {
		h.metrics = newMetrics(h.registry)
	}
	return h
}

// Register registers the database routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	dbRouter := chi.NewRouter()
	dbRouter.Use(middleware.RequestID)
	dbRouter.Use(h.recovery)
	dbRouter.Use(h.requestLogger)
	dbRouter.Use(middleware.Timeout(h.timeout))
	if h.metrics != nil {
		dbRouter.Use(h.metrics.middleware)
	}

	dbRouter.Get("/", h.handleInfo)
	dbRouter.Post("/", h.handlePost)
	dbRouter.Post("/_bulk_docs", h.handleBulkDocs)
	dbRouter.Get("/_all_docs", h.handleAllDocs)
	dbRouter.Post("/_all_docs", h.handleAllDocs)
	dbRouter.Post("/_bulk_get", h.handleBulkGet)
	dbRouter.Get("/_changes", h.handleChanges)
	dbRouter.Get("/_design/{ddoc}/_view/{view}", h.handleQuery)
	dbRouter.Get("/_design/{ddoc}", h.handleGetDoc)
	dbRouter.Put("/_design/{ddoc}", h.handlePutDoc)
	dbRouter.Delete("/_design/{ddoc}", h.handleDeleteDoc)
	dbRouter.Get("/_local/{local}", h.handleGetDoc)
	dbRouter.Put("/_local/{local}", h.handlePutDoc)
	dbRouter.Delete("/_local/{local}", h.handleDeleteDoc)
	if h.registry != nil {
		dbRouter.Handle("/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
	}
	dbRouter.Get("/*", h.handleGetDoc)
	dbRouter.Put("/*", h.handlePutDoc)
	dbRouter.Delete("/*", h.handleDeleteDoc)

	r.Mount("/", dbRouter)
}

// Router returns a standalone router serving the database at its root.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

// NewHTTPServer builds an HTTP server with sane defaults for this project.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (h *Handler) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.ErrorContext(r.Context(), "panic serving request",
					"request_id", middleware.GetReqID(r.Context()),
					"path", r.URL.Path,
					"panic", rec,
				)
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal_server_error", Reason: "panic"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.DebugContext(r.Context(), "request served",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}
