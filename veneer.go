package veneer

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/veneer/internal/platform"
	"github.com/aretw0/veneer/pkg/core"
	"github.com/aretw0/veneer/pkg/transform"
	"github.com/aretw0/veneer/pkg/typed"
)

// --- Types ---

// Document is a public alias for the core document.
type Document = core.Document

// Options is a public alias for per-call options.
type Options = core.Options

// Database is a public alias for the database contract.
type Database = core.Database

// Config is a public alias for the transform hook set.
type Config = transform.Config

// DocumentModel is a public alias for the typed document model.
type DocumentModel[T any] = typed.DocumentModel[T]

// TypedRepository is a public alias for the typed repository.
type TypedRepository[T any] = typed.Repository[T]

// TypedService is a public alias for the typed service.
type TypedService[T any] = typed.Service[T]

// --- Configuration ---

// Option defines a functional option for opening a database.
type Option = platform.Option

// Adapter names.
const (
	AdapterMemory = platform.AdapterMemory
	AdapterFS     = platform.AdapterFS
	AdapterHTTP   = platform.AdapterHTTP
)

// WithAdapter selects the backend by name ("memory", "fs" or "http").
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithDatabase injects an already built backend.
func WithDatabase(db core.Database) Option {
	return platform.WithDatabase(db)
}

// WithLogger sets the logger for the backend and the transform layer.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithTransform adds a set of hooks. Multiple sets are chained.
func WithTransform(cfg transform.Config) Option {
	return platform.WithTransform(cfg)
}

// WithMetrics records hook counters and latencies on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return platform.WithMetrics(reg)
}

// WithHTTPClient sets the client used by the "http" adapter.
func WithHTTPClient(hc *http.Client) Option {
	return platform.WithHTTPClient(hc)
}

// WithPollInterval sets how often the "http" adapter polls live feeds.
func WithPollInterval(d time.Duration) Option {
	return platform.WithPollInterval(d)
}

// WithEventBuffer sets the Watch channel capacity of services.
func WithEventBuffer(size int) Option {
	return platform.WithEventBuffer(size)
}

// WithSystemDir sets the hidden directory name of the "fs" adapter.
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithFormat sets the document file format of the "fs" adapter.
func WithFormat(format string) Option {
	return platform.WithFormat(format)
}

// WithCompression zstd-compresses the revision trees of the "fs" adapter.
func WithCompression(enabled bool) Option {
	return platform.WithCompression(enabled)
}

// WithMustExist requires the "fs" directory to exist already.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithReadOnly enables read-only mode for the "fs" adapter.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithDevSafety controls the `go run` sandbox of the "fs" adapter.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithWatcherErrorHandler registers a callback for filesystem watcher errors.
func WithWatcherErrorHandler(fn func(error)) Option {
	return platform.WithWatcherErrorHandler(fn)
}

// --- Factory ---

// Open opens a database with the configured transforms installed.
func Open(uri string, opts ...Option) (core.Database, error) {
	return platform.Open(uri, opts...)
}

// New opens a database and wraps it in a Service.
func New(uri string, opts ...Option) (*core.Service, error) {
	return platform.New(uri, opts...)
}

// Install registers cfg on db directly.
func Install(db core.Database, cfg transform.Config, opts ...transform.Option) core.Database {
	return transform.Install(db, cfg, opts...)
}

// --- Typed Factories ---

// NewTypedRepository creates a type-safe wrapper around an existing database.
func NewTypedRepository[T any](db core.Database) *typed.Repository[T] {
	return typed.NewRepository[T](db)
}

// NewTypedService creates a type-safe wrapper around an existing service.
func NewTypedService[T any](svc *core.Service) *typed.Service[T] {
	return typed.NewService[T](svc)
}

// OpenTypedRepository simplifies creating a TypedRepository from a location.
func OpenTypedRepository[T any](uri string, opts ...Option) (*typed.Repository[T], error) {
	db, err := Open(uri, opts...)
	if err != nil {
		return nil, err
	}
	return typed.NewRepository[T](db), nil
}

// OpenTypedService simplifies creating a TypedService from a location.
func OpenTypedService[T any](uri string, opts ...Option) (*typed.Service[T], error) {
	svc, err := New(uri, opts...)
	if err != nil {
		return nil, err
	}
	return typed.NewService[T](svc), nil
}

// --- Safety & Utils ---

// ResolvePath determines the actual database directory based on safety rules.
func ResolvePath(userPath string, forceTemp bool) string {
	return platform.ResolvePath(userPath, forceTemp)
}

// IsDevRun checks if the current process is running via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

// FindRoot recursively looks upwards for a database root indicator.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}
