package platform

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/veneer/pkg/core"
	"github.com/aretw0/veneer/pkg/transform"
)

// Adapter names understood by Open.
const (
	AdapterMemory = "memory"
	AdapterFS     = "fs"
	AdapterHTTP   = "http"
)

// options holds the internal configuration for opening a database.
type options struct {
	database     core.Database
	logger       *slog.Logger
	adapter      string
	transforms   []transform.Config
	registry     prometheus.Registerer
	httpClient   *http.Client
	pollInterval time.Duration
	eventBuffer  int
	config       map[string]interface{}
}

// Option defines a functional option for opening a database.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		adapter: AdapterFS,
		config:  make(map[string]interface{}),
	}
}

// WithAdapter selects the backend by name: "memory", "fs" or "http".
// Defaults to "fs".
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithDatabase injects an already built backend. The adapter name and the
// location are then ignored; transforms are still installed.
func WithDatabase(db core.Database) Option {
	return func(o *options) {
		o.database = db
	}
}

// WithLogger sets the logger for the backend and the transform layer.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTransform adds a set of hooks. Multiple sets are chained in the order
// given: incoming hooks run first to last, outgoing hooks last to first.
func WithTransform(cfg transform.Config) Option {
	return func(o *options) {
		o.transforms = append(o.transforms, cfg)
	}
}

// WithMetrics records hook counters and latencies on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithHTTPClient sets the client used by the "http" adapter.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithPollInterval sets how often the "http" adapter polls live feeds.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		o.pollInterval = d
	}
}

// WithEventBuffer sets the Watch channel capacity of services built by New.
// Zero means default (100).
func WithEventBuffer(size int) Option {
	return func(o *options) {
		o.eventBuffer = size
	}
}

// WithSystemDir sets the hidden directory name of the "fs" adapter.
// Defaults to ".veneer".
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.config["system_dir"] = name
	}
}

// WithFormat sets the document file format of the "fs" adapter ("json" or "yaml").
func WithFormat(format string) Option {
	return func(o *options) {
		o.config["format"] = format
	}
}

// WithCompression zstd-compresses the revision trees of the "fs" adapter.
func WithCompression(enabled bool) Option {
	return func(o *options) {
		o.config["compress"] = enabled
	}
}

// WithMustExist requires the "fs" directory to exist already.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.config["must_exist"] = must
	}
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.config["temp_dir"] = force
	}
}

// WithReadOnly enables read-only mode for the "fs" adapter.
// In this mode:
// 1. Writes return ErrReadOnly.
// 2. No directory is created and the file index is not persisted.
// 3. The dev sandbox is bypassed (uses the real path).
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.config["read_only"] = enabled
	}
}

// WithDevSafety controls the sandbox used when running via `go run`.
// By default (true) the "fs" adapter is re-rooted into a temporary directory
// to prevent accidental data loss.
//
// CAUTION: Only disable this if you are sure your code is safe.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.config["dev_safety"] = enabled
	}
}

// WithWatcherErrorHandler registers a callback for errors of the "fs"
// filesystem watcher and background reconciliation, which are otherwise only
// logged.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.config["watcher_error_handler"] = fn
	}
}
