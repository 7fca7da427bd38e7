package platform

import (
	"context"
	"fmt"

	"github.com/aretw0/veneer/pkg/adapters/fs"
	"github.com/aretw0/veneer/pkg/adapters/memory"
	"github.com/aretw0/veneer/pkg/adapters/remote"
	"github.com/aretw0/veneer/pkg/core"
	"github.com/aretw0/veneer/pkg/transform"
	"github.com/aretw0/veneer/pkg/transforms"
)

// New opens a database and wraps it in a Service.
//
//	svc, err := platform.New("./data", platform.WithTransform(cfg))
func New(uri string, opts ...Option) (*core.Service, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	db, err := open(uri, o)
	if err != nil {
		return nil, err
	}
	return core.NewService(db, o.eventBuffer), nil
}

// Open builds the backend selected by the options and installs the
// configured transforms on it. The uri is adapter-specific: a directory for
// "fs", a base URL for "http" and a database name for "memory".
func Open(uri string, opts ...Option) (core.Database, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return open(uri, o)
}

func open(uri string, o *options) (core.Database, error) {
	base, err := initDatabase(uri, o)
	if err != nil {
		return nil, err
	}
	if len(o.transforms) == 0 {
		return base, nil
	}

	cfg := o.transforms[0]
	if len(o.transforms) > 1 {
		cfg = transforms.Chain(o.transforms...)
	}
	var topts []transform.Option
	if o.logger != nil {
		topts = append(topts, transform.WithLogger(o.logger))
	}
	if o.registry != nil {
		topts = append(topts, transform.WithMetrics(o.registry))
	}
	return transform.Install(base, cfg, topts...), nil
}

// initDatabase builds and initializes the bare backend, without transforms.
func initDatabase(uri string, o *options) (core.Database, error) {
	// 1. Check for injected database
	if o.database != nil {
		return o.database, nil
	}

	// 2. Initialize based on Adapter
	switch o.adapter {
	case AdapterMemory:
		var mopts []memory.Option
		if o.logger != nil {
			mopts = append(mopts, memory.WithLogger(o.logger))
		}
		name := uri
		if name == "" {
			name = "memory"
		}
		return memory.New(name, mopts...), nil
	case AdapterFS:
		repo, err := initFS(uri, o)
		if err != nil {
			return nil, err
		}
		if err := repo.Initialize(context.Background()); err != nil {
			repo.Close()
			return nil, err
		}
		return repo, nil
	case AdapterHTTP:
		var ropts []remote.Option
		if o.logger != nil {
			ropts = append(ropts, remote.WithLogger(o.logger))
		}
		if o.httpClient != nil {
			ropts = append(ropts, remote.WithHTTPClient(o.httpClient))
		}
		if o.pollInterval > 0 {
			ropts = append(ropts, remote.WithPollInterval(o.pollInterval))
		}
		return remote.New(uri, ropts...)
	default:
		return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
	}
}

// initFS handles the configuration of the filesystem adapter.
func initFS(path string, o *options) (*fs.Repository, error) {
	tempDir, _ := o.config["temp_dir"].(bool)
	mustExist, _ := o.config["must_exist"].(bool)
	compress, _ := o.config["compress"].(bool)
	readOnly, _ := o.config["read_only"].(bool)
	format, _ := o.config["format"].(string)
	systemDir, _ := o.config["system_dir"].(string)
	errorHandler, _ := o.config["watcher_error_handler"].(func(error))

	// Default to true (safe) if not present.
	devSafety := true
	if val, ok := o.config["dev_safety"].(bool); ok {
		devSafety = val
	}
	bypassSafety := readOnly || !devSafety

	useTemp := tempDir || (IsDevRun() && !bypassSafety)
	resolved := ResolvePath(path, useTemp)

	if o.logger != nil && useTemp && resolved != path {
		o.logger.Warn("running in SAFE MODE (dev sandbox)", "original_path", path, "resolved_path", resolved)
	}

	return fs.NewRepository(fs.Config{
		Path:         resolved,
		SystemDir:    systemDir,
		Format:       format,
		Compress:     compress,
		MustExist:    mustExist,
		ReadOnly:     readOnly,
		Logger:       o.logger,
		ErrorHandler: errorHandler,
	})
}
