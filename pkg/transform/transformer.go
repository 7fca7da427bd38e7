package transform

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/aretw0/veneer/pkg/core"
	"github.com/aretw0/veneer/pkg/wrap"
)

// Transformer holds a hook configuration and installs it on databases.
// A Transformer carries no per-call state and may be installed on any number
// of databases.
type Transformer struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics

	installs atomic.Int64
}

// New creates a Transformer for cfg.
func New(cfg Config, opts ...Option) *Transformer {
	o := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}

	t := &Transformer{
		cfg:    cfg,
		logger: o.logger,
	}
	if o.registry != nil {
		t.metrics = newMetrics(o.registry)
	}
	return t
}

// Install intercepts the operations of db. The query interceptor is only
// installed when db is network-backed.
func (t *Transformer) Install(db core.Database) *wrap.Database {
	h := wrap.Handlers{
		Get:      t.get,
		Put:      t.put,
		BulkDocs: t.bulkDocs,
		AllDocs:  t.allDocs,
		BulkGet:  t.bulkGet,
		Changes:  t.changes,
	}
	info := db.Info()
	if info.Adapter == core.AdapterHTTP {
		h.Query = t.query
	}

	t.installs.Add(1)
	hooks := t.cfg.hooks()
	emitInstalled(context.Background(), string(info.Adapter), len(hooks))
	t.logger.Info("transform installed", "db", info.Name, "adapter", info.Adapter, "hooks", hooks)

	return wrap.Install(db, h)
}

// Install is shorthand for New(cfg, opts...).Install(db).
func Install(db core.Database, cfg Config, opts ...Option) *wrap.Database {
	return New(cfg, opts...).Install(db)
}
