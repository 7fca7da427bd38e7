// Package memory provides an in-process database. It keeps full revision
// trees and has a dedicated single-document write.
package memory

import (
	"log/slog"

	"github.com/aretw0/introspection"

	"github.com/aretw0/veneer/internal/store"
	"github.com/aretw0/veneer/pkg/core"
)

// MapFunc indexes a document for a view.
type MapFunc = store.MapFunc

// DB is an in-memory core.Database.
type DB struct {
	*store.Store
	name string
}

// Option configures a DB.
type Option func(*store.Config)

// WithLogger sets the logger used for write tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *store.Config) {
		c.Logger = logger
	}
}

// New creates an empty database.
func New(name string, opts ...Option) *DB {
	cfg := store.Config{
		Name:         name,
		Adapter:      core.AdapterMemory,
		DedicatedPut: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &DB{Store: store.New(cfg), name: name}
}

// State exposes internal state for observability.
type State struct {
	Name      string `json:"name"`
	DocCount  int    `json:"doc_count"`
	UpdateSeq int64  `json:"update_seq"`
}

// State implements introspection.Introspectable.
func (db *DB) State() any {
	info := db.Info()
	return State{Name: db.name, DocCount: info.DocCount, UpdateSeq: info.UpdateSeq}
}

// ComponentType implements introspection.Component.
func (db *DB) ComponentType() string {
	return "memory"
}

var _ core.Database = (*DB)(nil)
var _ introspection.Introspectable = (*DB)(nil)
var _ introspection.Component = (*DB)(nil)
