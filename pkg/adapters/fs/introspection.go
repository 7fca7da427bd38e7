package fs

import (
	"time"

	"github.com/aretw0/introspection"
)

// RepositoryState exposes internal state for observability.
type RepositoryState struct {
	Path          string     `json:"path"`
	SystemDir     string     `json:"system_dir"`
	Format        string     `json:"format"`
	Compressed    bool       `json:"compressed"`
	ReadOnly      bool       `json:"read_only"`
	CacheSize     int        `json:"cache_size"`
	DocCount      int        `json:"doc_count"`
	UpdateSeq     int64      `json:"update_seq"`
	WatcherActive bool       `json:"watcher_active"`
	LastReconcile *time.Time `json:"last_reconcile,omitempty"`
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	info := r.Info()

	r.mu.RLock()
	defer r.mu.RUnlock()
	return RepositoryState{
		Path:          r.Path,
		SystemDir:     r.config.SystemDir,
		Format:        r.serializer.Ext()[1:],
		Compressed:    r.config.Compress,
		ReadOnly:      r.config.ReadOnly,
		CacheSize:     r.cache.Len(),
		DocCount:      info.DocCount,
		UpdateSeq:     info.UpdateSeq,
		WatcherActive: r.watcherActive,
		LastReconcile: r.lastReconcile,
	}
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "repository"
}

var _ introspection.Introspectable = (*Repository)(nil)
var _ introspection.Component = (*Repository)(nil)

func (r *Repository) setWatcherActive(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watcherActive = active
}

func (r *Repository) recordReconcile() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.lastReconcile = &now
}
