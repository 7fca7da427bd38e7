// Package fs provides a database persisted in a directory.
//
// Every live document is mirrored as a plain file (<id>.json or <id>.yaml)
// that can be edited by hand; revision trees, local documents and the update
// sequence are kept under a hidden system directory. Edits made to the
// document files outside the database are picked up by Reconcile and, while
// a live changes feed is open, by a supervised filesystem watcher.
//
// The backend has no dedicated single-document write: Put is served by the
// same code path as BulkDocs.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"

	"github.com/aretw0/veneer/internal/store"
	"github.com/aretw0/veneer/pkg/core"
)

// DefaultSystemDir is the hidden directory holding the database internals.
const DefaultSystemDir = ".veneer"

// Config holds the configuration for the filesystem repository.
type Config struct {
	Path         string
	Name         string // defaults to the base name of Path
	SystemDir    string // e.g. ".veneer"
	Format       string // "json" (default) or "yaml"
	Compress     bool   // zstd-compress revision trees
	MustExist    bool
	ReadOnly     bool
	Logger       *slog.Logger
	ErrorHandler func(error) // receives watcher and background sync errors
}

type stopper interface {
	Stop(ctx context.Context) error
}

// Repository is a core.Database backed by a directory.
type Repository struct {
	*store.Store

	Path       string
	config     Config
	serializer Serializer
	codec      *recordCodec
	cache      *cache

	mu            sync.RWMutex
	watcherActive bool
	lastReconcile *time.Time

	watchMu     sync.Mutex
	sup         stopper
	watchCtx    context.Context
	watchCancel context.CancelFunc
	closeOnce   sync.Once
}

// NewRepository creates a new filesystem-backed repository. It must be
// initialized before use.
func NewRepository(config Config) (*Repository, error) {
	if config.Path == "" {
		return nil, errors.New("repository path cannot be empty")
	}
	if config.SystemDir == "" {
		config.SystemDir = DefaultSystemDir
	}
	if config.Name == "" {
		config.Name = filepath.Base(filepath.Clean(config.Path))
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	serializer, err := NewSerializer(config.Format)
	if err != nil {
		return nil, err
	}
	codec, err := newRecordCodec(config.Compress)
	if err != nil {
		return nil, err
	}

	r := &Repository{
		Path:       config.Path,
		config:     config,
		serializer: serializer,
		codec:      codec,
		cache:      newCache(filepath.Join(config.Path, config.SystemDir)),
	}
	r.watchCtx, r.watchCancel = context.WithCancel(context.Background())
	r.Store = store.New(store.Config{
		Name:      config.Name,
		Adapter:   core.AdapterFS,
		Persister: &persister{repo: r},
		Logger:    config.Logger,
	})
	return r, nil
}

// Initialize prepares the directory and loads the persisted state, then
// reconciles it with the document files.
func (r *Repository) Initialize(ctx context.Context) error {
	// 1. Directory Initialization
	if r.config.MustExist || r.config.ReadOnly {
		info, err := os.Stat(r.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("database path does not exist: %s", r.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("database path is not a directory: %s", r.Path)
		}
	}
	if !r.config.ReadOnly {
		for _, dir := range []string{r.Path, r.revsDir(), r.localDir()} {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	// 2. Persisted state
	records, local, seq, err := r.load()
	if err != nil {
		return err
	}
	r.Restore(records, local, seq)
	if err := r.cache.Load(); err != nil {
		r.config.Logger.Warn("cache unavailable, starting empty", "error", err)
	}

	// 3. External edits made while closed
	if _, err := r.Reconcile(ctx); err != nil {
		return fmt.Errorf("failed to reconcile: %w", err)
	}
	r.config.Logger.Debug("repository initialized",
		"path", r.Path,
		"documents", r.Info().DocCount,
		"update_seq", seq,
	)
	return nil
}

// Changes implements core.Database. A live feed starts the filesystem
// watcher so edits to the document files show up in the feed.
func (r *Repository) Changes(ctx context.Context, opts core.Options) core.ChangesFeed {
	if opts.Has(core.OptLive) && !r.config.ReadOnly {
		if err := r.Watch(); err != nil {
			r.config.Logger.Warn("filesystem watcher unavailable", "error", err)
		}
	}
	return r.Store.Changes(ctx, opts)
}

// Watch starts the supervised filesystem watcher. It is idempotent; the
// watcher runs until Close.
func (r *Repository) Watch() error {
	r.watchMu.Lock()
	defer r.watchMu.Unlock()
	if r.sup != nil {
		return nil
	}
	if r.watchCtx.Err() != nil {
		return core.ErrClosed
	}

	spec := supervisor.Spec{
		Name: "fs-watcher",
		Type: string(worker.TypeGoroutine),
		Factory: func() (worker.Worker, error) {
			return newWatchWorker(r), nil
		},
		Backoff: supervisor.Backoff{
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      2,
			ResetDuration:   time.Minute,
			MaxRestarts:     5,
			MaxDuration:     time.Minute,
		},
		RestartPolicy: supervisor.RestartOnFailure,
	}
	sup := supervisor.New("fs-repository", supervisor.StrategyOneForOne, spec)
	if err := sup.Start(r.watchCtx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	r.sup = sup
	return nil
}

// Close stops the watcher, flushes the cache and closes the database.
func (r *Repository) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.watchMu.Lock()
		sup := r.sup
		r.watchMu.Unlock()
		if sup != nil {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if stopErr := sup.Stop(stopCtx); stopErr != nil {
				r.config.Logger.Warn("failed to stop watcher", "error", stopErr)
			}
			cancel()
		}
		r.watchCancel()

		if !r.config.ReadOnly {
			err = r.cache.Save()
		}
		if closeErr := r.Store.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		r.codec.close()
	})
	return err
}

func (r *Repository) systemPath() string {
	return filepath.Join(r.Path, r.config.SystemDir)
}

func (r *Repository) revsDir() string {
	return filepath.Join(r.systemPath(), "revs")
}

func (r *Repository) localDir() string {
	return filepath.Join(r.systemPath(), "local")
}

func (r *Repository) seqPath() string {
	return filepath.Join(r.systemPath(), "seq")
}

// docPath returns the visible file of a document. Design documents and ids
// that would escape the directory have none.
func (r *Repository) docPath(id string) (string, bool) {
	if id == "" || core.IsReservedKey(id) || strings.HasPrefix(id, "/") {
		return "", false
	}
	for _, part := range strings.Split(id, "/") {
		if part == "" || part == "." || part == ".." || strings.HasPrefix(part, ".") {
			return "", false
		}
	}
	if strings.ContainsAny(id, `\:`) {
		return "", false
	}
	return filepath.Join(r.Path, filepath.FromSlash(id)) + r.serializer.Ext(), true
}

// resolveID maps a document file back to its id.
func (r *Repository) resolveID(path string) (string, error) {
	rel, err := filepath.Rel(r.Path, path)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasSuffix(rel, r.serializer.Ext()) {
		return "", fmt.Errorf("not a document file: %s", rel)
	}
	id := strings.TrimSuffix(rel, r.serializer.Ext())
	if _, ok := r.docPath(id); !ok {
		return "", fmt.Errorf("invalid document id %q", id)
	}
	return id, nil
}

func (r *Repository) relPath(path string) string {
	rel, err := filepath.Rel(r.Path, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// load reads the revision trees, local documents and sequence number.
func (r *Repository) load() ([]*store.Record, map[string]core.Document, int64, error) {
	var records []*store.Record
	entries, err := os.ReadDir(r.revsDir())
	if err != nil && !os.IsNotExist(err) {
		return nil, nil, 0, fmt.Errorf("failed to read revisions: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), TempFilePrefix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.revsDir(), e.Name()))
		if err != nil {
			return nil, nil, 0, err
		}
		rec, err := r.codec.decode(e.Name(), data)
		if err != nil {
			return nil, nil, 0, err
		}
		records = append(records, rec)
	}

	local := make(map[string]core.Document)
	entries, err = os.ReadDir(r.localDir())
	if err != nil && !os.IsNotExist(err) {
		return nil, nil, 0, fmt.Errorf("failed to read local documents: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		f, err := os.Open(filepath.Join(r.localDir(), e.Name()))
		if err != nil {
			return nil, nil, 0, err
		}
		doc, err := JSONSerializer{}.Parse(f)
		f.Close()
		if err != nil {
			return nil, nil, 0, fmt.Errorf("local document %s: %w", e.Name(), err)
		}
		local[doc.ID()] = doc
	}

	var seq int64
	if data, err := os.ReadFile(r.seqPath()); err == nil {
		seq, err = strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("corrupted sequence file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, nil, 0, err
	}
	return records, local, seq, nil
}

// fileName escapes an id into a single file name.
func fileName(id string) string {
	return url.PathEscape(id)
}

var _ core.Database = (*Repository)(nil)
