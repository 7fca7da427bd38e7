package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/veneer/internal/store"
	"github.com/aretw0/veneer/pkg/core"
)

// Reconcile brings the database in line with the document files: files
// whose content differs from the winning revision become new revisions, and
// live documents whose file disappeared are deleted. Unchanged files are
// recognised through the cache without being parsed. It returns the number
// of documents that changed.
func (r *Repository) Reconcile(ctx context.Context) (int, error) {
	seen := make(map[string]bool)
	ids := make(map[string]bool)
	changed := 0

	err := filepath.WalkDir(r.Path, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			// Skip system and hidden directories (.veneer, .git)
			if path != r.Path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), TempFilePrefix) || filepath.Ext(d.Name()) != r.serializer.Ext() {
			return nil
		}

		id, err := r.resolveID(path)
		if err != nil {
			r.config.Logger.Debug("skipping file", "path", path, "error", err)
			return nil
		}
		seen[r.relPath(path)] = true
		ids[id] = true

		ok, err := r.syncFile(ctx, path, id)
		if err != nil {
			r.reportError(err)
			return nil
		}
		if ok {
			changed++
		}
		return nil
	})
	if err != nil {
		return changed, err
	}

	resp, err := r.AllDocs(ctx, nil)
	if err != nil {
		return changed, err
	}
	for _, row := range resp.Rows {
		if ids[row.ID] {
			continue
		}
		if _, ok := r.docPath(row.ID); !ok {
			continue
		}
		ok, err := r.syncRemoval(ctx, row.ID, "")
		if err != nil {
			r.reportError(err)
			continue
		}
		if ok {
			changed++
		}
	}

	r.cache.Prune(seen)
	if !r.config.ReadOnly {
		if err := r.cache.Save(); err != nil {
			r.config.Logger.Warn("failed to save cache", "error", err)
		}
	}
	r.recordReconcile()
	if changed > 0 {
		r.config.Logger.Info("reconciled external edits", "path", r.Path, "changed", changed)
	}
	return changed, nil
}

// syncFile applies the current content of one document file. It reports
// whether a new revision was written.
func (r *Repository) syncFile(ctx context.Context, path, id string) (bool, error) {
	rel := r.relPath(path)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return r.syncRemoval(ctx, id, rel)
	}
	if err != nil {
		return false, err
	}

	var winner *store.Revision
	if rec, ok := r.Record(id); ok {
		winner = rec.Winner()
	}
	live := winner != nil && !winner.Deleted
	if live {
		if entry, ok := r.cache.Get(rel, info.ModTime()); ok && entry.Rev == winner.Rev {
			return false, nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	doc, err := r.serializer.Parse(f)
	f.Close()
	if err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", rel, err)
	}

	body := store.Body(doc)
	if live && winner.Available() && sameBody(body, winner.Body) {
		r.cache.Set(rel, &indexEntry{ID: id, Rev: winner.Rev, LastModified: info.ModTime()})
		return false, nil
	}
	if r.config.ReadOnly {
		return false, nil
	}

	body[core.FieldID] = id
	res, err := r.Ingest(ctx, body)
	if err != nil {
		return false, fmt.Errorf("failed to ingest %s: %w", rel, err)
	}
	r.config.Logger.Debug("external edit ingested", "id", id, "rev", res.Rev)
	return true, nil
}

// syncRemoval deletes a live document whose file is gone.
func (r *Repository) syncRemoval(ctx context.Context, id, rel string) (bool, error) {
	if rel != "" {
		r.cache.Delete(rel)
	}
	rec, ok := r.Record(id)
	if !ok {
		return false, nil
	}
	if w := rec.Winner(); w == nil || w.Deleted || r.config.ReadOnly {
		return false, nil
	}
	res, err := r.Ingest(ctx, core.Document{core.FieldID: id, core.FieldDeleted: true})
	if err != nil {
		return false, fmt.Errorf("failed to delete %s: %w", id, err)
	}
	r.config.Logger.Debug("external removal ingested", "id", id, "rev", res.Rev)
	return true, nil
}

func (r *Repository) reportError(err error) {
	if r.config.ErrorHandler != nil {
		r.config.ErrorHandler(err)
		return
	}
	r.config.Logger.Warn("sync failed", "error", err)
}
