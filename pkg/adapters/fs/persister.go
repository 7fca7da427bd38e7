package fs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aretw0/veneer/internal/store"
	"github.com/aretw0/veneer/pkg/core"
)

// persister writes every committed mutation of the store to disk before it
// becomes visible. It runs under the store's write lock.
type persister struct {
	repo *Repository
}

func (p *persister) readOnly() error {
	return core.NewError(core.ErrReadOnly, p.repo.Path)
}

func (p *persister) SaveRecord(rec *store.Record) error {
	r := p.repo
	if r.config.ReadOnly {
		return p.readOnly()
	}

	data, err := r.codec.encode(rec)
	if err != nil {
		return err
	}
	base := filepath.Join(r.revsDir(), fileName(rec.ID))
	if err := writeFileAtomic(base+r.codec.ext(), data, 0644); err != nil {
		return err
	}
	// drop the copy left by the other encoding, if any
	stale := base + ".json"
	if !r.codec.compress {
		stale += compressedExt
	}
	if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
		r.config.Logger.Warn("failed to remove stale record", "path", stale, "error", err)
	}

	return p.writeDocFile(rec)
}

// writeDocFile mirrors the winning revision into the visible document file,
// removing the file when the document is deleted.
func (p *persister) writeDocFile(rec *store.Record) error {
	r := p.repo
	path, ok := r.docPath(rec.ID)
	if !ok {
		return nil
	}
	rel := r.relPath(path)

	w := rec.Winner()
	if w == nil || w.Deleted {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", rel, err)
		}
		r.cache.Delete(rel)
		return nil
	}
	if !w.Available() {
		return nil
	}

	data, err := r.serializer.Serialize(w.Body)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", rec.ID, err)
	}
	if current, err := os.ReadFile(path); err != nil || !bytes.Equal(current, data) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", rel, err)
		}
		if err := writeFileAtomic(path, data, 0644); err != nil {
			return err
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	r.cache.Set(rel, &indexEntry{ID: rec.ID, Rev: w.Rev, LastModified: info.ModTime()})
	return nil
}

func (p *persister) SaveLocal(id string, doc core.Document) error {
	r := p.repo
	if r.config.ReadOnly {
		return p.readOnly()
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", id, err)
	}
	return writeFileAtomic(filepath.Join(r.localDir(), fileName(id)+".json"), data, 0644)
}

func (p *persister) DeleteLocal(id string) error {
	r := p.repo
	if r.config.ReadOnly {
		return p.readOnly()
	}
	err := os.Remove(filepath.Join(r.localDir(), fileName(id)+".json"))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (p *persister) SaveSeq(seq int64) error {
	r := p.repo
	if r.config.ReadOnly {
		return p.readOnly()
	}
	return writeFileAtomic(r.seqPath(), []byte(strconv.FormatInt(seq, 10)), 0644)
}
