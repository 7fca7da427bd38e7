package typed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/veneer/pkg/core"
)

// DocumentModel is a typed view of a document: the user fields decode into
// Data, the reserved ones into ID and Rev.
type DocumentModel[T any] struct {
	ID   string
	Rev  string
	Data T
	// Saver is the Repository or Service the model was loaded from.
	Saver Saver[T]
}

// Saver interface avoids circular dependencies or tight coupling with Repository/Service structs.
type Saver[T any] interface {
	Save(ctx context.Context, doc *DocumentModel[T]) error
}

// Save persists the document using the attached saver (Repository or Service).
func (d *DocumentModel[T]) Save(ctx context.Context) error {
	if d.Saver == nil {
		return fmt.Errorf("document is detached (missing Saver)")
	}
	return d.Saver.Save(ctx, d)
}

// Repository wraps a core.Database to provide type-safe access. Installing
// transforms on the database first makes every typed read and write cross
// them.
type Repository[T any] struct {
	db core.Database
}

// NewRepository creates a new type-safe wrapper around an existing database.
func NewRepository[T any](db core.Database) *Repository[T] {
	return &Repository[T]{db: db}
}

// Save persists a typed document. On success doc.Rev holds the new revision.
func (r *Repository[T]) Save(ctx context.Context, doc *DocumentModel[T]) error {
	coreDoc, err := toCore(doc)
	if err != nil {
		return err
	}
	if doc.Saver == nil {
		doc.Saver = r
	}

	res, err := r.db.Put(ctx, coreDoc, nil)
	if err == nil {
		err = core.ResultError(res)
	}
	if err != nil {
		return err
	}
	doc.Rev = res.Rev
	return nil
}

// Get retrieves a document and unmarshals it.
func (r *Repository[T]) Get(ctx context.Context, id string) (*DocumentModel[T], error) {
	res, err := r.db.Get(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	return fromCore(res.Doc, r)
}

// List returns all documents converted to the typed model.
func (r *Repository[T]) List(ctx context.Context) ([]*DocumentModel[T], error) {
	resp, err := r.db.AllDocs(ctx, core.Options{core.OptIncludeDocs: true})
	if err != nil {
		return nil, err
	}

	result := make([]*DocumentModel[T], 0, len(resp.Rows))
	for _, row := range resp.Rows {
		if row.Doc == nil {
			continue
		}
		model, err := fromCore(row.Doc, r)
		if err != nil {
			return nil, fmt.Errorf("failed to process document %s: %w", row.ID, err)
		}
		result = append(result, model)
	}
	return result, nil
}

// Delete removes the current revision of a document.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	res, err := r.db.Get(ctx, id, nil)
	if err != nil {
		return err
	}
	tomb := core.Document{core.FieldID: id, core.FieldRev: res.Doc.Rev(), core.FieldDeleted: true}
	wr, err := r.db.Put(ctx, tomb, nil)
	if err != nil {
		return err
	}
	return core.ResultError(wr)
}

func toCore[T any](doc *DocumentModel[T]) (core.Document, error) {
	if doc.ID == "" {
		return nil, core.BadRequest("document ID cannot be empty")
	}
	dataBytes, err := json.Marshal(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal typed data: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(dataBytes, &fields); err != nil {
		return nil, fmt.Errorf("typed data must encode to a JSON object: %w", err)
	}

	coreDoc := core.Document(fields)
	if coreDoc == nil {
		coreDoc = core.Document{}
	}
	for k := range coreDoc {
		if core.IsReservedKey(k) {
			return nil, core.BadRequest(fmt.Sprintf("typed field %q uses the reserved prefix", k))
		}
	}
	coreDoc[core.FieldID] = doc.ID
	if doc.Rev != "" {
		coreDoc[core.FieldRev] = doc.Rev
	}
	return coreDoc, nil
}

// Helper to convert core.Document to DocumentModel
func fromCore[T any](coreDoc core.Document, saver Saver[T]) (*DocumentModel[T], error) {
	fields := make(map[string]any, len(coreDoc))
	for k, v := range coreDoc {
		if !core.IsReservedKey(k) {
			fields[k] = v
		}
	}
	dataBytes, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("document marshal failed: %w", err)
	}

	var data T
	if err := json.Unmarshal(dataBytes, &data); err != nil {
		return nil, fmt.Errorf("unmarshal to target type failed: %w", err)
	}

	return &DocumentModel[T]{
		ID:    coreDoc.ID(),
		Rev:   coreDoc.Rev(),
		Data:  data,
		Saver: saver,
	}, nil
}
