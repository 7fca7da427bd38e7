package typed

import (
	"context"

	"github.com/aretw0/veneer/pkg/core"
)

// Service wraps a core.Service to provide type-safe access.
type Service[T any] struct {
	svc *core.Service
}

// NewService creates a new typed service wrapper.
func NewService[T any](svc *core.Service) *Service[T] {
	return &Service[T]{svc: svc}
}

// Save persists a typed document. On success doc.Rev holds the new revision.
func (s *Service[T]) Save(ctx context.Context, doc *DocumentModel[T]) error {
	if doc.Saver == nil {
		doc.Saver = s
	}
	coreDoc, err := toCore(doc)
	if err != nil {
		return err
	}
	res, err := s.svc.SaveDocument(ctx, coreDoc)
	if err != nil {
		return err
	}
	doc.Rev = res.Rev
	return nil
}

// Get retrieves a document via Service.
func (s *Service[T]) Get(ctx context.Context, id string) (*DocumentModel[T], error) {
	coreDoc, err := s.svc.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	return fromCore(coreDoc, s)
}

// List retrieves all documents via Service.
func (s *Service[T]) List(ctx context.Context) ([]*DocumentModel[T], error) {
	coreDocs, err := s.svc.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*DocumentModel[T], 0, len(coreDocs))
	for _, d := range coreDocs {
		model, err := fromCore(d, s)
		if err != nil {
			return nil, err
		}
		result = append(result, model)
	}
	return result, nil
}

// Delete removes a document via Service.
func (s *Service[T]) Delete(ctx context.Context, id string) error {
	_, err := s.svc.DeleteDocument(ctx, id, "")
	return err
}

// Watch observes live changes.
func (s *Service[T]) Watch(ctx context.Context, opts core.Options) (<-chan core.Change, error) {
	return s.svc.Watch(ctx, opts)
}
