package core

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// DefaultEventBuffer is the Watch channel capacity when none is configured.
const DefaultEventBuffer = 100

// Service handles the business logic for documents on top of a Database.
// It is typically given a database with transforms installed, so every
// document it writes or reads crosses the transform boundary.
type Service struct {
	mu              sync.RWMutex
	db              Database
	eventBufferSize int
}

// NewService creates a new Service. A non-positive eventBufferSize selects
// DefaultEventBuffer.
func NewService(db Database, eventBufferSize int) *Service {
	if eventBufferSize <= 0 {
		eventBufferSize = DefaultEventBuffer
	}
	return &Service{db: db, eventBufferSize: eventBufferSize}
}

// Database returns the underlying database.
func (s *Service) Database() Database {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

// SaveDocument creates or updates a document. A rejected write is returned
// as an error.
func (s *Service) SaveDocument(ctx context.Context, doc Document) (WriteResult, error) {
	if doc.ID() == "" {
		return WriteResult{}, errors.New("document ID cannot be empty")
	}
	res, err := s.Database().Put(ctx, doc, nil)
	if err != nil {
		return res, err
	}
	return res, ResultError(res)
}

// Post creates a document under a freshly generated id.
func (s *Service) Post(ctx context.Context, doc Document) (WriteResult, error) {
	doc = doc.Clone()
	if doc == nil {
		doc = Document{}
	}
	doc[FieldID] = uuid.NewString()
	delete(doc, FieldRev)
	return s.SaveDocument(ctx, doc)
}

// SaveDocuments writes a batch of documents.
func (s *Service) SaveDocuments(ctx context.Context, docs []Document) ([]WriteResult, error) {
	return s.Database().BulkDocs(ctx, docs, nil)
}

// GetDocument retrieves the winning revision of a document.
func (s *Service) GetDocument(ctx context.Context, id string) (Document, error) {
	if id == "" {
		return nil, errors.New("document ID cannot be empty")
	}
	res, err := s.Database().Get(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	if res.IsList() {
		return nil, BadRequest("unexpected open_revs response")
	}
	return res.Doc, nil
}

// ListDocuments retrieves all documents with their content.
func (s *Service) ListDocuments(ctx context.Context) ([]Document, error) {
	resp, err := s.Database().AllDocs(ctx, Options{OptIncludeDocs: true})
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		if row.Doc != nil {
			docs = append(docs, row.Doc)
		}
	}
	return docs, nil
}

// DeleteDocument writes a tombstone for the document. When rev is empty the
// current revision is looked up first.
func (s *Service) DeleteDocument(ctx context.Context, id, rev string) (WriteResult, error) {
	if id == "" {
		return WriteResult{}, errors.New("document ID cannot be empty")
	}
	if rev == "" {
		current, err := s.GetDocument(ctx, id)
		if err != nil {
			return WriteResult{}, err
		}
		rev = current.Rev()
	}
	return s.SaveDocument(ctx, Document{FieldID: id, FieldRev: rev, FieldDeleted: true})
}

// Watch observes live changes. Changes are buffered so a slow consumer does
// not stall the feed; the channel is closed when the feed ends or ctx is done.
func (s *Service) Watch(ctx context.Context, opts Options) (<-chan Change, error) {
	opts = opts.Clone()
	opts[OptLive] = true
	if _, ok := opts[OptSince]; !ok {
		opts[OptSince] = "now"
	}

	s.mu.RLock()
	size := s.eventBufferSize
	s.mu.RUnlock()

	b := newBroker(ctx, size)
	feed := s.Database().Changes(ctx, opts)
	feed.On(EventChange, func(p any) {
		if c, ok := p.(Change); ok {
			b.send(c)
		}
	})
	feed.On(EventComplete, func(any) { b.close() })
	feed.On(EventError, func(any) { b.close() })
	feed.Start()

	go func() {
		select {
		case <-ctx.Done():
			feed.Cancel()
		case <-feed.Done():
		}
	}()
	return b.out, nil
}

// broker decouples feed delivery from the consumer.
type broker struct {
	ctx    context.Context
	mu     sync.Mutex
	out    chan Change
	closed bool
}

func newBroker(ctx context.Context, size int) *broker {
	return &broker{ctx: ctx, out: make(chan Change, size)}
}

func (b *broker) send(c Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.out <- c:
	case <-b.ctx.Done():
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.out)
	}
}
