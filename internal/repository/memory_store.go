package repository

import (
	"context"
	"fmt"
	"sync"

	rm "rehab_monitor"
	"rehab_monitor/internal/models"

	"github.com/google/uuid"
)

// MemoryStore keeps documents in process. Writes and their notifications
// happen under one lock, so subscribers see per-document write order.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]map[string][]byte // collection -> id -> encoded fields
	hub  *hub
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]map[string][]byte),
		hub:  newHub(),
	}
}

// Ensure implementation of DocumentStore at compile time.
var _ DocumentStore = (*MemoryStore)(nil)

func (s *MemoryStore) NewID() string { return uuid.NewString() }

func (s *MemoryStore) Get(ctx context.Context, path rm.DocPath) (Document, error) {
	if err := checkPath(path); err != nil {
		return Document{}, err
	}
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(path)
}

func (s *MemoryStore) Set(ctx context.Context, path rm.DocPath, fields models.Fields) error {
	if err := checkPath(path); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := encodeFields(fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[path.Collection] == nil {
		s.data[path.Collection] = make(map[string][]byte)
	}
	s.data[path.Collection][path.ID] = raw
	return s.notify(path)
}

func (s *MemoryStore) Update(ctx context.Context, path rm.DocPath, field string, value any) error {
	if err := checkPath(path); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load(path)
	if err != nil {
		return err
	}
	if !doc.Exists {
		return fmt.Errorf("update %s: %w", path, ErrNotFound)
	}
	doc.Fields[field] = value
	raw, err := encodeFields(doc.Fields)
	if err != nil {
		return err
	}
	s.data[path.Collection][path.ID] = raw
	return s.notify(path)
}

func (s *MemoryStore) Delete(ctx context.Context, path rm.DocPath) error {
	if err := checkPath(path); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[path.Collection], path.ID)
	return s.notify(path)
}

func (s *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query(collection, q)
}

func (s *MemoryStore) Subscribe(ctx context.Context, path rm.DocPath) (<-chan DocumentSnapshot, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load(path)
	if err != nil {
		return nil, err
	}
	f := s.hub.watchDoc(ctx, path)
	f.push(DocumentSnapshot{Document: doc})
	return f.C(), nil
}

func (s *MemoryStore) SubscribeCollection(ctx context.Context, collection string, q Query) (<-chan QuerySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, err := s.query(collection, q)
	if err != nil {
		return nil, err
	}
	w := s.hub.watchCollection(ctx, collection, q)
	w.feed.push(QuerySnapshot{Docs: docs})
	return w.feed.C(), nil
}

// load reads one document; caller holds s.mu.
func (s *MemoryStore) load(path rm.DocPath) (Document, error) {
	raw, ok := s.data[path.Collection][path.ID]
	if !ok {
		return Document{Path: path}, nil
	}
	fields, err := decodeFields(raw)
	if err != nil {
		return Document{}, err
	}
	return Document{Path: path, Exists: true, Fields: fields}, nil
}

// query reads a collection; caller holds s.mu.
func (s *MemoryStore) query(collection string, q Query) ([]Document, error) {
	docs := make([]Document, 0, len(s.data[collection]))
	for id, raw := range s.data[collection] {
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{
			Path:   rm.DocPath{Collection: collection, ID: id},
			Exists: true,
			Fields: fields,
		})
	}
	return applyQuery(docs, q), nil
}

// notify publishes the current state of path; caller holds s.mu.
func (s *MemoryStore) notify(path rm.DocPath) error {
	doc, err := s.load(path)
	if err != nil {
		return err
	}
	s.hub.publishDoc(doc)

	for _, w := range s.hub.collectionWatchers(path.Collection) {
		docs, err := s.query(path.Collection, w.query)
		if err != nil {
			w.feed.push(QuerySnapshot{Err: err})
			continue
		}
		w.feed.push(QuerySnapshot{Docs: docs})
	}
	return nil
}
