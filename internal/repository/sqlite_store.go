package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	rm "rehab_monitor"
	"rehab_monitor/internal/models"

	"github.com/google/uuid"
)

const (
	upsertDocumentSQL = `
		INSERT INTO documents (collection, id, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			data=excluded.data,
			updated_at=excluded.updated_at
	`
	selectDocumentSQL   = `SELECT data FROM documents WHERE collection = ? AND id = ?`
	updateDocumentSQL   = `UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`
	deleteDocumentSQL   = `DELETE FROM documents WHERE collection = ? AND id = ?`
	selectCollectionSQL = `SELECT id, data FROM documents WHERE collection = ?`
)

// SQLiteStore persists documents in the documents table. Change
// notifications cover writes made through this store instance.
type SQLiteStore struct {
	db *sql.DB

	// writeMu orders write+notify pairs so subscribers observe writes in
	// commit order.
	writeMu sync.Mutex
	hub     *hub
	now     func() time.Time
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, hub: newHub(), now: time.Now}
}

// Ensure implementation of DocumentStore at compile time.
var _ DocumentStore = (*SQLiteStore)(nil)

func (s *SQLiteStore) NewID() string { return uuid.NewString() }

func (s *SQLiteStore) Get(ctx context.Context, path rm.DocPath) (Document, error) {
	if err := checkPath(path); err != nil {
		return Document{}, err
	}
	return s.load(ctx, s.db, path)
}

func (s *SQLiteStore) Set(ctx context.Context, path rm.DocPath, fields models.Fields) error {
	if err := checkPath(path); err != nil {
		return err
	}
	raw, err := encodeFields(fields)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.ExecContext(ctx, upsertDocumentSQL,
		path.Collection, path.ID, string(raw), s.now().UTC(),
	); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	s.notify(ctx, path)
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, path rm.DocPath, field string, value any) error {
	if err := checkPath(path); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update %s: %w", path, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	doc, err := s.load(ctx, tx, path)
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
	if _, err := tx.ExecContext(ctx, updateDocumentSQL,
		string(raw), s.now().UTC(), path.Collection, path.ID,
	); err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update %s: %w", path, err)
	}
	s.notify(ctx, path)
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, path rm.DocPath) error {
	if err := checkPath(path); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.ExecContext(ctx, deleteDocumentSQL, path.Collection, path.ID); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	s.notify(ctx, path)
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, selectCollectionSQL, collection)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	docs := make([]Document, 0, 16)
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		fields, err := decodeFields([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, err)
		}
		docs = append(docs, Document{
			Path:   rm.DocPath{Collection: collection, ID: id},
			Exists: true,
			Fields: fields,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return applyQuery(docs, q), nil
}

func (s *SQLiteStore) Subscribe(ctx context.Context, path rm.DocPath) (<-chan DocumentSnapshot, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	doc, err := s.load(ctx, s.db, path)
	if err != nil {
		return nil, err
	}
	f := s.hub.watchDoc(ctx, path)
	f.push(DocumentSnapshot{Document: doc})
	return f.C(), nil
}

func (s *SQLiteStore) SubscribeCollection(ctx context.Context, collection string, q Query) (<-chan QuerySnapshot, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	docs, err := s.Query(ctx, collection, q)
	if err != nil {
		return nil, err
	}
	w := s.hub.watchCollection(ctx, collection, q)
	w.feed.push(QuerySnapshot{Docs: docs})
	return w.feed.C(), nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) load(ctx context.Context, q queryRower, path rm.DocPath) (Document, error) {
	var data string
	err := q.QueryRowContext(ctx, selectDocumentSQL, path.Collection, path.ID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{Path: path}, nil
		}
		return Document{}, fmt.Errorf("get %s: %w", path, err)
	}
	fields, err := decodeFields([]byte(data))
	if err != nil {
		return Document{}, fmt.Errorf("get %s: %w", path, err)
	}
	return Document{Path: path, Exists: true, Fields: fields}, nil
}

// notify re-reads path and pushes it to subscribers; caller holds writeMu.
// A failed re-read reaches subscribers as a transport error.
func (s *SQLiteStore) notify(ctx context.Context, path rm.DocPath) {
	ctx = context.WithoutCancel(ctx)

	if s.hub.hasDocWatchers(path) {
		doc, err := s.load(ctx, s.db, path)
		if err != nil {
			s.hub.publishError(path, err)
		} else {
			s.hub.publishDoc(doc)
		}
	}

	if !s.hub.hasCollectionWatchers(path.Collection) {
		return
	}
	for _, w := range s.hub.collectionWatchers(path.Collection) {
		docs, err := s.Query(ctx, path.Collection, w.query)
		w.feed.push(QuerySnapshot{Docs: docs, Err: err})
	}
}
