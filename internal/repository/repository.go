package repository

import (
	"context"
	"database/sql"
	"errors"

	rm "rehab_monitor"
	"rehab_monitor/internal/models"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrInvalidPath = errors.New("invalid document path")
	ErrStoreClosed = errors.New("document store closed")
)

type Authorization interface {
	Create(u models.User) (int, error)
	GetByUsername(username string) (*models.User, error)
	GetByID(id int) (*models.User, error)
}

// Document is a point-in-time read of one stored document.
type Document struct {
	Path   rm.DocPath    `json:"path"`
	Exists bool          `json:"exists"`
	Fields models.Fields `json:"fields,omitempty"`
}

// DocumentSnapshot is one notification of a document subscription: either a
// document state or a transport error.
type DocumentSnapshot struct {
	Document
	Err error
}

// QuerySnapshot is one notification of a collection subscription.
type QuerySnapshot struct {
	Docs []Document
	Err  error
}

// Query orders (and optionally limits) a collection read.
type Query struct {
	OrderBy    string
	Descending bool
	Limit      int
}

// DocumentStore is the shared store between the bridge and its clients.
// Writes are last-write-wins; subscriptions deliver snapshots in order per
// document and stop when ctx is cancelled.
type DocumentStore interface {
	Get(ctx context.Context, path rm.DocPath) (Document, error)
	// Set replaces the whole document.
	Set(ctx context.Context, path rm.DocPath, fields models.Fields) error
	// Update changes a single field of an existing document.
	Update(ctx context.Context, path rm.DocPath, field string, value any) error
	Delete(ctx context.Context, path rm.DocPath) error
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	Subscribe(ctx context.Context, path rm.DocPath) (<-chan DocumentSnapshot, error)
	SubscribeCollection(ctx context.Context, collection string, q Query) (<-chan QuerySnapshot, error)
	NewID() string
}

type Repository struct {
	Store DocumentStore
	Auth  Authorization
}

func NewRepository(db *sql.DB, store DocumentStore) *Repository {
	return &Repository{
		Store: store,
		Auth:  NewUserRepository(db),
	}
}
