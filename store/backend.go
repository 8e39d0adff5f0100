package store

import "context"

// Backend is a document database able to run multi-document transactions.
type Backend interface {
	// RunInTransaction opens a transaction, calls fn and commits when fn returns nil.
	// A non-nil return from fn, a panic or a failed commit aborts the transaction.
	// Implementations never retry fn.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Get loads the document with the given ID into dst, returning ErrNotFound if missing.
	Get(ctx context.Context, collection, id string, dst any) error

	// FindOne loads the document whose field equals value into dst.
	// Field must be one of the collection's unique fields.
	FindOne(ctx context.Context, collection, field, value string, dst any) error

	// List loads every document of the collection into dst (a pointer to a slice),
	// ordered ascending by sortField.
	List(ctx context.Context, collection, sortField string, dst any) error
}

// Tx is the view of a Backend inside a running transaction.
// Every observation made through a Tx holds until commit or the commit fails.
type Tx interface {
	// Exists reports whether the document exists.
	Exists(ctx context.Context, collection, id string) (bool, error)

	// Count returns how many documents of rel.ChildCollection reference parentID through rel.Field.
	Count(ctx context.Context, rel Relationship, parentID string) (int64, error)

	// Get loads a document into dst, returning ErrNotFound if missing.
	Get(ctx context.Context, collection, id string, dst any) error

	// FindOne loads the document whose unique field equals value into dst.
	FindOne(ctx context.Context, collection, field, value string, dst any) error

	// Insert writes a new document, returning ErrAlreadyExists or ErrDuplicateValue on conflict.
	Insert(ctx context.Context, doc Document) error

	// Replace overwrites an existing document, returning ErrNotFound if missing.
	Replace(ctx context.Context, doc Document) error

	// Delete removes a document and loads its last state into dst,
	// returning ErrNotFound if missing.
	Delete(ctx context.Context, collection, id string, dst any) error
}
