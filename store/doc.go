// Package store provides the referential-integrity and transaction layer of the
// storefront catalog, independent of the document database that backs it.
//
// Every mutation runs as one unit of work on a [Backend]: the integrity guard
// performs its existence and dependent-count checks inside the same transaction
// as the write, and the first failed check aborts the transaction before
// anything is persisted.
//
// # Key Features
//
//   - Reference validation on create and update (atomic with the write)
//   - Orphan protection (refuse to delete documents that others reference)
//   - Unique field constraints
//   - One transaction per mutation, no automatic retries
//
// # Document Interfaces
//
// All documents implement [Document]:
//
//	type Document interface {
//	    Collection() string
//	    DocumentID() string
//	}
//
// Documents that point at other documents also implement [Referencer]:
//
//	type Referencer interface {
//	    References() []Reference
//	}
//
// Documents with unique constraints implement [UniqueFielder]:
//
//	type UniqueFielder interface {
//	    UniqueFields() map[string]string
//	}
//
// Relationships used by the delete guard are declared once in a [Registry].
//
// # Backends
//
// Three implementations of [Backend] exist: store/mongostore (multi-document
// transactions on a client session), store/dynamostore (a single
// TransactWriteItems that re-asserts every observation as a condition) and
// store/memstore (a mutex-serialised in-process store for tests and demos).
//
// # Errors
//
// The package defines domain-specific errors:
//
//   - [ErrNotFound] - document doesn't exist
//   - [ErrReferenceNotFound] - a referenced document doesn't exist (see [ReferenceError])
//   - [ErrHasDependents] - other documents still reference the target (see [DependentsError])
//   - [ErrAlreadyExists] - document with ID already exists
//   - [ErrDuplicateValue] - unique constraint violated
//   - [ErrConcurrentModification] - a guarded observation changed before commit
package store
