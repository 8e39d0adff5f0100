package store

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document is the base interface for all storable types.
type Document interface {
	// Collection returns the collection (table) name for this document type.
	Collection() string

	// DocumentID returns the document's identifier.
	DocumentID() string
}

// Reference names a document that must exist for the referencing document to be written.
type Reference struct {
	// Field is the wire name of the referencing field (e.g. "category_id").
	Field string

	// Collection is the referenced collection (e.g. "categories").
	Collection string

	// ID is the referenced document's identifier.
	ID string
}

// Referencer is implemented by documents that reference other documents.
type Referencer interface {
	// References returns the references to check, in the order they must be checked.
	References() []Reference
}

// UniqueFielder is implemented by documents with unique field constraints.
type UniqueFielder interface {
	// UniqueFields returns field name to value mappings for fields
	// that must be unique within the collection.
	UniqueFields() map[string]string
}

// NewID returns a new 24-character hexadecimal document identifier.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// IsID reports whether s has the shape of an identifier returned by NewID.
func IsID(s string) bool {
	_, err := primitive.ObjectIDFromHex(s)
	return err == nil
}
