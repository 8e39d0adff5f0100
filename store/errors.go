package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a document doesn't exist.
	ErrNotFound = errors.New("store: document not found")

	// ErrReferenceNotFound is returned when a referenced document doesn't exist.
	ErrReferenceNotFound = errors.New("store: referenced document not found")

	// ErrAlreadyExists is returned when attempting to create a document with an existing ID.
	ErrAlreadyExists = errors.New("store: document already exists")

	// ErrHasDependents is returned when attempting to delete a document that others reference.
	ErrHasDependents = errors.New("store: document has dependents")

	// ErrConcurrentModification is returned when a guarded observation changed before commit.
	ErrConcurrentModification = errors.New("store: document was modified concurrently")

	// ErrDuplicateValue is returned when a unique constraint is violated.
	ErrDuplicateValue = errors.New("store: duplicate value for unique field")
)

// ReferenceError reports the first reference that failed the existence check.
type ReferenceError struct {
	Reference
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("store: %s %q not found in %s", e.Field, e.ID, e.Collection)
}

func (e *ReferenceError) Unwrap() error { return ErrReferenceNotFound }

// DependentCount is the number of documents referencing a parent through one relationship.
type DependentCount struct {
	Relationship Relationship
	Count        int64
}

// DependentsError reports every non-zero dependent count found by the delete guard.
type DependentsError struct {
	Collection string
	ID         string
	Dependents []DependentCount
}

func (e *DependentsError) Error() string {
	parts := make([]string, 0, len(e.Dependents))
	for _, d := range e.Dependents {
		parts = append(parts, fmt.Sprintf("%s.%s=%d", d.Relationship.ChildCollection, d.Relationship.Field, d.Count))
	}
	return fmt.Sprintf("store: %s %q has dependents (%s)", e.Collection, e.ID, strings.Join(parts, ", "))
}

func (e *DependentsError) Unwrap() error { return ErrHasDependents }

// Total returns the sum of all dependent counts.
func (e *DependentsError) Total() int64 {
	var n int64
	for _, d := range e.Dependents {
		n += d.Count
	}
	return n
}

// CountOf returns the number of dependents in childCollection.
func (e *DependentsError) CountOf(childCollection string) int64 {
	var n int64
	for _, d := range e.Dependents {
		if d.Relationship.ChildCollection == childCollection {
			n += d.Count
		}
	}
	return n
}
