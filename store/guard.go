package store

import (
	"context"
	"fmt"
)

// checkReferences verifies, in declaration order, that every document referenced
// by doc exists. The first miss is returned as a *ReferenceError.
func checkReferences(ctx context.Context, tx Tx, doc Document) error {
	r, ok := doc.(Referencer)
	if !ok {
		return nil
	}
	for _, ref := range r.References() {
		exists, err := tx.Exists(ctx, ref.Collection, ref.ID)
		if err != nil {
			return fmt.Errorf("check %s: %w", ref.Field, err)
		}
		if !exists {
			return &ReferenceError{Reference: ref}
		}
	}
	return nil
}

// checkDependents counts every registered dependent of the document and fails
// with a *DependentsError carrying all non-zero counts.
func checkDependents(ctx context.Context, tx Tx, registry *Registry, collection, id string) error {
	if registry == nil {
		return nil
	}

	var found []DependentCount
	for _, rel := range registry.DependentsOf(collection) {
		n, err := tx.Count(ctx, rel, id)
		if err != nil {
			return fmt.Errorf("count %s.%s: %w", rel.ChildCollection, rel.Field, err)
		}
		if n > 0 {
			found = append(found, DependentCount{Relationship: rel, Count: n})
		}
	}

	if len(found) > 0 {
		return &DependentsError{Collection: collection, ID: id, Dependents: found}
	}
	return nil
}
