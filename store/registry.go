package store

import "strings"

// Relationship declares that documents of ChildCollection reference documents of
// ParentCollection through Field.
type Relationship struct {
	// ParentCollection is the referenced collection (e.g., "categories").
	ParentCollection string

	// ChildCollection is the referencing collection (e.g., "products").
	ChildCollection string

	// Field is the dotted path of the referencing attribute in the child
	// (e.g., "category_id" or "products.product_id" for arrays of sub-documents).
	Field string
}

// Path splits Field into its path segments.
func (r Relationship) Path() []string {
	return strings.Split(r.Field, ".")
}

// Registry holds all known document relationships for the delete guard.
type Registry struct {
	relationships []Relationship
	byParent      map[string][]Relationship
	byChild       map[string][]Relationship
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		relationships: []Relationship{},
		byParent:      make(map[string][]Relationship),
		byChild:       make(map[string][]Relationship),
	}
}

// Register adds a relationship to the registry.
// Registration order is the order in which the delete guard counts dependents.
func (r *Registry) Register(rel Relationship) {
	r.relationships = append(r.relationships, rel)
	r.byParent[rel.ParentCollection] = append(r.byParent[rel.ParentCollection], rel)
	r.byChild[rel.ChildCollection] = append(r.byChild[rel.ChildCollection], rel)
}

// DependentsOf returns all relationships in which collection is the parent.
func (r *Registry) DependentsOf(collection string) []Relationship {
	return r.byParent[collection]
}

// ReferencesFrom returns all relationships in which collection is the child.
func (r *Registry) ReferencesFrom(collection string) []Relationship {
	return r.byChild[collection]
}

// AllRelationships returns all registered relationships.
func (r *Registry) AllRelationships() []Relationship {
	return r.relationships
}

// HasDependents returns true if the collection has any registered dependent relationships.
func (r *Registry) HasDependents(collection string) bool {
	return len(r.byParent[collection]) > 0
}
