package store_test

import (
	"testing"

	"github.com/jacentio/storefront/store"
)

func TestNewRegistry(t *testing.T) {
	r := store.NewRegistry()
	if r == nil {
		t.Fatal("expected non-nil Registry")
	}
	if len(r.AllRelationships()) != 0 {
		t.Errorf("expected no relationships, got %d", len(r.AllRelationships()))
	}
}

func TestRegistry_Register(t *testing.T) {
	r := store.NewRegistry()

	r.Register(store.Relationship{
		ParentCollection: "categories",
		ChildCollection:  "products",
		Field:            "category_id",
	})

	rels := r.AllRelationships()
	if len(rels) != 1 {
		t.Fatalf("expected 1 relationship, got %d", len(rels))
	}
	if rels[0].ParentCollection != "categories" {
		t.Errorf("expected ParentCollection 'categories', got %q", rels[0].ParentCollection)
	}
}

func TestRegistry_DependentsOf(t *testing.T) {
	r := store.NewRegistry()
	r.Register(store.Relationship{ParentCollection: "categories", ChildCollection: "products", Field: "category_id"})
	r.Register(store.Relationship{ParentCollection: "products", ChildCollection: "reviews", Field: "product_id"})
	r.Register(store.Relationship{ParentCollection: "products", ChildCollection: "orders", Field: "products.product_id"})

	products := r.DependentsOf("products")
	if len(products) != 2 {
		t.Fatalf("expected 2 dependents for products, got %d", len(products))
	}
	// Registration order is preserved.
	if products[0].ChildCollection != "reviews" || products[1].ChildCollection != "orders" {
		t.Errorf("unexpected order: %+v", products)
	}

	if got := r.DependentsOf("reviews"); len(got) != 0 {
		t.Errorf("expected 0 dependents for reviews, got %d", len(got))
	}
}

func TestRegistry_ReferencesFrom(t *testing.T) {
	r := store.NewRegistry()
	r.Register(store.Relationship{ParentCollection: "users", ChildCollection: "orders", Field: "user_id"})
	r.Register(store.Relationship{ParentCollection: "products", ChildCollection: "orders", Field: "products.product_id"})
	r.Register(store.Relationship{ParentCollection: "users", ChildCollection: "reviews", Field: "user_id"})

	orders := r.ReferencesFrom("orders")
	if len(orders) != 2 {
		t.Fatalf("expected 2 references from orders, got %d", len(orders))
	}
	if orders[1].ParentCollection != "products" {
		t.Errorf("expected second parent 'products', got %q", orders[1].ParentCollection)
	}
	if got := r.ReferencesFrom("users"); len(got) != 0 {
		t.Errorf("expected 0 references from users, got %d", len(got))
	}
}

func TestRegistry_HasDependents(t *testing.T) {
	r := store.NewRegistry()
	r.Register(store.Relationship{ParentCollection: "categories", ChildCollection: "products", Field: "category_id"})

	if !r.HasDependents("categories") {
		t.Error("expected categories to have dependents")
	}
	if r.HasDependents("products") {
		t.Error("expected products to have no dependents")
	}
}

func TestRelationship_Path(t *testing.T) {
	tests := []struct {
		field    string
		expected []string
	}{
		{"category_id", []string{"category_id"}},
		{"products.product_id", []string{"products", "product_id"}},
	}

	for _, tt := range tests {
		path := store.Relationship{Field: tt.field}.Path()
		if len(path) != len(tt.expected) {
			t.Errorf("Path(%q) = %v, want %v", tt.field, path, tt.expected)
			continue
		}
		for i := range path {
			if path[i] != tt.expected[i] {
				t.Errorf("Path(%q)[%d] = %q, want %q", tt.field, i, path[i], tt.expected[i])
			}
		}
	}
}
