// Package catalog defines the storefront documents (users, categories, products,
// reviews and orders), the typed request inputs that create and replace them,
// and the services that run each operation through the integrity layer in
// package store.
//
// Relationships between the documents are declared in [Relationships]:
//
//	categories <- products.category_id
//	products   <- reviews.product_id
//	products   <- orders.products.product_id
//	users      <- reviews.user_id
//	users      <- orders.user_id
//
// A document may only be written when every document it references exists, and
// may only be deleted when nothing references it.
package catalog
