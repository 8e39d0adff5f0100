package catalog

import (
	"time"

	"github.com/jacentio/storefront/store"
)

// Collection names.
const (
	CollectionUsers      = "users"
	CollectionCategories = "categories"
	CollectionProducts   = "products"
	CollectionReviews    = "reviews"
	CollectionOrders     = "orders"
)

// Collections returns every catalog collection, parents before children.
func Collections() []string {
	return []string{CollectionUsers, CollectionCategories, CollectionProducts, CollectionReviews, CollectionOrders}
}

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

// Order statuses.
const (
	StatusPending   OrderStatus = "Pending"
	StatusShipped   OrderStatus = "Shipped"
	StatusDelivered OrderStatus = "Delivered"
	StatusCancelled OrderStatus = "Cancelled"
)

// User is a registered account.
type User struct {
	ID                string `json:"_id" bson:"_id"`
	Username          string `json:"username" bson:"username"`
	Email             string `json:"email" bson:"email"`
	PasswordHash      string `json:"-" bson:"password_hash"`
	IsAdmin           bool   `json:"isAdmin" bson:"isAdmin"`
	IsVerified        bool   `json:"isVerified" bson:"isVerified"`
	VerificationToken string `json:"-" bson:"verificationToken,omitempty"`
}

func (u User) Collection() string { return CollectionUsers }
func (u User) DocumentID() string { return u.ID }
func (u User) UniqueFields() map[string]string {
	return map[string]string{"email": u.Email}
}

// Category groups products.
type Category struct {
	ID          string `json:"_id" bson:"_id"`
	Name        string `json:"name" bson:"name"`
	Description string `json:"description" bson:"description"`
}

func (c Category) Collection() string { return CollectionCategories }
func (c Category) DocumentID() string { return c.ID }
func (c Category) UniqueFields() map[string]string {
	return map[string]string{"name": c.Name}
}

// Product is a sellable item belonging to one category.
type Product struct {
	ID            string   `json:"_id" bson:"_id"`
	Name          string   `json:"name" bson:"name"`
	Description   string   `json:"description" bson:"description"`
	Price         float64  `json:"price" bson:"price"`
	Pictures      []string `json:"pictures" bson:"pictures"`
	CategoryID    string   `json:"category_id" bson:"category_id"`
	StockQuantity int      `json:"stock_quantity" bson:"stock_quantity"`
}

func (p Product) Collection() string { return CollectionProducts }
func (p Product) DocumentID() string { return p.ID }
func (p Product) UniqueFields() map[string]string {
	return map[string]string{"name": p.Name}
}
func (p Product) References() []store.Reference {
	return []store.Reference{
		{Field: "category_id", Collection: CollectionCategories, ID: p.CategoryID},
	}
}

// Review is a user's rating of a product.
type Review struct {
	ID         string    `json:"_id" bson:"_id"`
	ProductID  string    `json:"product_id" bson:"product_id"`
	UserID     string    `json:"user_id" bson:"user_id"`
	Rating     int       `json:"rating" bson:"rating"`
	Comment    string    `json:"comment,omitempty" bson:"comment,omitempty"`
	ReviewDate time.Time `json:"review_date" bson:"review_date"`
}

func (r Review) Collection() string { return CollectionReviews }
func (r Review) DocumentID() string { return r.ID }

// References checks the author before the product.
func (r Review) References() []store.Reference {
	return []store.Reference{
		{Field: "user_id", Collection: CollectionUsers, ID: r.UserID},
		{Field: "product_id", Collection: CollectionProducts, ID: r.ProductID},
	}
}

// OrderLine is one product entry of an order.
type OrderLine struct {
	ProductID string  `json:"product_id" bson:"product_id"`
	Quantity  int     `json:"quantity" bson:"quantity"`
	Price     float64 `json:"price" bson:"price"`
}

// Order is a purchase of one or more products by a user.
type Order struct {
	ID         string      `json:"_id" bson:"_id"`
	UserID     string      `json:"user_id" bson:"user_id"`
	Products   []OrderLine `json:"products" bson:"products"`
	TotalPrice float64     `json:"total_price" bson:"total_price"`
	OrderDate  time.Time   `json:"order_date" bson:"order_date"`
	Status     OrderStatus `json:"status" bson:"status"`
}

func (o Order) Collection() string { return CollectionOrders }
func (o Order) DocumentID() string { return o.ID }

// References checks the user, then every line's product in order.
func (o Order) References() []store.Reference {
	refs := make([]store.Reference, 0, len(o.Products)+1)
	refs = append(refs, store.Reference{Field: "user_id", Collection: CollectionUsers, ID: o.UserID})
	for _, line := range o.Products {
		refs = append(refs, store.Reference{Field: "products.product_id", Collection: CollectionProducts, ID: line.ProductID})
	}
	return refs
}

// Relationships returns the registry of every reference between catalog collections.
func Relationships() *store.Registry {
	r := store.NewRegistry()
	r.Register(store.Relationship{ParentCollection: CollectionCategories, ChildCollection: CollectionProducts, Field: "category_id"})
	r.Register(store.Relationship{ParentCollection: CollectionProducts, ChildCollection: CollectionReviews, Field: "product_id"})
	r.Register(store.Relationship{ParentCollection: CollectionProducts, ChildCollection: CollectionOrders, Field: "products.product_id"})
	r.Register(store.Relationship{ParentCollection: CollectionUsers, ChildCollection: CollectionReviews, Field: "user_id"})
	r.Register(store.Relationship{ParentCollection: CollectionUsers, ChildCollection: CollectionOrders, Field: "user_id"})
	return r
}

// UniqueFields returns, per collection, the fields whose values must be unique.
func UniqueFields() map[string][]string {
	return map[string][]string{
		CollectionUsers:      {"email"},
		CollectionCategories: {"name"},
		CollectionProducts:   {"name"},
	}
}
