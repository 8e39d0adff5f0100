package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jacentio/storefront/store"
)

// PasswordHasher hashes and verifies user passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// Service runs catalog CRUD operations through the integrity layer.
type Service struct {
	store     *store.Store
	passwords PasswordHasher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a new Service.
func NewService(s *store.Store, passwords PasswordHasher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     s,
		passwords: passwords,
		logger:    logger,
		now:       now,
	}
}

// now returns the current time at the precision documents are stored with.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// --- Categories ---

// ListCategories returns all categories sorted by name.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return list[Category](ctx, s.store, CollectionCategories, "name")
}

// GetCategory returns the category with the given ID.
func (s *Service) GetCategory(ctx context.Context, id string) (*Category, error) {
	return get[Category](ctx, s.store, id)
}

// CreateCategory validates in and stores a new category.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (*Category, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	c := &Category{ID: store.NewID()}
	in.applyTo(c)
	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "category created", "id", c.ID)
	return c, nil
}

// UpdateCategory validates in and replaces the category with the given ID.
func (s *Service) UpdateCategory(ctx context.Context, id string, in CategoryInput) (*Category, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	var c Category
	if err := s.store.Update(ctx, id, &c, func() error { in.applyTo(&c); return nil }); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "category updated", "id", id)
	return &c, nil
}

// DeleteCategory removes a category that no product references.
func (s *Service) DeleteCategory(ctx context.Context, id string) (*Category, error) {
	return remove[Category](ctx, s, id)
}

// --- Products ---

// ListProducts returns all products sorted by name.
func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	return list[Product](ctx, s.store, CollectionProducts, "name")
}

// GetProduct returns the product with the given ID.
func (s *Service) GetProduct(ctx context.Context, id string) (*Product, error) {
	return get[Product](ctx, s.store, id)
}

// CreateProduct validates in and stores a new product in an existing category.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	p := &Product{ID: store.NewID()}
	in.applyTo(p)
	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "product created", "id", p.ID, "category_id", p.CategoryID)
	return p, nil
}

// UpdateProduct validates in and replaces the product with the given ID.
func (s *Service) UpdateProduct(ctx context.Context, id string, in ProductInput) (*Product, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	var p Product
	if err := s.store.Update(ctx, id, &p, func() error { in.applyTo(&p); return nil }); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "product updated", "id", id)
	return &p, nil
}

// DeleteProduct removes a product that no review or order references.
func (s *Service) DeleteProduct(ctx context.Context, id string) (*Product, error) {
	return remove[Product](ctx, s, id)
}

// --- Users ---

// ListUsers returns all users sorted by username.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return list[User](ctx, s.store, CollectionUsers, "username")
}

// GetUser returns the user with the given ID.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return get[User](ctx, s.store, id)
}

// CreateUser validates in and stores a new, unverified user.
func (s *Service) CreateUser(ctx context.Context, in UserInput) (*User, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{
		ID:           store.NewID(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		IsAdmin:      in.admin(),
	}
	if err := createUser(ctx, s.store, u); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user created", "id", u.ID)
	return u, nil
}

// UpdateUser validates in and replaces the user's profile, password and role.
// Verification state is kept.
func (s *Service) UpdateUser(ctx context.Context, id string, in UserInput) (*User, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	var u User
	err = s.store.Update(ctx, id, &u, func() error {
		u.Username = in.Username
		u.Email = in.Email
		u.PasswordHash = hash
		u.IsAdmin = in.admin()
		return nil
	})
	if errors.Is(err, store.ErrDuplicateValue) {
		return nil, ErrAlreadyRegistered
	}
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user updated", "id", id)
	return &u, nil
}

// DeleteUser removes a user that no review or order references.
func (s *Service) DeleteUser(ctx context.Context, id string) (*User, error) {
	return remove[User](ctx, s, id)
}

// --- Reviews ---

// ListReviews returns all reviews sorted by review date.
func (s *Service) ListReviews(ctx context.Context) ([]Review, error) {
	return list[Review](ctx, s.store, CollectionReviews, "review_date")
}

// GetReview returns the review with the given ID.
func (s *Service) GetReview(ctx context.Context, id string) (*Review, error) {
	return get[Review](ctx, s.store, id)
}

// CreateReview validates in and stores a review by an existing user of an existing product.
func (s *Service) CreateReview(ctx context.Context, in ReviewInput) (*Review, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	r := &Review{ID: store.NewID()}
	in.applyTo(r, s.now())
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "review created", "id", r.ID, "product_id", r.ProductID, "user_id", r.UserID)
	return r, nil
}

// UpdateReview validates in and replaces the review with the given ID.
func (s *Service) UpdateReview(ctx context.Context, id string, in ReviewInput) (*Review, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	var r Review
	if err := s.store.Update(ctx, id, &r, func() error { in.applyTo(&r, s.now()); return nil }); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "review updated", "id", id)
	return &r, nil
}

// DeleteReview removes a review.
func (s *Service) DeleteReview(ctx context.Context, id string) (*Review, error) {
	return remove[Review](ctx, s, id)
}

// --- Orders ---

// ListOrders returns all orders sorted by order date.
func (s *Service) ListOrders(ctx context.Context) ([]Order, error) {
	return list[Order](ctx, s.store, CollectionOrders, "order_date")
}

// GetOrder returns the order with the given ID.
func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	return get[Order](ctx, s.store, id)
}

// CreateOrder validates in and stores an order by an existing user of existing products.
func (s *Service) CreateOrder(ctx context.Context, in OrderInput) (*Order, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	o := &Order{ID: store.NewID()}
	in.applyTo(o, s.now())
	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "order created", "id", o.ID, "user_id", o.UserID, "lines", len(o.Products))
	return o, nil
}

// UpdateOrder validates in and replaces the order with the given ID.
func (s *Service) UpdateOrder(ctx context.Context, id string, in OrderInput) (*Order, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	var o Order
	if err := s.store.Update(ctx, id, &o, func() error { in.applyTo(&o, s.now()); return nil }); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "order updated", "id", id)
	return &o, nil
}

// DeleteOrder removes an order.
func (s *Service) DeleteOrder(ctx context.Context, id string) (*Order, error) {
	return remove[Order](ctx, s, id)
}

// --- helpers ---

// document is satisfied by pointers to catalog documents.
type document[T any] interface {
	*T
	store.Document
}

func list[T any](ctx context.Context, s *store.Store, collection, sortField string) ([]T, error) {
	docs := []T{}
	if err := s.List(ctx, collection, sortField, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func get[T any, PT document[T]](ctx context.Context, s *store.Store, id string) (*T, error) {
	var doc T
	if err := s.Get(ctx, id, PT(&doc)); err != nil {
		return nil, err
	}
	return &doc, nil
}

func remove[T any, PT document[T]](ctx context.Context, s *Service, id string) (*T, error) {
	var doc T
	if err := s.store.Delete(ctx, id, PT(&doc)); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "document deleted", "collection", PT(&doc).Collection(), "id", id)
	return &doc, nil
}

// createUser inserts u unless its email is already registered.
func createUser(ctx context.Context, s *store.Store, u *User) error {
	err := s.Transact(ctx, "create", CollectionUsers, func(ctx context.Context, tx store.Tx) error {
		var existing User
		err := tx.FindOne(ctx, CollectionUsers, "email", u.Email, &existing)
		if err == nil {
			return ErrAlreadyRegistered
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return tx.Insert(ctx, u)
	})
	if errors.Is(err, store.ErrDuplicateValue) {
		return ErrAlreadyRegistered
	}
	return err
}
