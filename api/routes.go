package api

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/jacentio/storefront/catalog"
)

// resource is the set of catalog operations behind one CRUD route group.
type resource[T, In any] struct {
	name     string
	messages messages
	list     func(ctx context.Context) ([]T, error)
	get      func(ctx context.Context, id string) (*T, error)
	create   func(ctx context.Context, in In) (*T, error)
	update   func(ctx context.Context, id string, in In) (*T, error)
	remove   func(ctx context.Context, id string) (*T, error)
}

func (h *handler) routes(r fiber.Router) {
	s := h.catalog

	mount(h, r, resource[catalog.Category, catalog.CategoryInput]{
		name: ResourceCategories, messages: categoryMessages,
		list: s.ListCategories, get: s.GetCategory,
		create: s.CreateCategory, update: s.UpdateCategory, remove: s.DeleteCategory,
	})
	mount(h, r, resource[catalog.Product, catalog.ProductInput]{
		name: ResourceProducts, messages: productMessages,
		list: s.ListProducts, get: s.GetProduct,
		create: s.CreateProduct, update: s.UpdateProduct, remove: s.DeleteProduct,
	})
	mount(h, r, resource[catalog.User, catalog.UserInput]{
		name: ResourceUsers, messages: userMessages,
		list: s.ListUsers, get: s.GetUser,
		create: s.CreateUser, update: s.UpdateUser, remove: s.DeleteUser,
	})
	mount(h, r, resource[catalog.Review, catalog.ReviewInput]{
		name: ResourceReviews, messages: reviewMessages,
		list: s.ListReviews, get: s.GetReview,
		create: s.CreateReview, update: s.UpdateReview, remove: s.DeleteReview,
	})
	mount(h, r, resource[catalog.Order, catalog.OrderInput]{
		name: ResourceOrders, messages: orderMessages,
		list: s.ListOrders, get: s.GetOrder,
		create: s.CreateOrder, update: s.UpdateOrder, remove: s.DeleteOrder,
	})

	r.Post("/register", h.register)
	r.Get("/register/verify/:token", h.verify)
	r.Post("/auth", h.login)
}

// mount registers the list, get, create, replace and delete routes of res.
func mount[T, In any](h *handler, r fiber.Router, res resource[T, In]) {
	rule := h.policy.rule(res.name)
	read, write := h.require(rule.Read), h.require(rule.Write)
	m := res.messages

	g := r.Group("/" + res.name)

	g.Get("/", read, func(c *fiber.Ctx) error {
		docs, err := res.list(c.UserContext())
		if err != nil {
			return m.translate(err)
		}
		return c.JSON(docs)
	})

	g.Get("/:id", read, func(c *fiber.Ctx) error {
		doc, err := res.get(c.UserContext(), c.Params("id"))
		if err != nil {
			return m.translate(err)
		}
		return c.JSON(doc)
	})

	g.Post("/", write, func(c *fiber.Ctx) error {
		var in In
		if err := decodeBody(c, &in); err != nil {
			return m.translate(err)
		}
		doc, err := res.create(c.UserContext(), in)
		if err != nil {
			return m.translate(err)
		}
		return c.JSON(doc)
	})

	g.Put("/:id", write, func(c *fiber.Ctx) error {
		var in In
		if err := decodeBody(c, &in); err != nil {
			return m.translate(err)
		}
		doc, err := res.update(c.UserContext(), c.Params("id"), in)
		if err != nil {
			return m.translate(err)
		}
		return c.JSON(doc)
	})

	g.Delete("/:id", write, func(c *fiber.Ctx) error {
		doc, err := res.remove(c.UserContext(), c.Params("id"))
		if err != nil {
			return m.translate(err)
		}
		return c.JSON(doc)
	})
}

// decodeBody strictly decodes the JSON request body into dst.
// An empty body decodes as an empty object so that validation reports the
// first missing field.
func decodeBody(c *fiber.Ctx, dst any) error {
	body := c.Body()
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return catalog.DecodeError(err)
	}
	return nil
}
