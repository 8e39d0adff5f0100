package api

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/jacentio/storefront/catalog"
	"github.com/jacentio/storefront/store"
)

// messages holds the client-facing texts of one resource's errors.
type messages struct {
	notFound   string
	duplicate  string
	reference  func(*store.ReferenceError) string
	dependents func(*store.DependentsError) string
}

var (
	categoryMessages = messages{
		notFound:  "The category with the given ID was not found.",
		duplicate: "A category with the given name already exists.",
		dependents: func(e *store.DependentsError) string {
			return fmt.Sprintf("Cannot delete the category as it is associated with existing products. Count: %d",
				e.CountOf(catalog.CollectionProducts))
		},
	}
	productMessages = messages{
		notFound:  "The product with the given ID was not found.",
		duplicate: "A product with the given name already exists.",
		reference: func(e *store.ReferenceError) string {
			return "Invalid Category Id " + e.ID
		},
		dependents: func(e *store.DependentsError) string {
			return "Cannot delete the product as it is associated with existing reviews or orders. " + reviewsAndOrders(e)
		},
	}
	userMessages = messages{
		notFound:  "The user with the given ID was not found.",
		duplicate: "User already registered.",
		dependents: func(e *store.DependentsError) string {
			return "Cannot delete the user as it is associated with existing reviews or orders. " + reviewsAndOrders(e)
		},
	}
	reviewMessages = messages{
		notFound: "The review with the given ID was not found.",
		reference: func(e *store.ReferenceError) string {
			if e.Collection == catalog.CollectionUsers {
				return "Invalid user ID."
			}
			return "Invalid product ID."
		},
	}
	orderMessages = messages{
		notFound: "The order with the given ID was not found.",
		reference: func(e *store.ReferenceError) string {
			if e.Collection == catalog.CollectionUsers {
				return "Invalid user ID."
			}
			return "Invalid product ID: " + e.ID
		},
	}
)

func reviewsAndOrders(e *store.DependentsError) string {
	return fmt.Sprintf("Reviews: %d, Orders: %d",
		e.CountOf(catalog.CollectionReviews), e.CountOf(catalog.CollectionOrders))
}

// translate turns domain errors into client errors using the resource's texts.
// Errors it doesn't recognise are returned unchanged and answered with 500.
func (m messages) translate(err error) error {
	var (
		vErr   *catalog.ValidationError
		refErr *store.ReferenceError
		depErr *store.DependentsError
	)
	switch {
	case errors.As(err, &vErr):
		return fiber.NewError(fiber.StatusBadRequest, vErr.Message)
	case errors.As(err, &refErr) && m.reference != nil:
		return fiber.NewError(fiber.StatusBadRequest, m.reference(refErr))
	case errors.As(err, &depErr) && m.dependents != nil:
		return fiber.NewError(fiber.StatusBadRequest, m.dependents(depErr))
	case errors.Is(err, store.ErrNotFound) && m.notFound != "":
		return fiber.NewError(fiber.StatusNotFound, m.notFound)
	case errors.Is(err, catalog.ErrAlreadyRegistered):
		return fiber.NewError(fiber.StatusBadRequest, "User already registered.")
	case errors.Is(err, store.ErrDuplicateValue) && m.duplicate != "":
		return fiber.NewError(fiber.StatusBadRequest, m.duplicate)
	case errors.Is(err, catalog.ErrInvalidVerification):
		return fiber.NewError(fiber.StatusBadRequest, "Invalid token or user.")
	case errors.Is(err, catalog.ErrAlreadyVerified):
		return fiber.NewError(fiber.StatusBadRequest, "User already verified.")
	case errors.Is(err, catalog.ErrInvalidCredentials):
		return fiber.NewError(fiber.StatusBadRequest, "Invalid email or password.")
	case errors.Is(err, store.ErrConcurrentModification):
		return fiber.NewError(fiber.StatusConflict, "The resource was modified concurrently. Please retry.")
	}
	return err
}

// handleError writes err as a plain-text response. Anything but a
// *fiber.Error is logged and answered with 500.
func (h *handler) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if !errors.As(err, &fe) {
		h.logger.ErrorContext(c.UserContext(), "request failed",
			"method", c.Method(),
			"path", c.Path(),
			"requestId", requestID(c),
			"error", err,
		)
		fe = fiber.NewError(fiber.StatusInternalServerError, "Internal Server Error.")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(fe.Code).SendString(fe.Message)
}
