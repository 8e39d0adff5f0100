package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jacentio/storefront/auth"
)

// Access is the level of authentication a route requires.
type Access int

const (
	// Public routes accept anonymous requests.
	Public Access = iota
	// Authenticated routes require a valid login token.
	Authenticated
	// Admin routes require a valid login token of an administrator.
	Admin
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case Authenticated:
		return "authenticated"
	case Admin:
		return "admin"
	default:
		return "unknown"
	}
}

// Rule is the access level of a resource's read and write routes.
type Rule struct {
	Read  Access
	Write Access
}

// Policy maps resource names to their access rule. Resources without a rule are public.
type Policy map[string]Rule

// Resource names used as Policy keys.
const (
	ResourceCategories = "categories"
	ResourceProducts   = "products"
	ResourceUsers      = "users"
	ResourceReviews    = "reviews"
	ResourceOrders     = "orders"
)

// DefaultPolicy restricts category, product and user mutations to administrators.
// Everything else is public.
func DefaultPolicy() Policy {
	return Policy{
		ResourceCategories: {Read: Public, Write: Admin},
		ResourceProducts:   {Read: Public, Write: Admin},
		ResourceUsers:      {Read: Public, Write: Admin},
		ResourceReviews:    {Read: Public, Write: Public},
		ResourceOrders:     {Read: Public, Write: Public},
	}
}

// StrictPolicy is DefaultPolicy with review and order mutations, and order
// reads, limited to logged-in users.
func StrictPolicy() Policy {
	p := DefaultPolicy()
	p[ResourceReviews] = Rule{Read: Public, Write: Authenticated}
	p[ResourceOrders] = Rule{Read: Authenticated, Write: Authenticated}
	return p
}

func (p Policy) rule(resource string) Rule {
	return p[resource]
}

const principalKey = "principal"

var (
	errNoToken      = fiber.NewError(fiber.StatusUnauthorized, "Access denied. No token provided.")
	errInvalidToken = fiber.NewError(fiber.StatusBadRequest, "Invalid token.")
	errForbidden    = fiber.NewError(fiber.StatusForbidden, "Access denied. Admin privileges required.")
)

// require returns middleware rejecting requests below the given access level.
func (h *handler) require(access Access) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if access == Public {
			return c.Next()
		}

		token := auth.ExtractToken(c.Get("x-auth-token"), c.Get(fiber.HeaderAuthorization))
		principal, err := h.tokens.Authenticate(token)
		switch {
		case errors.Is(err, auth.ErrNoToken):
			return errNoToken
		case err != nil:
			h.logger.DebugContext(c.UserContext(), "token rejected",
				"requestId", requestID(c),
				"error", err,
			)
			return errInvalidToken
		}

		if access == Admin && !principal.IsAdmin {
			return errForbidden
		}

		c.Locals(principalKey, principal)
		return c.Next()
	}
}
