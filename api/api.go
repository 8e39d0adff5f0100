// Package api serves the storefront catalog over HTTP.
//
// Routes are mounted under /api. Successful responses are JSON documents;
// errors are plain-text messages with the status codes listed on each route.
package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/jacentio/storefront/auth"
	"github.com/jacentio/storefront/catalog"
)

// Authenticator verifies login tokens.
type Authenticator interface {
	Authenticate(token string) (auth.Principal, error)
}

// Config holds configuration for the HTTP application.
type Config struct {
	// AppName is reported in the Server header.
	// Default: "storefront"
	AppName string

	// Policy sets the access level of each resource.
	// Default: DefaultPolicy()
	Policy Policy

	// Logger receives one line per request and every unexpected error.
	// Default: slog.Default()
	Logger *slog.Logger
}

func (c *Config) validate() {
	if c.AppName == "" {
		c.AppName = "storefront"
	}
	if c.Policy == nil {
		c.Policy = DefaultPolicy()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type handler struct {
	catalog  *catalog.Service
	accounts *catalog.Accounts
	tokens   Authenticator
	policy   Policy
	logger   *slog.Logger
}

// New creates the fiber application serving the catalog, registration and login routes.
func New(service *catalog.Service, accounts *catalog.Accounts, tokens Authenticator, config Config) *fiber.App {
	config.validate()

	h := &handler{
		catalog:  service,
		accounts: accounts,
		tokens:   tokens,
		policy:   config.Policy,
		logger:   config.Logger,
	}

	app := fiber.New(fiber.Config{
		AppName:               config.AppName,
		ServerHeader:          config.AppName,
		ErrorHandler:          h.handleError,
		DisableStartupMessage: true,
		Immutable:             true,
	})

	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(requestLogger(config.Logger))
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e any) {
			config.Logger.ErrorContext(c.UserContext(), "panic recovered",
				"requestId", requestID(c),
				"panic", e,
			)
		},
	}))
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         31536000,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowMethods:  "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,Authorization,X-Auth-Token",
		ExposeHeaders: "X-Request-ID",
		MaxAge:        86400,
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	h.routes(app.Group("/api"))

	return app
}
