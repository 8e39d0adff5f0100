package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jacentio/storefront/catalog"
)

// accountMessages is empty: account routes only produce the errors that
// translate handles for every resource.
var accountMessages = messages{}

// register creates an account and emails its verification link.
func (h *handler) register(c *fiber.Ctx) error {
	var in catalog.UserInput
	if err := decodeBody(c, &in); err != nil {
		return accountMessages.translate(err)
	}

	_, err := h.accounts.Register(c.UserContext(), in)
	if errors.Is(err, catalog.ErrSendMail) {
		h.logger.ErrorContext(c.UserContext(), "registration email not sent",
			"requestId", requestID(c),
			"error", err,
		)
		return fiber.NewError(fiber.StatusInternalServerError, "Error sending email.")
	}
	if err != nil {
		return accountMessages.translate(err)
	}
	return c.SendString("Verification email sent.")
}

// verify marks the account named by the token in the path as verified.
func (h *handler) verify(c *fiber.Ctx) error {
	if _, err := h.accounts.Verify(c.UserContext(), c.Params("token")); err != nil {
		return accountMessages.translate(err)
	}
	return c.SendString("Email verified successfully.")
}

// login exchanges credentials for a login token, sent as plain text.
func (h *handler) login(c *fiber.Ctx) error {
	var in catalog.AuthInput
	if err := decodeBody(c, &in); err != nil {
		return accountMessages.translate(err)
	}
	token, err := h.accounts.Authenticate(c.UserContext(), in)
	if err != nil {
		return accountMessages.translate(err)
	}
	return c.SendString(token)
}
