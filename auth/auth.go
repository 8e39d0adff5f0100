// Package auth issues and verifies the tokens and password hashes used by the
// storefront API.
package auth

import "errors"

var (
	// ErrNoToken is returned when a request carries no token.
	ErrNoToken = errors.New("auth: no token provided")

	// ErrInvalidToken is returned when a token fails verification.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrMissingKey is returned when no signing key is configured.
	ErrMissingKey = errors.New("auth: missing signing key")
)

// Principal is the authenticated caller.
type Principal struct {
	UserID  string
	IsAdmin bool
}
