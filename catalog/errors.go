package catalog

import "errors"

var (
	// ErrAlreadyRegistered is returned when a user with the same email exists.
	ErrAlreadyRegistered = errors.New("catalog: user already registered")

	// ErrInvalidCredentials is returned when login email or password don't match.
	ErrInvalidCredentials = errors.New("catalog: invalid email or password")

	// ErrInvalidVerification is returned when a verification token is invalid or names no user.
	ErrInvalidVerification = errors.New("catalog: invalid token or user")

	// ErrAlreadyVerified is returned when verifying an account twice.
	ErrAlreadyVerified = errors.New("catalog: user already verified")

	// ErrSendMail is returned when the verification email could not be sent.
	// The user has been created at that point.
	ErrSendMail = errors.New("catalog: sending email failed")
)
