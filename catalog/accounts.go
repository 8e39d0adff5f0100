package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jacentio/storefront/mail"
	"github.com/jacentio/storefront/store"
)

// TokenIssuer signs and checks the tokens handed out to users.
type TokenIssuer interface {
	IssueAuthToken(userID string, isAdmin bool) (string, error)
	IssueVerificationToken(email string) (string, error)
	ParseVerificationToken(token string) (email string, err error)
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// AccountsConfig holds configuration for Accounts.
type AccountsConfig struct {
	// PublicBaseURL prefixes the verification link sent to new users.
	// Default: "http://localhost:3000"
	PublicBaseURL string

	// From is the sender address of verification emails.
	From string
}

func (c *AccountsConfig) validate() {
	if c.PublicBaseURL == "" {
		c.PublicBaseURL = "http://localhost:3000"
	}
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
}

// Accounts implements self-service registration, email verification and login.
type Accounts struct {
	store     *store.Store
	passwords PasswordHasher
	tokens    TokenIssuer
	mailer    Mailer
	config    AccountsConfig
	logger    *slog.Logger
}

// NewAccounts creates a new Accounts service.
func NewAccounts(s *store.Store, passwords PasswordHasher, tokens TokenIssuer, mailer Mailer, config AccountsConfig, logger *slog.Logger) *Accounts {
	config.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Accounts{
		store:     s,
		passwords: passwords,
		tokens:    tokens,
		mailer:    mailer,
		config:    config,
		logger:    logger,
	}
}

// VerificationLink returns the link that verifies the account holding token.
func (a *Accounts) VerificationLink(token string) string {
	return a.config.PublicBaseURL + "/api/register/verify/" + token
}

// Register creates an unverified user and emails them a verification link.
// The user is committed before the email is sent; a delivery failure is
// reported as ErrSendMail.
func (a *Accounts) Register(ctx context.Context, in UserInput) (*User, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}

	token, err := a.tokens.IssueVerificationToken(in.Email)
	if err != nil {
		return nil, fmt.Errorf("issue verification token: %w", err)
	}
	hash, err := a.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		ID:                store.NewID(),
		Username:          in.Username,
		Email:             in.Email,
		PasswordHash:      hash,
		IsAdmin:           in.admin(),
		VerificationToken: token,
	}
	if err := createUser(ctx, a.store, u); err != nil {
		if errors.Is(err, ErrAlreadyRegistered) {
			a.logger.InfoContext(ctx, "user already registered", "email", in.Email)
		}
		return nil, err
	}
	a.logger.InfoContext(ctx, "user registered", "id", u.ID)

	msg := mail.Message{
		From:    a.config.From,
		To:      u.Email,
		Subject: "Email Verification",
		Text:    "Click on the following link to verify your email: " + a.VerificationLink(token),
	}
	if err := a.mailer.Send(ctx, msg); err != nil {
		a.logger.ErrorContext(ctx, "failed to send verification email", "id", u.ID, "error", err)
		return u, fmt.Errorf("%w: %w", ErrSendMail, err)
	}

	a.logger.InfoContext(ctx, "verification email sent", "id", u.ID)
	return u, nil
}

// Verify marks the account named by a verification token as verified.
func (a *Accounts) Verify(ctx context.Context, token string) (*User, error) {
	email, err := a.tokens.ParseVerificationToken(token)
	if err != nil {
		a.logger.InfoContext(ctx, "invalid verification token", "error", err)
		return nil, ErrInvalidVerification
	}

	var u User
	err = a.store.Transact(ctx, "verify", CollectionUsers, func(ctx context.Context, tx store.Tx) error {
		if err := tx.FindOne(ctx, CollectionUsers, "email", email, &u); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidVerification
			}
			return err
		}
		if u.IsVerified {
			return ErrAlreadyVerified
		}
		u.IsVerified = true
		u.VerificationToken = ""
		return tx.Replace(ctx, u)
	})
	if err != nil {
		return nil, err
	}

	a.logger.InfoContext(ctx, "email verified", "id", u.ID)
	return &u, nil
}

// Authenticate checks credentials and returns a signed auth token.
func (a *Accounts) Authenticate(ctx context.Context, in AuthInput) (string, error) {
	if err := Validate(in); err != nil {
		return "", err
	}

	var u User
	if err := a.store.FindOne(ctx, "email", in.Email, &u); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := a.passwords.Compare(u.PasswordHash, in.Password); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := a.tokens.IssueAuthToken(u.ID, u.IsAdmin)
	if err != nil {
		return "", fmt.Errorf("issue auth token: %w", err)
	}
	a.logger.InfoContext(ctx, "authentication successful", "id", u.ID)
	return token, nil
}
