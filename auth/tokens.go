package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultVerificationTTL is the lifetime of email verification tokens.
const DefaultVerificationTTL = time.Hour

type authClaims struct {
	ID      string `json:"_id"`
	IsAdmin bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

type verificationClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 JSON Web Tokens.
type Tokens struct {
	key             []byte
	verificationTTL time.Duration
	now             func() time.Time
}

// NewTokens creates a new Tokens using key as the HMAC secret.
func NewTokens(key string) (*Tokens, error) {
	if key == "" {
		return nil, ErrMissingKey
	}
	return &Tokens{
		key:             []byte(key),
		verificationTTL: DefaultVerificationTTL,
		now:             time.Now,
	}, nil
}

// IssueAuthToken returns a login token carrying the user's ID and role.
// Login tokens don't expire.
func (t *Tokens) IssueAuthToken(userID string, isAdmin bool) (string, error) {
	claims := authClaims{
		ID:      userID,
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(t.now()),
		},
	}
	return t.sign(claims)
}

// Authenticate verifies a login token and returns its principal.
func (t *Tokens) Authenticate(token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrNoToken
	}
	var claims authClaims
	if err := t.parse(token, &claims); err != nil {
		return Principal{}, err
	}
	if claims.ID == "" {
		return Principal{}, fmt.Errorf("%w: missing _id claim", ErrInvalidToken)
	}
	return Principal{UserID: claims.ID, IsAdmin: claims.IsAdmin}, nil
}

// IssueVerificationToken returns a short-lived token naming the email to verify.
func (t *Tokens) IssueVerificationToken(email string) (string, error) {
	now := t.now()
	claims := verificationClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.verificationTTL)),
		},
	}
	return t.sign(claims)
}

// ParseVerificationToken verifies a verification token and returns its email.
func (t *Tokens) ParseVerificationToken(token string) (string, error) {
	var claims verificationClaims
	if err := t.parse(token, &claims, jwt.WithExpirationRequired()); err != nil {
		return "", err
	}
	if claims.Email == "" {
		return "", fmt.Errorf("%w: missing email claim", ErrInvalidToken)
	}
	return claims.Email, nil
}

func (t *Tokens) sign(claims jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

func (t *Tokens) parse(token string, claims jwt.Claims, opts ...jwt.ParserOption) error {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.key, nil
	}, opts...)
	if err != nil {
		return errors.Join(ErrInvalidToken, err)
	}
	return nil
}

// ExtractToken returns the token carried by an x-auth-token header value or,
// failing that, by a "Bearer" Authorization header value.
func ExtractToken(xAuthToken, authorization string) string {
	if tok := strings.TrimSpace(xAuthToken); tok != "" {
		return tok
	}
	scheme, tok, ok := strings.Cut(strings.TrimSpace(authorization), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(tok)
	}
	return ""
}
