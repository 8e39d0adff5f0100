package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt cost used for user passwords.
const DefaultCost = 10

// maxPasswordBytes is the longest input bcrypt hashes. Longer passwords are
// truncated, so only their first 72 bytes are significant.
const maxPasswordBytes = 72

// Passwords hashes passwords with bcrypt.
type Passwords struct {
	cost int
}

// NewPasswords creates a Passwords hashing at cost, or DefaultCost when cost is out of range.
func NewPasswords(cost int) *Passwords {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Passwords{cost: cost}
}

// Hash returns the bcrypt hash of password.
func (p *Passwords) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(truncate(password), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}

// Compare returns nil if password matches hash.
func (p *Passwords) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), truncate(password))
}

func truncate(password string) []byte {
	b := []byte(password)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	return b
}
