package hasher

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	dErrors "usermgmt/pkg/domain-errors"
)

// Bcrypt hashes and verifies passwords with golang.org/x/crypto/bcrypt.
type Bcrypt struct {
	cost int
}

type Option func(*Bcrypt)

// WithCost overrides bcrypt.DefaultCost. Out-of-range values are ignored.
func WithCost(cost int) Option {
	return func(b *Bcrypt) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			b.cost = cost
		}
	}
}

func NewBcrypt(opts ...Option) *Bcrypt {
	b := &Bcrypt{cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Hash returns an opaque bcrypt hash. Passwords over bcrypt's 72-byte limit
// are rejected as a validation error rather than silently truncated.
func (b *Bcrypt) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "password cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.NewValidation([]dErrors.FieldError{{Field: "password", Message: "password is too long"}})
		}
		return "", fmt.Errorf("could not hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches hash. A mismatch is not an error.
func (b *Bcrypt) Verify(plaintext, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("could not verify password: %w", err)
	}
}
