package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor for production. Each step doubles
// the hashing time; 12 takes roughly 250ms on current hardware.
const DefaultCost = 12

// MaxPasswordBytes is bcrypt's input limit. Longer passwords are rejected
// rather than silently truncated.
const MaxPasswordBytes = 72

var (
	ErrPasswordTooLong  = fmt.Errorf("auth: password must be %d bytes or fewer", MaxPasswordBytes)
	ErrPasswordMismatch = errors.New("auth: invalid password")
)

// PasswordService hashes and verifies passwords with bcrypt.
//
// Hash format:
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost
//	 version
//
// The salt is embedded, so the whole string goes into users.password_hash.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService. A cost outside bcrypt's
// accepted range falls back to DefaultCost. Tests pass bcrypt.MinCost (4)
// to keep hashing fast.
func NewPasswordService(cost int) *PasswordService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &PasswordService{cost: cost}
}

// Hash returns the bcrypt hash of plaintext.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify returns nil when plaintext matches hash and ErrPasswordMismatch when
// it does not. The comparison is constant-time.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
