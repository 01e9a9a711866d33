// Package auth provides the identity building blocks of the API: signed
// access tokens, password hashing, GitHub OAuth and the middleware that turns
// a request's credentials into an acting user.
//
// AUTHENTICATION FLOW:
//  1. The client signs in with POST /auth/login (username + password) or
//     through GitHub at /auth/github/login.
//  2. The server issues a JWT, returns it in the body and sets it as the
//     HttpOnly "token" cookie.
//  3. Later requests send the JWT as "Authorization: Bearer <jwt>" or via the
//     cookie. Authenticate validates it and stores the user in the context.
//  4. Requests without a valid token continue as anonymous.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"iss":"snippets","sub":"<user id>","iat":...,"exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secret)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "snippets"

	// DefaultTokenTTL is used when NewTokenService gets a non-positive ttl.
	DefaultTokenTTL = 24 * time.Hour

	minSecretLength = 16
)

// TokenService handles JWT creation and validation with one HMAC secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. The secret should be at least 32
// bytes of random data in production, e.g. $(openssl rand -hex 32).
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", minSecretLength)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL is how long issued tokens stay valid. The login cookie uses the same
// lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// claims is the JWT payload. "sub" carries the internal user ID.
type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs an HS256 access token for userID.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, s.ttl)
}

// GenerateWithDuration creates a token with a custom lifetime. A negative
// duration yields an already-expired token, which the tests rely on.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string and returns the user ID in its
// "sub" claim.
//
// jwt.WithValidMethods pins the algorithm to HS256, which blocks the "alg":
// "none" confusion attack.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", errors.New("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", errors.New("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", errors.New("auth: token has no subject")
	}

	return c.Subject, nil
}
