// Package auth provides the authentication boundary for the splitr API:
// JWT issuing/validation, the verified-identity request context, and the
// GitHub OAuth sign-in flow.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. User visits /auth/github/login → redirected to GitHub
//  2. GitHub calls back /auth/github/callback with a code
//  3. Server exchanges the code for the GitHub profile, upserts the user
//  4. Server issues a JWT carrying the full identity, stored in an
//     HttpOnly cookie
//  5. On subsequent API calls, RequireIdentity reads the cookie, validates
//     the JWT once, and places an immutable Identity in the request context
//
// The JWT is stateless: the token identifier lives in the standard "sub"
// claim and the profile fields (name, email, picture) in private claims, so
// validating a request needs no database lookup.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "splitr"

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret key used to sign and verify tokens. The same
// secret must be used for both operations.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the JWT payload. It embeds jwt.RegisteredClaims (Issuer, Subject,
// ExpiresAt, IssuedAt) and adds the identity profile fields.
//
// "sub" holds the token identifier — the stable external identity key — not
// an internal user ID. That keeps the auth boundary independent of the
// directory store: a valid token is a valid identity even before the user has
// been stored.
type claims struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Generate creates and signs a JWT for the given identity.
//
// Token lifetime: 24 hours — a sign-in session, after which the user goes
// through the OAuth flow again.
//
// Signing algorithm: HS256 (HMAC-SHA256), symmetric, single-server friendly.
func (s *TokenService) Generate(id Identity) (string, error) {
	return s.GenerateWithDuration(id, 24*time.Hour)
}

// GenerateWithDuration creates a token with a custom expiry duration.
// Used in tests and for issuing shorter-lived tokens.
func (s *TokenService) GenerateWithDuration(id Identity, d time.Duration) (string, error) {
	if id.TokenIdentifier == "" {
		return "", errors.New("auth: identity has no token identifier")
	}

	now := time.Now()
	c := claims{
		Name:    id.Name,
		Email:   id.Email,
		Picture: id.PictureURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.TokenIdentifier,
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

// Validate parses and verifies a JWT string and reconstructs the Identity it
// carries.
//
// Validation checks (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired (ExpiresAt is in the future)
//   - Issuer matches "splitr" (rejects tokens from other apps)
//   - Algorithm is HS256 (jwt.WithValidMethods prevents algorithm
//     confusion attacks)
func (s *TokenService) Validate(tokenStr string) (Identity, error) {
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
			return Identity{}, fmt.Errorf("auth: token expired")
		}
		return Identity{}, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Identity{}, fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return Identity{}, fmt.Errorf("auth: token has no subject")
	}

	return Identity{
		TokenIdentifier: c.Subject,
		Name:            c.Name,
		Email:           c.Email,
		PictureURL:      c.Picture,
	}, nil
}
