package auth

import (
	"net/http"
)

// RequireIdentity is a middleware that enforces authentication on protected
// routes.
//
// It reads the JWT from the "token" HttpOnly cookie, validates it exactly
// once, and stores the resulting Identity in the request context. If the
// token is missing or invalid, it returns 401 Unauthorized and stops the
// request chain. Everything downstream treats the Identity as an immutable
// fact — no handler or service re-validates the token.
//
// The cookie is HttpOnly so JavaScript cannot read it, which keeps the token
// out of reach of XSS.
func RequireIdentity(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := extractIdentity(r, tokens)
			if err != nil {
				http.Error(w, `{"error":"unauthenticated","message":"valid authentication required"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// extractIdentity reads the JWT cookie and validates it.
//
// COOKIE FLOW:
//  1. Set-Cookie: token=<jwt>; HttpOnly; SameSite=Lax (set on login)
//  2. Browser automatically sends Cookie: token=<jwt> on subsequent requests
//  3. We read r.Cookie("token") and validate it
func extractIdentity(r *http.Request, tokens *TokenService) (Identity, error) {
	cookie, err := r.Cookie("token")
	if err != nil {
		// http.ErrNoCookie — not an error condition, just an anonymous caller
		return Identity{}, err
	}

	return tokens.Validate(cookie.Value)
}
