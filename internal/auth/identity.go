package auth

import "context"

// Identity is the verified caller identity for one request.
//
// It is constructed exactly once per request, at the boundary (RequireIdentity
// validates the JWT and builds it), and then passed down as an immutable
// value. Nothing below the middleware re-fetches or re-verifies identity
// mid-operation.
//
// TokenIdentifier is the stable external key naming one authenticated person
// across sessions ("github|1234567"). Name, Email and PictureURL are whatever
// the identity provider asserted at sign-in time; any of them may be empty.
type Identity struct {
	TokenIdentifier string
	Name            string
	Email           string
	PictureURL      string
}

// contextKey is an unexported type used for context keys in this package.
// A package-private key type prevents other packages from reading or
// shadowing the identity value stored in the context.
type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a context carrying the verified identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext retrieves the verified caller identity from the request
// context.
//
// Returns (Identity{}, false) if the request is anonymous (no valid token was
// present). On routes behind RequireIdentity it always returns (id, true).
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.TokenIdentifier != ""
}
