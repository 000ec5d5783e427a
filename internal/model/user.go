// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents one authenticated person in the directory.
//
// Identity comes from the OAuth provider, so the stable external key is the
// token identifier (issuer + subject, e.g. "github|1234567"). We still
// generate our own internal string ID (xid) so our primary keys aren't tied
// to a third party's numbering scheme.
//
// Email and ImageURL are captured at creation and never updated afterwards by
// the directory service; Name follows the latest value seen from the identity
// provider. Optional fields use the empty string as their zero value rather
// than nullable pointers — simpler to work with and safe to display.
type User struct {
	ID              string    `json:"id"        db:"id"`
	Name            string    `json:"name"      db:"name"`
	TokenIdentifier string    `json:"-"         db:"token_identifier"` // never serialized to clients
	Email           string    `json:"email"     db:"email"`            // may be empty (hidden by the provider)
	ImageURL        string    `json:"imageUrl"  db:"image_url"`        // avatar URL, may be empty
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}

// PublicUser is the projection of a User exposed to other users, e.g. in
// participant search results. It deliberately has no TokenIdentifier field,
// so the external identity key cannot leak through this shape.
type PublicUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	ImageURL string `json:"imageUrl"`
}

// Public returns the projection of u safe to show to other users.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		ImageURL: u.ImageURL,
	}
}
