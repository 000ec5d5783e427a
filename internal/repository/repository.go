package repository

import (
	"context"

	"github.com/sakif/splitr/internal/model"
)

// UserRepository is the storage contract the directory service depends on.
//
// GetByToken must resolve to at most one user: token_identifier carries a
// UNIQUE constraint, and the implementation additionally reports
// apperror.ErrAmbiguousIdentity if a lookup ever sees more than one row.
// Insert returns apperror.ErrConflict when another insert for the same token
// identifier won the race.
//
// SearchByName and SearchByEmail run full-text prefix matches over a single
// field each; ordering within one field's results is insertion order. The
// service owns how the two result sets are merged.
type UserRepository interface {
	GetByToken(ctx context.Context, tokenIdentifier string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	Insert(ctx context.Context, user *model.User) error
	UpdateName(ctx context.Context, id, name string) error
	SearchByName(ctx context.Context, query string) ([]model.User, error)
	SearchByEmail(ctx context.Context, query string) ([]model.User, error)
}
