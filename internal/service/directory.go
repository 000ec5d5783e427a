// Package service — user directory business logic.
//
// DirectoryService is the business layer between the HTTP handlers and the
// user repository:
//
//	UserHandler (HTTP) → DirectoryService (rules) → UserRepository (DB)
//	                   ↘ EventDispatcher (background jobs)
//
// It owns the three directory operations:
//   - Store: upsert the caller keyed on their token identifier
//   - GetCurrentUser: resolve the caller's stored record
//   - SearchUsers: two-field full-text search for expense participants
//
// All operations take the verified Identity as an explicit argument. The
// service never reaches back into any ambient auth state — the identity was
// checked once at the HTTP boundary and is immutable from there on.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/sakif/splitr/internal/apperror"
	"github.com/sakif/splitr/internal/auth"
	"github.com/sakif/splitr/internal/model"
	"github.com/sakif/splitr/internal/repository"
)

// anonymousName is stored when the identity provider asserted no display
// name at all.
const anonymousName = "Anonymous"

// minSearchQueryLen is the minimum query length (in runes) before SearchUsers
// touches the store. Shorter queries would match near-everything and scan the
// whole index for no useful result.
const minSearchQueryLen = 2

// EventUserCreated is emitted once per user, on first-time store.
const EventUserCreated = "user.created"

// UserCreatedPayload is the body of an EventUserCreated job event.
type UserCreatedPayload struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// EventDispatcher enqueues background-job events. The concrete
// implementation lives in internal/jobs; the service only needs this one
// method.
type EventDispatcher interface {
	Enqueue(ctx context.Context, name string, payload any) error
}

// DirectoryService implements the user directory operations.
type DirectoryService struct {
	users  repository.UserRepository
	events EventDispatcher // may be nil: job dispatch disabled
	logger *slog.Logger
}

// NewDirectoryService creates a DirectoryService with all required
// dependencies. events may be nil when no job bus is configured (the
// directory works without one; only the welcome email is skipped).
func NewDirectoryService(users repository.UserRepository, events EventDispatcher, logger *slog.Logger) *DirectoryService {
	return &DirectoryService{
		users:  users,
		events: events,
		logger: logger,
	}
}

// Store upserts the caller into the directory, keyed on the token
// identifier, and returns the user's internal ID.
//
// Semantics:
//   - unauthenticated caller → apperror.ErrUnauthenticated
//   - existing user, unchanged name → no write at all
//   - existing user, changed name → exactly one patch, touching only name
//   - new identity → one insert with name (or "Anonymous"), email and image
//     URL captured first-write-wins
//
// Calling Store repeatedly with the same identity is idempotent: every call
// returns the same ID, and only the first performs a write.
//
// Two concurrent first-time calls can both observe "not found"; the UNIQUE
// constraint on token_identifier makes one insert lose, and the loser
// recovers by re-running the lookup. Both callers get the same ID.
func (s *DirectoryService) Store(ctx context.Context, id auth.Identity) (string, error) {
	if id.TokenIdentifier == "" {
		return "", apperror.Unauthenticated("store called without authentication present")
	}

	name := id.Name
	if name == "" {
		name = anonymousName
	}

	user, err := s.users.GetByToken(ctx, id.TokenIdentifier)
	switch {
	case err == nil:
		return s.patchIfRenamed(ctx, user, name)

	case errors.Is(err, apperror.ErrNotFound):
		// fall through to insert

	default:
		// Ambiguous identity or a storage failure — propagate unchanged.
		return "", fmt.Errorf("storing user: %w", err)
	}

	newUser := &model.User{
		Name:            name,
		TokenIdentifier: id.TokenIdentifier,
		Email:           id.Email,
		ImageURL:        id.PictureURL,
	}
	if err := s.users.Insert(ctx, newUser); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			// Lost the first-time-store race: a concurrent call inserted the
			// row between our lookup and insert. Converge on the winner.
			existing, lookupErr := s.users.GetByToken(ctx, id.TokenIdentifier)
			if lookupErr != nil {
				return "", fmt.Errorf("recovering from store conflict: %w", lookupErr)
			}
			return s.patchIfRenamed(ctx, existing, name)
		}
		return "", fmt.Errorf("storing user: %w", err)
	}

	s.logger.Info("user created",
		slog.String("userID", newUser.ID),
		slog.String("name", newUser.Name),
	)
	s.emitUserCreated(ctx, newUser)

	return newUser.ID, nil
}

// patchIfRenamed updates the stored name when the identity's current name
// differs, and returns the existing user's ID either way.
func (s *DirectoryService) patchIfRenamed(ctx context.Context, user *model.User, name string) (string, error) {
	if user.Name == name {
		return user.ID, nil
	}
	if err := s.users.UpdateName(ctx, user.ID, name); err != nil {
		return "", fmt.Errorf("patching user name: %w", err)
	}
	return user.ID, nil
}

// emitUserCreated enqueues the welcome job for a freshly created user. Job
// dispatch is best-effort: a queue outage must not fail the sign-in that
// triggered the store.
func (s *DirectoryService) emitUserCreated(ctx context.Context, user *model.User) {
	if s.events == nil {
		return
	}
	payload := UserCreatedPayload{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
	}
	if err := s.events.Enqueue(ctx, EventUserCreated, payload); err != nil {
		s.logger.Warn("failed to enqueue user.created event",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
	}
}

// GetCurrentUser resolves the caller's stored record.
//
// Fails with apperror.ErrUnauthenticated when no identity is present, and
// with apperror.ErrNotFound when the identity has never been stored — the
// latter is recoverable by calling Store first.
func (s *DirectoryService) GetCurrentUser(ctx context.Context, id auth.Identity) (*model.User, error) {
	if id.TokenIdentifier == "" {
		return nil, apperror.Unauthenticated("not authenticated")
	}

	user, err := s.users.GetByToken(ctx, id.TokenIdentifier)
	if err != nil {
		return nil, fmt.Errorf("resolving current user: %w", err)
	}

	return user, nil
}

// SearchUsers finds users matching query by name or email, for adding as
// expense participants.
//
// Queries shorter than two runes return an empty result without running any
// search. Otherwise both field indexes are queried independently and merged:
// all name matches first, then email matches whose ID wasn't already present
// (a user matching both fields appears once, in their name-match position).
// The caller's own record is always excluded, and results are projected to
// the public shape — the token identifier is never exposed.
func (s *DirectoryService) SearchUsers(ctx context.Context, id auth.Identity, query string) ([]model.PublicUser, error) {
	current, err := s.GetCurrentUser(ctx, id)
	if err != nil {
		return nil, err
	}

	results := []model.PublicUser{}
	if utf8.RuneCountInString(query) < minSearchQueryLen {
		return results, nil
	}

	nameMatches, err := s.users.SearchByName(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("searching users by name: %w", err)
	}

	emailMatches, err := s.users.SearchByEmail(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("searching users by email: %w", err)
	}

	seen := make(map[string]bool, len(nameMatches))
	merged := make([]model.User, 0, len(nameMatches)+len(emailMatches))
	for _, u := range nameMatches {
		seen[u.ID] = true
		merged = append(merged, u)
	}
	for _, u := range emailMatches {
		if !seen[u.ID] {
			merged = append(merged, u)
		}
	}

	for i := range merged {
		if merged[i].ID == current.ID {
			continue
		}
		results = append(results, merged[i].Public())
	}

	return results, nil
}
