package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/rs/xid"
	"github.com/sakif/splitr/internal/apperror"
	"github.com/sakif/splitr/internal/model"
	"github.com/sakif/splitr/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, name, token_identifier, email, image_url, created_at, updated_at`

// GetByToken retrieves the user for an external token identifier.
//
// The lookup must be unique. The UNIQUE constraint on token_identifier makes
// a second row impossible through this code path, but we still read up to two
// rows and report ErrAmbiguousIdentity rather than silently returning an
// arbitrary one — a hand-migrated database is the only way to get here.
func (db *DB) GetByToken(ctx context.Context, tokenIdentifier string) (*model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE token_identifier = ? LIMIT 2`,
		tokenIdentifier,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: looking up user by token: %w", err)
	}
	defer rows.Close()

	var found []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		found = append(found, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: reading user rows: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, apperror.NotFound("user", tokenIdentifier)
	case 1:
		return found[0], nil
	default:
		return nil, apperror.AmbiguousIdentity(tokenIdentifier)
	}
}

// GetByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	)

	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}

	return u, nil
}

// Insert creates a new user row, generating the internal ID and timestamps.
//
// If another insert for the same token identifier got there first, the UNIQUE
// constraint fires and Insert returns apperror.ErrConflict. The caller (the
// directory service) recovers by re-running the token lookup, so both racers
// converge on the single stored row.
func (db *DB) Insert(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, name, token_identifier, email, image_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.TokenIdentifier,
		user.Email,
		user.ImageURL,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperror.Conflict("user", user.TokenIdentifier)
		}
		return fmt.Errorf("sqlite: inserting user (token=%s): %w", user.TokenIdentifier, err)
	}

	return nil
}

// UpdateName patches exactly one field: the display name. Email and image URL
// are first-write-wins and never touched after creation.
func (db *DB) UpdateName(ctx context.Context, id, name string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating name for user %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking update result for user %s: %w", id, err)
	}
	if affected == 0 {
		return apperror.NotFound("user", id)
	}

	return nil
}

// SearchByName runs a full-text prefix match of query against the name field.
func (db *DB) SearchByName(ctx context.Context, query string) ([]model.User, error) {
	return db.searchColumn(ctx, "name", query)
}

// SearchByEmail runs a full-text prefix match of query against the email
// field.
func (db *DB) SearchByEmail(ctx context.Context, query string) ([]model.User, error) {
	return db.searchColumn(ctx, "email", query)
}

// searchColumn queries the FTS index restricted to one column. Results come
// back in rowid order, i.e. insertion order — a deterministic policy the
// service-level merge and the tests can rely on.
func (db *DB) searchColumn(ctx context.Context, column, query string) ([]model.User, error) {
	match := buildMatchExpr(column, query)
	if match == "" {
		// Query reduced to no tokens (punctuation only) — nothing can match.
		return nil, nil
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT u.id, u.name, u.token_identifier, u.email, u.image_url, u.created_at, u.updated_at
		 FROM users_fts f
		 JOIN users u ON u.rowid = f.rowid
		 WHERE users_fts MATCH ?
		 ORDER BY f.rowid`,
		match,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: searching %s for %q: %w", column, query, err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning search row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: reading search rows: %w", err)
	}

	return users, nil
}

// buildMatchExpr turns free-form user input into a column-scoped FTS5 query.
//
// The input is split into alphanumeric tokens the same way unicode61
// tokenizes the indexed text, each token is double-quoted (so FTS5 operators
// in the input are treated as literals, never as syntax), and the final token
// becomes a prefix match. "alice@b" on the email column becomes:
//
//	{email} : ("alice" "b"*)
//
// Returns "" when the input contains no token characters at all.
func buildMatchExpr(column, query string) string {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("{")
	b.WriteString(column)
	b.WriteString("} : (")
	for i, tok := range tokens {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte('"')
		b.WriteString(tok)
		b.WriteByte('"')
	}
	b.WriteString("*)")
	return b.String()
}

// tokenize splits the query at anything that is not a letter or digit,
// mirroring the unicode61 tokenizer's separator rules.
func tokenize(query string) []string {
	return strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*model.User, error) {
	var u model.User
	err := s.Scan(
		&u.ID,
		&u.Name,
		&u.TokenIdentifier,
		&u.Email,
		&u.ImageURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
