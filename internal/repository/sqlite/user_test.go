package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/splitr/internal/apperror"
	"github.com/sakif/splitr/internal/model"
)

// newTestDB returns a *DB backed by an in-memory SQLite database. The
// database disappears when the test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// insertTestUser creates a user and fails the test if it errors.
func insertTestUser(t *testing.T, db *DB, token, name, email string) *model.User {
	t.Helper()
	user := &model.User{
		Name:            name,
		TokenIdentifier: token,
		Email:           email,
		ImageURL:        "https://example.com/avatar.png",
	}
	if err := db.Insert(context.Background(), user); err != nil {
		t.Fatalf("failed to insert test user: %v", err)
	}
	return user
}

// =========================================================================
// INSERT TESTS
// =========================================================================

func TestInsert(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{
		Name:            "Alice",
		TokenIdentifier: "github|111",
		Email:           "alice@example.com",
	}
	if err := db.Insert(context.Background(), user); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	// Verify the user was modified in-place (pointer receiver)
	if user.ID == "" {
		t.Error("Insert() did not set user.ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("Insert() did not set user.CreatedAt")
	}
	if user.UpdatedAt.IsZero() {
		t.Error("Insert() did not set user.UpdatedAt")
	}
}

func TestInsert_DuplicateToken(t *testing.T) {
	db := newTestDB(t)
	insertTestUser(t, db, "github|222", "First", "first@example.com")

	// Second insert for the same token identifier loses to the UNIQUE
	// constraint — this is the concurrent-first-store race in miniature.
	duplicate := &model.User{
		Name:            "Second",
		TokenIdentifier: "github|222",
	}
	err := db.Insert(context.Background(), duplicate)
	if err == nil {
		t.Fatal("Insert() should have failed for a duplicate token identifier")
	}
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Insert() error = %v, want ErrConflict", err)
	}

	// The loser must be able to recover via the token lookup.
	winner, err := db.GetByToken(context.Background(), "github|222")
	if err != nil {
		t.Fatalf("GetByToken() after conflict error = %v", err)
	}
	if winner.Name != "First" {
		t.Errorf("surviving user Name = %q, want %q", winner.Name, "First")
	}
}

// =========================================================================
// LOOKUP TESTS
// =========================================================================

func TestGetByToken(t *testing.T) {
	db := newTestDB(t)
	created := insertTestUser(t, db, "github|333", "Carol", "carol@example.com")

	found, err := db.GetByToken(context.Background(), "github|333")
	if err != nil {
		t.Fatalf("GetByToken() error = %v", err)
	}

	if found.ID != created.ID {
		t.Errorf("ID = %q, want %q", found.ID, created.ID)
	}
	if found.Name != "Carol" {
		t.Errorf("Name = %q, want %q", found.Name, "Carol")
	}
	if found.Email != "carol@example.com" {
		t.Errorf("Email = %q, want %q", found.Email, "carol@example.com")
	}
}

func TestGetByToken_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetByToken(context.Background(), "github|never-stored")
	if err == nil {
		t.Fatal("GetByToken() should have failed for an unknown token")
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByToken() error = %v, want ErrNotFound", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetByID(context.Background(), "nonexistent-id")
	if err == nil {
		t.Fatal("GetByID() should have failed for a nonexistent ID")
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// UPDATE TESTS
// =========================================================================

func TestUpdateName(t *testing.T) {
	db := newTestDB(t)
	created := insertTestUser(t, db, "github|444", "Old Name", "keep@example.com")

	if err := db.UpdateName(context.Background(), created.ID, "New Name"); err != nil {
		t.Fatalf("UpdateName() error = %v", err)
	}

	found, err := db.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.Name != "New Name" {
		t.Errorf("Name = %q, want %q", found.Name, "New Name")
	}
	// Only the name changes — email and image URL are first-write-wins.
	if found.Email != "keep@example.com" {
		t.Errorf("Email = %q, want unchanged %q", found.Email, "keep@example.com")
	}
	if found.ImageURL != created.ImageURL {
		t.Errorf("ImageURL = %q, want unchanged %q", found.ImageURL, created.ImageURL)
	}
}

func TestUpdateName_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.UpdateName(context.Background(), "nonexistent-id", "Anyone")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateName() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// SEARCH TESTS
// =========================================================================

func TestSearchByName(t *testing.T) {
	db := newTestDB(t)
	alice := insertTestUser(t, db, "github|1", "Alice Smith", "x@a.com")
	insertTestUser(t, db, "github|2", "Bob Jones", "alice@b.com")

	results, err := db.SearchByName(context.Background(), "alice")
	if err != nil {
		t.Fatalf("SearchByName() error = %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("SearchByName() returned %d users, want 1", len(results))
	}
	if results[0].ID != alice.ID {
		t.Errorf("result ID = %q, want %q", results[0].ID, alice.ID)
	}
}

func TestSearchByName_Prefix(t *testing.T) {
	db := newTestDB(t)
	insertTestUser(t, db, "github|1", "Alice Smith", "x@a.com")
	insertTestUser(t, db, "github|2", "Alicia Keys", "y@a.com")
	insertTestUser(t, db, "github|3", "Bob Jones", "z@a.com")

	// "ali" prefix-matches both Alice and Alicia
	results, err := db.SearchByName(context.Background(), "ali")
	if err != nil {
		t.Fatalf("SearchByName() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("SearchByName(\"ali\") returned %d users, want 2", len(results))
	}
}

func TestSearchByName_CaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	insertTestUser(t, db, "github|1", "Alice Smith", "x@a.com")

	results, err := db.SearchByName(context.Background(), "ALICE")
	if err != nil {
		t.Fatalf("SearchByName() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("SearchByName(\"ALICE\") returned %d users, want 1", len(results))
	}
}

func TestSearchByEmail(t *testing.T) {
	db := newTestDB(t)
	insertTestUser(t, db, "github|1", "Alice Smith", "x@a.com")
	bob := insertTestUser(t, db, "github|2", "Bob Jones", "alice@b.com")

	results, err := db.SearchByEmail(context.Background(), "alice")
	if err != nil {
		t.Fatalf("SearchByEmail() error = %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("SearchByEmail() returned %d users, want 1", len(results))
	}
	if results[0].ID != bob.ID {
		t.Errorf("result ID = %q, want %q", results[0].ID, bob.ID)
	}
}

func TestSearchByEmail_DoesNotMatchNames(t *testing.T) {
	db := newTestDB(t)
	insertTestUser(t, db, "github|1", "Alice Smith", "x@a.com")

	// Column-scoped match: "alice" appears only in the name field.
	results, err := db.SearchByEmail(context.Background(), "alice")
	if err != nil {
		t.Fatalf("SearchByEmail() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("SearchByEmail() returned %d users, want 0", len(results))
	}
}

func TestSearch_InsertionOrder(t *testing.T) {
	db := newTestDB(t)
	first := insertTestUser(t, db, "github|1", "Sam One", "a@x.com")
	second := insertTestUser(t, db, "github|2", "Sam Two", "b@x.com")
	third := insertTestUser(t, db, "github|3", "Sam Three", "c@x.com")

	results, err := db.SearchByName(context.Background(), "sam")
	if err != nil {
		t.Fatalf("SearchByName() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("SearchByName() returned %d users, want 3", len(results))
	}
	wantOrder := []string{first.ID, second.ID, third.ID}
	for i, want := range wantOrder {
		if results[i].ID != want {
			t.Errorf("results[%d].ID = %q, want %q", i, results[i].ID, want)
		}
	}
}

func TestSearch_UpdatedNameIsIndexed(t *testing.T) {
	db := newTestDB(t)
	created := insertTestUser(t, db, "github|1", "Old Name", "a@x.com")

	if err := db.UpdateName(context.Background(), created.ID, "Freshname"); err != nil {
		t.Fatalf("UpdateName() error = %v", err)
	}

	// The update trigger must re-index the row under the new name.
	results, err := db.SearchByName(context.Background(), "freshname")
	if err != nil {
		t.Fatalf("SearchByName() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("SearchByName() after rename returned %d users, want 1", len(results))
	}

	stale, err := db.SearchByName(context.Background(), "old")
	if err != nil {
		t.Fatalf("SearchByName() error = %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("SearchByName() for the old name returned %d users, want 0", len(stale))
	}
}

func TestSearch_PunctuationOnlyQuery(t *testing.T) {
	db := newTestDB(t)
	insertTestUser(t, db, "github|1", "Alice Smith", "x@a.com")

	// No token characters at all — nothing can match, and the FTS query is
	// skipped entirely rather than handed malformed syntax.
	results, err := db.SearchByName(context.Background(), "@@..//")
	if err != nil {
		t.Fatalf("SearchByName() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("SearchByName() returned %d users, want 0", len(results))
	}
}

func TestSearch_QuerySyntaxIsEscaped(t *testing.T) {
	db := newTestDB(t)
	insertTestUser(t, db, "github|1", "Alice Smith", "x@a.com")

	// FTS5 operators in user input must be treated as literals, not syntax.
	for _, q := range []string{`alice"`, `alice AND bob`, `(alice`, `alice*`} {
		if _, err := db.SearchByName(context.Background(), q); err != nil {
			t.Errorf("SearchByName(%q) error = %v, want nil", q, err)
		}
	}
}

func TestBuildMatchExpr(t *testing.T) {
	tests := []struct {
		name   string
		column string
		query  string
		want   string
	}{
		{
			name:   "single token",
			column: "name",
			query:  "alice",
			want:   `{name} : ("alice"*)`,
		},
		{
			name:   "multiple tokens, prefix on last",
			column: "name",
			query:  "alice sm",
			want:   `{name} : ("alice" "sm"*)`,
		},
		{
			name:   "email splits at punctuation",
			column: "email",
			query:  "alice@b",
			want:   `{email} : ("alice" "b"*)`,
		},
		{
			name:   "punctuation only",
			column: "name",
			query:  "@.!",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildMatchExpr(tt.column, tt.query)
			if got != tt.want {
				t.Errorf("buildMatchExpr(%q, %q) = %q, want %q", tt.column, tt.query, got, tt.want)
			}
		})
	}
}
