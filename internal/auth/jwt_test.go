package auth

import (
	"strings"
	"testing"
	"time"
)

const testSecret = "test-secret-key-for-auth-tests"

func testIdentity() Identity {
	return Identity{
		TokenIdentifier: "github|1234567",
		Name:            "Alice Example",
		Email:           "alice@example.com",
		PictureURL:      "https://avatars.githubusercontent.com/u/1234567",
	}
}

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	s, err := NewTokenService(testSecret)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	return s
}

func TestNewTokenService_ShortSecret(t *testing.T) {
	_, err := NewTokenService("too-short")
	if err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 characters")
	}
}

func TestGenerateAndValidate(t *testing.T) {
	s := newTestTokenService(t)
	want := testIdentity()

	tokenStr, err := s.Generate(want)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	// A JWT is three base64 segments joined by dots
	if parts := strings.Split(tokenStr, "."); len(parts) != 3 {
		t.Errorf("token has %d segments, want 3", len(parts))
	}

	got, err := s.Validate(tokenStr)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	// The full identity must round-trip through the token — the middleware
	// reconstructs it from claims alone, with no database lookup.
	if got != want {
		t.Errorf("Validate() identity = %+v, want %+v", got, want)
	}
}

func TestGenerate_NoTokenIdentifier(t *testing.T) {
	s := newTestTokenService(t)

	_, err := s.Generate(Identity{Name: "No Subject"})
	if err == nil {
		t.Fatal("Generate() should reject an identity without a token identifier")
	}
}

func TestValidate_WrongSecret(t *testing.T) {
	s := newTestTokenService(t)
	tokenStr, err := s.Generate(testIdentity())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	other, err := NewTokenService("a-completely-different-secret")
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}

	if _, err := other.Validate(tokenStr); err == nil {
		t.Fatal("Validate() should reject a token signed with a different secret")
	}
}

func TestValidate_Expired(t *testing.T) {
	s := newTestTokenService(t)

	tokenStr, err := s.GenerateWithDuration(testIdentity(), -time.Minute)
	if err != nil {
		t.Fatalf("GenerateWithDuration() error = %v", err)
	}

	_, err = s.Validate(tokenStr)
	if err == nil {
		t.Fatal("Validate() should reject an expired token")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Errorf("Validate() error = %v, want an expiry error", err)
	}
}

func TestValidate_Tampered(t *testing.T) {
	s := newTestTokenService(t)
	tokenStr, err := s.Generate(testIdentity())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	// Flip a character in the payload segment
	tampered := []byte(tokenStr)
	mid := len(tampered) / 2
	if tampered[mid] == 'A' {
		tampered[mid] = 'B'
	} else {
		tampered[mid] = 'A'
	}

	if _, err := s.Validate(string(tampered)); err == nil {
		t.Fatal("Validate() should reject a tampered token")
	}
}

func TestValidate_Garbage(t *testing.T) {
	s := newTestTokenService(t)

	if _, err := s.Validate("not-a-jwt-at-all"); err == nil {
		t.Fatal("Validate() should reject a malformed token")
	}
}

func TestGenerate_OptionalFieldsEmpty(t *testing.T) {
	s := newTestTokenService(t)
	want := Identity{TokenIdentifier: "github|99", Name: "Bob"}

	tokenStr, err := s.Generate(want)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	got, err := s.Validate(tokenStr)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if got.Email != "" || got.PictureURL != "" {
		t.Errorf("empty optional fields should stay empty, got %+v", got)
	}
	if got.TokenIdentifier != want.TokenIdentifier || got.Name != want.Name {
		t.Errorf("Validate() identity = %+v, want %+v", got, want)
	}
}
