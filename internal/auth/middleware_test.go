package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// protectedEcho is a handler that records the identity it saw in the context.
func protectedEcho(saw *Identity, called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		if id, ok := IdentityFromContext(r.Context()); ok {
			*saw = id
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireIdentity_ValidCookie(t *testing.T) {
	s := newTestTokenService(t)
	want := testIdentity()

	tokenStr, err := s.Generate(want)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	var saw Identity
	var called bool
	handler := RequireIdentity(s)(protectedEcho(&saw, &called))

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: tokenStr})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !called {
		t.Fatal("next handler was not called")
	}
	if saw != want {
		t.Errorf("identity in context = %+v, want %+v", saw, want)
	}
}

func TestRequireIdentity_MissingCookie(t *testing.T) {
	s := newTestTokenService(t)

	var saw Identity
	var called bool
	handler := RequireIdentity(s)(protectedEcho(&saw, &called))

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if called {
		t.Fatal("next handler should not run without a token")
	}
}

func TestRequireIdentity_InvalidToken(t *testing.T) {
	s := newTestTokenService(t)

	var saw Identity
	var called bool
	handler := RequireIdentity(s)(protectedEcho(&saw, &called))

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: "garbage"})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if called {
		t.Fatal("next handler should not run with an invalid token")
	}
}

func TestIdentityFromContext_Anonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	if _, ok := IdentityFromContext(req.Context()); ok {
		t.Error("IdentityFromContext() = ok on a bare context, want !ok")
	}
}
