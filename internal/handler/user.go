package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/splitr/internal/auth"
	"github.com/sakif/splitr/internal/service"
)

// UserHandler exposes the user directory over HTTP.
//
// All three routes sit behind auth.RequireIdentity, so the verified caller
// identity is always available from the request context. The handler passes
// it to the service as an explicit value and never touches auth state again.
type UserHandler struct {
	directory *service.DirectoryService
	logger    *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(directory *service.DirectoryService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		directory: directory,
		logger:    logger,
	}
}

// HandleStore upserts the caller into the directory.
//
// HTTP: POST /api/users/store
// Auth: Required
//
// Response: {"id": "<internal user id>"} — the same ID on every call for the
// same identity.
func (h *UserHandler) HandleStore(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		// Unreachable behind RequireIdentity, but be safe.
		http.Error(w, `{"error":"unauthenticated"}`, http.StatusUnauthorized)
		return
	}

	userID, err := h.directory.Store(r.Context(), identity)
	if err != nil {
		h.logger.Error("store failed",
			slog.String("token", identity.TokenIdentifier),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"id": userID})
}

// HandleMe returns the caller's full stored record.
//
// HTTP: GET /api/users/me
// Auth: Required
//
// Returns 404 not_found if the identity was never stored — the client
// recovers by calling POST /api/users/store first.
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthenticated"}`, http.StatusUnauthorized)
		return
	}

	user, err := h.directory.GetCurrentUser(r.Context(), identity)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleSearch finds users to add as expense participants.
//
// HTTP: GET /api/users/search?q=<query>
// Auth: Required
//
// Response: a JSON array of public user shapes ({id, name, email, imageUrl}).
// Queries shorter than two characters return []. The caller never appears in
// their own results.
func (h *UserHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthenticated"}`, http.StatusUnauthorized)
		return
	}

	query := r.URL.Query().Get("q")

	results, err := h.directory.SearchUsers(r.Context(), identity, query)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, results)
}
